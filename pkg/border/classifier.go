// Package border decides which pixels belong to a dark margin and walks image
// edges inward while they do.
package border

import "image/color"

// Threshold is the inclusive per-channel intensity cutoff for a border pixel.
type Threshold uint8

// DefaultThreshold is used when no threshold is configured. The batch tool
// historically ran at 30; the remote-fetch tool used 15 and can still request
// it explicitly through configuration.
const DefaultThreshold Threshold = 30

// IsBorder reports whether every color channel of c is at or below t.
// Alpha is ignored.
func IsBorder(c color.Color, t Threshold) bool {
	p := color.NRGBAModel.Convert(c).(color.NRGBA)
	return t.isBorderRGB(p.R, p.G, p.B)
}

// IsBorder is the method form of IsBorder
func (t Threshold) IsBorder(c color.Color) bool {
	return IsBorder(c, t)
}

func (t Threshold) isBorderRGB(r, g, b uint8) bool {
	m := uint8(t)
	return r <= m && g <= m && b <= m
}
