package border

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/border-trim/pkg/types"
)

// Edge identifies which side of a bounding box a scan moves.
type Edge int

const (
	Top Edge = iota
	Bottom
	Left
	Right
)

func (e Edge) String() string {
	switch e {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("edge(%d)", int(e))
	}
}

// cancelCheckInterval is how many advanced lines pass between context checks
const cancelCheckInterval = 64

// Scanner walks image edges inward over a materialized NRGBA image.
type Scanner struct {
	img       *image.NRGBA
	threshold Threshold
}

// NewScanner creates a Scanner for img using threshold t
func NewScanner(img *image.NRGBA, t Threshold) *Scanner {
	return &Scanner{img: img, threshold: t}
}

// Threshold returns the threshold the scanner classifies with
func (s *Scanner) Threshold() Threshold {
	return s.threshold
}

// Advance moves one edge of box inward for as long as the whole boundary line,
// limited to the perpendicular range of box, is made of border pixels.
//
// It returns the new edge coordinate in box terms: the first content row or
// column for Top/Left, one past the last content row or column for
// Bottom/Right. exhausted is true when the edge reached the opposite side of
// box, meaning nothing but border remains. Coordinates are relative to the
// image bounds origin.
func (s *Scanner) Advance(ctx context.Context, edge Edge, box types.BoundingBox) (pos int, exhausted bool, err error) {
	b := s.img.Bounds()
	if box.Empty() {
		return startPos(edge, box), true, nil
	}
	if !box.Within(b.Dx(), b.Dy()) {
		return 0, false, fmt.Errorf("border: box %s outside %dx%d image", box, b.Dx(), b.Dy())
	}

	var (
		limit, step int
		line        func(int) bool
	)
	pos = startPos(edge, box)
	switch edge {
	case Top:
		limit, step = box.EndY, 1
		line = func(y int) bool { return s.rowIsBorder(y, box.StartX, box.EndX) }
	case Bottom:
		limit, step = box.StartY, -1
		line = func(end int) bool { return s.rowIsBorder(end-1, box.StartX, box.EndX) }
	case Left:
		limit, step = box.EndX, 1
		line = func(x int) bool { return s.colIsBorder(x, box.StartY, box.EndY) }
	case Right:
		limit, step = box.StartX, -1
		line = func(end int) bool { return s.colIsBorder(end-1, box.StartY, box.EndY) }
	default:
		return 0, false, fmt.Errorf("border: unknown %s", edge)
	}

	for n := 1; line(pos); n++ {
		pos += step
		if pos == limit {
			return pos, true, nil
		}
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return pos, false, err
			}
		}
	}
	return pos, false, nil
}

func startPos(edge Edge, box types.BoundingBox) int {
	switch edge {
	case Top:
		return box.StartY
	case Bottom:
		return box.EndY
	case Left:
		return box.StartX
	default:
		return box.EndX
	}
}

// rowIsBorder checks pixels [x0, x1) of row y
func (s *Scanner) rowIsBorder(y, x0, x1 int) bool {
	origin := s.img.Rect.Min
	pix := s.img.Pix
	i := s.img.PixOffset(origin.X+x0, origin.Y+y)
	for x := x0; x < x1; x++ {
		if !s.threshold.isBorderRGB(pix[i], pix[i+1], pix[i+2]) {
			return false
		}
		i += 4
	}
	return true
}

// colIsBorder checks pixels [y0, y1) of column x
func (s *Scanner) colIsBorder(x, y0, y1 int) bool {
	origin := s.img.Rect.Min
	pix := s.img.Pix
	i := s.img.PixOffset(origin.X+x, origin.Y+y0)
	for y := y0; y < y1; y++ {
		if !s.threshold.isBorderRGB(pix[i], pix[i+1], pix[i+2]) {
			return false
		}
		i += s.img.Stride
	}
	return true
}
