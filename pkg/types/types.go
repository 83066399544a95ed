package types

import (
	"fmt"
	"image"
)

// BoundingBox is the pixel region left after the borders have been scanned away.
// Start coordinates are inclusive, end coordinates exclusive.
type BoundingBox struct {
	StartX int `json:"start_x"`
	StartY int `json:"start_y"`
	EndX   int `json:"end_x"`
	EndY   int `json:"end_y"`
}

// FullBox returns the box covering a whole w×h image
func FullBox(w, h int) BoundingBox {
	return BoundingBox{StartX: 0, StartY: 0, EndX: w, EndY: h}
}

// Width of the box, zero or negative when degenerate
func (b BoundingBox) Width() int {
	return b.EndX - b.StartX
}

// Height of the box, zero or negative when degenerate
func (b BoundingBox) Height() int {
	return b.EndY - b.StartY
}

// Empty reports whether the box has no interior.
func (b BoundingBox) Empty() bool {
	return b.StartX >= b.EndX || b.StartY >= b.EndY
}

// Within reports whether the box is non-empty and lies inside a w×h image.
func (b BoundingBox) Within(w, h int) bool {
	return !b.Empty() && b.StartX >= 0 && b.StartY >= 0 && b.EndX <= w && b.EndY <= h
}

// Rect converts the box to an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.StartX, b.StartY, b.EndX, b.EndY)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.StartX, b.StartY, b.EndX, b.EndY)
}

// EncodeOptions controls how cropped images are written back
type EncodeOptions struct {
	Quality  int
	Lossless bool
}
