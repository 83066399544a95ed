package cropper

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/border-trim/pkg/border"
	"github.com/menta2k/border-trim/pkg/types"
)

// ErrEmptyBoundingBox is matched by every *EmptyBoundingBoxError
var ErrEmptyBoundingBox = errors.New("empty bounding box")

// EmptyBoundingBoxError reports an image with no content left after scanning,
// either because it is entirely border or because a scan crossed its opposite edge.
type EmptyBoundingBoxError struct {
	Width     int
	Height    int
	Box       types.BoundingBox
	Threshold border.Threshold
}

func (e *EmptyBoundingBoxError) Error() string {
	return fmt.Sprintf("empty bounding box %s for %dx%d image at threshold %d",
		e.Box, e.Width, e.Height, e.Threshold)
}

// Is makes errors.Is(err, ErrEmptyBoundingBox) true
func (e *EmptyBoundingBoxError) Is(target error) bool {
	return target == ErrEmptyBoundingBox
}

// BorderCropper trims dark margins from images
type BorderCropper struct {
	config CropConfig
}

// CropConfig holds configuration for border cropping
type CropConfig struct {
	Threshold border.Threshold
}

// New creates a new BorderCropper with default configuration
func New() *BorderCropper {
	return &BorderCropper{
		config: CropConfig{
			Threshold: border.DefaultThreshold,
		},
	}
}

// NewWithConfig creates a new BorderCropper with custom configuration
func NewWithConfig(config CropConfig) *BorderCropper {
	return &BorderCropper{config: config}
}

// Config returns the cropper configuration
func (c *BorderCropper) Config() CropConfig {
	return c.config
}

// Threshold returns the configured border threshold
func (c *BorderCropper) Threshold() border.Threshold {
	return c.config.Threshold
}

// CropResult contains the result of a cropping operation
type CropResult struct {
	Image image.Image
	Box   types.BoundingBox
	// Original is the size of the source image
	Original image.Rectangle
}

// Crop removes the border from img
func (c *BorderCropper) Crop(img image.Image) (CropResult, error) {
	return c.CropContext(context.Background(), img)
}

// CropContext removes the border from img, stopping early if ctx is canceled.
// The returned image is a new copy; img is never modified.
func (c *BorderCropper) CropContext(ctx context.Context, img image.Image) (CropResult, error) {
	src := imaging.Clone(img)
	box, err := c.findBounds(ctx, src)
	if err != nil {
		return CropResult{}, err
	}

	return CropResult{
		Image:    imaging.Crop(src, box.Rect()),
		Box:      box,
		Original: src.Bounds(),
	}, nil
}

// FindBounds computes the bounding box of the non-border content of img
// without cropping it.
func (c *BorderCropper) FindBounds(img image.Image) (types.BoundingBox, error) {
	return c.findBounds(context.Background(), imaging.Clone(img))
}

// findBounds scans top, bottom, left and right in that order. Left and right
// only look at rows left over after the top and bottom scans, so corner pixels
// of horizontal bars never hold back the vertical edges.
func (c *BorderCropper) findBounds(ctx context.Context, src *image.NRGBA) (types.BoundingBox, error) {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	box := types.FullBox(w, h)
	empty := func() error {
		return &EmptyBoundingBoxError{Width: w, Height: h, Box: box, Threshold: c.config.Threshold}
	}
	if box.Empty() {
		return box, empty()
	}

	scanner := border.NewScanner(src, c.config.Threshold)
	steps := []struct {
		edge border.Edge
		set  func(int)
	}{
		{border.Top, func(v int) { box.StartY = v }},
		{border.Bottom, func(v int) { box.EndY = v }},
		{border.Left, func(v int) { box.StartX = v }},
		{border.Right, func(v int) { box.EndX = v }},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return box, err
		}
		pos, exhausted, err := scanner.Advance(ctx, step.edge, box)
		if err != nil {
			return box, fmt.Errorf("scan %s edge: %w", step.edge, err)
		}
		step.set(pos)
		if exhausted {
			return box, empty()
		}
	}

	if !box.Within(w, h) {
		return box, empty()
	}
	return box, nil
}
