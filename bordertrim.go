// Package bordertrim removes dark, uneven margins from raster images.
//
// Scanner output and instrument overlays often leave near-black bars of
// different thickness on every side of an image. bordertrim walks each edge
// inward while the whole row or column is dark, then crops to what is left.
// The same operation can be applied to every image in a directory tree, with
// the results written to a mirrored tree.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/menta2k/border-trim"
//		"github.com/menta2k/border-trim/pkg/cropper"
//	)
//
//	func main() {
//		trimmer := bordertrim.NewWithConfig(cropper.CropConfig{Threshold: 15}, bordertrim.DefaultBatchOptions())
//
//		// Single image
//		if err := trimmer.TrimFile("scan.png", "scan_trimmed.png"); err != nil {
//			log.Fatal(err)
//		}
//
//		// Whole tree
//		report, err := trimmer.ProcessTree(context.Background(), "scans", "trimmed")
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Println(report.Summary())
//	}
//
// The package consists of these components:
//
// 1. Border (pkg/border): pixel classification and edge scanning
// 2. Cropper (pkg/cropper): bounding box detection and cropping
// 3. Batch (pkg/batch): recursive, concurrent directory processing with reports
// 4. Processing and Storage (pkg/processing, pkg/storage): image codecs and file access
//
// A pixel is border when each of its red, green and blue channels is at or
// below the threshold. Edges are scanned top, bottom, left, right; the left and
// right scans only consider rows kept by the first two.
package bordertrim

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/border-trim/pkg/batch"
	"github.com/menta2k/border-trim/pkg/cropper"
	"github.com/menta2k/border-trim/pkg/processing"
	"github.com/menta2k/border-trim/pkg/storage"
	"github.com/menta2k/border-trim/pkg/types"
)

// Version of the border-trim library
const Version = "1.0.0"

// Trimmer provides a high-level interface for border trimming
type Trimmer struct {
	processor *processing.Processor
	cropper   *cropper.BorderCropper
	runner    *batch.Runner
}

// DefaultBatchOptions returns the default directory processing options
func DefaultBatchOptions() batch.Options {
	return batch.DefaultOptions()
}

// New creates a new Trimmer with default configuration
func New() *Trimmer {
	return NewWithConfig(cropper.New().Config(), batch.DefaultOptions())
}

// NewWithConfig creates a new Trimmer with custom configuration
func NewWithConfig(cropConfig cropper.CropConfig, batchOptions batch.Options) *Trimmer {
	return NewWithEncodeOptions(cropConfig, batchOptions, processing.NewProcessor().Options())
}

// NewWithEncodeOptions creates a new Trimmer that also controls output encoding
func NewWithEncodeOptions(cropConfig cropper.CropConfig, batchOptions batch.Options, encodeOptions types.EncodeOptions) *Trimmer {
	processor := processing.NewProcessorWithOptions(encodeOptions)
	c := cropper.NewWithConfig(cropConfig)

	return &Trimmer{
		processor: processor,
		cropper:   c,
		runner:    batch.NewRunner(storage.NewLocal(processor), c, batchOptions),
	}
}

// LoadImage loads an image from file
func (t *Trimmer) LoadImage(path string) (image.Image, error) {
	return t.processor.LoadImage(path)
}

// SaveImage saves an image to file in the format named by its extension
func (t *Trimmer) SaveImage(img image.Image, path string) error {
	return t.processor.SaveImage(img, path)
}

// TrimImage removes the border from img
func (t *Trimmer) TrimImage(img image.Image) (cropper.CropResult, error) {
	return t.cropper.Crop(img)
}

// FindBounds returns the bounding box of img's content without cropping
func (t *Trimmer) FindBounds(img image.Image) (types.BoundingBox, error) {
	return t.cropper.FindBounds(img)
}

// TrimFile is a convenience function that loads, trims and saves one image
func (t *Trimmer) TrimFile(inputPath, outputPath string) error {
	img, err := t.LoadImage(inputPath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	result, err := t.TrimImage(img)
	if err != nil {
		return fmt.Errorf("trimming failed: %w", err)
	}

	if err := t.SaveImage(result.Image, outputPath); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// ProcessTree trims every matching image under inputRoot into a mirrored tree under outputRoot
func (t *Trimmer) ProcessTree(ctx context.Context, inputRoot, outputRoot string) (*batch.Report, error) {
	return t.runner.Run(ctx, inputRoot, outputRoot)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
