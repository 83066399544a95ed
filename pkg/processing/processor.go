package processing

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"go.uber.org/multierr"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/border-trim/pkg/types"
)

// DecodeError reports an image that could not be read or decoded
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports an image that could not be encoded or written
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Processor handles image decoding and encoding
type Processor struct {
	opts types.EncodeOptions
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		opts: types.EncodeOptions{Quality: 90},
	}
}

// NewProcessorWithOptions creates a processor with custom encode options
func NewProcessorWithOptions(opts types.EncodeOptions) *Processor {
	if opts.Quality <= 0 {
		opts.Quality = 90
	}
	return &Processor{opts: opts}
}

// Options returns the encode options in use
func (p *Processor) Options() types.EncodeOptions {
	return p.opts
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	img, err := p.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}

// DecodeImage decodes an image from r with WebP support. When every decoder
// fails the error of each one is kept.
func (p *Processor) DecodeImage(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// Try the registered decoders first
	img, decodeErr := imaging.Decode(bytes.NewReader(data))
	if decodeErr == nil {
		return img, nil
	}

	// Try WebP decode
	img, webpErr := webp.Decode(bytes.NewReader(data))
	if webpErr == nil {
		return img, nil
	}

	return nil, multierr.Combine(decodeErr, fmt.Errorf("webp: %w", webpErr))
}

// FormatFromPath returns the output format for a file name based on its extension
func FormatFromPath(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "jpeg":
		return "jpg"
	case "tif":
		return "tiff"
	default:
		return ext
	}
}

// EncodeImage writes img to w in the given format
func (p *Processor) EncodeImage(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(format) {
	case "webp":
		opts := &webp.Options{Lossless: p.opts.Lossless, Quality: float32(p.opts.Quality)}
		return webp.Encode(w, img, opts)
	case "png":
		return imaging.Encode(w, img, imaging.PNG)
	case "jpg", "jpeg":
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(p.opts.Quality))
	case "gif":
		return imaging.Encode(w, img, imaging.GIF)
	case "bmp":
		return imaging.Encode(w, img, imaging.BMP)
	case "tif", "tiff":
		return imaging.Encode(w, img, imaging.TIFF)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// SaveImage saves an image to a file, choosing the format from the file extension
func (p *Processor) SaveImage(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &EncodeError{Path: path, Err: err}
	}
	return p.writeImage(f, path, img, FormatFromPath(path))
}

// writeImage encodes img into f, the freshly created file at path. A failed
// write removes the partial file.
func (p *Processor) writeImage(f io.WriteCloser, path string, img image.Image, format string) error {
	bw := bufio.NewWriter(f)
	if err := p.EncodeImage(bw, img, format); err != nil {
		f.Close()
		os.Remove(path)
		return &EncodeError{Path: path, Err: err}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return &EncodeError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return &EncodeError{Path: path, Err: err}
	}
	return nil
}
