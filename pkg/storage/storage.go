// Package storage abstracts where images are listed, read and written, so the
// batch driver never touches the filesystem directly.
package storage

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/menta2k/border-trim/internal/utils"
	"github.com/menta2k/border-trim/pkg/processing"
)

// Entry is one item found in a directory
type Entry struct {
	Name  string
	Path  string
	IsDir bool
	Size  int64
}

// Store lists directories and moves images in and out of them
type Store interface {
	ListEntries(dir string) ([]Entry, error)
	ReadImage(path string) (image.Image, error)
	WriteImage(path string, img image.Image) error
	// EnsureDir creates dir and its parents; an existing directory is not an error
	EnsureDir(dir string) error
	// IsDir reports whether path exists and is a directory
	IsDir(path string) (bool, error)
}

// Local is a Store backed by the local filesystem
type Local struct {
	processor *processing.Processor
}

// NewLocal creates a filesystem store that encodes and decodes with processor
func NewLocal(processor *processing.Processor) *Local {
	if processor == nil {
		processor = processing.NewProcessor()
	}
	return &Local{processor: processor}
}

// ListEntries returns the entries of dir sorted by name
func (l *Local) ListEntries(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		e := Entry{
			Name:  de.Name(),
			Path:  filepath.Join(dir, de.Name()),
			IsDir: de.IsDir(),
		}
		if !e.IsDir {
			if info, err := de.Info(); err == nil {
				e.Size = info.Size()
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadImage decodes the image at path
func (l *Local) ReadImage(path string) (image.Image, error) {
	return l.processor.LoadImage(path)
}

// WriteImage encodes img to path in the format named by its extension
func (l *Local) WriteImage(path string, img image.Image) error {
	return l.processor.SaveImage(img, path)
}

// EnsureDir creates dir if it is missing
func (l *Local) EnsureDir(dir string) error {
	return utils.EnsureDir(dir)
}

// IsDir reports whether path is an existing directory
func (l *Local) IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
