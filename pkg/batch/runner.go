// Package batch trims borders from every matching image in a directory tree and
// writes the results to a mirrored tree.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/border-trim/internal/utils"
	"github.com/menta2k/border-trim/pkg/cropper"
	"github.com/menta2k/border-trim/pkg/processing"
	"github.com/menta2k/border-trim/pkg/storage"
)

// ErrInvalidRoot is returned when the input root is missing or not a directory
var ErrInvalidRoot = errors.New("invalid input root")

// DefaultExtensions are the file extensions processed when none are configured
var DefaultExtensions = []string{"png"}

// Options configures a batch run
type Options struct {
	// Extensions accepted for processing, matched case-insensitively
	Extensions []string
	// Workers is the number of files processed at once. 1 processes files
	// strictly one after another.
	Workers int
	// Verbose enables per-file timing
	Verbose bool
	// DryRun finds bounds without writing output images
	DryRun bool
	// Suffix is inserted before the extension of output file names
	Suffix string
	// OnResult, if set, is called for every file result. It may be called
	// from several goroutines at once.
	OnResult func(FileResult)
}

// DefaultOptions returns options with default values
func DefaultOptions() Options {
	return Options{
		Extensions: DefaultExtensions,
		Workers:    runtime.NumCPU(),
	}
}

// Runner applies a BorderCropper across a directory tree
type Runner struct {
	store   storage.Store
	cropper *cropper.BorderCropper
	opts    Options
}

// NewRunner creates a Runner reading and writing through store
func NewRunner(store storage.Store, c *cropper.BorderCropper, opts Options) *Runner {
	opts.Extensions = utils.NormalizeExtensions(opts.Extensions)
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if c == nil {
		c = cropper.New()
	}
	return &Runner{store: store, cropper: c, opts: opts}
}

// Options returns the normalized options of the runner
func (r *Runner) Options() Options {
	return r.opts
}

// walkState is shared by one run's traversal and workers
type walkState struct {
	inputRoot  string
	outputRoot string
	absOutput  string
	dirs       *dirCreator
	report     *Report
	group      *errgroup.Group
}

// Run processes every matching file under inputRoot and writes cropped images
// to the same relative paths under outputRoot.
//
// Per-file problems are recorded in the report and never stop the run. An
// error is returned only when the input root is unusable, the output root
// cannot be created, or ctx is canceled; the partial report is returned with
// a cancellation error.
func (r *Runner) Run(ctx context.Context, inputRoot, outputRoot string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inputRoot = filepath.Clean(inputRoot)
	outputRoot = filepath.Clean(outputRoot)

	ok, err := r.store.IsDir(inputRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, inputRoot, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, inputRoot)
	}

	dirs := newDirCreator(r.store)
	if err := dirs.ensure(outputRoot); err != nil {
		return nil, fmt.Errorf("output root: %w", err)
	}

	absOutput, err := filepath.Abs(outputRoot)
	if err != nil {
		absOutput = outputRoot
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	st := &walkState{
		inputRoot:  inputRoot,
		outputRoot: outputRoot,
		absOutput:  absOutput,
		dirs:       dirs,
		report:     newReport(inputRoot, outputRoot),
		group:      g,
	}

	walkErr := r.walk(gctx, st, inputRoot)
	// Workers record their failures in the report and always return nil.
	_ = g.Wait()
	st.report.finish()

	if walkErr != nil {
		return st.report, walkErr
	}
	if err := ctx.Err(); err != nil {
		return st.report, err
	}
	return st.report, nil
}

// walk visits dir depth-first. Subdirectories are mirrored and descended into
// in order; files are handed to the worker pool.
func (r *Runner) walk(ctx context.Context, st *walkState, dir string) error {
	entries, err := r.store.ListEntries(dir)
	if err != nil {
		if dir == st.inputRoot {
			return fmt.Errorf("%w: %v", ErrInvalidRoot, err)
		}
		st.report.addDirError(err)
		return nil
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.IsDir {
			if r.isOutputRoot(st, e.Path) {
				continue
			}
			outDir, err := utils.MirrorPath(st.inputRoot, st.outputRoot, e.Path)
			if err != nil {
				st.report.addDirError(err)
				continue
			}
			if err := st.dirs.ensure(outDir); err != nil {
				st.report.addDirError(err)
			}
			if err := r.walk(ctx, st, e.Path); err != nil {
				return err
			}
			continue
		}

		if !utils.HasExtension(e.Name, r.opts.Extensions) {
			r.record(st, FileResult{Input: e.Path, Status: StatusSkipped, Size: e.Size})
			continue
		}

		e := e
		st.group.Go(func() error {
			r.record(st, r.processFile(ctx, st, e))
			return nil
		})
	}
	return nil
}

// isOutputRoot keeps the traversal out of an output tree nested in the input tree
func (r *Runner) isOutputRoot(st *walkState, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path == st.outputRoot
	}
	return abs == st.absOutput
}

func (r *Runner) record(st *walkState, res FileResult) {
	st.report.add(res)
	if r.opts.OnResult != nil {
		r.opts.OnResult(res)
	}
}

// processFile decodes, crops and writes one image
func (r *Runner) processFile(ctx context.Context, st *walkState, e storage.Entry) FileResult {
	res := FileResult{Input: e.Path, Size: e.Size}

	var start time.Time
	if r.opts.Verbose {
		start = time.Now()
	}
	fail := func(err error) FileResult {
		res.Status = StatusFailed
		res.Kind = classify(err)
		if res.Kind == FailureCanceled {
			res.Status = StatusCanceled
		}
		res.Err = err
		if r.opts.Verbose {
			res.Duration = time.Since(start)
		}
		return res
	}

	mirrored, err := utils.MirrorPath(st.inputRoot, st.outputRoot, e.Path)
	if err != nil {
		return fail(err)
	}
	res.Output = filepath.Join(filepath.Dir(mirrored), utils.WithSuffix(e.Name, r.opts.Suffix))

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	img, err := r.store.ReadImage(e.Path)
	if err != nil {
		return fail(err)
	}

	cropped, err := r.cropper.CropContext(ctx, img)
	if err != nil {
		return fail(err)
	}
	res.Box = cropped.Box

	if !r.opts.DryRun {
		if err := st.dirs.ensure(filepath.Dir(res.Output)); err != nil {
			return fail(err)
		}
		if err := r.store.WriteImage(res.Output, cropped.Image); err != nil {
			return fail(err)
		}
	}

	res.Status = StatusProcessed
	if r.opts.Verbose {
		res.Duration = time.Since(start)
	}
	return res
}

func classify(err error) FailureKind {
	var (
		decErr *processing.DecodeError
		encErr *processing.EncodeError
		dirErr *DirectoryCreateError
	)
	switch {
	case errors.Is(err, cropper.ErrEmptyBoundingBox):
		return FailureEmpty
	case errors.As(err, &decErr):
		return FailureDecode
	case errors.As(err, &encErr), errors.As(err, &dirErr):
		return FailureEncode
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	default:
		return FailureOther
	}
}
