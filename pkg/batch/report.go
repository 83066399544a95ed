package batch

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/menta2k/border-trim/internal/utils"
	"github.com/menta2k/border-trim/pkg/types"
)

// Status is the outcome of one file
type Status int

const (
	StatusProcessed Status = iota
	StatusSkipped
	StatusFailed
	// StatusCanceled marks a file interrupted by cancellation. It is not a failure.
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusProcessed:
		return "processed"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status by name in JSON reports
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FailureKind classifies why a file failed
type FailureKind string

const (
	FailureNone     FailureKind = ""
	FailureDecode   FailureKind = "decode"
	FailureEncode   FailureKind = "encode"
	FailureEmpty    FailureKind = "empty"
	FailureCanceled FailureKind = "canceled"
	FailureOther    FailureKind = "other"
)

// FileResult is the structured outcome for one file
type FileResult struct {
	Input  string            `json:"input"`
	Output string            `json:"output,omitempty"`
	Status Status            `json:"status"`
	Kind   FailureKind       `json:"kind,omitempty"`
	Err    error             `json:"-"`
	Error  string            `json:"error,omitempty"`
	Box    types.BoundingBox `json:"box"`
	Size   int64             `json:"size"`
	// Duration is only measured when verbose reporting is enabled
	Duration time.Duration `json:"duration,omitempty"`
}

// Throughput returns the input kilobytes per second, zero when not timed
func (r FileResult) Throughput() float64 {
	return utils.Throughput(r.Size, r.Duration)
}

// DirectoryCreateError reports an output directory that could not be created.
// It never stops a batch.
type DirectoryCreateError struct {
	Path string
	Err  error
}

func (e *DirectoryCreateError) Error() string {
	return fmt.Sprintf("create directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryCreateError) Unwrap() error { return e.Err }

// Report accumulates the results of a batch run
type Report struct {
	mu sync.Mutex

	InputRoot        string        `json:"input_root"`
	OutputRoot       string        `json:"output_root"`
	Processed        int           `json:"processed"`
	Skipped          int           `json:"skipped"`
	Failed           int           `json:"failed"`
	Canceled         int           `json:"canceled"`
	Files            []FileResult  `json:"files"`
	DirErrors        []error       `json:"-"`
	// DirErrorMessages mirrors DirErrors in JSON reports
	DirErrorMessages []string      `json:"dir_errors,omitempty"`
	Started          time.Time     `json:"started"`
	Elapsed          time.Duration `json:"elapsed"`
}

func newReport(inputRoot, outputRoot string) *Report {
	return &Report{
		InputRoot:  inputRoot,
		OutputRoot: outputRoot,
		Started:    time.Now(),
	}
}

func (r *Report) add(res FileResult) {
	if res.Err != nil {
		res.Error = res.Err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch res.Status {
	case StatusProcessed:
		r.Processed++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	case StatusCanceled:
		r.Canceled++
	}
	r.Files = append(r.Files, res)
}

func (r *Report) addDirError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DirErrors = append(r.DirErrors, err)
	r.DirErrorMessages = append(r.DirErrorMessages, err.Error())
}

func (r *Report) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(r.Files, func(i, j int) bool {
		return r.Files[i].Input < r.Files[j].Input
	})
	r.Elapsed = time.Since(r.Started)
}

// Failures returns the results of failed files
func (r *Report) Failures() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Status == StatusFailed {
			out = append(out, f)
		}
	}
	return out
}

// Err combines every file failure and directory error, nil when there are none
func (r *Report) Err() error {
	var err error
	for _, f := range r.Failures() {
		err = multierr.Append(err, fmt.Errorf("%s: %w", f.Input, f.Err))
	}
	for _, d := range r.DirErrors {
		err = multierr.Append(err, d)
	}
	return err
}

// Summary returns a one-line description of the run. Canceled files are
// listed only when there are any.
func (r *Report) Summary() string {
	counts := fmt.Sprintf("%d processed, %d skipped, %d failed", r.Processed, r.Skipped, r.Failed)
	if r.Canceled > 0 {
		counts += fmt.Sprintf(", %d canceled", r.Canceled)
	}
	return fmt.Sprintf("%s in %s", counts, utils.FormatHMS(r.Elapsed))
}
