package batch

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/border-trim/pkg/cropper"
	"github.com/menta2k/border-trim/pkg/processing"
	"github.com/menta2k/border-trim/pkg/storage"
	"github.com/menta2k/border-trim/pkg/types"
)

// ringImage builds a w×h image with a 2 pixel (5,5,5) ring around content
func ringImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= 2 && x < w-2 && y >= 2 && y < h-2 {
				img.Set(x, y, color.RGBA{40, 10, 10, 255})
			} else {
				img.Set(x, y, color.RGBA{5, 5, 5, 255})
			}
		}
	}
	return img
}

func darkImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{3, 3, 3, 255})
		}
	}
	return img
}

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, processing.NewProcessor().SaveImage(img, path))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// sampleTree creates root/a/b/img1.png, root/a/img2.png and root/notes.txt
func sampleTree(t *testing.T) (string, string) {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "root")
	writeImage(t, filepath.Join(root, "a", "b", "img1.png"), ringImage(10, 10))
	writeImage(t, filepath.Join(root, "a", "img2.png"), ringImage(12, 8))
	writeFile(t, filepath.Join(root, "notes.txt"), "not an image")
	return root, filepath.Join(base, "out")
}

func newTestRunner(store storage.Store, opts Options) *Runner {
	return NewRunner(store, cropper.NewWithConfig(cropper.CropConfig{Threshold: 15}), opts)
}

func imageSize(t *testing.T, path string) (int, int) {
	t.Helper()
	img, err := processing.NewProcessor().LoadImage(path)
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestRunMirrorsTree(t *testing.T) {
	root, out := sampleTree(t)
	runner := newTestRunner(storage.NewLocal(nil), Options{Workers: 1})

	report, err := runner.Run(context.Background(), root, out)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.NoError(t, report.Err())

	w, h := imageSize(t, filepath.Join(out, "a", "b", "img1.png"))
	assert.Equal(t, []int{6, 6}, []int{w, h})
	w, h = imageSize(t, filepath.Join(out, "a", "img2.png"))
	assert.Equal(t, []int{8, 4}, []int{w, h})

	assert.NoFileExists(t, filepath.Join(out, "notes.txt"))

	require.Len(t, report.Files, 3)
	assert.Equal(t, filepath.Join(root, "a", "b", "img1.png"), report.Files[0].Input)
	assert.Equal(t, types.BoundingBox{StartX: 2, StartY: 2, EndX: 8, EndY: 8}, report.Files[0].Box)
	assert.Equal(t, StatusSkipped, report.Files[2].Status)
}

func TestRunRepeatable(t *testing.T) {
	root, out := sampleTree(t)
	runner := newTestRunner(storage.NewLocal(nil), DefaultOptions())

	first, err := runner.Run(context.Background(), root, out)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), root, out)
	require.NoError(t, err)

	assert.Equal(t, first.Processed, second.Processed)
	assert.Empty(t, second.DirErrors)
	assert.FileExists(t, filepath.Join(out, "a", "b", "img1.png"))
}

func TestRunContinuesPastFailures(t *testing.T) {
	root, out := sampleTree(t)
	writeFile(t, filepath.Join(root, "a", "broken.png"), "garbage")
	writeImage(t, filepath.Join(root, "black.png"), darkImage(5, 5))

	report, err := newTestRunner(storage.NewLocal(nil), Options{Workers: 4}).Run(context.Background(), root, out)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Failed)

	kinds := map[string]FailureKind{}
	for _, f := range report.Failures() {
		kinds[filepath.Base(f.Input)] = f.Kind
		assert.NotEmpty(t, f.Error)
	}
	assert.Equal(t, FailureDecode, kinds["broken.png"])
	assert.Equal(t, FailureEmpty, kinds["black.png"])

	assert.NoFileExists(t, filepath.Join(out, "black.png"))
	assert.NoFileExists(t, filepath.Join(out, "a", "broken.png"))
	assert.Error(t, report.Err())
}

func TestRunExtensionCaseInsensitive(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "in")
	writeImage(t, filepath.Join(root, "SCAN.PNG"), ringImage(10, 10))

	report, err := newTestRunner(storage.NewLocal(nil), Options{}).Run(context.Background(), root, filepath.Join(base, "out"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.FileExists(t, filepath.Join(base, "out", "SCAN.PNG"))
}

func TestRunMultipleExtensions(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "in")
	writeImage(t, filepath.Join(root, "a.png"), ringImage(10, 10))
	writeImage(t, filepath.Join(root, "b.jpg"), ringImage(10, 10))

	runner := newTestRunner(storage.NewLocal(nil), Options{Extensions: []string{".PNG", "jpg"}})
	assert.Equal(t, []string{"png", "jpg"}, runner.Options().Extensions)

	report, err := runner.Run(context.Background(), root, filepath.Join(base, "out"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.FileExists(t, filepath.Join(base, "out", "b.jpg"))
}

func TestRunInvalidInputRoot(t *testing.T) {
	base := t.TempDir()
	runner := newTestRunner(storage.NewLocal(nil), Options{})

	_, err := runner.Run(context.Background(), filepath.Join(base, "missing"), filepath.Join(base, "out"))
	assert.ErrorIs(t, err, ErrInvalidRoot)

	file := filepath.Join(base, "file.png")
	writeImage(t, file, ringImage(10, 10))
	_, err = runner.Run(context.Background(), file, filepath.Join(base, "out"))
	assert.ErrorIs(t, err, ErrInvalidRoot)
}

func TestRunCanceled(t *testing.T) {
	root, out := sampleTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestRunner(storage.NewLocal(nil), Options{}).Run(ctx, root, out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.NoDirExists(t, out)
}

// cancelingStore cancels the run on the first image read
type cancelingStore struct {
	*storage.Local
	cancel context.CancelFunc
	once   sync.Once
}

func (s *cancelingStore) ReadImage(path string) (image.Image, error) {
	s.once.Do(s.cancel)
	return s.Local.ReadImage(path)
}

func TestRunCanceledMidRunIsNotFailure(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		writeImage(t, filepath.Join(root, name), ringImage(10, 10))
	}
	out := filepath.Join(t.TempDir(), "out")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancelingStore{Local: storage.NewLocal(nil), cancel: cancel}

	report, err := newTestRunner(store, Options{Workers: 1}).Run(ctx, root, out)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, report.Failures())
	assert.GreaterOrEqual(t, report.Canceled, 1)
	for _, f := range report.Files {
		assert.Equal(t, StatusCanceled, f.Status, f.Input)
	}
	assert.Contains(t, report.Summary(), "canceled")
}

func TestRunDryRun(t *testing.T) {
	root, out := sampleTree(t)

	report, err := newTestRunner(storage.NewLocal(nil), Options{DryRun: true}).Run(context.Background(), root, out)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.DirExists(t, filepath.Join(out, "a", "b"))
	assert.NoFileExists(t, filepath.Join(out, "a", "b", "img1.png"))
	assert.NoFileExists(t, filepath.Join(out, "a", "img2.png"))
}

func TestRunSuffix(t *testing.T) {
	root, out := sampleTree(t)

	_, err := newTestRunner(storage.NewLocal(nil), Options{Suffix: "_cropped"}).Run(context.Background(), root, out)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "a", "img2_cropped.png"))
}

func TestRunVerboseTimingAndCallback(t *testing.T) {
	root, out := sampleTree(t)

	var calls int32
	opts := Options{
		Verbose:  true,
		Workers:  3,
		OnResult: func(FileResult) { atomic.AddInt32(&calls, 1) },
	}
	report, err := newTestRunner(storage.NewLocal(nil), opts).Run(context.Background(), root, out)
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	for _, f := range report.Files {
		if f.Status == StatusProcessed {
			assert.Positive(t, f.Duration)
			assert.Positive(t, f.Size)
		}
	}
}

func TestRunOutputInsideInput(t *testing.T) {
	root, _ := sampleTree(t)
	out := filepath.Join(root, "out")

	report, err := newTestRunner(storage.NewLocal(nil), Options{}).Run(context.Background(), root, out)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)

	// A second run must not pick up the first run's output.
	report, err = newTestRunner(storage.NewLocal(nil), Options{}).Run(context.Background(), root, out)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.NoDirExists(t, filepath.Join(out, "out"))
}

// faultyStore wraps a Local store and fails selected operations
type faultyStore struct {
	*storage.Local
	failWrite string
	failDir   string

	mu      sync.Mutex
	ensures map[string]int
}

func (s *faultyStore) WriteImage(path string, img image.Image) error {
	if filepath.Base(path) == s.failWrite {
		return &processing.EncodeError{Path: path, Err: errors.New("disk full")}
	}
	return s.Local.WriteImage(path, img)
}

func (s *faultyStore) EnsureDir(dir string) error {
	s.mu.Lock()
	if s.ensures == nil {
		s.ensures = map[string]int{}
	}
	s.ensures[dir]++
	s.mu.Unlock()

	if s.failDir != "" && filepath.Base(dir) == s.failDir {
		return errors.New("permission denied")
	}
	return s.Local.EnsureDir(dir)
}

func TestRunEncodeFailure(t *testing.T) {
	root, out := sampleTree(t)
	store := &faultyStore{Local: storage.NewLocal(nil), failWrite: "img2.png"}

	report, err := newTestRunner(store, Options{}).Run(context.Background(), root, out)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, FailureEncode, report.Failures()[0].Kind)
}

func TestRunDirectoryCreateFailureIsNotFatal(t *testing.T) {
	root, out := sampleTree(t)
	store := &faultyStore{Local: storage.NewLocal(nil), failDir: "b"}

	report, err := newTestRunner(store, Options{Workers: 1}).Run(context.Background(), root, out)
	require.NoError(t, err)

	require.Len(t, report.DirErrors, 1)
	var dirErr *DirectoryCreateError
	assert.True(t, errors.As(report.DirErrors[0], &dirErr))
	assert.Equal(t, filepath.Join(out, "a", "b"), dirErr.Path)

	// img1.png lives in the directory that could not be created.
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, FailureEncode, report.Failures()[0].Kind)
	assert.FileExists(t, filepath.Join(out, "a", "img2.png"))
}

func TestRunCreatesEachDirectoryOnce(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "in")
	for _, name := range []string{"1.png", "2.png", "3.png", "4.png", "5.png", "6.png"} {
		writeImage(t, filepath.Join(root, "sub", name), ringImage(8, 8))
	}
	out := filepath.Join(base, "out")
	store := &faultyStore{Local: storage.NewLocal(nil)}

	report, err := newTestRunner(store, Options{Workers: 6}).Run(context.Background(), root, out)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Processed)

	assert.Equal(t, 1, store.ensures[out])
	assert.Equal(t, 1, store.ensures[filepath.Join(out, "sub")])
}

func TestDirCreatorConcurrent(t *testing.T) {
	store := &faultyStore{Local: storage.NewLocal(nil)}
	d := newDirCreator(store)
	dir := filepath.Join(t.TempDir(), "shared")

	var wg sync.WaitGroup
	errs := make([]error, 32)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = d.ensure(dir)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, store.ensures[dir])
	assert.DirExists(t, dir)
}

func TestDirCreatorRetriesAfterFailure(t *testing.T) {
	store := &faultyStore{Local: storage.NewLocal(nil), failDir: "nope"}
	d := newDirCreator(store)
	dir := filepath.Join(t.TempDir(), "nope")

	assert.Error(t, d.ensure(dir))
	assert.Error(t, d.ensure(dir))
	assert.Equal(t, 2, store.ensures[dir])
}
