package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/menta2k/border-trim/internal/config"
	"github.com/menta2k/border-trim/internal/logging"
	"github.com/menta2k/border-trim/internal/utils"
	"github.com/menta2k/border-trim/pkg/batch"
	"github.com/menta2k/border-trim/pkg/cropper"
	"github.com/menta2k/border-trim/pkg/processing"
	"github.com/menta2k/border-trim/pkg/storage"
	"github.com/menta2k/border-trim/pkg/types"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// cliFlags holds the raw command line values
type cliFlags struct {
	configPath  string
	writeConfig string
	threshold   int
	ext         string
	workers     int
	quality     int
	lossless    bool
	suffix      string
	dryRun      bool
	verbose     bool
	logFile     string
	reportPath  string
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("bordertrim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f cliFlags
	fs.StringVar(&f.configPath, "config", "", "JSON config file (default: "+config.GetConfigPath()+" if present)")
	fs.StringVar(&f.writeConfig, "write-config", "", "write the effective configuration to this path")
	fs.IntVar(&f.threshold, "threshold", config.Default().Cropper.Threshold, "max channel value (0-255) counted as border")
	fs.StringVar(&f.ext, "ext", "png", "comma separated image extensions to process")
	fs.IntVar(&f.workers, "workers", config.Default().Batch.Workers, "number of images processed at once")
	fs.IntVar(&f.quality, "quality", 90, "JPEG/WebP output quality (1-100)")
	fs.BoolVar(&f.lossless, "lossless", false, "WebP output lossless mode")
	fs.StringVar(&f.suffix, "suffix", "", "suffix added to output file names, e.g. _cropped")
	fs.BoolVar(&f.dryRun, "dry-run", false, "detect borders without writing images")
	fs.BoolVar(&f.verbose, "verbose", false, "print per-file progress, timing and errors")
	fs.StringVar(&f.logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	fs.StringVar(&f.reportPath, "report", "", "write a JSON report to this path")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [flags] /path/to/images /path/to/output\n", fs.Name())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return exitUsage
	}
	inputRoot, outputRoot := fs.Arg(0), fs.Arg(1)

	cfg, err := loadConfig(fs, &f)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitUsage
	}

	closer, err := logging.Setup(cfg.Log, cfg.Batch.Verbose)
	if err != nil {
		fmt.Fprintf(stderr, "logging: %v\n", err)
		return exitUsage
	}
	defer closer.Close()

	if f.writeConfig != "" {
		if err := cfg.SaveToFile(f.writeConfig); err != nil {
			logging.Printf("save config failed: %v", err)
		} else {
			logging.Printf("wrote %s", f.writeConfig)
		}
	}

	if !utils.DirExists(inputRoot) {
		logging.Printf("%s is not a folder.", inputRoot)
		return exitFailure
	}

	processor := processing.NewProcessorWithOptions(types.EncodeOptions{
		Quality:  cfg.Output.Quality,
		Lossless: cfg.Output.Lossless,
	})
	runner := batch.NewRunner(
		storage.NewLocal(processor),
		cropper.NewWithConfig(cropper.CropConfig{Threshold: cfg.Threshold()}),
		batch.Options{
			Extensions: cfg.Batch.Extensions,
			Workers:    cfg.Batch.Workers,
			Verbose:    cfg.Batch.Verbose,
			DryRun:     cfg.Batch.DryRun,
			Suffix:     cfg.Output.Suffix,
			OnResult:   logResult,
		},
	)

	logging.Debugf("threshold=%d workers=%d extensions=%v dry-run=%v",
		cfg.Cropper.Threshold, cfg.Batch.Workers, cfg.Batch.Extensions, cfg.Batch.DryRun)

	report, err := runner.Run(ctx, inputRoot, outputRoot)
	if report != nil {
		for _, dirErr := range report.DirErrors {
			logging.Printf("%v", dirErr)
		}
		if f.reportPath != "" {
			if err := writeReport(report, f.reportPath); err != nil {
				logging.Printf("write report failed: %v", err)
			}
		}
	}

	switch {
	case errors.Is(err, batch.ErrInvalidRoot):
		logging.Printf("%v", err)
		return exitFailure
	case errors.Is(err, context.Canceled):
		if report != nil {
			logging.Printf("interrupted: %s", report.Summary())
		} else {
			logging.Printf("interrupted")
		}
		return exitFailure
	case err != nil:
		logging.Printf("process failed: %v", err)
		return exitFailure
	}

	logging.Printf("done: %s", report.Summary())
	return exitOK
}

// loadConfig reads the config file, then applies flags the user set explicitly
func loadConfig(fs *flag.FlagSet, f *cliFlags) (*config.Config, error) {
	cfg := config.Default()
	switch {
	case f.configPath != "":
		loaded, err := config.LoadFromFile(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case utils.FileExists(config.GetConfigPath()):
		loaded, err := config.LoadFromFile(config.GetConfigPath())
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "threshold":
			cfg.Cropper.Threshold = f.threshold
		case "ext":
			cfg.Batch.Extensions = utils.NormalizeExtensions(strings.Split(f.ext, ","))
		case "workers":
			cfg.Batch.Workers = f.workers
		case "quality":
			cfg.Output.Quality = f.quality
		case "lossless":
			cfg.Output.Lossless = f.lossless
		case "suffix":
			cfg.Output.Suffix = f.suffix
		case "dry-run":
			cfg.Batch.DryRun = f.dryRun
		case "verbose":
			cfg.Batch.Verbose = f.verbose
		case "log-file":
			cfg.Log.File = f.logFile
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logResult prints one line per file in verbose mode; failures are always printed
func logResult(res batch.FileResult) {
	switch res.Status {
	case batch.StatusSkipped:
		logging.Debugf("%s is not a supported image, skipping", filepath.Base(res.Input))
	case batch.StatusCanceled:
		logging.Debugf("canceled %s", res.Input)
	case batch.StatusFailed:
		logging.Printf("failed %s (%s): %v", res.Input, res.Kind, res.Err)
	case batch.StatusProcessed:
		if !logging.Verbose() {
			return
		}
		logging.Printf("processed %s -> %s box=%s %s %.1f kB/s",
			res.Input, res.Output, res.Box, utils.FormatFileSize(res.Size), res.Throughput())
	}
}

func writeReport(report *batch.Report, path string) error {
	js, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
	}
	return os.WriteFile(path, js, 0o644)
}
