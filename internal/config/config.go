package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/menta2k/border-trim/pkg/border"
)

// Config holds the application configuration
type Config struct {
	Cropper CropperConfig `json:"cropper"`
	Batch   BatchConfig   `json:"batch"`
	Output  OutputConfig  `json:"output"`
	Log     LogConfig     `json:"log"`
}

// CropperConfig holds configuration for border detection
type CropperConfig struct {
	// Threshold is the inclusive per-channel cutoff for border pixels, 0..255
	Threshold int `json:"threshold"`
}

// BatchConfig holds configuration for directory processing
type BatchConfig struct {
	Extensions []string `json:"extensions"`
	Workers    int      `json:"workers"`
	Verbose    bool     `json:"verbose"`
	DryRun     bool     `json:"dry_run"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Quality  int    `json:"quality"`
	Lossless bool   `json:"lossless"`
	Suffix   string `json:"suffix"`
}

// LogConfig holds configuration for the log file. An empty File logs to stderr.
type LogConfig struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Cropper: CropperConfig{
			Threshold: int(border.DefaultThreshold),
		},
		Batch: BatchConfig{
			Extensions: []string{"png"},
			Workers:    runtime.NumCPU(),
			Verbose:    false,
			DryRun:     false,
		},
		Output: OutputConfig{
			Quality:  90,
			Lossless: false,
			Suffix:   "",
		},
		Log: LogConfig{
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Cropper.Threshold < 0 || c.Cropper.Threshold > 255 {
		return fmt.Errorf("cropper.threshold must be between 0 and 255")
	}

	if len(c.Batch.Extensions) == 0 {
		return fmt.Errorf("batch.extensions cannot be empty")
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log limits cannot be negative")
	}

	return nil
}

// Threshold returns the validated threshold as a border.Threshold
func (c *Config) Threshold() border.Threshold {
	return border.Threshold(c.Cropper.Threshold)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "border-trim", "config.json")
}
