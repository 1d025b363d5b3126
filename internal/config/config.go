// Package config loads the runtime configuration of april from YAML and turns
// it into a device dispatch context.
//
// Example:
//
//	device:
//	  accelerator: emulator
//	  use_by_default: true
//	parallel:
//	  enabled: true
//	  workers: 8
//	log:
//	  level: debug
//	  format: json
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/device/webgpu"
	"github.com/born-ml/april/internal/parallel"
)

// EnvVar names the environment variable holding a configuration file path.
const EnvVar = "APRIL_CONFIG"

// Accelerator backends.
const (
	AcceleratorNone     = "none"
	AcceleratorEmulator = "emulator"
	AcceleratorWebGPU   = "webgpu"
)

// Config is the root of the configuration file.
type Config struct {
	Device   Device   `yaml:"device"`
	Parallel Parallel `yaml:"parallel"`
	Log      Log      `yaml:"log"`
}

// Device selects the accelerator and the launch geometry limits.
type Device struct {
	Accelerator  string              `yaml:"accelerator"`
	UseByDefault bool                `yaml:"use_by_default"`
	Capabilities device.Capabilities `yaml:"capabilities"`
}

// Parallel configures host data parallelism.
type Parallel struct {
	Enabled      bool `yaml:"enabled"`
	Workers      int  `yaml:"workers"`
	MinChunkSize int  `yaml:"min_chunk_size"`
}

// Log configures the slog handler built by Logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a host-only configuration.
func Default() Config {
	p := parallel.DefaultConfig()
	return Config{
		Device: Device{
			Accelerator:  AcceleratorNone,
			Capabilities: device.DefaultCapabilities(),
		},
		Parallel: Parallel{
			Enabled:      p.Enabled,
			Workers:      p.NumWorkers,
			MinChunkSize: p.MinChunkSize,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: failed to parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	//nolint:gosec // G304: path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv loads the file named by APRIL_CONFIG, or returns the defaults when
// the variable is unset.
func FromEnv() (Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks every section.
func (c Config) Validate() error {
	switch c.Device.Accelerator {
	case AcceleratorNone, AcceleratorEmulator, AcceleratorWebGPU:
	default:
		return fmt.Errorf("config: unknown accelerator %q", c.Device.Accelerator)
	}
	if err := c.Device.Capabilities.Validate(); err != nil {
		return fmt.Errorf("config: device capabilities: %w", err)
	}
	if c.Parallel.Workers < 0 {
		return fmt.Errorf("config: parallel workers must be >= 0, got %d", c.Parallel.Workers)
	}
	if c.Parallel.MinChunkSize < 1 {
		return fmt.Errorf("config: parallel min_chunk_size must be >= 1, got %d", c.Parallel.MinChunkSize)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

func (l Log) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return lvl, nil
}

// Logger builds a slog logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	lvl, err := c.Log.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParallelConfig returns the host data-parallel configuration.
func (c Config) ParallelConfig() parallel.Config {
	return parallel.Config{
		Enabled:      c.Parallel.Enabled,
		NumWorkers:   c.Parallel.Workers,
		MinChunkSize: c.Parallel.MinChunkSize,
	}
}

// NewAccelerator creates the configured accelerator, or nil for "none".
func (c Config) NewAccelerator() (device.Accelerator, error) {
	switch c.Device.Accelerator {
	case AcceleratorEmulator:
		return device.NewEmulator(c.Device.Capabilities), nil
	case AcceleratorWebGPU:
		acc, err := webgpu.New()
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return acc, nil
	default:
		return nil, nil
	}
}

// NewContext builds a dispatch context. A webgpu accelerator that cannot be
// created falls back to a host-only context with a warning.
func (c Config) NewContext(logger *slog.Logger) (*device.Context, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts := []device.Option{
		device.WithCapabilities(c.Device.Capabilities),
		device.WithParallel(c.ParallelConfig()),
		device.WithLogger(logger),
	}
	acc, err := c.NewAccelerator()
	switch {
	case errors.Is(err, device.ErrUnavailable):
		logger.Warn("accelerator unavailable, using host only", "accelerator", c.Device.Accelerator, "error", err)
	case err != nil:
		return nil, err
	case acc != nil:
		opts = append(opts, device.WithAccelerator(acc, c.Device.UseByDefault))
	}
	return device.NewContext(opts...), nil
}
