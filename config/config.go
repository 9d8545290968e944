// Package config loads reqwatch settings.
//
// Settings are layered, with later sources taking precedence:
//   - [Default] values
//   - A YAML file
//   - REQWATCH_* environment variables
//   - Command line flags registered with [RegisterFlags]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/saylorsolutions/reqwatch/journal"
	"github.com/saylorsolutions/reqwatch/patterns/eventbus"
	"github.com/saylorsolutions/reqwatch/slogx"
	"github.com/saylorsolutions/reqwatch/watch"
	"gopkg.in/yaml.v3"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
)

type Config struct {
	// Timeout is the maximum duration of each request, or 0 for no timeout.
	Timeout time.Duration `yaml:"timeout"`
	// Events is a space separated list of events to report.
	Events    string `yaml:"events"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	// LogFile is a file that receives JSON logs in addition to the main log output.
	LogFile     string `yaml:"logFile"`
	JournalSize int    `yaml:"journalSize"`
	// Concurrency is the maximum number of requests in flight when running a plan.
	Concurrency int `yaml:"concurrency"`
}

func Default() Config {
	return Config{
		Timeout:     30 * time.Second,
		Events:      eventbus.All,
		LogLevel:    "info",
		LogFormat:   slogx.FormatText,
		JournalSize: journal.DefaultCapacity,
		Concurrency: 4,
	}
}

// Load reads the YAML file at path over the [Default] config, then applies environment variables.
// The file is skipped if path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if len(path) > 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("%w: file '%s': %v", ErrInvalidConfig, path, err)
		}
	}
	loadEnvironment().apply(&cfg)
	return &cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate returns all problems with the config joined together, or nil if there are none.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig))
	}
	events := strings.Fields(c.Events)
	if len(events) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one event is required", ErrInvalidConfig))
	}
	for _, event := range events {
		if event != eventbus.All && !slices.Contains(watch.Events, event) {
			errs = append(errs, fmt.Errorf("%w: unknown event '%s'", ErrInvalidConfig, event))
		}
	}
	if _, err := slogx.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	switch strings.ToLower(c.LogFormat) {
	case slogx.FormatText, slogx.FormatJSON, slogx.FormatZap:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown log format '%s'", ErrInvalidConfig, c.LogFormat))
	}
	if c.JournalSize < 1 {
		errs = append(errs, fmt.Errorf("%w: journal size must be at least 1", ErrInvalidConfig))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// Logger creates a logger writing to w using the configured level and format.
// If a log file is configured, then records are also appended to it as JSON.
// The returned function closes the log file, and should be called when the logger is no longer needed.
func (c *Config) Logger(w io.Writer) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }
	level, err := slogx.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, noop, err
	}
	h, err := slogx.NewHandler(w, c.LogFormat, level)
	if err != nil {
		return nil, noop, err
	}
	if len(c.LogFile) == 0 {
		return slog.New(h), noop, nil
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, noop, fmt.Errorf("%w: log file: %v", ErrInvalidConfig, err)
	}
	fh, err := slogx.NewHandler(f, slogx.FormatJSON, level)
	if err != nil {
		_ = f.Close()
		return nil, noop, err
	}
	return slog.New(slogx.MergeHandlers(h, fh)), f.Close, nil
}
