package config

import (
	"errors"
	"github.com/spf13/pflag"
)

const (
	FlagConfig      = "config"
	FlagTimeout     = "timeout"
	FlagEvents      = "events"
	FlagLogLevel    = "log-level"
	FlagLogFormat   = "log-format"
	FlagLogFile     = "log-file"
	FlagJournalSize = "journal-size"
	FlagConcurrency = "concurrency"
)

// RegisterFlags adds flags for every config setting to flags.
// Defaults shown in usage are the [Default] values.
func RegisterFlags(flags *pflag.FlagSet) {
	def := Default()
	flags.String(FlagConfig, "", "Path to a YAML config file. Defaults to $"+EnvConfig)
	flags.DurationP(FlagTimeout, "t", def.Timeout, "Maximum duration of each request, 0 disables the timeout")
	flags.StringP(FlagEvents, "e", def.Events, "Space separated events to report")
	flags.String(FlagLogLevel, def.LogLevel, "Log level: debug, info, warn, or error")
	flags.String(FlagLogFormat, def.LogFormat, "Log format: text, json, or zap")
	flags.String(FlagLogFile, def.LogFile, "Also append JSON logs to this file")
	flags.Int(FlagJournalSize, def.JournalSize, "Maximum number of requests kept in the journal")
	flags.IntP(FlagConcurrency, "c", def.Concurrency, "Maximum number of requests in flight")
}

// ApplyFlags overrides settings with flags that were explicitly set on the command line.
func (c *Config) ApplyFlags(flags *pflag.FlagSet) error {
	var errs []error
	flags.Visit(func(f *pflag.Flag) {
		var err error
		switch f.Name {
		case FlagTimeout:
			c.Timeout, err = flags.GetDuration(f.Name)
		case FlagEvents:
			c.Events, err = flags.GetString(f.Name)
		case FlagLogLevel:
			c.LogLevel, err = flags.GetString(f.Name)
		case FlagLogFormat:
			c.LogFormat, err = flags.GetString(f.Name)
		case FlagLogFile:
			c.LogFile, err = flags.GetString(f.Name)
		case FlagJournalSize:
			c.JournalSize, err = flags.GetInt(f.Name)
		case FlagConcurrency:
			c.Concurrency, err = flags.GetInt(f.Name)
		}
		errs = append(errs, err)
	})
	return errors.Join(errs...)
}

// FromFlags loads the config file named by the config flag or $REQWATCH_CONFIG, applies the environment, then the flags.
// The result is validated.
func FromFlags(flags *pflag.FlagSet) (*Config, error) {
	path, _ := flags.GetString(FlagConfig)
	if len(path) == 0 {
		path, _ = loadEnvironment().val(EnvConfig)
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(flags); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
