package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvPrefix      = "REQWATCH_"
	EnvConfig      = EnvPrefix + "CONFIG"
	EnvTimeout     = EnvPrefix + "TIMEOUT"
	EnvEvents      = EnvPrefix + "EVENTS"
	EnvLogLevel    = EnvPrefix + "LOG_LEVEL"
	EnvLogFormat   = EnvPrefix + "LOG_FORMAT"
	EnvLogFile     = EnvPrefix + "LOG_FILE"
	EnvJournalSize = EnvPrefix + "JOURNAL_SIZE"
	EnvConcurrency = EnvPrefix + "CONCURRENCY"
)

// environment is a snapshot of the process environment with lower-cased keys.
type environment map[string]string

func loadEnvironment() environment {
	env := environment{}
	environ := os.Environ()
	for i := 0; i < len(environ); i++ {
		key, val, found := strings.Cut(environ[i], "=")
		if !found {
			continue
		}
		env[strings.ToLower(key)] = val
	}
	return env
}

// val returns the trimmed value of the variable, and false if it isn't set or is empty.
// Keys are compared case-insensitive.
func (e environment) val(key string) (string, bool) {
	val, ok := e[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(val)
	return trimmed, len(trimmed) > 0
}

func (e environment) str(key string, target *string) {
	if val, ok := e.val(key); ok {
		*target = val
	}
}

// integer leaves target unchanged if the variable can't be a valid integer.
func (e environment) integer(key string, target *int) {
	sval, ok := e.val(key)
	if !ok {
		return
	}
	ival, err := strconv.Atoi(sval)
	if err != nil {
		return
	}
	*target = ival
}

// duration leaves target unchanged if the variable can't be a valid [time.Duration].
func (e environment) duration(key string, target *time.Duration) {
	sval, ok := e.val(key)
	if !ok {
		return
	}
	dval, err := time.ParseDuration(sval)
	if err != nil {
		return
	}
	*target = dval
}

// apply overrides fields of c with any REQWATCH_* variables that are set.
func (e environment) apply(c *Config) {
	e.duration(EnvTimeout, &c.Timeout)
	e.str(EnvEvents, &c.Events)
	e.str(EnvLogLevel, &c.LogLevel)
	e.str(EnvLogFormat, &c.LogFormat)
	e.str(EnvLogFile, &c.LogFile)
	e.integer(EnvJournalSize, &c.JournalSize)
	e.integer(EnvConcurrency, &c.Concurrency)
}
