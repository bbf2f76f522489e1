package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// Config describes a benchmark workload. YAML keys match the flag names.
type Config struct {
	LogLevel    string        `yaml:"log-level"`
	MaxDelay    time.Duration `yaml:"max-delay"`
	RevokeRatio float64       `yaml:"revoke-ratio"`
	Loops       int           `yaml:"loops"`
	Producers   int           `yaml:"producers"`
	Ops         int           `yaml:"ops"`
}

// DefaultConfig returns built-in defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:    `warning`,
		MaxDelay:    5 * time.Millisecond,
		RevokeRatio: 0.1,
		Loops:       4,
		Producers:   8,
		Ops:         10000,
	}
}

// LoadConfig reads a YAML workload file over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == `` {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("loopbench: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (x Config) Validate() error {
	switch {
	case x.Loops < 1:
		return errors.New("loopbench: loops must be at least 1")
	case x.Producers < 1:
		return errors.New("loopbench: producers must be at least 1")
	case x.Ops < 0:
		return errors.New("loopbench: ops must not be negative")
	case x.MaxDelay < 0:
		return errors.New("loopbench: max-delay must not be negative")
	case x.RevokeRatio < 0 || x.RevokeRatio > 1:
		return errors.New("loopbench: revoke-ratio must be within [0, 1]")
	}
	_, err := parseLevel(x.LogLevel)
	return err
}

// parseLevel accepts the syslog keywords used by logiface.Level.String, as
// well as their long forms.
func parseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case `disabled`, `off`:
		return logiface.LevelDisabled, nil
	case `emerg`, `emergency`:
		return logiface.LevelEmergency, nil
	case `alert`:
		return logiface.LevelAlert, nil
	case `crit`, `critical`:
		return logiface.LevelCritical, nil
	case `err`, `error`:
		return logiface.LevelError, nil
	case `warning`, `warn`:
		return logiface.LevelWarning, nil
	case `notice`:
		return logiface.LevelNotice, nil
	case `info`, `informational`, ``:
		return logiface.LevelInformational, nil
	case `debug`:
		return logiface.LevelDebug, nil
	case `trace`:
		return logiface.LevelTrace, nil
	default:
		return logiface.LevelDisabled, fmt.Errorf("loopbench: unknown log level %q", s)
	}
}
