// Package config parses and validates the plugin invocation.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
)

// Config holds all runtime options for one check run.
type Config struct {
	// MountPoints are the explicit targets; empty under autoselection.
	MountPoints []string

	Autoselect    bool
	TolerateEmpty bool

	ExcludePattern string
	ExcludeNoauto  bool

	IgnoreFstab    bool
	AcceptSymlinks bool
	WriteTest      bool

	// Table path and column overrides; zero values defer to the platform
	// profile.
	FstabPath       string
	MtabPath        string
	FSTypeField     int
	MountPointField int
	OptionsField    int

	// Thresholds in seconds. Stale is the probe deadline.
	StaleSeconds    float64
	WarningSeconds  float64
	CriticalSeconds float64

	// DFArgs are passed through to the space-query command.
	DFArgs []string

	PlatformName string
	PlatformFile string

	LogLevel string
}

// DefaultConfig returns a Config with the plugin defaults.
func DefaultConfig() *Config {
	return &Config{
		StaleSeconds:    15,
		WarningSeconds:  15,
		CriticalSeconds: 15,
		PlatformName:    runtime.GOOS,
		LogLevel:        "info",
	}
}

// Load parses command-line arguments into a validated Config. Positional
// arguments are the explicit mountpoints to check.
func Load(name string, args []string) (*Config, error) {
	cfg := DefaultConfig()

	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.BoolVarP(&cfg.Autoselect, "autoselect", "a", false,
		"select targets from the config table instead of arguments")
	flags.BoolVarP(&cfg.TolerateEmpty, "autoselect-empty-ok", "A", false,
		"autoselect, and report OK when nothing is found")
	flags.StringVarP(&cfg.ExcludePattern, "exclude", "E", "",
		"regexp of mountpoints to exclude from autoselection")
	flags.BoolVarP(&cfg.ExcludeNoauto, "exclude-noauto", "N", false,
		"skip config rows carrying the platform's noauto option")
	flags.BoolVarP(&cfg.IgnoreFstab, "ignore-fstab", "i", false,
		"skip the config table membership check")
	flags.BoolVarP(&cfg.AcceptSymlinks, "accept-symlinks", "L", false,
		"accept a symlink in place of a real mountpoint")
	flags.BoolVarP(&cfg.WriteTest, "writetest", "w", false,
		"additionally probe that each mountpoint is writable")
	flags.StringVarP(&cfg.FstabPath, "fstab", "f", "",
		"path of the static mount configuration table")
	flags.StringVarP(&cfg.MtabPath, "mtab", "m", "",
		"path of the live mount table (\"none\" to query the mount command)")
	flags.IntVar(&cfg.FSTypeField, "fstype-field", 0,
		"1-based fstab column holding the filesystem type")
	flags.IntVar(&cfg.MountPointField, "mountpoint-field", 0,
		"1-based fstab column holding the mountpoint")
	flags.IntVar(&cfg.OptionsField, "options-field", 0,
		"1-based fstab column holding the mount options")
	flags.Float64VarP(&cfg.StaleSeconds, "timeout", "t", cfg.StaleSeconds,
		"seconds before a probe is declared stale")
	flags.Float64VarP(&cfg.WarningSeconds, "warning", "W", cfg.WarningSeconds,
		"response time in seconds for a warning")
	flags.Float64VarP(&cfg.CriticalSeconds, "critical", "c", cfg.CriticalSeconds,
		"response time in seconds for a critical")
	flags.StringArrayVarP(&cfg.DFArgs, "df-arg", "o", nil,
		"extra argument passed through to the space-query command (repeatable)")
	flags.StringVar(&cfg.PlatformName, "platform", cfg.PlatformName,
		"platform profile to use")
	flags.StringVar(&cfg.PlatformFile, "platform-file", "",
		"TOML file overriding platform profile defaults")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel,
		"log level: debug, info, warn, error")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	cfg.MountPoints = flags.Args()
	if cfg.TolerateEmpty {
		cfg.Autoselect = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and clamps a warning threshold above
// the critical one down to it.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if len(c.MountPoints) == 0 && !c.Autoselect {
		errs = multierror.Append(errs, errors.New("no mountpoints given and autoselection not requested"))
	}
	if len(c.MountPoints) > 0 && c.Autoselect {
		errs = multierror.Append(errs, errors.New("explicit mountpoints and autoselection are mutually exclusive"))
	}
	for _, mountPoint := range c.MountPoints {
		if !strings.HasPrefix(mountPoint, "/") {
			errs = multierror.Append(errs, fmt.Errorf("mountpoint %q must be an absolute path", mountPoint))
		}
	}

	if c.StaleSeconds <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("timeout must be positive, got %v", c.StaleSeconds))
	}
	if c.WarningSeconds <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("warning threshold must be positive, got %v", c.WarningSeconds))
	}
	if c.CriticalSeconds <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("critical threshold must be positive, got %v", c.CriticalSeconds))
	}

	for _, field := range []struct {
		name  string
		value int
	}{
		{"fstype-field", c.FSTypeField},
		{"mountpoint-field", c.MountPointField},
		{"options-field", c.OptionsField},
	} {
		if field.value < 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s must be a 1-based column index, got %d", field.name, field.value))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = multierror.Append(errs, fmt.Errorf("log level must be one of debug, info, warn, error (got %q)", c.LogLevel))
	}

	if errs != nil {
		// The plugin output is a single line; keep accumulated errors on it.
		errs.ErrorFormat = func(es []error) string {
			msgs := make([]string, len(es))
			for i, e := range es {
				msgs[i] = e.Error()
			}
			return strings.Join(msgs, "; ")
		}
		return errs
	}

	if c.WarningSeconds > c.CriticalSeconds {
		c.WarningSeconds = c.CriticalSeconds
	}
	return nil
}
