// Package main is the entry point for the check-mountpoints plugin, a
// one-shot health check for network and distributed filesystem mountpoints.
// It prints one status line on stdout and exits with the Nagios-style code
// for OK, WARNING, CRITICAL or UNKNOWN; all logging goes to stderr.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/echocat/nagios-plugin-check-mountpoints/internal/check"
	"github.com/echocat/nagios-plugin-check-mountpoints/internal/config"
	"github.com/echocat/nagios-plugin-check-mountpoints/internal/mounttab"
	"github.com/echocat/nagios-plugin-check-mountpoints/internal/platform"
	"github.com/echocat/nagios-plugin-check-mountpoints/internal/probe"
	"github.com/echocat/nagios-plugin-check-mountpoints/internal/selector"
	"github.com/echocat/nagios-plugin-check-mountpoints/internal/zfs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// run owns all deferred cleanup; os.Exit lives only here.
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	cfg, err := config.Load("check-mountpoints", args)
	if err != nil {
		fmt.Fprintf(out, "UNKNOWN: %v\n", err)
		return check.SeverityUnknown.ExitCode()
	}

	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Debug("starting check", "version", Version, "platform", cfg.PlatformName)

	prof, err := platform.ForName(cfg.PlatformName)
	if err != nil {
		fmt.Fprintf(out, "UNKNOWN: %v\n", err)
		return check.SeverityUnknown.ExitCode()
	}
	if cfg.PlatformFile != "" {
		if prof, err = platform.Load(cfg.PlatformFile, prof); err != nil {
			fmt.Fprintf(out, "UNKNOWN: %v\n", err)
			return check.SeverityUnknown.ExitCode()
		}
	}
	applyOverrides(cfg, &prof)

	ctx := context.Background()
	schema := mounttab.Schema{
		Device:     1,
		FSType:     prof.FSTypeField,
		MountPoint: prof.MountPointField,
		Options:    prof.OptionsField,
	}

	fstab, err := mounttab.ReadConfig(prof.FstabPath, schema)
	if err != nil {
		if !(cfg.Autoselect && cfg.TolerateEmpty) {
			fmt.Fprintf(out, "UNKNOWN: cannot read config table: %v\n", err)
			return check.SeverityUnknown.ExitCode()
		}
		logger.Warn("config table unreadable, continuing with empty table", "error", err)
		fstab = nil
	}

	if manager := zfs.NewManager(prof.ZFSBinary, prof.DelegationProperty, logger); manager.Available() {
		rows, err := manager.SyntheticRows(ctx, fstab)
		if err != nil {
			logger.Warn("pool dataset synthesis failed", "error", err)
		} else {
			fstab = append(fstab, rows...)
		}
	}

	targets, err := selector.Select(cfg.MountPoints, fstab, selector.Options{
		Autoselect:     cfg.Autoselect,
		TolerateEmpty:  cfg.TolerateEmpty,
		ExcludePattern: cfg.ExcludePattern,
		ExcludeNoauto:  cfg.ExcludeNoauto,
		NoautoOption:   prof.NoautoOption,
	})
	if err != nil {
		fmt.Fprintf(out, "UNKNOWN: %v\n", err)
		return check.SeverityUnknown.ExitCode()
	}

	report := check.NewReport()
	if len(targets) == 0 {
		fmt.Fprintln(out, report.Render(nil))
		return report.Severity().ExitCode()
	}

	live, notices, cleanup, err := mounttab.ReadLive(ctx, prof, prof.MtabPath, logger)
	defer cleanup()
	if err != nil {
		fmt.Fprintf(out, "UNKNOWN: cannot read live mount table: %v\n", err)
		return check.SeverityUnknown.ExitCode()
	}
	for _, notice := range notices {
		report.Notice("%s", notice)
	}

	runner := &check.Runner{
		Fstab:     fstab,
		Live:      live,
		FstabPath: prof.FstabPath,
		Thresholds: check.Thresholds{
			Warning:  cfg.WarningSeconds,
			Critical: cfg.CriticalSeconds,
			Stale:    cfg.StaleSeconds,
		},
		DFCommand:      prof.DFCommand,
		DFArgs:         cfg.DFArgs,
		Autoselect:     cfg.Autoselect,
		IgnoreFstab:    cfg.IgnoreFstab,
		AcceptSymlinks: cfg.AcceptSymlinks,
		WriteTest:      cfg.WriteTest,
		InContainer:    check.InContainer(),
		Executor:       probe.NewExecutor(logger),
		Logger:         logger,
	}
	runner.Run(ctx, targets, report)

	fmt.Fprintln(out, report.Render(targets))
	return report.Severity().ExitCode()
}

// applyOverrides puts flag-level table and column overrides on top of the
// selected platform profile.
func applyOverrides(cfg *config.Config, prof *platform.Profile) {
	if cfg.FstabPath != "" {
		prof.FstabPath = cfg.FstabPath
	}
	if cfg.MtabPath != "" {
		prof.MtabPath = cfg.MtabPath
	}
	if cfg.FSTypeField > 0 {
		prof.FSTypeField = cfg.FSTypeField
	}
	if cfg.MountPointField > 0 {
		prof.MountPointField = cfg.MountPointField
	}
	if cfg.OptionsField > 0 {
		prof.OptionsField = cfg.OptionsField
	}
}

// setupLogger creates the structured logger. Everything goes to stderr:
// stdout is reserved for the plugin protocol line.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
