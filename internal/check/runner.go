package check

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/echocat/nagios-plugin-check-mountpoints/internal/mounttab"
	"github.com/echocat/nagios-plugin-check-mountpoints/internal/probe"
)

// Thresholds are the graduated response-time limits in seconds. Stale is
// the probe deadline; Warning and Critical grade probes that did finish.
type Thresholds struct {
	Warning  float64
	Critical float64
	Stale    float64
}

// Runner drives the per-target check pipeline. Stages run in fixed order
// and never short-circuit: diagnostics accumulate, and one target's failure
// never aborts evaluation of the next.
type Runner struct {
	Fstab     mounttab.Table
	Live      mounttab.Table
	FstabPath string

	Thresholds Thresholds

	// DFCommand is the space-query argv prefix; DFArgs are caller-supplied
	// extras appended before the target mountpoint.
	DFCommand []string
	DFArgs    []string

	Autoselect     bool
	IgnoreFstab    bool
	AcceptSymlinks bool
	WriteTest      bool
	InContainer    bool

	Executor *probe.Executor
	Logger   *slog.Logger
}

// Run evaluates all targets in input order, accumulating into report.
func (r *Runner) Run(ctx context.Context, targets []string, report *Report) {
	for _, mountPoint := range targets {
		r.checkTarget(ctx, mountPoint, report)
	}
}

func (r *Runner) checkTarget(ctx context.Context, mountPoint string, report *Report) {
	r.Logger.Debug("checking mountpoint", "mountpoint", mountPoint)

	r.checkFstab(mountPoint, report)
	r.checkMounted(mountPoint, report)
	completed := r.checkResponsive(ctx, mountPoint, report)
	if completed {
		// A timed-out probe may have left the filesystem state
		// unverifiable, so existence is only checked after a natural
		// completion.
		r.checkDirectory(mountPoint, report)
	}
	if r.WriteTest {
		r.checkWritable(ctx, mountPoint, report)
	}
}

// checkFstab verifies the target is declared in the static config table.
// Membership is axiomatic under autoselection, and meaningless when fstab
// checking is disabled or the mount tables are container-virtualized.
func (r *Runner) checkFstab(mountPoint string, report *Report) {
	if r.Autoselect || r.IgnoreFstab || r.InContainer {
		return
	}
	if r.Fstab.Contains(mountPoint) {
		return
	}
	r.Logger.Error("mountpoint not declared in config table",
		"mountpoint", mountPoint, "fstab", r.FstabPath)
	report.Problem(SeverityCritical, "%s is not in %s", mountPoint, r.FstabPath)
}

// checkMounted verifies the target appears in the live mount table, with a
// configured escape hatch for setups that substitute a symlink for a real
// mount.
func (r *Runner) checkMounted(mountPoint string, report *Report) {
	if r.Live.Contains(mountPoint) {
		return
	}
	if r.AcceptSymlinks {
		if info, err := os.Lstat(mountPoint); err == nil && info.Mode()&os.ModeSymlink != 0 {
			r.Logger.Debug("accepting symlink in place of mount", "mountpoint", mountPoint)
			return
		}
	}
	r.Logger.Error("mountpoint not in live mount table", "mountpoint", mountPoint)
	report.Problem(SeverityCritical, "%s is not mounted", mountPoint)
}

// checkResponsive runs the bounded space query and grades its elapsed time.
// It reports whether the probe completed naturally.
func (r *Runner) checkResponsive(ctx context.Context, mountPoint string, report *Report) bool {
	args := append(append([]string{}, r.DFCommand[1:]...), r.DFArgs...)
	args = append(args, mountPoint)
	action := probe.CommandAction{Path: r.DFCommand[0], Args: args}

	outcome := r.Executor.Run(ctx, action, r.Thresholds.Stale)
	r.grade(mountPoint, mountPoint+"_time", outcome, report)

	if outcome.Completed && outcome.Err != nil {
		r.Logger.Error("space query failed", "mountpoint", mountPoint, "error", outcome.Err)
		report.Problem(SeverityCritical, "%s space query failed (%v)", mountPoint, outcome.Err)
	}
	return outcome.Completed
}

// grade records the probe metric and applies the graduated severity rules.
// Precedence: stale before critical before warning, and an executor-level
// timeout always counts as stale regardless of the compared elapsed value.
// The metric and the comparisons use the same elapsed measurement.
func (r *Runner) grade(mountPoint, label string, outcome probe.Outcome, report *Report) {
	report.AddMetric(Metric{
		Label:   label,
		Seconds: outcome.Elapsed,
		Warn:    r.Thresholds.Warning,
		Crit:    r.Thresholds.Critical,
		Stale:   r.Thresholds.Stale,
	})

	switch {
	case outcome.TimedOut || outcome.Elapsed > r.Thresholds.Stale:
		r.Logger.Error("mountpoint seems stale",
			"mountpoint", mountPoint, "stale_sec", r.Thresholds.Stale)
		report.Problem(SeverityCritical, "%s did not respond in %s sec. Seems to be stale.",
			mountPoint, fmtSeconds(r.Thresholds.Stale))
	case outcome.Elapsed > r.Thresholds.Critical:
		r.Logger.Error("response time exceeded critical threshold",
			"mountpoint", mountPoint, "elapsed_sec", outcome.Elapsed, "critical_sec", r.Thresholds.Critical)
		report.Problem(SeverityCritical, "%s response time %s sec exceeded critical threshold (%s sec)",
			mountPoint, fmtSeconds(outcome.Elapsed), fmtSeconds(r.Thresholds.Critical))
	case outcome.Elapsed > r.Thresholds.Warning:
		r.Logger.Warn("response time exceeded warning threshold",
			"mountpoint", mountPoint, "elapsed_sec", outcome.Elapsed, "warning_sec", r.Thresholds.Warning)
		report.Problem(SeverityWarning, "%s response time %s sec exceeded warning threshold (%s sec)",
			mountPoint, fmtSeconds(outcome.Elapsed), fmtSeconds(r.Thresholds.Warning))
	}
}

// checkDirectory verifies the target path is a directory.
func (r *Runner) checkDirectory(mountPoint string, report *Report) {
	info, err := os.Stat(mountPoint)
	if err == nil && info.IsDir() {
		return
	}
	r.Logger.Error("mountpoint is not a directory", "mountpoint", mountPoint, "error", err)
	report.Problem(SeverityCritical, "%s is not a directory", mountPoint)
}

// checkWritable runs the bounded create/verify/remove marker probe. In
// autoselect mode a config row mounted read-only fails fast without
// touching the filesystem.
func (r *Runner) checkWritable(ctx context.Context, mountPoint string, report *Report) {
	if r.Autoselect {
		if row, ok := r.Fstab.Lookup(mountPoint); ok && row.HasOption("ro") {
			r.Logger.Error("write test on read-only mount", "mountpoint", mountPoint)
			report.Problem(SeverityCritical, "%s filesystem was mounted RO", mountPoint)
			return
		}
	}

	marker := filepath.Join(mountPoint, probe.MarkerName())
	outcome := r.Executor.Run(ctx, probe.WriteTestAction{MarkerPath: marker}, r.Thresholds.Stale)
	r.grade(mountPoint, mountPoint+"_writetime", outcome, report)

	if outcome.Completed && outcome.Err != nil {
		r.Logger.Error("write test failed", "mountpoint", mountPoint, "error", outcome.Err)
		report.Problem(SeverityCritical, "%s is not writable (%v)", mountPoint, outcome.Err)
	}
}
