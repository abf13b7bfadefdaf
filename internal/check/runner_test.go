package check_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/echocat/nagios-plugin-check-mountpoints/internal/check"
	"github.com/echocat/nagios-plugin-check-mountpoints/internal/mounttab"
	"github.com/echocat/nagios-plugin-check-mountpoints/internal/probe"
	"github.com/echocat/nagios-plugin-check-mountpoints/internal/testutil"
	"github.com/matryer/is"
)

// fastDF stands in for the space query and returns immediately.
var fastDF = []string{"/bin/sh", "-c", "exit 0"}

// stuckDF simulates a stale mount: the space query never comes back.
var stuckDF = []string{"/bin/sh", "-c", "sleep 60"}

func newRunner(t *testing.T, mountPoint string, df []string) *check.Runner {
	t.Helper()
	executor := probe.NewExecutor(testutil.Logger(t))
	executor.PollInterval = 20 * time.Millisecond
	return &check.Runner{
		Fstab:      mounttab.Table{{Device: "fs:/export", MountPoint: mountPoint, FSType: "nfs", Options: []string{"rw"}}},
		Live:       mounttab.Table{{Device: "fs:/export", MountPoint: mountPoint, FSType: "nfs", Options: []string{"rw"}}},
		FstabPath:  "/etc/fstab",
		Thresholds: check.Thresholds{Warning: 3, Critical: 3, Stale: 3},
		DFCommand:  df,
		Executor:   executor,
		Logger:     testutil.Logger(t),
	}
}

func TestRun_AllOK(t *testing.T) {
	is := is.New(t)

	mountPoint := t.TempDir()
	runner := newRunner(t, mountPoint, fastDF)

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	is.Equal(report.Severity(), check.SeverityOK) // responsive, mounted, declared

	rendered := report.Render([]string{mountPoint})
	is.True(strings.HasPrefix(rendered, "OK: all mounts were found ("+mountPoint+")|")) // fixed all-found sentence
	is.True(strings.Contains(rendered, mountPoint+"_time="))                            // read latency metric
	is.True(strings.HasSuffix(rendered, ";3;3;0;3"))                                    // warn;crit;min;max thresholds
}

func TestRun_StaleMount(t *testing.T) {
	is := is.New(t)

	mountPoint := t.TempDir()
	runner := newRunner(t, mountPoint, stuckDF)

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	is.Equal(report.Severity(), check.SeverityCritical) // stale is always critical
	is.Equal(len(report.Messages()), 1)
	is.Equal(report.Messages()[0], mountPoint+" did not respond in 3 sec. Seems to be stale.")
}

func TestRun_NotInFstab(t *testing.T) {
	is := is.New(t)

	mountPoint := t.TempDir()
	runner := newRunner(t, mountPoint, fastDF)
	runner.Fstab = nil

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	is.Equal(report.Severity(), check.SeverityCritical)
	is.Equal(report.Messages()[0], mountPoint+" is not in /etc/fstab")
}

func TestRun_IgnoreFstab(t *testing.T) {
	is := is.New(t)

	mountPoint := t.TempDir()
	runner := newRunner(t, mountPoint, fastDF)
	runner.Fstab = nil
	runner.IgnoreFstab = true

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	// Stage 1 produces no diagnostic even though the row is absent.
	is.Equal(report.Severity(), check.SeverityOK)
	is.Equal(len(report.Messages()), 0)
}

func TestRun_ContainerSkipsFstab(t *testing.T) {
	is := is.New(t)

	mountPoint := t.TempDir()
	runner := newRunner(t, mountPoint, fastDF)
	runner.Fstab = nil
	runner.InContainer = true

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	is.Equal(report.Severity(), check.SeverityOK) // container virtualizes mounts
}

func TestRun_NotMounted(t *testing.T) {
	is := is.New(t)

	mountPoint := t.TempDir()
	runner := newRunner(t, mountPoint, fastDF)
	runner.Live = nil

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	is.Equal(report.Severity(), check.SeverityCritical)
	is.Equal(report.Messages()[0], mountPoint+" is not mounted")
}

func TestRun_SymlinkAccepted(t *testing.T) {
	is := is.New(t)

	real := t.TempDir()
	mountPoint := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(real, mountPoint); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	runner := newRunner(t, mountPoint, fastDF)
	runner.Live = nil
	runner.AcceptSymlinks = true

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	is.Equal(report.Severity(), check.SeverityOK) // symlink escape hatch
}

func TestRun_NotADirectory(t *testing.T) {
	is := is.New(t)

	mountPoint := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(mountPoint, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	runner := newRunner(t, mountPoint, fastDF)

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	is.Equal(report.Severity(), check.SeverityCritical)
	is.True(contains(report.Messages(), mountPoint+" is not a directory"))
}

func TestRun_WarningThreshold(t *testing.T) {
	is := is.New(t)

	mountPoint := t.TempDir()
	runner := newRunner(t, mountPoint, []string{"/bin/sh", "-c", "sleep 0.3"})
	runner.Thresholds = check.Thresholds{Warning: 0.1, Critical: 30, Stale: 30}

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	is.Equal(report.Severity(), check.SeverityWarning) // warning only raises to WARNING
	is.True(strings.Contains(report.Messages()[0], "exceeded warning threshold"))
}

func TestRun_CriticalThreshold(t *testing.T) {
	is := is.New(t)

	mountPoint := t.TempDir()
	runner := newRunner(t, mountPoint, []string{"/bin/sh", "-c", "sleep 0.3"})
	runner.Thresholds = check.Thresholds{Warning: 0.1, Critical: 0.2, Stale: 30}

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	is.Equal(report.Severity(), check.SeverityCritical)
	is.True(strings.Contains(report.Messages()[0], "exceeded critical threshold"))
}

func TestRun_WriteTest(t *testing.T) {
	is := is.New(t)

	mountPoint := t.TempDir()
	runner := newRunner(t, mountPoint, fastDF)
	runner.WriteTest = true

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	is.Equal(report.Severity(), check.SeverityOK) // writable directory passes

	entries, err := os.ReadDir(mountPoint)
	is.NoErr(err)
	is.Equal(len(entries), 0) // marker file removed by the probed action

	// Read and write latency are reported under distinct labels.
	rendered := report.Render([]string{mountPoint})
	is.True(strings.Contains(rendered, mountPoint+"_time="))
	is.True(strings.Contains(rendered, mountPoint+"_writetime="))
}

func TestRun_WriteTestReadOnlyInAutoMode(t *testing.T) {
	is := is.New(t)

	mountPoint := t.TempDir()
	runner := newRunner(t, mountPoint, fastDF)
	runner.WriteTest = true
	runner.Autoselect = true
	runner.Fstab = mounttab.Table{{Device: "fs:/export", MountPoint: mountPoint, FSType: "nfs", Options: []string{"ro"}}}

	report := check.NewReport()
	runner.Run(context.Background(), []string{mountPoint}, report)

	is.Equal(report.Severity(), check.SeverityCritical)
	is.True(contains(report.Messages(), mountPoint+" filesystem was mounted RO"))

	entries, err := os.ReadDir(mountPoint)
	is.NoErr(err)
	is.Equal(len(entries), 0) // no marker file was attempted
}

func TestRun_FailuresAccumulateAcrossTargets(t *testing.T) {
	is := is.New(t)

	good := t.TempDir()
	bad := t.TempDir()
	runner := newRunner(t, good, fastDF)
	runner.Fstab = append(runner.Fstab, mounttab.Row{Device: "fs:/bad", MountPoint: bad, FSType: "nfs"})

	report := check.NewReport()
	runner.Run(context.Background(), []string{bad, good}, report)

	// The bad target's missing live entry does not abort the good target,
	// and diagnostics keep the input target order.
	is.Equal(report.Severity(), check.SeverityCritical)
	is.Equal(report.Messages()[0], bad+" is not mounted")
}

func contains(messages []string, want string) bool {
	for _, m := range messages {
		if m == want {
			return true
		}
	}
	return false
}
