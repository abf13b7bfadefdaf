package check_test

import (
	"testing"

	"github.com/echocat/nagios-plugin-check-mountpoints/internal/check"
	"github.com/matryer/is"
)

func TestSeverityOrder(t *testing.T) {
	is := is.New(t)

	is.True(check.SeverityOK < check.SeverityWarning)       // OK < WARNING
	is.True(check.SeverityWarning < check.SeverityCritical) // WARNING < CRITICAL
	is.Equal(check.SeverityOK.ExitCode(), 0)
	is.Equal(check.SeverityWarning.ExitCode(), 1)
	is.Equal(check.SeverityCritical.ExitCode(), 2)
	is.Equal(check.SeverityUnknown.ExitCode(), 3)
}

func TestReport_MonotonicSeverity(t *testing.T) {
	is := is.New(t)

	report := check.NewReport()
	is.Equal(report.Severity(), check.SeverityOK) // starts OK

	report.Problem(check.SeverityCritical, "first failure")
	report.Problem(check.SeverityWarning, "later warning")

	// A warning never downgrades an already-critical run.
	is.Equal(report.Severity(), check.SeverityCritical)
	is.Equal(len(report.Messages()), 2) // both diagnostics kept, in order
}

func TestReport_NoticeKeepsSeverity(t *testing.T) {
	is := is.New(t)

	report := check.NewReport()
	report.Notice("/proc was not mounted, mounted it")

	is.Equal(report.Severity(), check.SeverityOK) // degraded but continuable
	is.Equal(len(report.Messages()), 1)           // diagnostic still surfaced
}

func TestRender_AllFound(t *testing.T) {
	is := is.New(t)

	report := check.NewReport()
	out := report.Render([]string{"/mnt/nfs1"})

	is.Equal(out, "OK: all mounts were found (/mnt/nfs1)")
}

func TestRender_NoExternalMounts(t *testing.T) {
	is := is.New(t)

	out := check.NewReport().Render(nil)
	is.Equal(out, "OK: no external mounts were found")
}

func TestRender_ProblemsAndMetrics(t *testing.T) {
	is := is.New(t)

	report := check.NewReport()
	report.Problem(check.SeverityCritical, "/mnt/nfs1 is not mounted")
	report.AddMetric(check.Metric{Label: "/mnt/nfs1_time", Seconds: 0.102, Warn: 3, Crit: 3, Stale: 3})
	report.AddMetric(check.Metric{Label: "/mnt/nfs1_writetime", Seconds: 0.2, Warn: 3, Crit: 3, Stale: 3})

	out := report.Render([]string{"/mnt/nfs1"})
	is.Equal(out, "CRITICAL: /mnt/nfs1 is not mounted|/mnt/nfs1_time=0.102s;3;3;0;3 /mnt/nfs1_writetime=0.2s;3;3;0;3")
}

func TestRender_MultipleDiagnostics(t *testing.T) {
	is := is.New(t)

	report := check.NewReport()
	report.Problem(check.SeverityCritical, "/a is not mounted")
	report.Problem(check.SeverityCritical, "/b is not a directory")

	out := report.Render([]string{"/a", "/b"})
	is.Equal(out, "CRITICAL: /a is not mounted; /b is not a directory")
}
