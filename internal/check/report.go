package check

import (
	"fmt"
	"strconv"
	"strings"
)

// Metric is one timing sample for the perfdata segment.
type Metric struct {
	Label   string
	Seconds float64
	Warn    float64
	Crit    float64
	Stale   float64
}

// String renders the metric in label=value;warn;crit;min;max convention.
func (m Metric) String() string {
	return fmt.Sprintf("%s=%ss;%s;%s;0;%s",
		m.Label,
		fmtSeconds(m.Seconds),
		fmtSeconds(m.Warn),
		fmtSeconds(m.Crit),
		fmtSeconds(m.Stale),
	)
}

func fmtSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Report accumulates diagnostics, a monotonic worst-case severity and timing
// metrics over one run. It is owned by the pipeline for the run's duration
// and rendered once at the end.
type Report struct {
	severity Severity
	messages []string
	metrics  []Metric
}

// NewReport creates an empty OK report.
func NewReport() *Report {
	return &Report{severity: SeverityOK}
}

// Problem records a diagnostic and raises the severity. Raising is
// monotonic: a Warning never downgrades an already-Critical run.
func (r *Report) Problem(severity Severity, format string, args ...any) {
	if severity > r.severity {
		r.severity = severity
	}
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

// Notice records a diagnostic without touching the severity, for degraded
// but continuable conditions.
func (r *Report) Notice(format string, args ...any) {
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

// AddMetric appends one timing sample.
func (r *Report) AddMetric(m Metric) {
	r.metrics = append(r.metrics, m)
}

// Severity returns the current worst-case severity.
func (r *Report) Severity() Severity { return r.severity }

// Messages returns the accumulated diagnostics in emission order.
func (r *Report) Messages() []string { return r.messages }

// Render produces the plugin output line: severity word, diagnostics joined
// by "; " (or the fixed all-found sentence when there are none), and the
// perfdata segment when metrics were collected. targets is the checked
// target set, listed in the all-found sentence.
func (r *Report) Render(targets []string) string {
	var b strings.Builder
	b.WriteString(r.severity.String())
	b.WriteString(": ")

	if len(r.messages) == 0 {
		if len(targets) == 0 {
			b.WriteString("no external mounts were found")
		} else {
			b.WriteString("all mounts were found (")
			b.WriteString(strings.Join(targets, ", "))
			b.WriteString(")")
		}
	} else {
		b.WriteString(strings.Join(r.messages, "; "))
	}

	if len(r.metrics) > 0 {
		b.WriteString("|")
		for i, m := range r.metrics {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(m.String())
		}
	}
	return b.String()
}
