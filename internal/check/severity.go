// Package check evaluates each target mountpoint through a fixed pipeline
// of checks, accumulates diagnostics into a report, and renders the final
// plugin output line.
package check

// Severity is the plugin state consumed by the hosting monitoring system.
// The integer values are the plugin exit codes. Unknown is reserved for
// configuration and usage errors detected before or independent of probing;
// probe-detected problems are Warning or Critical, never Unknown.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityUnknown
)

// String returns the severity word that leads the output line.
func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ExitCode returns the process exit status for this severity.
func (s Severity) ExitCode() int { return int(s) }
