// Package probe runs potentially blocking filesystem operations under a
// deadline. A stale network mount can block a syscall forever with no
// user-space cancellation primitive, so actions are dispatched off the
// caller's path, observed by polling, and forcibly reclaimed when the
// deadline expires.
package probe

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Outcome is the result of one bounded probe. Elapsed is wall-clock seconds
// from dispatch to completion or deadline expiry, rounded up to the next
// millisecond so a threshold comparison never sees less than the true
// duration. The same value is later reported as the performance metric.
type Outcome struct {
	Completed bool
	TimedOut  bool
	Elapsed   float64
	Err       error
}

// Action is one potentially blocking filesystem operation.
type Action interface {
	Name() string
	Run(ctx context.Context) error
}

// CommandAction runs an external command, typically the space query against
// a mountpoint. On context cancellation the process receives SIGTERM; a
// process stuck in an uninterruptible network syscall may not honor it,
// which is an accepted limitation.
type CommandAction struct {
	Path string
	Args []string
}

// Name implements Action.
func (a CommandAction) Name() string { return a.Path }

// Run implements Action.
func (a CommandAction) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, a.Path, a.Args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 2 * time.Second
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", a.Path, err)
	}
	return nil
}

// WriteTestAction creates a marker file, reads it back, and removes it. The
// removal belongs to the action itself: a marker leaked by a timed-out probe
// is documented residue, not something the caller cleans up.
type WriteTestAction struct {
	MarkerPath string
}

// Name implements Action.
func (a WriteTestAction) Name() string { return "writetest " + a.MarkerPath }

// Run implements Action.
func (a WriteTestAction) Run(ctx context.Context) error {
	payload := []byte(time.Now().Format(time.RFC3339Nano))
	if err := os.WriteFile(a.MarkerPath, payload, 0o644); err != nil {
		return fmt.Errorf("create marker: %w", err)
	}

	read, err := os.ReadFile(a.MarkerPath)
	if err != nil {
		os.Remove(a.MarkerPath)
		return fmt.Errorf("verify marker: %w", err)
	}
	if !bytes.Equal(read, payload) {
		os.Remove(a.MarkerPath)
		return errors.New("verify marker: content mismatch")
	}

	if err := os.Remove(a.MarkerPath); err != nil {
		return fmt.Errorf("remove marker: %w", err)
	}
	return nil
}

// MarkerName builds a marker filename embedding host identity, a timestamp
// and two independent randomizing components (pid, random suffix) so
// concurrent runs against the same mount cannot collide.
func MarkerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	var suffix [4]byte
	rand.Read(suffix[:])
	return fmt.Sprintf(".check_mountpoints.%s.%d.%d.%x", host, time.Now().UnixNano(), os.Getpid(), suffix)
}

// reclaimGrace is how long a timed-out action gets to observe its
// cancellation before the executor walks away from it.
const reclaimGrace = 250 * time.Millisecond

// Executor runs actions under a deadline, polling for completion at
// sub-second intervals so fractional-second thresholds work.
type Executor struct {
	PollInterval time.Duration
	logger       *slog.Logger
}

// NewExecutor creates an Executor with the default poll interval.
func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{
		PollInterval: 100 * time.Millisecond,
		logger:       logger,
	}
}

// Run dispatches the action in its own goroutine and polls until it finishes
// or the deadline (in seconds) expires. On expiry the action's context is
// cancelled, which signals a command probe's process; the outcome is marked
// timed out regardless of whether the action then manages to finish.
func (e *Executor) Run(ctx context.Context, action Action, deadline float64) Outcome {
	actionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- action.Run(actionCtx)
	}()

	limit := time.Duration(deadline * float64(time.Second))
	ticker := time.NewTicker(e.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			outcome := Outcome{Completed: true, Elapsed: roundUp(time.Since(start)), Err: err}
			e.logger.Debug("probe finished",
				"action", action.Name(),
				"elapsed_sec", outcome.Elapsed,
				"error", err,
			)
			return outcome
		case <-ticker.C:
			if time.Since(start) < limit {
				continue
			}
			cancel()
			outcome := Outcome{TimedOut: true, Elapsed: roundUp(time.Since(start))}
			e.logger.Warn("probe deadline expired, reclaiming",
				"action", action.Name(),
				"deadline_sec", deadline,
			)
			// Drain the goroutine if the action notices the cancellation in
			// time. An action stuck mid-syscall will not; its goroutine and
			// any process it spawned are left behind, as documented.
			select {
			case <-done:
			case <-time.After(reclaimGrace):
			}
			return outcome
		}
	}
}

// roundUp converts a duration to seconds with millisecond precision, always
// rounding toward the larger value.
func roundUp(d time.Duration) float64 {
	ms := d.Milliseconds()
	if d%time.Millisecond != 0 || ms == 0 {
		ms++
	}
	return float64(ms) / 1000
}
