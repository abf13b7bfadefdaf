package mounttab

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/echocat/nagios-plugin-check-mountpoints/internal/platform"
)

// liveSchema is the column layout of /proc/mounts style tables.
var liveSchema = Schema{Device: 1, MountPoint: 2, FSType: 3, Options: 4}

// scratchSchema is the layout of the synthesized `device mountpoint fstype`
// scratch file. It carries no reliable options column.
var scratchSchema = Schema{Device: 1, MountPoint: 2, FSType: 3}

// ReadLive produces the table of currently mounted filesystems. When path is
// the platform's NoLiveTable sentinel the mount-listing command is run and
// its output normalized into a transient scratch file, which is then parsed.
// The returned cleanup func removes that scratch file and must be called on
// every exit path of the run; it is a no-op when no file was created.
// Notices are non-fatal diagnostics to surface in the final report.
func ReadLive(ctx context.Context, prof platform.Profile, path string, logger *slog.Logger) (tab Table, notices []string, cleanup func(), err error) {
	cleanup = func() {}

	if path == platform.NoLiveTable {
		scratch, serr := synthesize(ctx, prof, logger)
		if serr != nil {
			return nil, notices, cleanup, serr
		}
		cleanup = func() { os.Remove(scratch) }
		tab, err = ReadConfig(scratch, scratchSchema)
		return tab, notices, cleanup, err
	}

	if notice := ensureBacking(ctx, prof, logger); notice != "" {
		notices = append(notices, notice)
	}

	tab, err = ReadConfig(path, liveSchema)
	return tab, notices, cleanup, err
}

// ensureBacking checks that the pseudo-filesystem backing the live table is
// mounted, and mounts it once if not. Either way the degradation is recorded
// as a notice and execution continues.
func ensureBacking(ctx context.Context, prof platform.Profile, logger *slog.Logger) string {
	if prof.ProcMagic == 0 || prof.ProcPath == "" || len(prof.MountCommand) == 0 {
		return ""
	}

	var st unix.Statfs_t
	if err := unix.Statfs(prof.ProcPath, &st); err == nil && int64(st.Type) == prof.ProcMagic {
		return ""
	}

	logger.Warn("pseudo-filesystem backing the live mount table is not mounted",
		"path", prof.ProcPath)

	args := append(append([]string{}, prof.MountCommand[1:]...), prof.ProcMountArgs...)
	if err := exec.CommandContext(ctx, prof.MountCommand[0], args...).Run(); err != nil {
		logger.Error("mounting pseudo-filesystem failed", "path", prof.ProcPath, "error", err)
		return fmt.Sprintf("%s was not mounted and mounting it failed", prof.ProcPath)
	}
	return fmt.Sprintf("%s was not mounted, mounted it", prof.ProcPath)
}

// synthesize runs the mount-listing command and writes its normalized output
// to a scratch file, returning the file's path.
func synthesize(ctx context.Context, prof platform.Profile, logger *slog.Logger) (string, error) {
	cmd := exec.CommandContext(ctx, prof.MountCommand[0], prof.MountCommand[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("list mounts via %s: %w", prof.MountCommand[0], err)
	}

	file, err := os.CreateTemp("", "check-mountpoints-mtab-*")
	if err != nil {
		return "", fmt.Errorf("create scratch mount table: %w", err)
	}

	for _, line := range bytes.Split(out, []byte("\n")) {
		device, mountPoint, fsType, ok := normalizeMountLine(string(line))
		if !ok {
			if len(bytes.TrimSpace(line)) > 0 {
				logger.Debug("skipping unparseable mount line", "line", string(line))
			}
			continue
		}
		if _, err := fmt.Fprintf(file, "%s %s %s\n", escapeField(device), escapeField(mountPoint), fsType); err != nil {
			file.Close()
			os.Remove(file.Name())
			return "", fmt.Errorf("write scratch mount table: %w", err)
		}
	}

	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("close scratch mount table: %w", err)
	}
	return file.Name(), nil
}

// normalizeMountLine strips the "on"/"type"/parenthesized-options decorations
// of a mount command output line down to device, mountpoint and fstype.
// Handled shapes:
//
//	fs:/export on /mnt type nfs (rw,relatime)
//	/dev/ada0p2 on / (ufs, local, soft-updates)
func normalizeMountLine(line string) (device, mountPoint, fsType string, ok bool) {
	device, rest, found := strings.Cut(strings.TrimSpace(line), " on ")
	if !found {
		return "", "", "", false
	}

	if mp, typed, hasType := strings.Cut(rest, " type "); hasType {
		fields := strings.Fields(typed)
		if len(fields) == 0 {
			return "", "", "", false
		}
		mountPoint, fsType = mp, fields[0]
	} else {
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			return "", "", "", false
		}
		mountPoint = strings.TrimSpace(rest[:open])
		fsType, _, _ = strings.Cut(rest[open+1:], ",")
		fsType = strings.Trim(fsType, "() ")
	}

	if device == "" || mountPoint == "" || fsType == "" {
		return "", "", "", false
	}
	return device, mountPoint, strings.ToLower(fsType), true
}
