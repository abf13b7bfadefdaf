// Package zfs lists pool datasets through the zfs userland binary and
// synthesizes config table rows for datasets that carry no static fstab
// entry.
package zfs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/echocat/nagios-plugin-check-mountpoints/internal/mounttab"
)

// Manager wraps the pool manager binary.
type Manager struct {
	binary         string
	delegationProp string
	logger         *slog.Logger
}

// NewManager creates a Manager for the given binary. delegationProp names
// the platform's zone/jail delegation property ("" on platforms without
// one).
func NewManager(binary, delegationProp string, logger *slog.Logger) *Manager {
	return &Manager{
		binary:         binary,
		delegationProp: delegationProp,
		logger:         logger,
	}
}

// Available reports whether the pool manager binary can be found.
func (m *Manager) Available() bool {
	if m.binary == "" {
		return false
	}
	_, err := exec.LookPath(m.binary)
	return err == nil
}

// Dataset is one filesystem dataset as reported by the pool manager.
type Dataset struct {
	Name       string
	MountPoint string
	CanMount   string
	ReadOnly   bool
	Delegated  bool
}

// Datasets lists all filesystem datasets with the properties the synthesis
// rules need. One bulk list call replaces per-dataset property queries.
func (m *Manager) Datasets(ctx context.Context) ([]Dataset, error) {
	props := "name,mountpoint,canmount,readonly"
	if m.delegationProp != "" {
		props += "," + m.delegationProp
	}
	args := []string{"list", "-H", "-t", "filesystem", "-o", props}

	m.logger.Debug("listing pool datasets", "binary", m.binary, "args", args)
	out, err := exec.CommandContext(ctx, m.binary, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s list failed: %w", m.binary, err)
	}
	return parseList(out, m.delegationProp != "")
}

func parseList(out []byte, hasDelegation bool) ([]Dataset, error) {
	want := 4
	if hasDelegation {
		want = 5
	}

	var datasets []Dataset
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < want {
			return nil, fmt.Errorf("malformed dataset line %q: want %d fields, got %d", line, want, len(fields))
		}
		ds := Dataset{
			Name:       fields[0],
			MountPoint: fields[1],
			CanMount:   fields[2],
			ReadOnly:   fields[3] == "on",
		}
		if hasDelegation {
			ds.Delegated = fields[4] == "on"
		}
		datasets = append(datasets, ds)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return datasets, nil
}

// SyntheticRows returns one config table row per mountable dataset missing
// from tab. Excluded: legacy and unset mountpoints, canmount=off datasets,
// datasets delegated to a zone or jail, and datasets whose mount path does
// not exist on disk.
func (m *Manager) SyntheticRows(ctx context.Context, tab mounttab.Table) ([]mounttab.Row, error) {
	datasets, err := m.Datasets(ctx)
	if err != nil {
		return nil, err
	}

	var rows []mounttab.Row
	for _, ds := range datasets {
		switch ds.MountPoint {
		case "legacy", "none", "-", "":
			continue
		}
		if ds.CanMount == "off" || ds.Delegated {
			continue
		}

		mountPoint := mounttab.NormalizePath(ds.MountPoint)
		if tab.Contains(mountPoint) {
			continue
		}
		if info, err := os.Stat(mountPoint); err != nil || !info.IsDir() {
			m.logger.Debug("skipping dataset without mount path", "dataset", ds.Name, "mountpoint", mountPoint)
			continue
		}

		options := "rw"
		if ds.ReadOnly {
			options = "ro"
		}
		rows = append(rows, mounttab.Row{
			Device:     ds.Name,
			MountPoint: mountPoint,
			FSType:     "zfs",
			Options:    []string{options},
		})
	}
	return rows, nil
}
