// Package selector resolves the set of mountpoints a run will check, either
// from explicit arguments or by filtering the config table.
package selector

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/echocat/nagios-plugin-check-mountpoints/internal/mounttab"
)

// DefaultTypes is the allow-list of filesystem types eligible for
// autoselection: the network and local types this plugin is about.
var DefaultTypes = map[string]bool{
	"auto":      true,
	"btrfs":     true,
	"ceph":      true,
	"cifs":      true,
	"davfs":     true,
	"ext2":      true,
	"ext3":      true,
	"ext4":      true,
	"fuse":      true,
	"glusterfs": true,
	"lustre":    true,
	"nfs":       true,
	"nfs4":      true,
	"ocfs2":     true,
	"simfs":     true,
	"smbfs":     true,
	"ufs":       true,
	"xfs":       true,
	"zfs":       true,
}

// ErrNoTargets is returned when autoselection finds nothing and an empty
// result is not tolerated. It is a configuration error, reported before any
// probing starts.
var ErrNoTargets = errors.New("no mountpoints found to check")

// Options steer autoselection.
type Options struct {
	Autoselect     bool
	TolerateEmpty  bool
	ExcludePattern string
	ExcludeNoauto  bool
	NoautoOption   string
	Types          map[string]bool // nil means DefaultTypes
}

// Select produces the ordered, deduplicated target set. Explicit args are
// taken verbatim with trailing slashes stripped; with autoselection the
// config table is filtered by type allow-list, exclusion pattern and noauto
// marker.
func Select(args []string, tab mounttab.Table, opts Options) ([]string, error) {
	if !opts.Autoselect {
		return dedupe(args), nil
	}

	var exclude *regexp.Regexp
	if opts.ExcludePattern != "" {
		var err error
		if exclude, err = regexp.Compile(opts.ExcludePattern); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", opts.ExcludePattern, err)
		}
	}

	types := opts.Types
	if types == nil {
		types = DefaultTypes
	}
	noauto := opts.NoautoOption
	if noauto == "" {
		noauto = "noauto"
	}

	var targets []string
	for _, row := range tab {
		if !eligibleType(row.FSType, types) {
			continue
		}
		if exclude != nil && exclude.MatchString(row.MountPoint) {
			continue
		}
		if opts.ExcludeNoauto && row.HasOption(noauto) {
			continue
		}
		targets = append(targets, row.MountPoint)
	}

	targets = dedupe(targets)
	if len(targets) == 0 && !opts.TolerateEmpty {
		return nil, ErrNoTargets
	}
	return targets, nil
}

func eligibleType(fsType string, types map[string]bool) bool {
	// fuse mounts report subtyped strings like fuse.glusterfs.
	return types[fsType] || strings.HasPrefix(fsType, "fuse.")
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	targets := make([]string, 0, len(paths))
	for _, p := range paths {
		p = mounttab.NormalizePath(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		targets = append(targets, p)
	}
	return targets
}
