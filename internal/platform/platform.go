// Package platform carries the per operating system constants the checks
// depend on: table paths, column layouts, command argvs. They are selected
// once at startup and injected into the rest of the plugin as a single
// Profile value instead of being branched on inline.
package platform

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// NoLiveTable is the sentinel mtab path for platforms that expose no live
// mount table file. The live table reader synthesizes one from the mount
// command's output instead.
const NoLiveTable = "none"

// Profile holds the constants of one operating system flavor. Column fields
// are 1-based, matching common text-table tooling.
type Profile struct {
	Name string `toml:"name"`

	// FstabPath is the static mount configuration table.
	FstabPath string `toml:"fstab"`
	// MtabPath is the live mount table, or NoLiveTable.
	MtabPath string `toml:"mtab"`

	// Column positions within a config table row.
	FSTypeField     int `toml:"fstype_field"`
	MountPointField int `toml:"mountpoint_field"`
	OptionsField    int `toml:"options_field"`

	// NoautoOption is the "do not auto-mount" marker within a row's options.
	NoautoOption string `toml:"noauto_option"`

	// DFCommand is the space-query argv prefix; the target mountpoint is
	// appended at probe time.
	DFCommand []string `toml:"df_command"`
	// MountCommand lists live mounts when run bare, and mounts filesystems
	// when given arguments.
	MountCommand []string `toml:"mount_command"`

	// ProcPath/ProcMagic identify the pseudo-filesystem backing the live
	// table; ProcMagic 0 disables the presence check. ProcMountArgs are the
	// MountCommand arguments that mount the pseudo-filesystem.
	ProcPath      string   `toml:"proc_path"`
	ProcMagic     int64    `toml:"proc_magic"`
	ProcMountArgs []string `toml:"proc_mount_args"`

	// ZFSBinary is the pool manager userland binary ("" disables dataset
	// synthesis). DelegationProperty names the zone/jail delegation flag
	// where the platform has one.
	ZFSBinary          string `toml:"zfs_binary"`
	DelegationProperty string `toml:"delegation_property"`
}

// procSuperMagic is the linux procfs statfs magic.
const procSuperMagic = 0x9fa0

var profiles = map[string]Profile{
	"linux": {
		Name:               "linux",
		FstabPath:          "/etc/fstab",
		MtabPath:           "/proc/mounts",
		FSTypeField:        3,
		MountPointField:    2,
		OptionsField:       4,
		NoautoOption:       "noauto",
		DFCommand:          []string{"/bin/df", "-k", "-P"},
		MountCommand:       []string{"/bin/mount"},
		ProcPath:           "/proc",
		ProcMagic:          procSuperMagic,
		ProcMountArgs:      []string{"-t", "proc", "proc", "/proc"},
		ZFSBinary:          "zfs",
		DelegationProperty: "zoned",
	},
	"freebsd": {
		Name:               "freebsd",
		FstabPath:          "/etc/fstab",
		MtabPath:           NoLiveTable,
		FSTypeField:        3,
		MountPointField:    2,
		OptionsField:       4,
		NoautoOption:       "noauto",
		DFCommand:          []string{"/bin/df", "-k"},
		MountCommand:       []string{"/sbin/mount"},
		ZFSBinary:          "zfs",
		DelegationProperty: "jailed",
	},
	"solaris": {
		Name:               "solaris",
		FstabPath:          "/etc/vfstab",
		MtabPath:           "/etc/mnttab",
		FSTypeField:        4,
		MountPointField:    3,
		OptionsField:       7,
		NoautoOption:       "noauto",
		DFCommand:          []string{"/usr/sbin/df", "-k"},
		MountCommand:       []string{"/sbin/mount"},
		ZFSBinary:          "zfs",
		DelegationProperty: "zoned",
	},
	"hpux": {
		Name:            "hpux",
		FstabPath:       "/etc/fstab",
		MtabPath:        "/dev/mnttab",
		FSTypeField:     3,
		MountPointField: 2,
		OptionsField:    4,
		NoautoOption:    "noauto",
		DFCommand:       []string{"/usr/bin/df", "-k"},
		MountCommand:    []string{"/sbin/mount"},
	},
}

// Names returns the known profile names, sorted.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForName returns the built-in profile for the given platform name.
func ForName(name string) (Profile, error) {
	prof, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown platform %q (known: %v)", name, Names())
	}
	return prof, nil
}

// Load overlays a TOML profile file on top of base. Keys absent from the
// file keep the base value.
func Load(path string, base Profile) (Profile, error) {
	prof := base
	if _, err := toml.DecodeFile(path, &prof); err != nil {
		return Profile{}, fmt.Errorf("platform file %s: %w", path, err)
	}
	return prof, nil
}
