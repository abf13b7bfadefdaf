// Package mounttab reads the static mount configuration table and the live
// kernel mount table into one common row shape.
package mounttab

import "strings"

// Row is one entry of a mount table. The device string is source-specific
// (block device, remote export, dataset name).
type Row struct {
	Device     string
	MountPoint string
	FSType     string
	Options    []string
}

// HasOption reports whether the row's options contain the given flag.
func (r Row) HasOption(name string) bool {
	for _, opt := range r.Options {
		if opt == name {
			return true
		}
	}
	return false
}

// Table is an ordered sequence of rows. Mountpoint uniqueness is not
// guaranteed by any source; lookups return the first match.
type Table []Row

// Lookup returns the first row mounted at path.
func (t Table) Lookup(path string) (Row, bool) {
	for _, row := range t {
		if row.MountPoint == path {
			return row, true
		}
	}
	return Row{}, false
}

// Contains reports whether any row is mounted at path.
func (t Table) Contains(path string) bool {
	_, ok := t.Lookup(path)
	return ok
}

// Schema maps 1-based column positions onto Row fields. A position of 0 or
// one past the end of a line yields an empty field, not an error, because
// operating systems disagree on column counts.
type Schema struct {
	Device     int
	FSType     int
	MountPoint int
	Options    int
}

// Row assembles a Row from whitespace-split line fields.
func (s Schema) Row(fields []string) Row {
	row := Row{
		Device:     unescapeField(s.field(fields, s.Device)),
		MountPoint: NormalizePath(unescapeField(s.field(fields, s.MountPoint))),
		FSType:     strings.ToLower(s.field(fields, s.FSType)),
	}
	if opts := s.field(fields, s.Options); opts != "" {
		row.Options = strings.Split(opts, ",")
	}
	return row
}

func (s Schema) field(fields []string, idx int) string {
	if idx < 1 || idx > len(fields) {
		return ""
	}
	return fields[idx-1]
}

// NormalizePath strips trailing slashes, keeping the root path intact.
func NormalizePath(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" && p != "" {
		return "/"
	}
	return trimmed
}

// escapeField applies the kernel's /proc/mounts octal escape for spaces so
// a field survives whitespace-splitting table formats.
func escapeField(s string) string {
	return strings.ReplaceAll(s, " ", "\\040")
}

// unescapeField reverses the octal escapes the kernel applies to special
// characters in /proc/mounts fields (space \040, tab \011, etc).
func unescapeField(s string) string {
	s = strings.ReplaceAll(s, "\\040", " ")
	s = strings.ReplaceAll(s, "\\011", "\t")
	s = strings.ReplaceAll(s, "\\012", "\n")
	s = strings.ReplaceAll(s, "\\134", "\\")
	return s
}
