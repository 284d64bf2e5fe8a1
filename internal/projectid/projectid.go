// Package projectid implements the path/ID layer: canonicalizing
// config-file names into the stable identifiers used as map keys throughout
// the core.
package projectid

import (
	"path/filepath"

	"github.com/tsb-dev/tsb/internal/hostfs"
)

// ID is an opaque, canonicalized absolute path to a project configuration
// file. Two IDs compare equal iff they name the same file on the host's
// filesystem under its case-sensitivity rule.
type ID string

func (id ID) String() string { return string(id) }

// Canonicalize resolves name (relative or absolute) against the host's
// current working directory and applies its case-sensitivity rule. Absent
// files are not an error here; a later FileExists check decides that.
func Canonicalize(host hostfs.Host, name string) ID {
	abs := hostfs.ResolvePath(host.GetCurrentDirectory(), name)
	return ID(host.GetCanonicalFileName(abs))
}

// Resolve accepts a user-typed name (e.g. from the command line or a
// project reference's "path") and returns its identifier, provided either
// the named file exists or "<name>/tsconfig.json" exists. Otherwise it
// reports that no project could be found.
func Resolve(host hostfs.Host, name string) (ID, bool) {
	abs := hostfs.ResolvePath(host.GetCurrentDirectory(), name)
	if host.FileExists(abs) {
		return ID(host.GetCanonicalFileName(abs)), true
	}
	withConfig := hostfs.ResolvePath(host.GetCurrentDirectory(), filepath.Join(name, "tsconfig.json"))
	if host.FileExists(withConfig) {
		return ID(host.GetCanonicalFileName(withConfig)), true
	}
	return "", false
}
