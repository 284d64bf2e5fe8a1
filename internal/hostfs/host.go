// Package hostfs provides the filesystem capability set the solution
// builder consumes: read, stat, delete, write, case sensitivity, and
// current-directory/canonicalization helpers.
package hostfs

import (
	"strings"
	"time"

	"github.com/microsoft/typescript-go/shim/bundled"
	"github.com/microsoft/typescript-go/shim/tspath"
	"github.com/microsoft/typescript-go/shim/vfs"
	"github.com/microsoft/typescript-go/shim/vfs/osvfs"
)

// Host is the file-system surface the core depends on. It embeds the shim's
// vfs.FS (read/write/stat/delete/case-sensitivity — the same surface the
// compiler collaborator reads through) and adds the path-layer helpers plus
// the mutation capability no CompilerHost needs: setting a file's
// modification time. Real tsc's own solution-builder host is exactly this
// split — a CompilerHost's read/write surface, plus getModifiedTime/
// setModifiedTime bolted on only for the build orchestrator.
type Host interface {
	vfs.FS
	GetCurrentDirectory() string
	GetCanonicalFileName(name string) string
	Chtimes(path string, atime, mtime time.Time) error
}

type osHost struct {
	vfs.FS
	cwd string
}

// NewOSHost builds a Host backed by the real filesystem. Unlike
// tsgonest's CreateDefaultFS, this does not wrap the filesystem in
// cachedvfs: the solution builder is a long-lived process across watch
// cycles, and a cached stat/read would mask the very file changes the
// up-to-date classifier exists to detect.
func NewOSHost(cwd string) Host {
	return &osHost{FS: bundled.WrapFS(osvfs.FS()), cwd: cwd}
}

func (h *osHost) GetCurrentDirectory() string { return h.cwd }

func (h *osHost) GetCanonicalFileName(name string) string {
	if h.FS.UseCaseSensitiveFileNames() {
		return name
	}
	return strings.ToLower(name)
}

// Chtimes sets a file's access/modification time, backing the build
// driver's timestamp-only fast-rebuild touch. This is not part of the
// compiler's own FS surface, so it goes straight to the OS rather than
// through the embedded vfs.FS.
func (h *osHost) Chtimes(path string, atime, mtime time.Time) error {
	return chtimes(path, atime, mtime)
}

// ResolvePath resolves name against cwd the same way the compiler's own
// config-file resolution does, so paths flowing into the host agree with
// paths the compiler collaborator produces.
func ResolvePath(cwd, name string) string {
	return tspath.ResolvePath(cwd, name)
}
