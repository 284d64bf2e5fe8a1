// Package configcache implements the config cache: a
// memoizing map from project identifier to either a parsed project or a
// fatal parse diagnostic.
package configcache

import (
	"github.com/microsoft/typescript-go/shim/vfs"

	"github.com/tsb-dev/tsb/internal/hostfs"
	"github.com/tsb-dev/tsb/internal/projectid"
	"github.com/tsb-dev/tsb/internal/tscompiler"
)

// Entry is a config cache entry: either a parsed project or a fatal parse
// diagnostic — callers must be able to tell these two cases apart.
type Entry struct {
	Project     *tscompiler.ParsedProject
	Diagnostics []tscompiler.Diagnostic
	Err         error
}

// Ok reports whether the entry holds a usable parsed project.
func (e Entry) Ok() bool { return e.Project != nil }

// Cache memoizes configuration parses keyed by project identifier.
type Cache struct {
	host  hostfs.Host
	fs    vfs.FS
	cache map[projectid.ID]Entry
}

// New creates a config cache. fs is the vfs view the compiler collaborator
// reads through; host supplies cwd/case-sensitivity for ID resolution.
func New(host hostfs.Host, fs vfs.FS) *Cache {
	return &Cache{host: host, fs: fs, cache: map[projectid.ID]Entry{}}
}

// Get returns the memoized entry for id, parsing on first access.
func (c *Cache) Get(id projectid.ID) Entry {
	if e, ok := c.cache[id]; ok {
		return e
	}
	project, diags, err := tscompiler.ParseConfig(c.fs, c.host, string(id))
	e := Entry{Project: project, Diagnostics: diags, Err: err}
	c.cache[id] = e
	return e
}

// Invalidate evicts id's cached parse, forcing a re-parse on next Get.
func (c *Cache) Invalidate(id projectid.ID) {
	delete(c.cache, id)
}

// Parsed adapts the cache to status.ProjectSource.
func (c *Cache) Parsed(id projectid.ID) (*tscompiler.ParsedProject, bool) {
	e := c.Get(id)
	return e.Project, e.Ok()
}
