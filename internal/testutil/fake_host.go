package testutil

import (
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/microsoft/typescript-go/shim/vfs"

	"github.com/tsb-dev/tsb/internal/hostfs"
)

// FakeHost is an in-memory hostfs.Host with fully controllable
// modification times, used by graph/status/solution tests to exercise
// the classifier's timestamp comparisons without touching the real
// filesystem.
type FakeHost struct {
	CaseSensitive bool
	Cwd           string

	files map[string]*fakeFile
}

type fakeFile struct {
	content string
	modTime time.Time
}

var _ hostfs.Host = (*FakeHost)(nil)

// NewFakeHost creates an empty case-sensitive FakeHost rooted at cwd.
func NewFakeHost(cwd string) *FakeHost {
	return &FakeHost{CaseSensitive: true, Cwd: cwd, files: map[string]*fakeFile{}}
}

// WriteAt seeds a file with content and an explicit modification time,
// for building fixtures (e.g. "this input is newer than that output").
func (h *FakeHost) WriteAt(path, content string, modTime time.Time) {
	h.files[path] = &fakeFile{content: content, modTime: modTime}
}

func (h *FakeHost) GetCurrentDirectory() string { return h.Cwd }

func (h *FakeHost) GetCanonicalFileName(name string) string {
	if h.CaseSensitive {
		return name
	}
	return strings.ToLower(name)
}

func (h *FakeHost) UseCaseSensitiveFileNames() bool { return h.CaseSensitive }

func (h *FakeHost) FileExists(path string) bool {
	_, ok := h.files[path]
	return ok
}

func (h *FakeHost) ReadFile(path string) (string, bool) {
	f, ok := h.files[path]
	if !ok {
		return "", false
	}
	return f.content, true
}

func (h *FakeHost) DirectoryExists(path string) bool {
	prefix := strings.TrimSuffix(path, "/") + "/"
	for p := range h.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (h *FakeHost) GetAccessibleEntries(path string) vfs.Entries {
	prefix := strings.TrimSuffix(path, "/") + "/"
	seenDirs := map[string]bool{}
	var entries vfs.Entries
	for p := range h.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok {
			continue
		}
		if before, _, isNested := strings.Cut(rest, "/"); isNested {
			if !seenDirs[before] {
				seenDirs[before] = true
				entries.Directories = append(entries.Directories, before)
			}
		} else {
			entries.Files = append(entries.Files, rest)
		}
	}
	sort.Strings(entries.Directories)
	sort.Strings(entries.Files)
	return entries
}

type fakeFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

var (
	_ fs.FileInfo = (*fakeFileInfo)(nil)
	_ fs.DirEntry = (*fakeFileInfo)(nil)
)

func (fi *fakeFileInfo) IsDir() bool                { return fi.isDir }
func (fi *fakeFileInfo) ModTime() time.Time         { return fi.modTime }
func (fi *fakeFileInfo) Mode() fs.FileMode          { return 0o644 }
func (fi *fakeFileInfo) Name() string               { return fi.name }
func (fi *fakeFileInfo) Size() int64                { return fi.size }
func (fi *fakeFileInfo) Sys() any                   { return nil }
func (fi *fakeFileInfo) Info() (fs.FileInfo, error) { return fi, nil }
func (fi *fakeFileInfo) Type() fs.FileMode          { return 0 }

// Stat returns nil for a file that doesn't exist, the same "absent info"
// convention the classifier relies on to detect OutputMissing.
func (h *FakeHost) Stat(path string) vfs.FileInfo {
	f, ok := h.files[path]
	if !ok {
		return nil
	}
	return &fakeFileInfo{name: path, size: int64(len(f.content)), modTime: f.modTime}
}

func (h *FakeHost) WalkDir(root string, walkFn vfs.WalkDirFunc) error {
	prefix := strings.TrimSuffix(root, "/") + "/"
	var paths []string
	for p := range h.files {
		if strings.HasPrefix(p, prefix) || p == root {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := walkFn(p, &fakeFileInfo{name: p, size: int64(len(h.files[p].content)), modTime: h.files[p].modTime}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (h *FakeHost) Realpath(path string) string { return path }

func (h *FakeHost) WriteFile(path string, data string, writeByteOrderMark bool) error {
	now := time.Now()
	if existing, ok := h.files[path]; ok {
		existing.content = data
		existing.modTime = now
		return nil
	}
	h.files[path] = &fakeFile{content: data, modTime: now}
	return nil
}

func (h *FakeHost) Remove(path string) error {
	delete(h.files, path)
	return nil
}

func (h *FakeHost) Chtimes(path string, aTime time.Time, mTime time.Time) error {
	f, ok := h.files[path]
	if !ok {
		return fs.ErrNotExist
	}
	f.modTime = mTime
	return nil
}
