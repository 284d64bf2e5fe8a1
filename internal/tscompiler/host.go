// Package tscompiler wraps the underlying TypeScript compiler collaborator
// (config parsing, program creation, diagnostics, emit — all explicitly
// out of scope for this core) via the vendored compiler shims, the same
// way tsgonest's internal/compiler package wrapped a single program.
// This package generalizes that wrapper to "one program per project in a
// graph" instead of "the one project being built".
package tscompiler

import (
	"github.com/microsoft/typescript-go/shim/bundled"
	shimcompiler "github.com/microsoft/typescript-go/shim/compiler"
	"github.com/microsoft/typescript-go/shim/vfs"

	"github.com/tsb-dev/tsb/internal/hostfs"
)

// CompilerHost adapts our own hostfs.Host into the shim's CompilerHost,
// mirroring tsgonest's CreateDefaultHost.
func CompilerHost(cwd string, fs vfs.FS) shimcompiler.CompilerHost {
	return shimcompiler.NewCompilerHost(cwd, fs, bundled.LibPath(), nil, nil)
}

// FS returns a vfs.FS view over a hostfs.Host suitable for CompilerHost.
func FS(h hostfs.Host) vfs.FS {
	return h
}
