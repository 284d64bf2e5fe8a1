// Package status implements the up-to-date classifier: the
// nine-variant tagged status for a parsed project, computed by comparing
// input/output/upstream timestamps, with a memoized pseudo-up-to-date fast
// path.
package status

import (
	"path/filepath"
	"strings"

	"github.com/tsb-dev/tsb/internal/tscompiler"
)

// Output is one expected output file of a project.
type Output struct {
	Path             string
	IsDeclaration    bool
	IsSourceMap      bool
	IsDeclarationMap bool
}

// ExpectedOutputs computes a project's expected output set. It is a pure
// function of the parsed project — no filesystem reads — since both the
// classifier and the cleaner rely on that purity.
func ExpectedOutputs(p *tscompiler.ParsedProject) []Output {
	opts := p.Options
	if opts.OutFile != "" {
		return outFileOutputs(p)
	}

	var outputs []Output
	for _, input := range p.FileNames {
		if isDeclarationInput(input) || opts.NoEmit {
			continue
		}
		jsPath, ok := jsOutputPath(p, input)
		if !ok {
			continue
		}
		outputs = append(outputs, Output{Path: jsPath})
		if opts.SourceMap {
			outputs = append(outputs, Output{Path: jsPath + ".map", IsSourceMap: true})
		}
		if opts.EmitDeclarations && !isDataFile(input) {
			dtsPath, ok := declarationOutputPath(p, input)
			if ok {
				outputs = append(outputs, Output{Path: dtsPath, IsDeclaration: true})
				if opts.DeclarationMap {
					outputs = append(outputs, Output{Path: dtsPath + ".map", IsDeclaration: true, IsDeclarationMap: true})
				}
			}
		}
	}
	return outputs
}

func outFileOutputs(p *tscompiler.ParsedProject) []Output {
	opts := p.Options
	outputs := []Output{{Path: opts.OutFile}}
	if opts.SourceMap {
		outputs = append(outputs, Output{Path: opts.OutFile + ".map", IsSourceMap: true})
	}
	if opts.EmitDeclarations {
		base := strings.TrimSuffix(filepath.Base(opts.OutFile), filepath.Ext(opts.OutFile))
		dtsPath := filepath.Join(filepath.Dir(opts.OutFile), base+".d.ts")
		outputs = append(outputs, Output{Path: dtsPath, IsDeclaration: true})
		if opts.DeclarationMap {
			outputs = append(outputs, Output{Path: dtsPath + ".map", IsDeclaration: true, IsDeclarationMap: true})
		}
	}
	return outputs
}

// declarationOutputPath implements: R = rootDir or config dir; rel = input
// relative to R; base = declarationDir ?? outDir ?? config dir; result =
// base/rel with extension replaced by ".d.ts".
func declarationOutputPath(p *tscompiler.ParsedProject, input string) (string, bool) {
	opts := p.Options
	root := opts.RootDir
	if root == "" {
		root = p.ConfigDir
	}
	rel, err := filepath.Rel(root, input)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	base := opts.DeclarationDir
	if base == "" {
		base = opts.OutDir
	}
	if base == "" {
		base = p.ConfigDir
	}
	return replaceExt(filepath.Join(base, rel), ".d.ts"), true
}

// jsOutputPath implements the same derivation with base = outDir ?? config
// dir, and the extension-replacement rules: ".json" stays ".json"; ".tsx"
// under jsx=Preserve becomes ".jsx"; otherwise ".js".
func jsOutputPath(p *tscompiler.ParsedProject, input string) (string, bool) {
	opts := p.Options
	root := opts.RootDir
	if root == "" {
		root = p.ConfigDir
	}
	rel, err := filepath.Rel(root, input)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	base := opts.OutDir
	if base == "" {
		base = p.ConfigDir
	}
	var ext string
	switch {
	case strings.HasSuffix(input, ".json"):
		ext = ".json"
	case strings.HasSuffix(input, ".tsx") && opts.JSXPreserve:
		ext = ".jsx"
	default:
		ext = ".js"
	}
	return replaceExt(filepath.Join(base, rel), ext), true
}

func replaceExt(path, newExt string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + newExt
}

func isDeclarationInput(name string) bool {
	return strings.HasSuffix(name, ".d.ts") || strings.HasSuffix(name, ".d.tsx") || strings.HasSuffix(name, ".d.mts") || strings.HasSuffix(name, ".d.cts")
}

func isDataFile(name string) bool {
	return strings.HasSuffix(name, ".json")
}

// IsProjectOutput recognizes whether an existing file is one of a
// project's output files: the outFile/its declaration twin, or lies
// inside declarationDir/outDir, or is neither one of the project's own
// input files nor a non-declaration .ts/.tsx source. Used only by the watcher to
// decide whether a filesystem event should be treated as a source change.
func IsProjectOutput(p *tscompiler.ParsedProject, path string) bool {
	opts := p.Options
	if opts.OutFile != "" {
		base := strings.TrimSuffix(filepath.Base(opts.OutFile), filepath.Ext(opts.OutFile))
		dts := filepath.Join(filepath.Dir(opts.OutFile), base+".d.ts")
		if path == opts.OutFile || path == opts.OutFile+".map" || path == dts || path == dts+".map" {
			return true
		}
	}
	if opts.DeclarationDir != "" && under(opts.DeclarationDir, path) {
		return true
	}
	if opts.OutDir != "" && under(opts.OutDir, path) {
		return true
	}
	for _, input := range p.FileNames {
		if input == path {
			return false
		}
	}
	if strings.HasSuffix(path, ".ts") || strings.HasSuffix(path, ".tsx") {
		return isDeclarationInput(path)
	}
	return true
}

func under(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && !strings.HasPrefix(rel, "..")
}
