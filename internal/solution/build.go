package solution

import (
	"context"
	"fmt"
	"strings"

	"github.com/microsoft/typescript-go/shim/ast"

	"github.com/tsb-dev/tsb/internal/projectid"
	"github.com/tsb-dev/tsb/internal/status"
	"github.com/tsb-dev/tsb/internal/tscompiler"
)

// buildSingleProject runs one project through the full build protocol:
// each step below early-returns on failure, setting the project's
// memoized status to Unbuildable with a textual reason, so the driver can
// continue to the next project in the queue rather than aborting the
// whole build.
func (b *Builder) buildSingleProject(ctx context.Context, id projectid.ID) ResultFlags {
	if b.opts.Dry {
		fmt.Fprintf(b.stderr, "Project %s would be built\n", id)
		return Success
	}

	if b.opts.Verbose {
		b.logStatus(id, "Building project %s...", id)
	}

	entry := b.cache.Get(id)
	if !entry.Ok() {
		reason := fmt.Sprintf("%s failed to parse", id)
		if len(entry.Diagnostics) > 0 {
			reason = entry.Diagnostics[0].String()
		}
		for _, d := range entry.Diagnostics {
			fmt.Fprintln(b.stderr, d.String())
		}
		b.errorCounts[id] += len(entry.Diagnostics)
		b.seedUnbuildable(id, reason)
		return ConfigFileErrors
	}
	project := entry.Project

	// Empty input list: a solution-only (container) config file — nothing
	// to build, no flags, no status change.
	if len(project.FileNames) == 0 {
		return 0
	}

	compilerHost := tscompiler.CompilerHost(b.host.GetCurrentDirectory(), b.fs)
	program, progDiags, err := tscompiler.CreateProgram(b.opts.SingleThreaded, project, compilerHost)
	if program == nil {
		for _, d := range progDiags {
			fmt.Fprintln(b.stderr, d.String())
		}
		b.errorCounts[id] += len(progDiags)
		reason := fmt.Sprintf("%s failed to create a program", id)
		if err != nil {
			reason = err.Error()
		}
		b.seedUnbuildable(id, reason)
		return ConfigFileErrors
	}

	// Step 4: config-parsing + options + syntactic diagnostics.
	stage4 := append([]*ast.Diagnostic{}, project.ConfigFileParsingDiagnostics...)
	stage4 = append(stage4, tscompiler.OptionsDiagnostics(ctx, program)...)
	stage4 = append(stage4, tscompiler.SyntacticDiagnostics(ctx, program)...)
	if len(stage4) > 0 {
		b.reportAll(id, stage4)
		b.seedUnbuildable(id, fmt.Sprintf("%s has syntax errors", id))
		return SyntaxErrors
	}

	// Step 5: declaration diagnostics, only when the project emits them.
	if project.Options.EmitDeclarations {
		declDiags := tscompiler.DeclarationDiagnostics(ctx, program)
		if len(declDiags) > 0 {
			b.reportAll(id, declDiags)
			b.seedUnbuildable(id, fmt.Sprintf("%s has declaration emit errors", id))
			return DeclarationEmitErrors
		}
	}

	// Step 6: semantic diagnostics.
	semDiags := tscompiler.SemanticDiagnostics(ctx, program)
	if len(semDiags) > 0 {
		b.reportAll(id, semDiags)
		b.seedUnbuildable(id, fmt.Sprintf("%s has type errors", id))
		return TypeErrors
	}

	// Step 7: emit, tracking declaration-output stability as we go.
	anyDeclChanged := false
	maxUnchanged := status.MissingFileModifiedTime

	writeFile := func(fileName string, text string, writeByteOrderMark bool) error {
		if isDeclarationOutput(fileName) {
			if existing, ok := b.host.ReadFile(fileName); ok && existing == text {
				if info := b.host.Stat(fileName); info != nil {
					mt := info.ModTime()
					b.unchangedOutputs[fileName] = mt
					if mt.After(maxUnchanged) {
						maxUnchanged = mt
					}
				}
			} else {
				anyDeclChanged = true
				delete(b.unchangedOutputs, fileName)
			}
		}
		return b.host.WriteFile(fileName, text, writeByteOrderMark)
	}

	emitResult := tscompiler.Emit(ctx, program, tscompiler.EmitOptions{WriteFile: writeFile})
	if len(emitResult.Diagnostics) > 0 {
		b.reportAll(id, emitResult.Diagnostics)
		b.seedUnbuildable(id, fmt.Sprintf("%s has emit errors", id))
		return DeclarationEmitErrors
	}

	// Step 8: on success, record the newest declaration-content-change
	// time. Using MaximumDate when any .d.ts actually changed forces
	// downstream projects to a full rebuild rather than a pseudo-build.
	declTime := maxUnchanged
	if anyDeclChanged {
		declTime = status.MaximumDate
	}
	b.memoizeUpToDate(id, declTime)

	flags := Success
	if !anyDeclChanged {
		flags |= DeclarationOutputUnchanged
	}
	return flags
}

// reportAll writes each diagnostic through the compiler reporter, retains
// it for the end-of-build summary, and charges its errors to the owning
// project's watch-mode error count.
func (b *Builder) reportAll(id projectid.ID, diags []*ast.Diagnostic) {
	for _, d := range diags {
		b.diagReporter(d)
	}
	b.allDiags = append(b.allDiags, diags...)
	b.errorCounts[id] += tscompiler.CountErrors(diags)
}

func (b *Builder) seedUnbuildable(id projectid.ID, reason string) {
	b.classifier.Seed(id, status.Status{Kind: status.Unbuildable, Reason: reason})
}

// isDeclarationOutput recognizes a ".d.ts" emit target, excluding its own
// ".d.ts.map" sibling.
func isDeclarationOutput(fileName string) bool {
	return strings.HasSuffix(fileName, ".d.ts") && !strings.HasSuffix(fileName, ".map")
}
