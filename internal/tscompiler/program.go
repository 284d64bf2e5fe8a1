package tscompiler

import (
	"context"

	"github.com/microsoft/typescript-go/shim/ast"
	shimcompiler "github.com/microsoft/typescript-go/shim/compiler"
)

// GetSourceFiles returns a program's non-declaration source files — the
// files the per-stage diagnostic gathering iterates over.
func GetSourceFiles(program *shimcompiler.Program) []*ast.SourceFile {
	var files []*ast.SourceFile
	for _, f := range program.GetSourceFiles() {
		if !f.IsDeclarationFile {
			files = append(files, f)
		}
	}
	return files
}

// OptionsDiagnostics reports diagnostics about the compiler options
// themselves (step 4 of buildSingleProject).
func OptionsDiagnostics(ctx context.Context, program *shimcompiler.Program) []*ast.Diagnostic {
	return program.GetOptionsDiagnostics(ctx)
}

// SyntacticDiagnostics reports per-file syntax diagnostics (step 4).
func SyntacticDiagnostics(ctx context.Context, program *shimcompiler.Program) []*ast.Diagnostic {
	var diags []*ast.Diagnostic
	for _, f := range GetSourceFiles(program) {
		diags = append(diags, program.GetSyntacticDiagnostics(ctx, f)...)
	}
	return diags
}

// DeclarationDiagnostics reports per-file declaration-emit diagnostics
// (step 5, only invoked when the project emits declarations).
func DeclarationDiagnostics(ctx context.Context, program *shimcompiler.Program) []*ast.Diagnostic {
	var diags []*ast.Diagnostic
	for _, f := range GetSourceFiles(program) {
		diags = append(diags, program.GetDeclarationDiagnostics(ctx, f)...)
	}
	return diags
}

// SemanticDiagnostics reports per-file type-checking diagnostics (step 6).
func SemanticDiagnostics(ctx context.Context, program *shimcompiler.Program) []*ast.Diagnostic {
	var diags []*ast.Diagnostic
	for _, f := range GetSourceFiles(program) {
		diags = append(diags, program.GetSemanticDiagnostics(ctx, f)...)
	}
	return diags
}

// EmitResult mirrors the outcome of a program emit: the files written and
// any emit diagnostics.
type EmitResult struct {
	EmittedFiles []string
	Diagnostics  []*ast.Diagnostic
}

// EmitOptions configures Emit. WriteFile, when set, overrides the default
// filesystem write — the driver uses this to intercept declaration bytes
// for the unchanged-outputs comparison.
type EmitOptions struct {
	WriteFile func(fileName string, text string, writeByteOrderMark bool) error
}

// Emit writes a program's compiled output, following tsgonest's
// EmitProgram but threading through a caller-supplied WriteFile so the
// driver can compare declaration bytes before committing them to disk.
func Emit(ctx context.Context, program *shimcompiler.Program, opts EmitOptions) EmitResult {
	emitOpts := shimcompiler.EmitOptions{}
	if opts.WriteFile != nil {
		emitOpts.WriteFile = opts.WriteFile
	}
	result := program.Emit(ctx, emitOpts)
	return EmitResult{EmittedFiles: result.EmittedFiles, Diagnostics: result.Diagnostics}
}

func convertDiagnostics(tsdiags []*ast.Diagnostic) []Diagnostic {
	diags := make([]Diagnostic, len(tsdiags))
	for i, d := range tsdiags {
		var filePath string
		if d.File() != nil {
			filePath = d.File().FileName()
		}
		diags[i] = Diagnostic{FilePath: filePath, Message: d.String()}
	}
	return diags
}
