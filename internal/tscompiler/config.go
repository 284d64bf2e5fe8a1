package tscompiler

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/microsoft/typescript-go/shim/ast"
	shimcompiler "github.com/microsoft/typescript-go/shim/compiler"
	"github.com/microsoft/typescript-go/shim/core"
	"github.com/microsoft/typescript-go/shim/tsoptions"
	"github.com/microsoft/typescript-go/shim/tspath"
	"github.com/microsoft/typescript-go/shim/vfs"

	"github.com/tsb-dev/tsb/internal/hostfs"
)

// Options is the subset of compiler options the core reasons about,
// adapted from the shim's core.CompilerOptions so
// downstream packages never need to know the shim's tri-state/enum
// encodings.
type Options struct {
	OutFile          string
	OutDir           string
	DeclarationDir   string
	RootDir          string
	SourceMap        bool
	DeclarationMap   bool
	JSXPreserve      bool
	NoEmit           bool
	EmitDeclarations bool
}

// Reference is a project reference: another project's identifier plus the
// prepend/circular flags. Circular is not part of the
// real tsconfig.json schema the shim parses — it is this core's own
// extension for expressing an intentionally-back edge — so it is read
// directly off the config file's raw JSON rather than through the shim.
type Reference struct {
	Path     string // resolved against the referencing config's directory; a directory gets "/tsconfig.json" appended
	Prepend  bool
	Circular bool
}

// WildcardDirectory is a wildcard include pattern used only by the watcher
// to derive directories to watch for new matching files.
type WildcardDirectory struct {
	Path      string
	Recursive bool
}

// ParsedProject is the external configuration parser's output.
type ParsedProject struct {
	ConfigFileName string
	ConfigDir      string
	FileNames      []string
	Options        Options
	References     []Reference
	Wildcards      []WildcardDirectory

	// ConfigFileParsingDiagnostics holds the non-fatal diagnostics the
	// config parse itself produced (e.g. an invalid compiler option
	// value) for a project that otherwise parsed successfully. These are
	// not raised as the cache's single unrecoverable diagnostic — they
	// are reported alongside options/syntactic diagnostics at build time.
	ConfigFileParsingDiagnostics []*ast.Diagnostic

	raw *tsoptions.ParsedCommandLine
}

// Raw exposes the underlying parsed command line for program creation.
func (p *ParsedProject) Raw() *tsoptions.ParsedCommandLine { return p.raw }

// Diagnostic mirrors a single compiler diagnostic message (tsgonest's
// internal/compiler.Diagnostic).
type Diagnostic struct {
	FilePath string
	Message  string
}

func (d Diagnostic) String() string {
	if d.FilePath != "" {
		return fmt.Sprintf("%s: %s", d.FilePath, d.Message)
	}
	return d.Message
}

// ParseConfig parses a tsconfig.json file, following tsgonest's
// ParseTSConfig shape, and additionally augments the parsed project
// references with the circular flag (see Reference).
func ParseConfig(fs vfs.FS, host hostfs.Host, tsconfigPath string) (*ParsedProject, []Diagnostic, error) {
	cwd := host.GetCurrentDirectory()
	resolvedConfigPath := tspath.ResolvePath(cwd, tsconfigPath)
	if !fs.FileExists(resolvedConfigPath) {
		return nil, nil, fmt.Errorf("could not find tsconfig at %v", resolvedConfigPath)
	}

	compilerHost := CompilerHost(cwd, fs)
	configParseResult, diagnostics := tsoptions.GetParsedCommandLineOfConfigFile(resolvedConfigPath, &core.CompilerOptions{}, nil, compilerHost, nil)
	if len(diagnostics) > 0 {
		return nil, convertDiagnostics(diagnostics), nil
	}
	if configParseResult == nil {
		return nil, nil, fmt.Errorf("failed to parse %s", resolvedConfigPath)
	}

	configDir := tspath.GetDirectoryPath(resolvedConfigPath)

	rawCfg, err := readRawConfig(fs, resolvedConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", resolvedConfigPath, err)
	}

	// configParseResult.Errors are the config file's own non-fatal parsing
	// diagnostics (e.g. an invalid compiler option value): the project
	// still parsed, so these ride along on ParsedProject instead of
	// aborting the cache entry, and are reported together with options and
	// syntactic diagnostics at build time.
	project := &ParsedProject{
		ConfigFileName:               resolvedConfigPath,
		ConfigDir:                    configDir,
		FileNames:                    configParseResult.FileNames(),
		Options:                      adaptOptions(configParseResult.CompilerOptions()),
		References:                   rawCfg.references(configDir),
		Wildcards:                    rawCfg.wildcardDirectories(configDir),
		ConfigFileParsingDiagnostics: configParseResult.Errors,
		raw:                          configParseResult,
	}
	return project, nil, nil
}

// CreateProgram creates a compiler program for an already-parsed project,
// following tsgonest's CreateProgramFromConfig, generalized with
// UseSourceOfProjectReference so upstream composite projects resolve
// through their source, not just their declarations, the same way `tsc -b`
// does for an in-process multi-project build.
func CreateProgram(singleThreaded bool, project *ParsedProject, host shimcompiler.CompilerHost) (*shimcompiler.Program, []Diagnostic, error) {
	opts := shimcompiler.ProgramOptions{
		Config:                      project.raw,
		SingleThreaded:              core.TSTrue,
		Host:                        host,
		UseSourceOfProjectReference: true,
	}
	if !singleThreaded {
		opts.SingleThreaded = core.TSFalse
	}

	program := shimcompiler.NewProgram(opts)
	if program == nil {
		return nil, nil, fmt.Errorf("failed to create program for %s", project.ConfigFileName)
	}
	programDiags := program.GetProgramDiagnostics()
	if len(programDiags) > 0 {
		return nil, convertDiagnostics(programDiags), nil
	}
	program.BindSourceFiles()
	return program, nil, nil
}

func adaptOptions(co *core.CompilerOptions) Options {
	if co == nil {
		return Options{}
	}
	emitDeclarations := co.Declaration == core.TSTrue || co.Composite == core.TSTrue
	if co.NoEmit == core.TSTrue {
		emitDeclarations = false
	}
	return Options{
		OutFile:          co.OutFile,
		OutDir:           co.OutDir,
		DeclarationDir:   co.DeclarationDir,
		RootDir:          co.RootDir,
		SourceMap:        co.SourceMap == core.TSTrue,
		DeclarationMap:   co.DeclarationMap == core.TSTrue,
		JSXPreserve:      co.Jsx == core.JsxEmitPreserve,
		NoEmit:           co.NoEmit == core.TSTrue,
		EmitDeclarations: emitDeclarations,
	}
}

// rawConfig captures the subset of tsconfig.json this core reads directly
// rather than through the shim: the circular flag per reference (not part
// of the real tsconfig schema, so the shim parser has nowhere to put it),
// and the include patterns used to derive wildcard watch directories.
type rawConfig struct {
	Include []string `json:"include"`
	RawRefs []struct {
		Path     string `json:"path"`
		Prepend  bool   `json:"prepend"`
		Circular bool   `json:"circular"`
	} `json:"references"`
}

// references resolves each reference's path against the referencing
// config's own directory, the way tsconfig.json "path" entries are
// interpreted, and normalizes directory references to their tsconfig.json.
func (c rawConfig) references(configDir string) []Reference {
	refs := make([]Reference, 0, len(c.RawRefs))
	for _, r := range c.RawRefs {
		path := tspath.ResolvePath(configDir, r.Path)
		if !strings.HasSuffix(path, ".json") {
			path = filepath.Join(path, "tsconfig.json")
		}
		refs = append(refs, Reference{Path: path, Prepend: r.Prepend, Circular: r.Circular})
	}
	return refs
}

// wildcardDirectories derives wildcard watch directories from the config's
// "include" patterns, stripping glob suffixes to find the base directory
// to watch. Absent an "include" array, the config directory itself is the
// sole wildcard root, matching tsc's default of including everything under
// the project.
func (c rawConfig) wildcardDirectories(configDir string) []WildcardDirectory {
	patterns := c.Include
	if len(patterns) == 0 {
		patterns = []string{"**/*"}
	}
	seen := make(map[string]bool)
	var out []WildcardDirectory
	for _, pattern := range patterns {
		dir, recursive := globBaseDir(pattern)
		abs := filepath.Join(configDir, dir)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, WildcardDirectory{Path: abs, Recursive: recursive})
	}
	return out
}

// globBaseDir splits an include-pattern into the directory to watch and
// whether the pattern recurses into subdirectories.
func globBaseDir(pattern string) (dir string, recursive bool) {
	parts := strings.Split(filepath.ToSlash(pattern), "/")
	var base []string
	for i, p := range parts {
		if strings.ContainsAny(p, "*?") {
			recursive = p == "**" || i < len(parts)-1
			return strings.Join(base, "/"), recursive
		}
		base = append(base, p)
	}
	return strings.Join(base, "/"), false
}

var jsoncCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)

func readRawConfig(fs vfs.FS, resolvedConfigPath string) (rawConfig, error) {
	content, ok := fs.ReadFile(resolvedConfigPath)
	if !ok {
		return rawConfig{}, fmt.Errorf("could not read %s", resolvedConfigPath)
	}
	stripped := jsoncCommentPattern.ReplaceAllString(content, "")
	stripped = stripTrailingCommas(stripped)

	var cfg rawConfig
	if err := json.Unmarshal([]byte(stripped), &cfg); err != nil {
		return rawConfig{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

func stripTrailingCommas(s string) string {
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}
