package tscompiler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/microsoft/typescript-go/shim/ast"
	shimscanner "github.com/microsoft/typescript-go/shim/scanner"
)

// Category mirrors the compiler's diagnostic category enum.
type Category int

const (
	CategoryWarning Category = iota
	CategoryError
	CategorySuggestion
	CategoryMessage
)

func (c Category) String() string {
	switch c {
	case CategoryError:
		return "error"
	case CategoryWarning:
		return "warning"
	case CategorySuggestion:
		return "suggestion"
	case CategoryMessage:
		return "message"
	default:
		return "unknown"
	}
}

const (
	ansiReset  = "[0m"
	ansiRed    = "[91m"
	ansiYellow = "[93m"
	ansiCyan   = "[96m"
	ansiGrey   = "[90m"
	ansiGutter = "[7m"
	ansiBlue   = "[94m"
)

func (c Category) color() string {
	switch c {
	case CategoryError:
		return ansiRed
	case CategoryWarning:
		return ansiYellow
	case CategorySuggestion:
		return ansiGrey
	case CategoryMessage:
		return ansiBlue
	default:
		return ""
	}
}

func categoryOf(d *ast.Diagnostic) Category {
	return Category(ast.Diagnostic_Category(d))
}

// Reporter formats and writes a compiler diagnostic.
type Reporter func(d *ast.Diagnostic)

// UsePrettyOutput decides between colored, snippet-annotated diagnostics
// and the plain tsc-style one-liner, following NO_COLOR/FORCE_COLOR
// convention then falling back to an isatty check on stderr.
func UsePrettyOutput() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// NewReporter builds a diagnostic reporter. In pretty mode it writes
// colored output with a source snippet; otherwise it writes the plain
// "file(line,col): category TScode: message" form.
func NewReporter(w io.Writer, cwd string, pretty bool) Reporter {
	if pretty {
		return func(d *ast.Diagnostic) {
			writePretty(w, d, cwd)
			fmt.Fprint(w, "\n")
		}
	}
	return func(d *ast.Diagnostic) { writePlain(w, d, cwd) }
}

func writePlain(w io.Writer, d *ast.Diagnostic, cwd string) {
	if d.File() != nil {
		line, char := shimscanner.GetECMALineAndCharacterOfPosition(d.File(), d.Pos())
		fmt.Fprintf(w, "%s(%d,%d): ", relativeTo(d.File().FileName(), cwd), line+1, char+1)
	}
	fmt.Fprintf(w, "%s TS%d: %s\n", categoryOf(d).String(), d.Code(), d.String())
}

func writePretty(w io.Writer, d *ast.Diagnostic, cwd string) {
	cat := categoryOf(d)
	if d.File() != nil {
		line, char := shimscanner.GetECMALineAndCharacterOfPosition(d.File(), d.Pos())
		fmt.Fprintf(w, "%s%s%s:%s%d%s:%s%d%s - ",
			ansiCyan, relativeTo(d.File().FileName(), cwd), ansiReset,
			ansiYellow, line+1, ansiReset,
			ansiYellow, char+1, ansiReset)
	}
	fmt.Fprintf(w, "%s%s%s %sTS%d:%s %s",
		cat.color(), cat.String(), ansiReset,
		ansiGrey, d.Code(), ansiReset,
		d.String())
	if d.File() != nil && d.Len() > 0 {
		fmt.Fprint(w, "\n")
		writeSnippet(w, d.File(), d.Pos(), d.Len(), cat.color())
		fmt.Fprint(w, "\n")
	}
}

// writeSnippet renders the offending source span with gutter line numbers
// and a squiggle underline, collapsing long spans with an ellipsis row.
func writeSnippet(w io.Writer, file *ast.SourceFile, start, length int, squiggleColor string) {
	firstLine, firstChar := shimscanner.GetECMALineAndCharacterOfPosition(file, start)
	lastLine, lastChar := shimscanner.GetECMALineAndCharacterOfPosition(file, start+length)
	if length == 0 {
		lastChar++
	}

	text := file.Text()
	lastLineOfFile := shimscanner.GetECMALineOfPosition(file, len(text))
	collapse := lastLine-firstLine >= 4
	gutterWidth := len(strconv.Itoa(lastLine + 1))
	if collapse && len("...") > gutterWidth {
		gutterWidth = len("...")
	}

	for i := firstLine; i <= lastLine; i++ {
		if collapse && firstLine+1 < i && i < lastLine-1 {
			fmt.Fprintf(w, "%s%*s%s \n", ansiGutter, gutterWidth, "...", ansiReset)
			i = lastLine - 1
		}

		lineStart := shimscanner.GetECMAPositionOfLineAndCharacter(file, i, 0)
		lineEnd := len(text)
		if i < lastLineOfFile {
			lineEnd = shimscanner.GetECMAPositionOfLineAndCharacter(file, i+1, 0)
		}
		line := strings.ReplaceAll(strings.TrimRightFunc(text[lineStart:lineEnd], unicode.IsSpace), "\t", " ")

		fmt.Fprintf(w, "%s%*d%s %s\n", ansiGutter, gutterWidth, i+1, ansiReset, line)
		fmt.Fprintf(w, "%s%*s%s %s", ansiGutter, gutterWidth, "", ansiReset, squiggleColor)

		switch i {
		case firstLine:
			end := len(line)
			if i == lastLine {
				end = lastChar
			}
			n := end - firstChar
			if n < 1 {
				n = 1
			}
			fmt.Fprint(w, strings.Repeat(" ", firstChar)+strings.Repeat("~", n))
		case lastLine:
			if lastChar > 0 {
				fmt.Fprint(w, strings.Repeat("~", lastChar))
			}
		default:
			fmt.Fprint(w, strings.Repeat("~", len(line)))
		}
		fmt.Fprint(w, ansiReset)
	}
}

// WriteSummary writes the "Found N errors[ in M files]" line, matching
// tsc's singular/plural/multi-file phrasing.
func WriteSummary(w io.Writer, diags []*ast.Diagnostic, cwd string) {
	var count int
	var firstFile *ast.SourceFile
	var firstPos int
	perFile := map[string]int{}

	for _, d := range diags {
		if categoryOf(d) != CategoryError {
			continue
		}
		count++
		if count == 1 && d.File() != nil {
			firstFile, firstPos = d.File(), d.Pos()
		}
		if d.File() != nil {
			perFile[d.File().FileName()]++
		}
	}
	if count == 0 {
		return
	}

	fmt.Fprint(w, "\n")
	switch {
	case count == 1 && firstFile != nil:
		line := shimscanner.GetECMALineOfPosition(firstFile, firstPos)
		fmt.Fprintf(w, "Found 1 error in %s%s:%d%s\n", relativeTo(firstFile.FileName(), cwd), ansiGrey, line+1, ansiReset)
	case count == 1:
		fmt.Fprintln(w, "Found 1 error.")
	case len(perFile) <= 1 && firstFile != nil:
		line := shimscanner.GetECMALineOfPosition(firstFile, firstPos)
		fmt.Fprintf(w, "Found %d errors in the same file, starting at: %s%s:%d%s\n", count, relativeTo(firstFile.FileName(), cwd), ansiGrey, line+1, ansiReset)
	case len(perFile) <= 1:
		fmt.Fprintf(w, "Found %d errors.\n", count)
	default:
		fmt.Fprintf(w, "Found %d errors in %d files.\n", count, len(perFile))
	}
	fmt.Fprint(w, "\n")
}

// CountErrors returns the number of CategoryError diagnostics.
func CountErrors(diags []*ast.Diagnostic) int {
	n := 0
	for _, d := range diags {
		if categoryOf(d) == CategoryError {
			n++
		}
	}
	return n
}

func relativeTo(absPath, cwd string) string {
	if cwd == "" {
		return absPath
	}
	rel, err := filepath.Rel(cwd, absPath)
	if err != nil {
		return absPath
	}
	return rel
}
