package render

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// ANSI color codes
const (
	Reset     = "\033[0m"
	Bold      = "\033[1m"
	Dim       = "\033[2m"
	White     = "\033[37m"
	Cyan      = "\033[36m"
	Yellow    = "\033[33m"
	Magenta   = "\033[35m"
	Green     = "\033[32m"
	Red       = "\033[31m"
	Blue      = "\033[34m"
	BoldRed   = "\033[1;31m"
	BoldGreen = "\033[1;32m"
)

// SourceColor returns the ANSI color for a source file, by extension.
func SourceColor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".tsx", ".mts", ".cts":
		return Blue
	case ".js", ".jsx", ".mjs", ".cjs":
		return Yellow
	case ".vue", ".svelte", ".html", ".css", ".scss", ".less":
		return Magenta
	case ".go":
		return Cyan
	case ".py", ".rb", ".php":
		return Green
	case ".java", ".kt", ".swift", ".rs", ".c", ".cpp", ".h", ".cs":
		return Red
	default:
		return White
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// GetTerminalWidth returns terminal width or default
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// TruncateLeft shortens s to width runes by dropping its start, so the file
// name at the end of a path stays visible.
func TruncateLeft(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return "…" + string(r[len(r)-width+1:])
}
