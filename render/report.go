package render

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"stopcpd/clone"
)

// ReportOptions control Clones output.
type ReportOptions struct {
	Width int // 0 disables truncation
	Color bool
}

// Clones writes a numbered listing of clones, with paths shown relative to
// root when they lie inside it.
//
//	stopcpd: 1 duplicated code in /p
//	  1. src/foo.ts:10~20
//	     src/bar.ts:20~30  11 lines, 64 tokens, typescript
func Clones(w io.Writer, root string, clones []clone.Clone, opts ReportOptions) error {
	paint := func(code, s string) string {
		if !opts.Color {
			return s
		}
		return code + s + Reset
	}

	if len(clones) == 0 {
		_, err := fmt.Fprintf(w, "%s: no duplicated code in %s\n", paint(BoldGreen, "stopcpd"), root)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s: %d duplicated code in %s\n", paint(BoldRed, "stopcpd"), len(clones), root); err != nil {
		return err
	}

	numWidth := len(fmt.Sprint(len(clones)))
	indent := strings.Repeat(" ", numWidth+4)
	for i, c := range clones {
		a := fragment(root, c.DuplicationA)
		b := fragment(root, c.DuplicationB)
		if opts.Width > 0 {
			a = TruncateLeft(a, opts.Width-len(indent))
			b = TruncateLeft(b, opts.Width-len(indent))
		}

		fmt.Fprintf(w, "  %*d. %s\n", numWidth, i+1, paint(SourceColor(c.DuplicationA.SourceID), a))
		line := indent + paint(SourceColor(c.DuplicationB.SourceID), b)
		if meta := details(c); meta != "" {
			line += "  " + paint(Dim, meta)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func fragment(root string, f clone.Fragment) string {
	f.SourceID = relTo(root, f.SourceID)
	return f.String()
}

func relTo(root, path string) string {
	if root == "" || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func details(c clone.Clone) string {
	var parts []string
	if c.Lines > 0 {
		parts = append(parts, fmt.Sprintf("%d lines", c.Lines))
	}
	if c.Tokens > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens", c.Tokens))
	}
	if c.Format != "" {
		parts = append(parts, c.Format)
	}
	return strings.Join(parts, ", ")
}
