package scanner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides which files under a root are detector sources: files that
// match one of the glob patterns and are not excluded by IgnoredDirs, the glob
// ignore list, or .gitignore.
type Matcher struct {
	root      string
	patterns  []string
	ignores   []string
	gitignore *GitIgnoreCache
}

// NewMatcher validates the doublestar patterns and builds a Matcher for root.
// An empty pattern list matches every file.
func NewMatcher(root string, patterns, ignores []string, useGitignore bool) (*Matcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve root: %w", err)
	}
	if err := validatePatterns(patterns, "source"); err != nil {
		return nil, err
	}
	if err := validatePatterns(ignores, "ignore"); err != nil {
		return nil, err
	}

	m := &Matcher{
		root:     absRoot,
		patterns: patterns,
		ignores:  ignores,
	}
	if useGitignore {
		m.gitignore = NewGitIgnoreCache(absRoot)
	}
	return m, nil
}

// Root returns the absolute root directory.
func (m *Matcher) Root() string {
	return m.root
}

// Rel converts path to a slash-separated path relative to root. The boolean
// is false when path lies outside root.
func (m *Matcher) Rel(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.root, path)
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Ignored reports whether a root-relative path is excluded. Every ancestor
// directory is checked too, so files inside ignored trees are excluded even
// when the tree was never walked.
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return false
	}

	parts := strings.Split(rel, "/")
	for i, name := range parts {
		last := i == len(parts)-1
		if (!last || isDir) && IgnoredDirs[name] {
			return true
		}
	}

	if m.globIgnored(rel) || (isDir && m.globIgnored(rel+"/")) {
		return true
	}

	if m.gitignore != nil {
		for _, dir := range ancestorDirs(rel)[1:] {
			if m.gitignore.ShouldIgnore(dir, true) {
				return true
			}
		}
		if m.gitignore.ShouldIgnore(rel, isDir) {
			return true
		}
	}
	return false
}

// Match reports whether the file at path is a detector source.
func (m *Matcher) Match(path string) bool {
	rel, ok := m.Rel(path)
	if !ok || m.Ignored(rel, false) {
		return false
	}
	if len(m.patterns) == 0 {
		return true
	}
	for _, pat := range m.patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// WatchDir reports whether a directory should be registered with the watcher.
func (m *Matcher) WatchDir(path string) bool {
	rel, ok := m.Rel(path)
	if !ok {
		return false
	}
	return !m.Ignored(rel, true)
}

// IsGitignore reports whether path is a .gitignore file, whose rules must be
// reloaded after it changes.
func (m *Matcher) IsGitignore(path string) bool {
	return filepath.Base(path) == ".gitignore"
}

// ReloadGitignore drops cached rules for the directory holding the changed
// .gitignore at path.
func (m *Matcher) ReloadGitignore(path string) {
	if m.gitignore == nil {
		return
	}
	rel, ok := m.Rel(filepath.Dir(path))
	if !ok {
		return
	}
	m.gitignore.Invalidate(rel)
}

// Sources walks the root and returns every file Match accepts.
func (m *Matcher) Sources() ([]FileInfo, error) {
	files, err := ScanFiles(m.root, m.gitignore)
	if err != nil {
		return nil, fmt.Errorf("scanner: walk %s: %w", m.root, err)
	}

	sources := files[:0]
	for _, f := range files {
		if m.Match(f.Path) {
			sources = append(sources, f)
		}
	}
	return sources, nil
}

func (m *Matcher) globIgnored(rel string) bool {
	for _, pat := range m.ignores {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("scanner: invalid %s pattern %q", label, pat)
		}
	}
	return nil
}
