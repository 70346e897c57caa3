package scanner

import (
	"path/filepath"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
)

// GitIgnoreCache lazily compiles the .gitignore of every directory under root
// so nested rules (including child "!" overrides) apply the way git applies them.
type GitIgnoreCache struct {
	root  string
	mu    sync.RWMutex
	byDir map[string]*ignore.GitIgnore // rel dir ("" = root) -> compiled rules, nil if none
}

// NewGitIgnoreCache creates a cache rooted at root.
func NewGitIgnoreCache(root string) *GitIgnoreCache {
	return &GitIgnoreCache{
		root:  root,
		byDir: make(map[string]*ignore.GitIgnore),
	}
}

// ShouldIgnore reports whether relPath (relative to root) is ignored. Rules
// are evaluated from the root down; the deepest matching rule wins.
func (c *GitIgnoreCache) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(filepath.Clean(relPath))
	if relPath == "." || relPath == "" {
		return false
	}

	ignored := false
	for _, dir := range ancestorDirs(relPath) {
		gi := c.load(dir)
		if gi == nil {
			continue
		}

		sub := relPath
		if dir != "" {
			sub = strings.TrimPrefix(relPath, dir+"/")
		}

		if _, how := gi.MatchesPathHow(sub); how != nil {
			ignored = !how.Negate
		} else if isDir {
			if _, how := gi.MatchesPathHow(sub + "/"); how != nil {
				ignored = !how.Negate
			}
		}
	}
	return ignored
}

// Invalidate drops the cached rules for the directory holding a .gitignore
// that changed on disk.
func (c *GitIgnoreCache) Invalidate(relDir string) {
	relDir = filepath.ToSlash(filepath.Clean(relDir))
	if relDir == "." {
		relDir = ""
	}
	c.mu.Lock()
	delete(c.byDir, relDir)
	c.mu.Unlock()
}

func (c *GitIgnoreCache) load(relDir string) *ignore.GitIgnore {
	c.mu.RLock()
	gi, ok := c.byDir[relDir]
	c.mu.RUnlock()
	if ok {
		return gi
	}

	gi = LoadGitignore(filepath.Join(c.root, filepath.FromSlash(relDir)))

	c.mu.Lock()
	c.byDir[relDir] = gi
	c.mu.Unlock()
	return gi
}

// ancestorDirs returns "", "a", "a/b" for "a/b/c.go".
func ancestorDirs(relPath string) []string {
	dirs := []string{""}
	parts := strings.Split(relPath, "/")
	for i := 1; i < len(parts); i++ {
		dirs = append(dirs, strings.Join(parts[:i], "/"))
	}
	return dirs
}
