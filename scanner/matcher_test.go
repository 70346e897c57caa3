package scanner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	defaultPatterns = []string{"**/src/**/*.{js,jsx,ts,tsx}"}
	defaultIgnores  = []string{"**/node_modules/**", "**/build/**", "**/dist/**", "**/coverage/**", "**/public/**"}
)

func TestMatcherMatch(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{".gitignore": "src/generated/\n"})

	m, err := NewMatcher(root, defaultPatterns, defaultIgnores, true)
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"src/a.ts", true},
		{"src/components/Button.tsx", true},
		{"packages/web/src/index.js", true},
		{"src/a.go", false},
		{"lib/a.ts", false},
		{"public/src/a.js", false},
		{"node_modules/x/src/a.js", false},
		{"src/generated/api.ts", false},
		{filepath.Join(root, "src", "b.jsx"), true},
		{filepath.Join(filepath.Dir(root), "elsewhere", "src", "a.ts"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Match(tt.path), tt.path)
	}
}

func TestMatcherEmptyPatternsMatchAll(t *testing.T) {
	m, err := NewMatcher(t.TempDir(), nil, nil, false)
	require.NoError(t, err)
	assert.True(t, m.Match("anything/at/all.txt"))
	assert.False(t, m.Match(".git/config"))
}

func TestMatcherWatchDir(t *testing.T) {
	root := t.TempDir()
	m, err := NewMatcher(root, defaultPatterns, defaultIgnores, false)
	require.NoError(t, err)

	assert.True(t, m.WatchDir(root))
	assert.True(t, m.WatchDir(filepath.Join(root, "src")))
	assert.False(t, m.WatchDir(filepath.Join(root, "node_modules")))
	assert.False(t, m.WatchDir(filepath.Join(root, "public")))
	assert.False(t, m.WatchDir(filepath.Join(root, ".git")))
}

func TestMatcherInvalidPattern(t *testing.T) {
	_, err := NewMatcher(t.TempDir(), []string{"src/[a"}, nil, false)
	assert.Error(t, err)

	_, err = NewMatcher(t.TempDir(), nil, []string{"{unclosed"}, false)
	assert.Error(t, err)
}

func TestMatcherSources(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/a.ts":              "export const a = 1",
		"src/b.js":              "module.exports = 1",
		"src/readme.md":         "# docs",
		"dist/src/bundle.js":    "bundled",
		"node_modules/src/x.js": "dep",
	})

	m, err := NewMatcher(root, defaultPatterns, defaultIgnores, true)
	require.NoError(t, err)

	sources, err := m.Sources()
	require.NoError(t, err)

	found := pathSet(sources)
	assert.Len(t, sources, 2)
	assert.True(t, found["src/a.ts"])
	assert.True(t, found["src/b.js"])
}

func TestMatcherReloadGitignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{".gitignore": "src/old.ts\n"})

	m, err := NewMatcher(root, defaultPatterns, nil, true)
	require.NoError(t, err)
	assert.False(t, m.Match("src/old.ts"))

	writeTree(t, root, map[string]string{".gitignore": "\n"})
	gitignorePath := filepath.Join(root, ".gitignore")
	require.True(t, m.IsGitignore(gitignorePath))
	m.ReloadGitignore(gitignorePath)

	assert.True(t, m.Match("src/old.ts"))
}
