package scanner

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoredDirs are directory names that are never descended into.
var IgnoredDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"node_modules":  true,
	"vendor":        true,
	"__pycache__":   true,
	".venv":         true,
	"venv":          true,
	".pytest_cache": true,
	"dist":          true,
	"build":         true,
	"coverage":      true,
	".next":         true,
	".nuxt":         true,
	".turbo":        true,
	"target":        true,
	".gradle":       true,
	".idea":         true,
	".vscode":       true,
	".DS_Store":     true,
}

// IgnoredDirGlobs returns IgnoredDirs as doublestar globs, "**/<name>/**",
// sorted by name. Tools that walk the tree themselves use them to skip the
// same directories.
func IgnoredDirGlobs() []string {
	globs := make([]string, 0, len(IgnoredDirs))
	for _, name := range slices.Sorted(maps.Keys(IgnoredDirs)) {
		globs = append(globs, "**/"+name+"/**")
	}
	return globs
}

// languages maps file extensions to the format names the detector reports.
var languages = map[string]string{
	".js":     "javascript",
	".jsx":    "jsx",
	".mjs":    "javascript",
	".cjs":    "javascript",
	".ts":     "typescript",
	".tsx":    "tsx",
	".vue":    "markup",
	".svelte": "markup",
	".go":     "go",
	".py":     "python",
	".rb":     "ruby",
	".rs":     "rust",
	".java":   "java",
	".kt":     "kotlin",
	".swift":  "swift",
	".c":      "c",
	".h":      "c",
	".cpp":    "cpp",
	".hpp":    "cpp",
	".cs":     "csharp",
	".php":    "php",
	".css":    "css",
	".scss":   "scss",
}

// LoadGitignore compiles dir/.gitignore, or returns nil if there is none.
func LoadGitignore(dir string) *ignore.GitIgnore {
	gitignorePath := filepath.Join(dir, ".gitignore")

	if _, err := os.Stat(gitignorePath); err == nil {
		if gitignore, err := ignore.CompileIgnoreFile(gitignorePath); err == nil {
			return gitignore
		}
	}

	return nil
}

// DetectLanguage returns the language name for a path, or "" when unknown.
func DetectLanguage(path string) string {
	return languages[strings.ToLower(filepath.Ext(path))]
}

// ScanFiles walks root and returns every file not excluded by IgnoredDirs or
// the (optional) gitignore cache. Paths are relative to root.
func ScanFiles(root string, cache *GitIgnoreCache) ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if IgnoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			if cache != nil && cache.ShouldIgnore(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if IgnoredDirs[d.Name()] {
			return nil
		}
		if cache != nil && cache.ShouldIgnore(relPath, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		files = append(files, FileInfo{
			Path: relPath,
			Size: info.Size(),
			Lang: DetectLanguage(path),
		})
		return nil
	})

	return files, err
}
