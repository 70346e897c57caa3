package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir, "", nil)
	require.NoError(t, err)

	want := Default()
	want.Dir = dir
	assert.Equal(t, want, cfg)
}

func TestLoadProjectFile(t *testing.T) {
	dir := t.TempDir()
	content := `
min-tokens = 40
diff-mode = "identity"
editor = "cursor"
debounce = "1s"
pattern = ["**/*.go"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName+".toml"), []byte(content), 0o644))

	cfg, err := Load(dir, "", nil)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.MinTokens)
	assert.Equal(t, DiffIdentity, cfg.DiffMode)
	assert.Equal(t, "cursor", cfg.Editor)
	assert.Equal(t, time.Second, cfg.Debounce)
	assert.Equal(t, []string{"**/*.go"}, cfg.Pattern)
	assert.Equal(t, 3, cfg.MinLines, "unset keys keep defaults")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName+".yaml"), []byte("min-lines: 5\n"), 0o644))
	t.Setenv("STOPCPD_MIN_LINES", "7")

	cfg, err := Load(dir, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MinLines)
}

func TestLoadFlagsWin(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STOPCPD_EDITOR", "vscodium")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--editor", "cursor", "--desktop=false"}))

	cfg, err := Load(dir, "", fs)
	require.NoError(t, err)
	assert.Equal(t, "cursor", cfg.Editor)
	assert.False(t, cfg.Desktop)
	assert.Equal(t, 25, cfg.MinTokens)
}

func TestLoadBraceGlobFlag(t *testing.T) {
	dir := t.TempDir()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--pattern", "**/src/**/*.{js,ts}",
		"--pattern", "**/lib/**/*.go",
		"--ignore", "**/{dist,out}/**",
	}))

	cfg, err := Load(dir, "", fs)
	require.NoError(t, err)
	assert.Equal(t, []string{"**/src/**/*.{js,ts}", "**/lib/**/*.go"}, cfg.Pattern)
	assert.Equal(t, []string{"**/{dist,out}/**"}, cfg.Ignore)
}

func TestLoadBraceGlobEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STOPCPD_PATTERN", "**/lib/**/*.{js,ts}")
	t.Setenv("STOPCPD_IGNORE", "**/vendor/**, **/{dist,out}/**")

	cfg, err := Load(dir, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"**/lib/**/*.{js,ts}"}, cfg.Pattern)
	assert.Equal(t, []string{"**/vendor/**", "**/{dist,out}/**"}, cfg.Ignore)
}

func TestSplitGlobs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"**/*.go", []string{"**/*.go"}},
		{"a/**,b/**", []string{"a/**", "b/**"}},
		{"**/*.{js,jsx,ts,tsx}", []string{"**/*.{js,jsx,ts,tsx}"}},
		{"{a,{b,c}}/*.js, x/*", []string{"{a,{b,c}}/*.js", "x/*"}},
		{" , a ,", []string{"a"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitGlobs(tt.in), tt.in)
	}
}

func TestLoadExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"min-tokens": 60}`), 0o644))

	cfg, err := Load(dir, path, nil)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.MinTokens)

	_, err = Load(dir, filepath.Join(dir, "missing.toml"), nil)
	assert.Error(t, err)
}

func TestLoadRejectsNonDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := Load(file, "", nil)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(filepath.Join(t.TempDir(), "nope"), "", nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tokens", func(c *Config) { c.MinTokens = 0 }},
		{"negative lines", func(c *Config) { c.MinLines = -1 }},
		{"zero debounce", func(c *Config) { c.Debounce = 0 }},
		{"unknown diff mode", func(c *Config) { c.DiffMode = "content" }},
		{"empty editor", func(c *Config) { c.Editor = " " }},
		{"empty detector", func(c *Config) { c.Detector = "" }},
		{"bad pattern", func(c *Config) { c.Pattern = []string{"src/[a"} }},
		{"bad ignore", func(c *Config) { c.Ignore = []string{"{x"} }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
