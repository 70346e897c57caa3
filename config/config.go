// Package config resolves stopcpd settings from defaults, an optional project
// config file, STOPCPD_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Diff modes.
const (
	DiffCount    = "count"
	DiffIdentity = "identity"
)

// Keys shared by flags, the config file and environment variables.
const (
	KeyPattern   = "pattern"
	KeyIgnore    = "ignore"
	KeyGitignore = "gitignore"
	KeyMinTokens = "min-tokens"
	KeyMinLines  = "min-lines"
	KeyEditor    = "editor"
	KeyDebounce  = "debounce"
	KeyDiffMode  = "diff-mode"
	KeyDetector  = "detector"
	KeyDesktop   = "desktop"
	KeyLogLevel  = "log-level"
)

// EnvPrefix is the prefix of environment overrides, e.g. STOPCPD_MIN_TOKENS.
const EnvPrefix = "STOPCPD"

// FileName is the base name of the optional project config file.
const FileName = ".stopcpd"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds everything a watch session needs.
type Config struct {
	Dir       string        `mapstructure:"-"`
	Pattern   []string      `mapstructure:"pattern"`
	Ignore    []string      `mapstructure:"ignore"`
	Gitignore bool          `mapstructure:"gitignore"`
	MinTokens int           `mapstructure:"min-tokens"`
	MinLines  int           `mapstructure:"min-lines"`
	Editor    string        `mapstructure:"editor"`
	Debounce  time.Duration `mapstructure:"debounce"`
	DiffMode  string        `mapstructure:"diff-mode"`
	Detector  string        `mapstructure:"detector"`
	Desktop   bool          `mapstructure:"desktop"`
	LogLevel  string        `mapstructure:"log-level"`
}

// Default returns the settings the tool runs with when nothing is configured.
func Default() Config {
	return Config{
		Pattern:   []string{"**/src/**/*.{js,jsx,ts,tsx}"},
		Ignore:    []string{"**/node_modules/**", "**/build/**", "**/dist/**", "**/coverage/**", "**/public/**"},
		Gitignore: true,
		MinTokens: 25,
		MinLines:  3,
		Editor:    "vscode",
		Debounce:  300 * time.Millisecond,
		DiffMode:  DiffCount,
		Detector:  "jscpd",
		Desktop:   true,
		LogLevel:  "info",
	}
}

// RegisterFlags adds one flag per setting to fs, defaulted from Default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringArray(KeyPattern, d.Pattern, "glob of files scanned for duplicates (repeatable)")
	fs.StringArray(KeyIgnore, d.Ignore, "glob excluded from scanning and watching (repeatable)")
	fs.Bool(KeyGitignore, d.Gitignore, "honor .gitignore files")
	fs.Int(KeyMinTokens, d.MinTokens, "minimum tokens for a duplicate")
	fs.Int(KeyMinLines, d.MinLines, "minimum lines for a duplicate")
	fs.String(KeyEditor, d.Editor, "editor URI scheme used when a notification is clicked")
	fs.Duration(KeyDebounce, d.Debounce, "quiet period that coalesces bursts of file changes")
	fs.String(KeyDiffMode, d.DiffMode, "how scans are compared: count or identity")
	fs.String(KeyDetector, d.Detector, "jscpd command line")
	fs.Bool(KeyDesktop, d.Desktop, "show desktop notifications")
	fs.String(KeyLogLevel, d.LogLevel, "log level: debug, info, warn, error")
}

// Load resolves the configuration for the project at dir. configFile may be
// empty, in which case dir/.stopcpd.{toml,yaml,yml,json} is used if present.
// fs may be nil.
func Load(dir, configFile string, fs *pflag.FlagSet) (Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve directory %q: %w", dir, err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return Config{}, fmt.Errorf("open directory: %w", err)
	}
	if !info.IsDir() {
		return Config{}, fmt.Errorf("%w: %s is not a directory", ErrInvalid, absDir)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(absDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Dir = absDir
	cfg.Pattern = globList(v, fs, KeyPattern)
	cfg.Ignore = globList(v, fs, KeyIgnore)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges, enums and glob syntax.
func (c Config) Validate() error {
	if c.MinTokens <= 0 {
		return fmt.Errorf("%w: min-tokens must be positive, got %d", ErrInvalid, c.MinTokens)
	}
	if c.MinLines <= 0 {
		return fmt.Errorf("%w: min-lines must be positive, got %d", ErrInvalid, c.MinLines)
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("%w: debounce must be positive, got %s", ErrInvalid, c.Debounce)
	}
	if c.DiffMode != DiffCount && c.DiffMode != DiffIdentity {
		return fmt.Errorf("%w: diff-mode must be %q or %q, got %q", ErrInvalid, DiffCount, DiffIdentity, c.DiffMode)
	}
	if strings.TrimSpace(c.Editor) == "" {
		return fmt.Errorf("%w: editor scheme is empty", ErrInvalid)
	}
	if strings.TrimSpace(c.Detector) == "" {
		return fmt.Errorf("%w: detector command is empty", ErrInvalid)
	}
	for _, pat := range append(append([]string{}, c.Pattern...), c.Ignore...) {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("%w: bad glob %q", ErrInvalid, pat)
		}
	}
	return nil
}

// globList reads a list of globs. Flags are taken verbatim, one glob per
// occurrence. A plain string, from the environment or a config file, is
// split on commas outside braces so "{js,ts}" alternatives stay whole.
func globList(v *viper.Viper, fs *pflag.FlagSet, key string) []string {
	if fs != nil && fs.Changed(key) {
		if globs, err := fs.GetStringArray(key); err == nil {
			return globs
		}
	}
	if s, ok := v.Get(key).(string); ok {
		return SplitGlobs(s)
	}
	return v.GetStringSlice(key)
}

// SplitGlobs splits a comma-separated glob list, ignoring commas inside
// brace alternatives. Empty items are dropped.
func SplitGlobs(s string) []string {
	var (
		globs []string
		depth int
		start int
	)
	add := func(item string) {
		if item = strings.TrimSpace(item); item != "" {
			globs = append(globs, item)
		}
	}
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				add(s[start:i])
				start = i + 1
			}
		}
	}
	add(s[start:])
	return globs
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyPattern, d.Pattern)
	v.SetDefault(KeyIgnore, d.Ignore)
	v.SetDefault(KeyGitignore, d.Gitignore)
	v.SetDefault(KeyMinTokens, d.MinTokens)
	v.SetDefault(KeyMinLines, d.MinLines)
	v.SetDefault(KeyEditor, d.Editor)
	v.SetDefault(KeyDebounce, d.Debounce)
	v.SetDefault(KeyDiffMode, d.DiffMode)
	v.SetDefault(KeyDetector, d.Detector)
	v.SetDefault(KeyDesktop, d.Desktop)
	v.SetDefault(KeyLogLevel, d.LogLevel)
}
