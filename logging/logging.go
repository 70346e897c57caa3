// Package logging provides component-scoped loggers that share one output
// and level. Output goes to stderr so it never mixes with report output on
// stdout.
//
//	log := logging.New("watch")
//	log.Info("scan finished", "clones", n)
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// EnvLevel names the environment variable read when no level is configured.
const EnvLevel = "STOPCPD_LOG_LEVEL"

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	level             = ParseLevel(os.Getenv(EnvLevel))
	loggers           = make(map[string]*log.Logger)
)

// New returns the logger for component, creating it on first use. Loggers
// created before SetLevel or SetOutput are updated in place.
func New(component string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[component]; ok {
		return l
	}

	prefix := "stopcpd"
	if component != "" {
		prefix += "/" + component
	}
	l := log.NewWithOptions(out, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	loggers[component] = l
	return l
}

// SetLevel changes the level of every logger.
func SetLevel(lvl log.Level) {
	mu.Lock()
	defer mu.Unlock()

	level = lvl
	for _, l := range loggers {
		l.SetLevel(lvl)
	}
}

// SetOutput redirects every logger, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	out = w
	for _, l := range loggers {
		l.SetOutput(w)
	}
}

// ParseLevel converts a level name to a log.Level. Unknown values fall back
// to info.
func ParseLevel(value string) log.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
