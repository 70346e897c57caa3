package notify

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
)

// Log writes notifications to a terminal logger.
type Log struct {
	logger *log.Logger
}

// NewLog returns a notifier that writes through logger.
func NewLog(logger *log.Logger) *Log {
	return &Log{logger: logger}
}

// Notify logs the heading, with the body lines as structured values.
func (l *Log) Notify(_ context.Context, n Notification) error {
	lines := strings.Split(strings.TrimSpace(n.Body), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	kv := []any{"detail", strings.Join(lines, " | ")}

	switch n.Severity {
	case Alarm:
		l.logger.Warn(n.Heading(), kv...)
	default:
		l.logger.Info(n.Heading(), kv...)
	}
	return nil
}
