// Package notify delivers clone notifications to the developer.
package notify

import (
	"context"
	"errors"
)

// AppName prefixes every notification title.
const AppName = "stopcpd"

// Severity selects the glyph shown in a notification title.
type Severity int

const (
	Info Severity = iota
	Success
	Alarm
)

// Glyph returns the emoji tag for the severity.
func (s Severity) Glyph() string {
	switch s {
	case Success:
		return "✅"
	case Alarm:
		return "⛔"
	default:
		return "ℹ️"
	}
}

func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Alarm:
		return "alarm"
	default:
		return "info"
	}
}

// Notification is one message shown to the developer.
type Notification struct {
	Severity Severity
	Title    string
	Body     string
	// Clickable marks notifications whose click should open the editor.
	Clickable bool
}

// Heading returns the full title line, e.g. "[stopcpd]: ⛔ Duplicated code ...".
func (n Notification) Heading() string {
	return "[" + AppName + "]: " + n.Severity.Glyph() + " " + n.Title
}

// Notifier delivers notifications. Delivery is fire-and-forget: errors are
// for logging only.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Clicker is implemented by notifiers that can report a click on a clickable
// notification.
type Clicker interface {
	Clicks() <-chan struct{}
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Notify delivers n to every notifier and joins their errors.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clicks returns the click stream of the first member that has one, or nil.
func (m Multi) Clicks() <-chan struct{} {
	for _, notifier := range m {
		if c, ok := notifier.(Clicker); ok {
			return c.Clicks()
		}
	}
	return nil
}
