package notify

import (
	"context"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/beeep"
)

// openAction is the libnotify action key printed by notify-send on click.
const openAction = "open"

// Desktop shows system notifications. Clickable notifications go through
// libnotify's notify-send, which blocks until the notification is clicked or
// dismissed; everything else (and every platform without notify-send) goes
// through beeep.
type Desktop struct {
	logger     *log.Logger
	clicks     chan struct{}
	notifySend string

	send func(title, body string) error
	run  func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewDesktop returns a desktop notifier.
func NewDesktop(logger *log.Logger) *Desktop {
	d := &Desktop{
		logger: logger,
		clicks: make(chan struct{}, 1),
		send: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
	if runtime.GOOS == "linux" {
		if path, err := exec.LookPath("notify-send"); err == nil {
			d.notifySend = path
		}
	}
	return d
}

// Notify shows n. Clickable notifications return immediately and report a
// click on Clicks later.
func (d *Desktop) Notify(ctx context.Context, n Notification) error {
	if n.Clickable && d.notifySend != "" {
		go d.waitForClick(ctx, n)
		return nil
	}
	return d.send(n.Heading(), n.Body)
}

// Clicks delivers one value per clicked notification. Clicks that arrive
// while one is still pending are dropped.
func (d *Desktop) Clicks() <-chan struct{} {
	return d.clicks
}

func (d *Desktop) waitForClick(ctx context.Context, n Notification) {
	out, err := d.run(ctx, d.notifySend,
		"--app-name="+AppName,
		"--action="+openAction+"=Open in editor",
		"--wait",
		n.Heading(), n.Body,
	)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Older libnotify has no --action; show it without the click.
		d.logger.Debug("notify-send with action failed, falling back", "err", err)
		if err := d.send(n.Heading(), n.Body); err != nil {
			d.logger.Warn("desktop notification failed", "err", err)
		}
		return
	}

	if strings.TrimSpace(string(out)) != openAction {
		return
	}
	select {
	case d.clicks <- struct{}{}:
	default:
	}
}
