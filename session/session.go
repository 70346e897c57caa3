// Package session assembles a watch session from a Config: source matcher,
// jscpd detector, notifiers, editor opener, reconciler and watch daemon.
package session

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"stopcpd/config"
	"stopcpd/detector"
	"stopcpd/editor"
	"stopcpd/logging"
	"stopcpd/notify"
	"stopcpd/reconcile"
	"stopcpd/scanner"
	"stopcpd/watch"
)

// Session is one watched project.
type Session struct {
	Config     config.Config
	Matcher    *scanner.Matcher
	Reconciler *reconcile.Reconciler
	Daemon     *watch.Daemon
}

type options struct {
	detector reconcile.Detector
	notifier notify.Notifier
	opener   editor.Opener
}

// Option overrides one collaborator of a session.
type Option func(*options)

// WithDetector replaces the jscpd detector.
func WithDetector(d reconcile.Detector) Option {
	return func(o *options) { o.detector = d }
}

// WithNotifier replaces the log and desktop notifiers. If n also implements
// notify.Clicker its clicks drive the editor.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithOpener replaces the OS URL handler.
func WithOpener(op editor.Opener) Option {
	return func(o *options) { o.opener = op }
}

// New builds a session for cfg. Nothing is scanned until Run.
func New(cfg config.Config, opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	matcher, err := NewMatcher(cfg)
	if err != nil {
		return nil, err
	}

	if o.detector == nil {
		jscpd, err := NewDetector(cfg, matcher)
		if err != nil {
			return nil, err
		}
		logging.New("session").Debug("using detector", "command", strings.Join(jscpd.Command(), " "))
		o.detector = jscpd
	}
	if o.notifier == nil {
		o.notifier = Notifier(cfg)
	}
	if o.opener == nil {
		o.opener = editor.Browser{}
	}

	rec, err := reconcile.New(o.detector, o.notifier, o.opener, reconcile.Options{
		DiffMode:     reconcile.DiffMode(cfg.DiffMode),
		EditorScheme: cfg.Editor,
	})
	if err != nil {
		return nil, err
	}

	var clicks <-chan struct{}
	if c, ok := o.notifier.(notify.Clicker); ok {
		clicks = c.Clicks()
	}

	daemon, err := watch.NewDaemon(matcher, rec, watch.Options{
		Debounce: cfg.Debounce,
		Clicks:   clicks,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		Config:     cfg,
		Matcher:    matcher,
		Reconciler: rec,
		Daemon:     daemon,
	}, nil
}

// Run watches the project until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	return s.Daemon.Run(ctx)
}

// NewMatcher builds the source matcher for cfg.
func NewMatcher(cfg config.Config) (*scanner.Matcher, error) {
	m, err := scanner.NewMatcher(cfg.Dir, cfg.Pattern, cfg.Ignore, cfg.Gitignore)
	if err != nil {
		return nil, fmt.Errorf("build source matcher: %w", err)
	}
	return m, nil
}

// NewDetector builds the jscpd detector for cfg. matcher may be nil.
func NewDetector(cfg config.Config, matcher *scanner.Matcher) (*detector.JSCPD, error) {
	d, err := detector.New(cfg.Detector, detector.Options{
		Paths:     []string{cfg.Dir},
		Pattern:   cfg.Pattern,
		Ignore:    detectorIgnores(cfg.Ignore),
		Gitignore: cfg.Gitignore,
		MinTokens: cfg.MinTokens,
		MinLines:  cfg.MinLines,
	}, matcher)
	if err != nil {
		return nil, fmt.Errorf("set up detector: %w", err)
	}
	return d, nil
}

// detectorIgnores adds the directories the scanner never descends into, so
// jscpd does not report clones from files the watcher cannot see.
func detectorIgnores(ignores []string) []string {
	out := append([]string(nil), ignores...)
	for _, glob := range scanner.IgnoredDirGlobs() {
		if !slices.Contains(out, glob) {
			out = append(out, glob)
		}
	}
	return out
}

// Notifier returns the terminal log notifier, plus desktop notifications
// when cfg.Desktop is set.
func Notifier(cfg config.Config) notify.Multi {
	n := notify.Multi{notify.NewLog(logging.New("notify"))}
	if cfg.Desktop {
		n = append(n, notify.NewDesktop(logging.New("desktop")))
	}
	return n
}
