// Package watch runs the file system watcher that drives clone reconciliation.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"stopcpd/logging"
	"stopcpd/reconcile"
	"stopcpd/scanner"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a rescan.
const DefaultDebounce = 300 * time.Millisecond

// maxEvents bounds the in-memory activity log.
const maxEvents = 500

// Reconciler is the part of reconcile.Reconciler the daemon drives.
type Reconciler interface {
	Initialize(ctx context.Context) (reconcile.Outcome, error)
	HandleChange(ctx context.Context, path string) (reconcile.Outcome, error)
	Click() (string, error)
	Armed() bool
}

// Options tune a Daemon.
type Options struct {
	// Debounce coalesces bursts of changes into one rescan. Zero selects
	// DefaultDebounce.
	Debounce time.Duration
	// Clicks delivers notification clicks. Nil disables click handling.
	Clicks <-chan struct{}
	Logger *log.Logger
}

// Daemon watches a project and feeds changes of source files to a
// Reconciler. All scans, changes and clicks are handled on the goroutine
// that calls Run.
type Daemon struct {
	matcher  *scanner.Matcher
	rec      Reconciler
	watcher  *fsnotify.Watcher
	debounce time.Duration
	clicks   <-chan struct{}
	logger   *log.Logger
	started  atomic.Bool

	mu        sync.RWMutex
	events    []Event
	clones    int
	scans     int
	armed     bool
	startedAt time.Time
}

// NewDaemon creates the fsnotify watcher and registers every directory under
// the matcher's root that is not ignored.
func NewDaemon(m *scanner.Matcher, r Reconciler, opts Options) (*Daemon, error) {
	if m == nil || r == nil {
		return nil, errors.New("watch: matcher and reconciler are required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	d := &Daemon{
		matcher:  m,
		rec:      r,
		watcher:  watcher,
		debounce: opts.Debounce,
		clicks:   opts.Clicks,
		logger:   opts.Logger,
	}
	if d.debounce <= 0 {
		d.debounce = DefaultDebounce
	}
	if d.logger == nil {
		d.logger = logging.New("watch")
	}

	if err := d.addWatchDirs(m.Root()); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to add watch dirs: %w", err)
	}
	return d, nil
}

// Root returns the watched project directory.
func (d *Daemon) Root() string {
	return d.matcher.Root()
}

// Run performs the initial scan and then services file events, the debounce
// timer and clicks until ctx is cancelled. A failing initial scan and watcher
// resource exhaustion end Run with an error; failing rescans are logged and
// recorded. Run may be called once.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}
	defer d.watcher.Close()

	d.mu.Lock()
	d.startedAt = time.Now()
	d.mu.Unlock()

	out, err := d.rec.Initialize(ctx)
	if err != nil {
		return err
	}
	d.record(out, nil)
	d.logger.Info("watching", "root", d.Root(), "dirs", len(d.watcher.WatchList()), "clones", out.Count)

	var (
		pending string
		fire    <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-d.watcher.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			path, changed := d.classify(ev)
			if !changed {
				continue
			}
			d.logger.Debug("file changed", "op", ev.Op.String(), "path", d.rel(path))
			pending = path
			fire = time.After(d.debounce)

		case <-fire:
			fire = nil
			d.rescan(ctx, pending)
			pending = ""

		case _, ok := <-d.clicks:
			if !ok {
				d.clicks = nil
				continue
			}
			d.click()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			d.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// classify decides whether ev is a change that warrants a rescan and
// registers newly created directories. It returns the path to report as
// the trigger.
func (d *Daemon) classify(ev fsnotify.Event) (string, bool) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !d.matcher.WatchDir(ev.Name) {
				return "", false
			}
			if err := d.addWatchDirs(ev.Name); err != nil {
				d.logger.Warn("failed to watch new directory", "path", ev.Name, "err", err)
			}
			// Files written before the directory was registered produce no
			// events of their own.
			return d.firstSource(ev.Name)
		}
	}

	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return "", false
	}

	if d.matcher.IsGitignore(ev.Name) {
		d.matcher.ReloadGitignore(ev.Name)
		return ev.Name, true
	}
	return ev.Name, d.matcher.Match(ev.Name)
}

func (d *Daemon) rescan(ctx context.Context, path string) {
	start := time.Now()
	out, err := d.rec.HandleChange(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		d.logger.Error("rescan failed, keeping previous clones", "path", d.rel(path), "err", err)
		d.record(out, err)
		return
	}
	d.logger.Debug("rescan finished", "kind", out.Kind, "clones", out.Count, "took", time.Since(start).Round(time.Millisecond))
	d.record(out, nil)
}

func (d *Daemon) click() {
	uri, err := d.rec.Click()
	switch {
	case err != nil:
		d.logger.Warn("failed to open editor", "uri", uri, "err", err)
	case uri == "":
		d.logger.Debug("click ignored, nothing armed")
		return
	default:
		d.logger.Info("opened editor", "uri", uri)
	}

	ev := Event{Time: time.Now(), Kind: KindClick, URI: uri}
	if err != nil {
		ev.Error = err.Error()
	}
	d.mu.Lock()
	ev.Clones = d.clones
	d.armed = d.rec.Armed()
	d.appendEvent(ev)
	d.mu.Unlock()
}

func (d *Daemon) record(out reconcile.Outcome, err error) {
	ev := Event{
		Time:    time.Now(),
		Kind:    string(out.Kind),
		Path:    d.rel(out.Path),
		Lang:    scanner.DetectLanguage(out.Path),
		Clones:  out.Count,
		Added:   out.Added,
		Removed: out.Removed,
	}
	if err != nil {
		ev.Kind = KindFailed
		ev.Error = err.Error()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.clones = out.Count
	d.scans++
	d.armed = d.rec.Armed()
	d.appendEvent(ev)
}

// appendEvent must be called with d.mu held.
func (d *Daemon) appendEvent(ev Event) {
	d.events = append(d.events, ev)
	if len(d.events) > maxEvents {
		d.events = append(d.events[:0], d.events[len(d.events)-maxEvents:]...)
	}
}

// GetEvents returns up to limit of the most recent events, oldest first.
// A limit of zero or less returns all of them.
func (d *Daemon) GetEvents(limit int) []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()

	events := d.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// Status summarizes the daemon.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Status{
		Root:        d.Root(),
		StartedAt:   d.startedAt,
		Clones:      d.clones,
		Scans:       d.scans,
		WatchedDirs: len(d.watcher.WatchList()),
		Armed:       d.armed,
	}
}

// addWatchDirs recursively adds dir and its non-ignored subdirectories.
func (d *Daemon) addWatchDirs(dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.logger.Debug("skipping inaccessible path", "path", path, "err", err)
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != d.Root() && !d.matcher.WatchDir(path) {
			return filepath.SkipDir
		}
		return d.watcher.Add(path)
	})
}

// firstSource returns the first source file under dir, if any.
func (d *Daemon) firstSource(dir string) (string, bool) {
	var found string
	filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if path != dir && !d.matcher.WatchDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.matcher.Match(path) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}

func (d *Daemon) rel(path string) string {
	if path == "" {
		return ""
	}
	if rel, ok := d.matcher.Rel(path); ok {
		return rel
	}
	return path
}
