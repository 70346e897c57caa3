// Package reconcile keeps the last known clone set of a project, diffs every
// rescan against it, tells the developer what appeared or went away, and
// remembers the latest new clone so a notification click can open it.
//
// A Reconciler is owned by one goroutine. Scans, change handling and clicks
// must not run concurrently; the watch loop serializes them.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"stopcpd/clone"
	"stopcpd/editor"
	"stopcpd/logging"
	"stopcpd/notify"

	"github.com/charmbracelet/log"
)

// DiffMode selects how a rescan is compared with the baseline.
type DiffMode string

const (
	// CountOnly compares clone counts first: an equal count is a no-op, a
	// lower one reports the first removed clone, a higher one reports every
	// clone with a new key. A one-in/one-out swap goes unnoticed.
	CountOnly DiffMode = "count"
	// Identity diffs the key sets on every scan.
	Identity DiffMode = "identity"
)

// Detector returns the clones currently present in the project.
type Detector interface {
	Detect(ctx context.Context) ([]clone.Clone, error)
}

// Options tune a Reconciler. Zero values select CountOnly, the default
// editor scheme and the "reconcile" logger.
type Options struct {
	DiffMode     DiffMode
	EditorScheme string
	Logger       *log.Logger
}

// Kind classifies the result of a scan.
type Kind string

const (
	Initialized Kind = "initialized"
	Unchanged   Kind = "unchanged"
	Added       Kind = "added"
	Removed     Kind = "removed"
	Changed     Kind = "changed" // identity mode: clones both added and removed
)

// Outcome describes what one Initialize or HandleChange call did.
type Outcome struct {
	Kind    Kind
	Path    string
	Added   []clone.Clone
	Removed []clone.Clone
	// Count is the baseline size after the call.
	Count int
}

// Reconciler holds the baseline and the click-to-open slot.
type Reconciler struct {
	detector Detector
	notifier notify.Notifier
	opener   editor.Opener
	mode     DiffMode
	scheme   string
	logger   *log.Logger

	baseline []clone.Clone
	click    ClickState
}

// New returns a reconciler with an empty baseline and an idle click slot.
func New(d Detector, n notify.Notifier, o editor.Opener, opts Options) (*Reconciler, error) {
	if d == nil || n == nil || o == nil {
		return nil, errors.New("reconcile: detector, notifier and opener are required")
	}
	r := &Reconciler{
		detector: d,
		notifier: n,
		opener:   o,
		mode:     opts.DiffMode,
		scheme:   opts.EditorScheme,
		logger:   opts.Logger,
	}
	switch r.mode {
	case "":
		r.mode = CountOnly
	case CountOnly, Identity:
	default:
		return nil, fmt.Errorf("reconcile: unknown diff mode %q", opts.DiffMode)
	}
	if r.scheme == "" {
		r.scheme = editor.DefaultScheme
	}
	if r.logger == nil {
		r.logger = logging.New("reconcile")
	}
	return r, nil
}

// Baseline returns a copy of the current clone set.
func (r *Reconciler) Baseline() []clone.Clone {
	return append([]clone.Clone(nil), r.baseline...)
}

// Armed reports whether a click would open an editor.
func (r *Reconciler) Armed() bool {
	return r.click.Armed()
}

// Initialize runs the first scan, stores it as the baseline and reports how
// many clones the project already has.
func (r *Reconciler) Initialize(ctx context.Context) (Outcome, error) {
	clones, err := r.detector.Detect(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("initial scan: %w", err)
	}
	r.baseline = clones
	r.send(ctx, initializedMessage(len(clones)))
	r.logger.Info("initialized", "clones", len(clones))
	return Outcome{Kind: Initialized, Count: len(clones)}, nil
}

// HandleChange rescans after path changed and reports the difference from
// the baseline. On detector failure the baseline is left untouched.
func (r *Reconciler) HandleChange(ctx context.Context, path string) (Outcome, error) {
	next, err := r.detector.Detect(ctx)
	if err != nil {
		return Outcome{Path: path, Count: len(r.baseline)}, fmt.Errorf("rescan after %s: %w", path, err)
	}

	var out Outcome
	if r.mode == Identity {
		out = r.diffIdentity(ctx, path, next)
	} else {
		out = r.diffCount(ctx, path, next)
	}
	out.Path = path
	out.Count = len(r.baseline)

	r.logger.Debug("rescanned", "path", path, "kind", out.Kind, "clones", out.Count)
	return out, nil
}

func (r *Reconciler) diffCount(ctx context.Context, path string, next []clone.Clone) Outcome {
	prev := r.baseline
	switch {
	case len(next) == len(prev):
		return Outcome{Kind: Unchanged}

	case len(next) < len(prev):
		gone, ok := clone.FirstRemoved(prev, next)
		if !ok {
			return Outcome{Kind: Unchanged}
		}
		r.send(ctx, deletedMessage(gone))
		r.baseline = next
		return Outcome{Kind: Removed, Removed: []clone.Clone{gone}}

	default:
		added := clone.Added(prev, next)
		if len(added) == 0 {
			return Outcome{Kind: Unchanged}
		}
		for _, c := range added {
			r.detected(ctx, c, path)
		}
		r.baseline = next
		return Outcome{Kind: Added, Added: added}
	}
}

func (r *Reconciler) diffIdentity(ctx context.Context, path string, next []clone.Clone) Outcome {
	removed := clone.Removed(r.baseline, next)
	added := clone.Added(r.baseline, next)

	for _, c := range removed {
		r.send(ctx, deletedMessage(c))
	}
	for _, c := range added {
		r.detected(ctx, c, path)
	}
	r.baseline = next

	out := Outcome{Kind: Unchanged, Added: added, Removed: removed}
	switch {
	case len(added) > 0 && len(removed) > 0:
		out.Kind = Changed
	case len(added) > 0:
		out.Kind = Added
	case len(removed) > 0:
		out.Kind = Removed
	}
	return out
}

func (r *Reconciler) detected(ctx context.Context, c clone.Clone, trigger string) {
	r.send(ctx, detectedMessage(c))
	r.click.Arm(Target{A: c.DuplicationA, B: c.DuplicationB, Trigger: trigger})
}

// Click opens the armed target in the editor and returns the URI it opened.
// Without an armed target it does nothing and returns "". The slot is
// cleared even when opening fails.
func (r *Reconciler) Click() (string, error) {
	t, ok := r.click.Consume()
	if !ok {
		return "", nil
	}
	frag, choice := ChooseTarget(t)
	uri, err := editor.URI(r.scheme, frag.SourceID, frag.Start.Line)
	if err != nil {
		return "", err
	}
	r.logger.Debug("opening editor", "uri", uri, "choice", choice)
	if err := r.opener.Open(uri); err != nil {
		return uri, err
	}
	return uri, nil
}

func (r *Reconciler) send(ctx context.Context, n notify.Notification) {
	if err := r.notifier.Notify(ctx, n); err != nil {
		r.logger.Warn("notification failed", "title", n.Title, "err", err)
	}
}
