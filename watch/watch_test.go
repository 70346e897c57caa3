package watch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stopcpd/clone"
	"stopcpd/reconcile"
	"stopcpd/scanner"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// fakeReconciler records calls made by the daemon.
type fakeReconciler struct {
	mu        sync.Mutex
	initErr   error
	changeErr error
	changes   []string
	clicks    int
	armed     bool
}

func (f *fakeReconciler) Initialize(context.Context) (reconcile.Outcome, error) {
	if f.initErr != nil {
		return reconcile.Outcome{}, f.initErr
	}
	return reconcile.Outcome{Kind: reconcile.Initialized, Count: 1}, nil
}

func (f *fakeReconciler) HandleChange(_ context.Context, path string) (reconcile.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, path)
	if f.changeErr != nil {
		return reconcile.Outcome{Path: path, Count: 1}, f.changeErr
	}
	f.armed = true
	added := []clone.Clone{{
		DuplicationA: clone.Fragment{SourceID: path, Start: clone.Position{Line: 1}, End: clone.Position{Line: 5}},
		DuplicationB: clone.Fragment{SourceID: path, Start: clone.Position{Line: 10}, End: clone.Position{Line: 14}},
	}}
	return reconcile.Outcome{Kind: reconcile.Added, Path: path, Added: added, Count: 2}, nil
}

func (f *fakeReconciler) Click() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks++
	if !f.armed {
		return "", nil
	}
	f.armed = false
	return "vscode://file/p/a.ts:1", nil
}

func (f *fakeReconciler) Armed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armed
}

func (f *fakeReconciler) changeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.changes)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func newTestDaemon(t *testing.T, rec *fakeReconciler, opts Options) (*Daemon, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.ts"), "export const a = 1\n")
	writeFile(t, filepath.Join(root, "node_modules", "lib", "src", "x.ts"), "export {}\n")
	writeFile(t, filepath.Join(root, "README.md"), "# demo\n")

	m, err := scanner.NewMatcher(root, []string{"**/src/**/*.{js,jsx,ts,tsx}"}, []string{"**/node_modules/**"}, true)
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(&bytes.Buffer{})
	}
	d, err := NewDaemon(m, rec, opts)
	if err != nil {
		t.Fatalf("NewDaemon failed: %v", err)
	}
	t.Cleanup(func() { d.watcher.Close() })
	return d, m.Root()
}

func watched(d *Daemon, dir string) bool {
	for _, p := range d.watcher.WatchList() {
		if p == dir {
			return true
		}
	}
	return false
}

func TestNewDaemonSkipsIgnoredDirs(t *testing.T) {
	d, root := newTestDaemon(t, &fakeReconciler{}, Options{})

	if !watched(d, root) || !watched(d, filepath.Join(root, "src")) {
		t.Errorf("expected root and src to be watched, got %v", d.watcher.WatchList())
	}
	if watched(d, filepath.Join(root, "node_modules")) {
		t.Error("node_modules must not be watched")
	}
}

func TestClassify(t *testing.T) {
	d, root := newTestDaemon(t, &fakeReconciler{}, Options{})
	src := filepath.Join(root, "src", "a.ts")

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write source", fsnotify.Event{Name: src, Op: fsnotify.Write}, true},
		{"create source", fsnotify.Event{Name: src, Op: fsnotify.Create}, true},
		{"remove source", fsnotify.Event{Name: src, Op: fsnotify.Remove}, true},
		{"chmod source", fsnotify.Event{Name: src, Op: fsnotify.Chmod}, false},
		{"outside pattern", fsnotify.Event{Name: filepath.Join(root, "README.md"), Op: fsnotify.Write}, false},
		{"ignored tree", fsnotify.Event{Name: filepath.Join(root, "node_modules", "lib", "src", "x.ts"), Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, got := d.classify(tt.ev)
			if got != tt.want {
				t.Errorf("classify(%v) = %v, want %v", tt.ev, got, tt.want)
			}
			if got && path != tt.ev.Name {
				t.Errorf("trigger = %q, want %q", path, tt.ev.Name)
			}
		})
	}
}

func TestClassifyNewDirectory(t *testing.T) {
	d, root := newTestDaemon(t, &fakeReconciler{}, Options{})

	dir := filepath.Join(root, "src", "feature")
	file := filepath.Join(dir, "b.ts")
	writeFile(t, file, "export const b = 2\n")

	path, changed := d.classify(fsnotify.Event{Name: dir, Op: fsnotify.Create})
	if !changed || path != file {
		t.Errorf("classify(new dir) = %q, %v; want %q, true", path, changed, file)
	}
	if !watched(d, dir) {
		t.Error("new directory was not added to the watcher")
	}

	empty := filepath.Join(root, "docs")
	if err := os.Mkdir(empty, 0755); err != nil {
		t.Fatal(err)
	}
	if _, changed := d.classify(fsnotify.Event{Name: empty, Op: fsnotify.Create}); changed {
		t.Error("directory without sources must not trigger a rescan")
	}
	if !watched(d, empty) {
		t.Error("new directory without sources should still be watched")
	}
}

func TestClassifyGitignoreReload(t *testing.T) {
	d, root := newTestDaemon(t, &fakeReconciler{}, Options{})
	src := filepath.Join(root, "src", "a.ts")

	if _, ok := d.classify(fsnotify.Event{Name: src, Op: fsnotify.Write}); !ok {
		t.Fatal("source should match before .gitignore exists")
	}

	gi := filepath.Join(root, ".gitignore")
	writeFile(t, gi, "src/\n")
	if _, ok := d.classify(fsnotify.Event{Name: gi, Op: fsnotify.Create}); !ok {
		t.Error(".gitignore change should trigger a rescan")
	}
	if _, ok := d.classify(fsnotify.Event{Name: src, Op: fsnotify.Write}); ok {
		t.Error("source should be ignored after .gitignore reload")
	}
}

func TestRunInitializeFailure(t *testing.T) {
	d, _ := newTestDaemon(t, &fakeReconciler{initErr: errors.New("jscpd missing")}, Options{})

	err := d.Run(context.Background())
	if err == nil || err.Error() != "jscpd missing" {
		t.Fatalf("Run() error = %v, want jscpd missing", err)
	}
	if err := d.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}

func TestRescanFailureIsRecorded(t *testing.T) {
	rec := &fakeReconciler{changeErr: errors.New("report unreadable")}
	d, root := newTestDaemon(t, rec, Options{})

	d.rescan(context.Background(), filepath.Join(root, "src", "a.ts"))

	events := d.GetEvents(0)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Kind != KindFailed || e.Error != "report unreadable" || e.Path != "src/a.ts" || e.Clones != 1 {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestGetEventsLimit(t *testing.T) {
	d, _ := newTestDaemon(t, &fakeReconciler{}, Options{})

	for i := 0; i < maxEvents+10; i++ {
		d.record(reconcile.Outcome{Kind: reconcile.Unchanged, Count: i}, nil)
	}

	if got := len(d.GetEvents(0)); got != maxEvents {
		t.Errorf("GetEvents(0) returned %d events, want %d", got, maxEvents)
	}
	last := d.GetEvents(3)
	if len(last) != 3 || last[2].Clones != maxEvents+9 {
		t.Errorf("GetEvents(3) = %+v", last)
	}
	if s := d.Status(); s.Scans != maxEvents+10 || s.Clones != maxEvents+9 {
		t.Errorf("Status() = %+v", s)
	}
}

// TestRunCoalescesChanges writes a source file several times in a burst and
// expects a single rescan.
func TestRunCoalescesChanges(t *testing.T) {
	rec := &fakeReconciler{}
	d, root := newTestDaemon(t, rec, Options{Debounce: 200 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Wait for watcher to be ready
	time.Sleep(300 * time.Millisecond)

	src := filepath.Join(root, "src", "a.ts")
	for i := 0; i < 3; i++ {
		writeFile(t, src, "export const a = "+string(rune('1'+i))+"\n")
	}

	deadline := time.Now().Add(2 * time.Second)
	for rec.changeCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(400 * time.Millisecond)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if rec.changeCount() == 0 {
		t.Skip("fsnotify may not work reliably in temp directories on this platform")
	}
	if n := rec.changeCount(); n != 1 {
		t.Errorf("expected 1 coalesced rescan, got %d", n)
	}
	if rec.changes[0] != src {
		t.Errorf("trigger = %q, want %q", rec.changes[0], src)
	}

	events := d.GetEvents(0)
	if len(events) != 2 || events[0].Kind != "initialized" || events[1].Kind != "added" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestRunHandlesClicks(t *testing.T) {
	rec := &fakeReconciler{armed: true}
	clicks := make(chan struct{})
	d, _ := newTestDaemon(t, rec, Options{Clicks: clicks})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	clicks <- struct{}{}
	clicks <- struct{}{}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	rec.mu.Lock()
	n := rec.clicks
	rec.mu.Unlock()
	if n != 2 {
		t.Errorf("expected 2 clicks handled, got %d", n)
	}

	// Only the click that opened something is recorded.
	var opened []Event
	for _, e := range d.GetEvents(0) {
		if e.Kind == KindClick {
			opened = append(opened, e)
		}
	}
	if len(opened) != 1 || opened[0].URI != "vscode://file/p/a.ts:1" {
		t.Errorf("unexpected click events %+v", opened)
	}
	if d.Status().Armed {
		t.Error("status should report the click slot as idle")
	}
}
