// MCP server for stopcpd - lets an assistant scan a project for duplicated
// code and follow the clone activity of a live watch session.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"stopcpd/clone"
	"stopcpd/config"
	"stopcpd/render"
	"stopcpd/session"
	"stopcpd/watch"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverVersion = "1.0.0"

// watcher is a watch session started through start_watch. It is registered
// before its initial scan finishes.
type watcher struct {
	session *session.Session
	cancel  context.CancelFunc
	done    chan struct{} // closed when Run returns
	err     error         // Run's result, valid once done is closed
}

// newSession builds the session for a start_watch call.
var newSession = func(cfg config.Config) (*session.Session, error) {
	return session.New(cfg)
}

// Global watcher registry - tracks active watch sessions per project
var (
	watchers   = make(map[string]*watcher)
	watchersMu sync.RWMutex
)

// Input types for tools
type PathInput struct {
	Path string `json:"path" jsonschema:"Path to the project directory"`
}

type WatchActivityInput struct {
	Path    string `json:"path" jsonschema:"Path to the watched project directory"`
	Minutes int    `json:"minutes,omitempty" jsonschema:"Look back this many minutes (default: 30)"`
}

// EmptyInput for tools that don't need parameters
type EmptyInput struct{}

func main() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "stopcpd",
		Version: serverVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "scan_clones",
		Description: "Scan a project once with jscpd and list every duplicated code fragment pair, with file paths and line ranges. Honors the project's .stopcpd config file.",
	}, handleScanClones)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Check stopcpd MCP server status and list active watch sessions with their current clone counts.",
	}, handleStatus)

	// === LIVE WATCH TOOLS ===

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_watch",
		Description: "Start watching a project for newly introduced duplicated code. The developer gets a desktop notification for every new or deleted clone. Use get_activity to see what happened.",
	}, handleStartWatch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stop_watch",
		Description: "Stop the duplicate-code watcher for a project.",
	}, handleStopWatch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_activity",
		Description: "Get recent duplicate-code activity for a watched project: which changes introduced or removed clones, and where the duplicated fragments are.",
	}, handleGetActivity)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Printf("Server error: %v", err)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// resolvePath expands a leading ~/ and makes path absolute.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	if path == "" {
		path = "."
	}
	return filepath.Abs(path)
}

func handleScanClones(ctx context.Context, req *mcp.CallToolRequest, input PathInput) (*mcp.CallToolResult, any, error) {
	absPath, err := resolvePath(input.Path)
	if err != nil {
		return errorResult("Invalid path: " + err.Error()), nil, nil
	}

	cfg, err := config.Load(absPath, "", nil)
	if err != nil {
		return errorResult("Config error: " + err.Error()), nil, nil
	}
	matcher, err := session.NewMatcher(cfg)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	det, err := session.NewDetector(cfg, matcher)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	clones, err := det.Detect(ctx)
	if err != nil {
		return errorResult("Scan error: " + err.Error()), nil, nil
	}

	var buf bytes.Buffer
	render.Clones(&buf, absPath, clones, render.ReportOptions{})
	return textResult(buf.String()), nil, nil
}

func handleStatus(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, any, error) {
	cwd, _ := os.Getwd()

	watchersMu.RLock()
	var lines []string
	for path, w := range watchers {
		s := w.session.Daemon.Status()
		if s.Scans == 0 {
			lines = append(lines, fmt.Sprintf("  %s: starting, initial scan running", path))
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s: %d clones, %d scans, %d dirs watched, since %s",
			path, s.Clones, s.Scans, s.WatchedDirs, s.StartedAt.Format("15:04:05")))
	}
	watchersMu.RUnlock()
	sort.Strings(lines)

	watchStatus := "none"
	if len(lines) > 0 {
		watchStatus = fmt.Sprintf("%d active\n%s", len(lines), strings.Join(lines, "\n"))
	}

	return textResult(fmt.Sprintf(`stopcpd MCP server v%s
Status: connected
Working directory: %s
Active watchers: %s

Available tools:
  scan_clones  - List duplicated code in a project
  start_watch  - Notify the developer about new duplicated code
  stop_watch   - Stop watching a project
  get_activity - Recent clone additions and deletions`, serverVersion, cwd, watchStatus)), nil, nil
}

// === WATCH HANDLERS ===

func handleStartWatch(ctx context.Context, req *mcp.CallToolRequest, input PathInput) (*mcp.CallToolResult, any, error) {
	absPath, err := resolvePath(input.Path)
	if err != nil {
		return errorResult("Invalid path: " + err.Error()), nil, nil
	}

	cfg, err := config.Load(absPath, "", nil)
	if err != nil {
		return errorResult("Config error: " + err.Error()), nil, nil
	}

	watchersMu.Lock()
	if _, exists := watchers[absPath]; exists {
		watchersMu.Unlock()
		return textResult(fmt.Sprintf("Already watching: %s\nUse get_activity to see recent changes.", absPath)), nil, nil
	}
	s, err := newSession(cfg)
	if err != nil {
		watchersMu.Unlock()
		return errorResult("Failed to create watcher: " + err.Error()), nil, nil
	}

	// The session outlives this request.
	runCtx, cancel := context.WithCancel(context.Background())
	w := &watcher{session: s, cancel: cancel, done: make(chan struct{})}
	go func() {
		w.err = s.Run(runCtx)
		close(w.done)
	}()
	watchers[absPath] = w
	watchersMu.Unlock()

	// The initial scan may take minutes (npx download); other tools keep
	// working meanwhile and see this watcher as starting.
	clones, err := waitInitialized(ctx, w)
	if err != nil {
		cancel()
		<-w.done
		watchersMu.Lock()
		if watchers[absPath] == w {
			delete(watchers, absPath)
		}
		watchersMu.Unlock()
		return errorResult("Failed to start watcher: " + err.Error()), nil, nil
	}

	return textResult(fmt.Sprintf(`Duplicate-code watcher started for: %s
Current duplicated code: %d

From now on the developer gets a notification whenever a change
introduces or removes duplicated code. Clicking a new-duplicate
notification opens the other occurrence in the editor.

Use get_activity to see what happened.`, absPath, clones)), nil, nil
}

// waitInitialized blocks until the session finished its initial scan and
// returns the clone count.
func waitInitialized(ctx context.Context, w *watcher) (int, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if events := w.session.Daemon.GetEvents(1); len(events) > 0 {
			return events[0].Clones, nil
		}
		select {
		case <-w.done:
			if w.err != nil {
				return 0, w.err
			}
			return 0, errors.New("watcher exited")
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func handleStopWatch(ctx context.Context, req *mcp.CallToolRequest, input PathInput) (*mcp.CallToolResult, any, error) {
	absPath, err := resolvePath(input.Path)
	if err != nil {
		return errorResult("Invalid path: " + err.Error()), nil, nil
	}

	watchersMu.Lock()
	w, exists := watchers[absPath]
	delete(watchers, absPath)
	watchersMu.Unlock()

	if !exists {
		return textResult("No active watcher for: " + absPath), nil, nil
	}

	w.cancel()
	<-w.done
	err = w.err

	s := w.session.Daemon.Status()
	msg := fmt.Sprintf("Watcher stopped for: %s\nScans run: %d\nDuplicated code at stop: %d", absPath, s.Scans, s.Clones)
	if err != nil {
		msg += "\nWatcher had failed: " + err.Error()
	}
	return textResult(msg), nil, nil
}

func handleGetActivity(ctx context.Context, req *mcp.CallToolRequest, input WatchActivityInput) (*mcp.CallToolResult, any, error) {
	absPath, err := resolvePath(input.Path)
	if err != nil {
		return errorResult("Invalid path: " + err.Error()), nil, nil
	}

	watchersMu.RLock()
	w, exists := watchers[absPath]
	watchersMu.RUnlock()

	if !exists {
		return errorResult(fmt.Sprintf("No active watcher for: %s\nUse start_watch first.", absPath)), nil, nil
	}

	minutes := input.Minutes
	if minutes <= 0 {
		minutes = 30
	}

	events := w.session.Daemon.GetEvents(0)
	cutoff := time.Now().Add(-time.Duration(minutes) * time.Minute)
	return textResult(formatActivity(absPath, minutes, recentEvents(events, cutoff), len(events))), nil, nil
}

func recentEvents(events []watch.Event, cutoff time.Time) []watch.Event {
	var recent []watch.Event
	for _, e := range events {
		if e.Time.After(cutoff) {
			recent = append(recent, e)
		}
	}
	return recent
}

// formatActivity renders the events that changed something; unchanged scans
// are only counted.
func formatActivity(root string, minutes int, recent []watch.Event, total int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Duplicate-code activity for %s (last %d minutes)\n", root, minutes)

	unchanged := 0
	shown := 0
	for _, e := range recent {
		if e.Kind == "unchanged" {
			unchanged++
			continue
		}
		shown++
		fmt.Fprintf(&sb, "\n%s %s", e.Time.Format("15:04:05"), strings.ToUpper(e.Kind))
		if e.Path != "" {
			fmt.Fprintf(&sb, " after %s", e.Path)
		}
		fmt.Fprintf(&sb, " (clones: %d)\n", e.Clones)
		writeClones(&sb, root, "+", e.Added)
		writeClones(&sb, root, "-", e.Removed)
		if e.URI != "" {
			fmt.Fprintf(&sb, "  opened %s\n", e.URI)
		}
		if e.Error != "" {
			fmt.Fprintf(&sb, "  error: %s\n", e.Error)
		}
	}

	if shown == 0 {
		sb.WriteString("\nNo duplicated code was added or removed.\n")
	}
	fmt.Fprintf(&sb, "\nScans without clone changes: %d\nTotal events since start: %d\n", unchanged, total)
	return sb.String()
}

func writeClones(sb *strings.Builder, root, sign string, clones []clone.Clone) {
	for _, c := range clones {
		fmt.Fprintf(sb, "  %s %s <-> %s\n", sign, relFragment(root, c.DuplicationA), relFragment(root, c.DuplicationB))
	}
}

func relFragment(root string, f clone.Fragment) string {
	if rel, err := filepath.Rel(root, f.SourceID); err == nil && !strings.HasPrefix(rel, "..") {
		f.SourceID = filepath.ToSlash(rel)
	}
	return f.String()
}
