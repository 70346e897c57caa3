package watch

import (
	"time"

	"stopcpd/clone"
)

// Event kinds recorded in the activity log besides the reconcile outcomes.
const (
	KindFailed = "failed"
	KindClick  = "click"
)

// Event is one entry of the daemon's activity log: a scan and what it found,
// or a notification click.
type Event struct {
	Time    time.Time     `json:"time"`
	Kind    string        `json:"kind"`           // initialized, unchanged, added, removed, changed, failed, click
	Path    string        `json:"path,omitempty"` // relative to the root
	Lang    string        `json:"lang,omitempty"`
	Clones  int           `json:"clones"` // baseline size after the event
	Added   []clone.Clone `json:"added,omitempty"`
	Removed []clone.Clone `json:"removed,omitempty"`
	URI     string        `json:"uri,omitempty"` // editor URI opened by a click
	Error   string        `json:"error,omitempty"`
}

// Status is a point-in-time summary of a running daemon.
type Status struct {
	Root        string    `json:"root"`
	StartedAt   time.Time `json:"started_at"`
	Clones      int       `json:"clones"`
	Scans       int       `json:"scans"`
	WatchedDirs int       `json:"watched_dirs"`
	Armed       bool      `json:"armed"`
}
