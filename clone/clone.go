// Package clone holds the duplicate-code records produced by the detector
// and the set operations the reconciler diffs them with.
package clone

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Position is a location inside a source file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column,omitempty"`
}

// Fragment is one half of a clone pair: a file and the line range it spans.
type Fragment struct {
	SourceID string   `json:"source_id"`
	Start    Position `json:"start"`
	End      Position `json:"end"`
}

// Clone is a pair of fragments the detector judged to be duplicates.
type Clone struct {
	DuplicationA Fragment `json:"duplication_a"`
	DuplicationB Fragment `json:"duplication_b"`
	Format       string   `json:"format,omitempty"` // detector language, e.g. "typescript"
	Lines        int      `json:"lines,omitempty"`
	Tokens       int      `json:"tokens,omitempty"`
}

// String formats the fragment as sourceId:startLine~endLine.
func (f Fragment) String() string {
	return fmt.Sprintf("%s:%d~%d", f.SourceID, f.Start.Line, f.End.Line)
}

// SameSource reports whether both fragments live in the same file.
func (f Fragment) SameSource(other Fragment) bool {
	return filepath.Clean(f.SourceID) == filepath.Clean(other.SourceID)
}

// Key returns the identity used for diffing: the A side's file and start line.
// Two clones starting on the same line of the same file collide; that weakness
// is accepted.
func (c Clone) Key() string {
	return c.DuplicationA.SourceID + ":" + strconv.Itoa(c.DuplicationA.Start.Line)
}

// Keys returns the identity keys of all clones in the set.
func Keys(clones []Clone) map[string]struct{} {
	keys := make(map[string]struct{}, len(clones))
	for _, c := range clones {
		keys[c.Key()] = struct{}{}
	}
	return keys
}

// Added returns the clones of next whose key is absent from prev, in next's order.
func Added(prev, next []Clone) []Clone {
	return missingFrom(next, Keys(prev))
}

// Removed returns the clones of prev whose key is absent from next, in prev's order.
func Removed(prev, next []Clone) []Clone {
	return missingFrom(prev, Keys(next))
}

// FirstRemoved returns the first clone of prev whose key is absent from next.
func FirstRemoved(prev, next []Clone) (Clone, bool) {
	keys := Keys(next)
	for _, c := range prev {
		if _, ok := keys[c.Key()]; !ok {
			return c, true
		}
	}
	return Clone{}, false
}

func missingFrom(clones []Clone, keys map[string]struct{}) []Clone {
	var out []Clone
	for _, c := range clones {
		if _, ok := keys[c.Key()]; !ok {
			out = append(out, c)
		}
	}
	return out
}
