package reconcile

import (
	"path/filepath"

	"stopcpd/clone"
)

// Target is what a click on the latest new-clone notification refers to: the
// clone's two fragments and the file whose change surfaced it.
type Target struct {
	A, B    clone.Fragment
	Trigger string
}

// Choice records which row of the target decision table applied.
type Choice int

const (
	// SameFile: both fragments live in one file, open A.
	SameFile Choice = iota + 1
	// TriggerIsA: the developer edited A, open B.
	TriggerIsA
	// TriggerIsB: the developer edited B, open A.
	TriggerIsB
	// TriggerNeither: the trigger matches neither fragment, open A.
	TriggerNeither
)

func (c Choice) String() string {
	switch c {
	case SameFile:
		return "same-file"
	case TriggerIsA:
		return "trigger-is-a"
	case TriggerIsB:
		return "trigger-is-b"
	case TriggerNeither:
		return "trigger-neither"
	default:
		return "unknown"
	}
}

// ChooseTarget picks the fragment to open for t, preferring the occurrence
// the developer is not already looking at.
func ChooseTarget(t Target) (clone.Fragment, Choice) {
	trigger := filepath.Clean(t.Trigger)
	switch {
	case t.A.SameSource(t.B):
		return t.A, SameFile
	case filepath.Clean(t.A.SourceID) == trigger:
		return t.B, TriggerIsA
	case filepath.Clean(t.B.SourceID) == trigger:
		return t.A, TriggerIsB
	default:
		return t.A, TriggerNeither
	}
}

// ClickState is the one-shot click-to-open slot. The zero value is Idle.
type ClickState struct {
	target Target
	armed  bool
}

// Arm stores t, replacing any target armed earlier.
func (s *ClickState) Arm(t Target) {
	s.target = t
	s.armed = true
}

// Armed reports whether a click would open something.
func (s *ClickState) Armed() bool {
	return s.armed
}

// Consume returns the armed target and goes back to Idle. It returns false
// when Idle.
func (s *ClickState) Consume() (Target, bool) {
	if !s.armed {
		return Target{}, false
	}
	t := s.target
	s.target = Target{}
	s.armed = false
	return t, true
}
