package reconcile

import (
	"testing"

	"stopcpd/clone"

	"github.com/stretchr/testify/assert"
)

func frag(source string, line int) clone.Fragment {
	return clone.Fragment{SourceID: source, Start: clone.Position{Line: line}}
}

func TestChooseTarget(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   clone.Fragment
		choice Choice
	}{
		{"same file", Target{A: frag("/p/a.ts", 1), B: frag("/p/a.ts", 30), Trigger: "/p/a.ts"}, frag("/p/a.ts", 1), SameFile},
		{"same file unclean", Target{A: frag("/p/a.ts", 1), B: frag("/p/./a.ts", 30), Trigger: "/p/x.ts"}, frag("/p/a.ts", 1), SameFile},
		{"trigger is a", Target{A: frag("a.ts", 1), B: frag("b.ts", 2), Trigger: "a.ts"}, frag("b.ts", 2), TriggerIsA},
		{"trigger is b", Target{A: frag("a.ts", 1), B: frag("b.ts", 2), Trigger: "b.ts"}, frag("a.ts", 1), TriggerIsB},
		{"trigger neither", Target{A: frag("a.ts", 1), B: frag("b.ts", 2), Trigger: "c.ts"}, frag("a.ts", 1), TriggerNeither},
		{"trigger unclean", Target{A: frag("/p/a.ts", 1), B: frag("/p/b.ts", 2), Trigger: "/p/src/../a.ts"}, frag("/p/b.ts", 2), TriggerIsA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, choice := ChooseTarget(tt.target)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.choice, choice, choice.String())
		})
	}
}

func TestClickState(t *testing.T) {
	var s ClickState
	assert.False(t, s.Armed())

	_, ok := s.Consume()
	assert.False(t, ok, "idle slot must not yield a target")

	s.Arm(Target{A: frag("a.ts", 1), B: frag("b.ts", 2), Trigger: "a.ts"})
	s.Arm(Target{A: frag("c.ts", 3), B: frag("d.ts", 4), Trigger: "d.ts"})
	assert.True(t, s.Armed())

	got, ok := s.Consume()
	assert.True(t, ok)
	assert.Equal(t, "c.ts", got.A.SourceID, "last arm wins")
	assert.False(t, s.Armed())

	_, ok = s.Consume()
	assert.False(t, ok)
}
