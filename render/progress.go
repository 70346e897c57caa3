package render

import (
	"context"
	"fmt"
	"io"
	"time"

	"stopcpd/clone"

	tea "github.com/charmbracelet/bubbletea"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// ScanFunc runs one detector scan.
type ScanFunc func(ctx context.Context) ([]clone.Clone, error)

type tickMsg time.Time

type scanDoneMsg struct {
	clones []clone.Clone
	err    error
}

func tickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// progressModel shows a spinner until the scan reports back.
type progressModel struct {
	label   string
	started time.Time
	now     time.Time
	frame   int
	done    bool
	clones  []clone.Clone
	err     error
}

func (m progressModel) Init() tea.Cmd {
	return tickCmd()
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		m.now = time.Time(msg)
		return m, tickCmd()
	case scanDoneMsg:
		m.done = true
		m.clones = msg.clones
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	elapsed := time.Duration(0)
	if !m.now.IsZero() {
		elapsed = m.now.Sub(m.started).Truncate(100 * time.Millisecond)
	}
	return fmt.Sprintf("%s%s%s %s %s%s%s\n", Cyan, spinnerFrames[m.frame], Reset, m.label, Dim, elapsed, Reset)
}

// Progress runs scan while drawing a spinner on w, which should be a
// terminal. Keyboard input is not read; cancelling ctx stops both.
func Progress(ctx context.Context, w io.Writer, label string, scan ScanFunc) ([]clone.Clone, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := progressModel{label: label, started: time.Now()}
	p := tea.NewProgram(m, tea.WithOutput(w), tea.WithInput(nil), tea.WithContext(ctx))

	go func() {
		clones, err := scan(ctx)
		p.Send(scanDoneMsg{clones: clones, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("progress display: %w", err)
	}
	fm := final.(progressModel)
	return fm.clones, fm.err
}
