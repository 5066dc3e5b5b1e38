package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/cubetime/internal/model"
	"github.com/verte-zerg/cubetime/internal/timer"
)

// callbackMsg carries a scheduler callback onto the program's goroutine.
type callbackMsg struct {
	fn func()
}

// TimerConfigMsg applies reloaded [timer] settings to a running model.
// A zero Puzzle keeps the current one.
type TimerConfigMsg struct {
	Options timer.Options
	Puzzle  model.PuzzleType
}

// Program builds the Bubble Tea program for m and routes scheduler
// callbacks through it. Call it once, before starting any goroutine that
// may send to the program.
func (m *Model) Program(ctx context.Context) *tea.Program {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.send = p.Send
	return p
}

// Run runs p until the user quits or ctx is cancelled, then stops the timer.
func (m *Model) Run(ctx context.Context, p *tea.Program) error {
	_, err := p.Run()
	m.machine.Stop()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// dispatch implements timer.Dispatcher. Callbacks are dropped until Program
// has been called.
func (m *Model) dispatch(fn func()) {
	if m.send == nil {
		return
	}
	m.send(callbackMsg{fn: fn})
}
