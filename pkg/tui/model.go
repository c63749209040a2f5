// Package tui is an interactive stepper for the cooperative scheduler: each
// key press (or auto tick) advances the queue by one budget.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/DrSkyle/gridspawn/pkg/engine/scheduler"
	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
	"github.com/DrSkyle/gridspawn/pkg/grid"
)

type ViewState int

const (
	ViewStateList ViewState = iota
	ViewStateMap
	ViewStateHelp
)

// autoInterval is the tick period in auto mode.
const autoInterval = 150 * time.Millisecond

// Completed is a finished request as seen by the stepper.
type Completed struct {
	ID     string
	Result *spawn.Result
	Grid   grid.Grid
	Err    error
}

// completions is shared between the model copies bubbletea makes and the
// scheduler callbacks.
type completions struct {
	items []Completed
}

type Model struct {
	ctx   context.Context
	sched *scheduler.Scheduler

	spinner  spinner.Model
	progress progress.Model

	state    ViewState
	auto     bool
	quitting bool
	width    int
	height   int
	budget   int

	done   *completions
	cursor int
	steps  int
	placed int

	startTime time.Time
}

type tickMsg time.Time

// NewModel creates a stepper over s that processes budget instances per
// step.
func NewModel(ctx context.Context, s *scheduler.Scheduler, budget int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = special

	return Model{
		ctx:       ctx,
		sched:     s,
		spinner:   sp,
		progress:  progress.New(progress.WithGradient("#00FF99", "#00CCFF")),
		state:     ViewStateList,
		budget:    max(budget, 1),
		done:      &completions{},
		startTime: time.Now(),
	}
}

// Track returns a scheduler.Request OnComplete callback that records
// results for display. g is the grid of the request.
func (m Model) Track(g grid.Grid) func(id string, res *spawn.Result, err error) {
	return func(id string, res *spawn.Result, err error) {
		m.done.items = append(m.done.items, Completed{ID: id, Result: res, Grid: g, Err: err})
	}
}

// Completed returns the requests finished so far.
func (m Model) Completed() []Completed {
	return m.done.items
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func tick() tea.Cmd {
	return tea.Tick(autoInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "n", " ", "enter":
			m = m.step()
		case "a":
			m.auto = !m.auto
			if m.auto {
				return m, tick()
			}
		case "m":
			m.state = toggle(m.state, ViewStateMap)
		case "?":
			m.state = toggle(m.state, ViewStateHelp)
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.outcomes())-1 {
				m.cursor++
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(msg.Width-20, 10)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if !m.auto {
			return m, nil
		}
		m = m.step()
		if m.sched.Pending() == 0 {
			m.auto = false
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) step() Model {
	if m.sched.Pending() == 0 {
		return m
	}
	m.placed += m.sched.Step(m.ctx, m.budget)
	m.steps++
	m.cursor = max(len(m.outcomes())-1, 0)
	return m
}

func toggle(cur, target ViewState) ViewState {
	if cur == target {
		return ViewStateList
	}
	return target
}

// current is the run on screen: the active one, or the last completed.
func (m Model) current() (*spawn.Result, grid.Grid, int) {
	if _, run, ok := m.sched.Active(); ok {
		return run.Result(), run.Grid(), run.Remaining()
	}
	if n := len(m.done.items); n > 0 {
		c := m.done.items[n-1]
		return c.Result, c.Grid, 0
	}
	return nil, nil, 0
}

func (m Model) outcomes() []spawn.Outcome {
	if res, _, _ := m.current(); res != nil {
		return res.Outcomes
	}
	return nil
}
