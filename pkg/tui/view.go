package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/DrSkyle/gridspawn/pkg/engine/report"
	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.viewHUD())
	b.WriteString("\n")
	switch m.state {
	case ViewStateMap:
		b.WriteString(m.viewMap())
	case ViewStateHelp:
		b.WriteString(viewHelp())
	default:
		b.WriteString(m.viewList())
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  n step · a auto · m map · ? help · q quit"))
	return b.String()
}

func (m Model) viewHUD() string {
	res, _, remaining := m.current()

	title := highlight.Render("GRIDSPAWN")
	status := dimStyle.Render("idle")
	if m.auto {
		status = m.spinner.View() + " auto"
	} else if m.sched.Pending() == 0 && len(m.done.items) > 0 {
		status = special.Render("drained")
	}

	line := fmt.Sprintf("%s  %s  queue %d  steps %d  placed %d", title, status, m.sched.Pending(), m.steps, m.placed)
	if res == nil {
		return hudStyle.Render(line)
	}

	ratio := 1.0
	if total := len(res.Outcomes) + remaining; total > 0 {
		ratio = float64(len(res.Outcomes)) / float64(total)
	}
	run := fmt.Sprintf("%s @ %s  %d ok  %d skipped  %d failed",
		res.ConfigName, res.ContainerID, res.Successful, res.Skipped, res.Failed)
	return hudStyle.Render(lipgloss.JoinVertical(lipgloss.Left, line, run, m.progress.ViewAs(ratio)))
}

func (m Model) viewList() string {
	outcomes := m.outcomes()
	if len(outcomes) == 0 {
		if m.sched.Pending() > 0 {
			return "\n   " + dimStyle.Render("Press n to process the next step.") + "\n"
		}
		return "\n   " + dimStyle.Render("Nothing queued.") + "\n"
	}

	var s strings.Builder
	s.WriteString(dimStyle.Render(fmt.Sprintf("  %-20s | %-17s | %-9s | %s", "INSTANCE", "STATUS", "POSITION", "REASON")) + "\n")
	s.WriteString(dimStyle.Render("  "+strings.Repeat("─", 60)) + "\n")

	start, end := m.calculateWindow(len(outcomes))
	for i := start; i < end; i++ {
		o := outcomes[i]

		id := o.InstanceID
		if len(id) > 20 {
			id = id[:17] + "..."
		}
		pos := "-"
		if o.Status == spawn.StatusSuccess {
			pos = o.Position.String()
		}
		line := fmt.Sprintf("%-20s | %s | %-9s | %s", id, statusCell(o.Status), pos, o.Reason)

		cursor := "  "
		if i == m.cursor {
			cursor = "> "
			s.WriteString(listSelectedStyle.Render(cursor+line) + "\n")
			continue
		}
		s.WriteString(listNormalStyle.Render(cursor+line) + "\n")
	}
	return s.String()
}

func statusCell(st spawn.Status) string {
	cell := fmt.Sprintf("%-17s", st)
	switch st {
	case spawn.StatusSuccess:
		return special.Render(cell)
	case spawn.StatusFailed:
		return danger.Render(cell)
	case spawn.StatusConditionNotMet:
		return warning.Render(cell)
	}
	return dimStyle.Render(cell)
}

func (m Model) viewMap() string {
	res, g, _ := m.current()
	if g == nil {
		return "\n   " + dimStyle.Render("No grid yet.") + "\n"
	}
	return "\n" + report.Map(g, res)
}

func viewHelp() string {
	return `
  n, space, enter   process one step (budget instances)
  a                 toggle auto stepping
  m                 toggle the grid map
  up/down, k/j      move through outcomes
  q                 quit
`
}

func (m Model) calculateWindow(total int) (int, int) {
	windowSize := m.height - 10 // HUD + footer
	if windowSize < 5 {
		windowSize = 5
	}

	start := m.cursor - (windowSize / 2)
	if start < 0 {
		start = 0
	}
	end := start + windowSize
	if end > total {
		end = total
		start = end - windowSize
		if start < 0 {
			start = 0
		}
	}
	return start, end
}
