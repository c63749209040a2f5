package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
)

var (
	colorGreen  = lipgloss.Color("#00FF99")
	colorPurple = lipgloss.Color("#874BFD")
	colorDanger = lipgloss.Color("#FF0055")
	colorWarn   = lipgloss.Color("#F59E0B")
	colorDim    = lipgloss.Color("#64748B")
)

type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	header lipgloss.Style
	status map[spawn.Status]lipgloss.Style
}

// newStyles binds the palette to w so plain writers get plain text.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(colorPurple),
		label:  r.NewStyle().Foreground(colorDim),
		header: r.NewStyle().Bold(true),
		status: map[spawn.Status]lipgloss.Style{
			spawn.StatusSuccess:         r.NewStyle().Foreground(colorGreen),
			spawn.StatusSkipped:         r.NewStyle().Foreground(colorDim),
			spawn.StatusFailed:          r.NewStyle().Foreground(colorDanger),
			spawn.StatusConditionNotMet: r.NewStyle().Foreground(colorWarn),
		},
	}
}

// WriteText writes a summary block followed by an instance table.
func WriteText(w io.Writer, res *spawn.Result) error {
	st := newStyles(w)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", st.title.Render(fmt.Sprintf("%s @ %s", res.ConfigName, res.ContainerID)))
	summary := [][2]string{
		{"run", res.RunID},
		{"started", res.StartedAt.UTC().Format(time.RFC3339)},
		{"spawned", fmt.Sprintf("%d/%d", res.Successful, res.Total)},
		{"skipped", fmt.Sprint(res.Skipped)},
		{"failed", fmt.Sprint(res.Failed)},
	}
	if res.ConditionNotMet > 0 {
		summary = append(summary, [2]string{"unmet", fmt.Sprint(res.ConditionNotMet)})
	}
	if res.Aborted {
		summary = append(summary, [2]string{"aborted", fmt.Sprintf("%d unprocessed", res.Unprocessed())})
	}
	summary = append(summary, [2]string{"elapsed", res.Elapsed.Round(time.Microsecond).String()})
	for _, kv := range summary {
		fmt.Fprintf(&b, "%s %s\n", st.label.Render(fmt.Sprintf("%-8s", kv[0])), kv[1])
	}

	if len(res.Outcomes) > 0 {
		b.WriteString("\n")
		rows := [][]string{{"INSTANCE", "TEMPLATE", "KIND", "STATUS", "POSITION", "SIZE", "REASON"}}
		for _, o := range res.Outcomes {
			pos, size := "-", "-"
			if o.Status == spawn.StatusSuccess {
				pos = o.Position.String()
				size = o.Footprint.String()
				if o.Rotated {
					size += " (r)"
				}
			}
			rows = append(rows, []string{o.InstanceID, o.TemplateID, o.ItemKind, string(o.Status), pos, size, o.Reason})
		}
		writeTable(&b, rows, func(row, col int, cell string) string {
			switch {
			case row == 0:
				return st.header.Render(cell)
			case col == 3:
				return st.status[spawn.Status(cell)].Render(cell)
			}
			return cell
		})
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// writeTable left-aligns columns two spaces apart. Widths come from the
// raw cell text so styling does not shift columns.
func writeTable(b *strings.Builder, rows [][]string, style func(row, col int, cell string) string) {
	widths := make([]int, len(rows[0]))
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], len(c))
		}
	}
	for ri, r := range rows {
		var line strings.Builder
		for i, c := range r {
			line.WriteString(style(ri, i, c))
			if i < len(r)-1 {
				line.WriteString(strings.Repeat(" ", widths[i]-len(c)+2))
			}
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteString("\n")
	}
}
