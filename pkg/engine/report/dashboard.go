package report

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/version"
)

type dashboardData struct {
	App      string
	Version  string
	Title    string
	Started  string
	Elapsed  string
	Result   *spawn.Result
	Rows     []Row
	GridMap  string
	HasMap   bool
	Complete bool
}

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        :root { --bg: #050505; --text: #F8FAFC; --dim: #94A3B8; --ok: #00FF99; --bad: #FF3366; --warn: #F59E0B; --border: rgba(255,255,255,0.1); }
        body { background: var(--bg); color: var(--text); font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 0; padding: 40px; font-size: 14px; }
        .kpi { display: inline-block; margin-right: 32px; }
        .kpi span { display: block; color: var(--dim); font-size: 12px; text-transform: uppercase; }
        table { border-collapse: collapse; width: 100%; margin-top: 24px; }
        th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid var(--border); }
        .success { color: var(--ok); } .failed { color: var(--bad); } .condition_not_met { color: var(--warn); } .skipped { color: var(--dim); }
        pre { font-family: "JetBrains Mono", monospace; line-height: 1.1; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <p>{{.App}} {{.Version}} &middot; run {{.Result.RunID}} &middot; started {{.Started}} &middot; {{.Elapsed}}</p>
    <div class="kpi"><span>Spawned</span>{{.Result.Successful}}/{{.Result.Total}}</div>
    <div class="kpi"><span>Skipped</span>{{.Result.Skipped}}</div>
    <div class="kpi"><span>Failed</span>{{.Result.Failed}}</div>
    <div class="kpi"><span>Condition not met</span>{{.Result.ConditionNotMet}}</div>
    {{if not .Complete}}<p class="failed">Aborted with {{.Result.Unprocessed}} unprocessed instances.</p>{{end}}
    {{if .HasMap}}<pre>{{.GridMap}}</pre>{{end}}
    <table>
        <thead><tr><th>Instance</th><th>Template</th><th>Kind</th><th>Status</th><th>Position</th><th>Size</th><th>Reason</th></tr></thead>
        <tbody>
        {{range .Rows}}<tr><td>{{.InstanceID}}</td><td>{{.TemplateID}}</td><td>{{.ItemKind}}</td><td class="{{.Status}}">{{.Status}}</td><td>({{.X}},{{.Y}})</td><td>{{.Width}}x{{.Height}}</td><td>{{.Reason}}</td></tr>
        {{end}}
        </tbody>
    </table>
    <script>
        const rows = {{.Rows}};
        console.log("instances", rows.length);
    </script>
</body>
</html>
`))

// WriteHTML writes a standalone HTML page. g is optional; when set the
// page includes the grid map.
func WriteHTML(w io.Writer, res *spawn.Result, g grid.Grid) error {
	data := dashboardData{
		App:      version.AppName,
		Version:  version.Current,
		Title:    fmt.Sprintf("%s @ %s", res.ConfigName, res.ContainerID),
		Started:  res.StartedAt.UTC().Format(time.RFC3339),
		Elapsed:  res.Elapsed.Round(time.Microsecond).String(),
		Result:   res,
		Rows:     Rows(res),
		Complete: !res.Aborted,
	}
	if g != nil {
		data.GridMap = Map(g, res)
		data.HasMap = true
	}
	if err := dashboardTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	return nil
}
