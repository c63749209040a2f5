package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
	"github.com/DrSkyle/gridspawn/pkg/grid"
)

const testCatalog = `items:
  - id: coin
    size: {width: 1, height: 1}
  - id: crate
    size: {width: 2, height: 2}
`

const testConfig = `name: cellar
continue_on_failure: true
templates:
  - id: relic
    item_kind: coin
    quantity: 2
    unique_spawn: true
  - id: chest
    item_kind: crate
    quantity: 1
    unique_spawn: true
`

type fixture struct {
	dir     string
	catalog string
	config  string
	ledger  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	f := fixture{
		dir:     dir,
		catalog: filepath.Join(dir, "items.yaml"),
		config:  filepath.Join(dir, "cellar.yaml"),
		ledger:  filepath.Join(dir, "ledger"),
	}
	require.NoError(t, os.WriteFile(f.catalog, []byte(testCatalog), 0o600))
	require.NoError(t, os.WriteFile(f.config, []byte(testConfig), 0o600))
	return f
}

func (f fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func (f fixture) args(cmd string, extra ...string) []string {
	args := []string{cmd, "--no-telemetry", "--log-level", "error", "--ledger", f.ledger,
		"-f", f.config, "--catalog", f.catalog}
	if cmd != "validate" {
		args = append(args, "--width", "4", "--height", "4", "--container", "cellar-1")
	}
	return append(args, extra...)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f.args("validate")...)
	require.NoError(t, err)
	assert.Equal(t, "cellar: 2 templates, 3 instances, ok\n", out)

	f.config = f.write(t, "bad.yaml", `name: bad
templates:
  - id: relic
    item_kind: coin
    condition: "occupancy_rate >"
`)
	_, err = run(t, f.args("validate")...)
	assert.Error(t, err)
}

func TestSpawn_RecordsLedger(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f.args("spawn", "--format", "json", "--seed", "3")...)
	require.NoError(t, err)

	var res spawn.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Successful)
	assert.Equal(t, "cellar-1", res.ContainerID)

	out, err = run(t, f.args("check")...)
	assert.Error(t, err)
	assert.Contains(t, out, "nothing to spawn")

	out, err = run(t, f.args("spawn", "--format", "json")...)
	require.NoError(t, err)
	res = spawn.Result{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 0, res.Successful)
	assert.Equal(t, 3, res.Skipped)
}

func TestSpawn_TextWithMap(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f.args("spawn", "--map")...)
	require.NoError(t, err)
	assert.Contains(t, out, "cellar @ cellar-1")
	assert.Contains(t, out, "relic#1")
	assert.Contains(t, out, "chest (crate) x1")
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteMap(t *testing.T) {
	g := grid.NewMemoryGrid(3, 1)
	g.Block(grid.Rect{Width: 1, Height: 1})

	var out bytes.Buffer
	require.NoError(t, writeMap(&out, g, nil))
	assert.Contains(t, out.String(), "\n#..")

	err := writeMap(brokenWriter{}, g, nil)
	assert.ErrorContains(t, err, "failed to write map: disk full")
}

func TestSpawn_Cooperative(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f.args("spawn", "--cooperative", "--budget", "2", "--format", "csv")...)
	require.NoError(t, err)
	assert.Contains(t, out, "RunID,ContainerID,Config")
	assert.Contains(t, out, "chest#1")
}

func TestSpawn_Strict(t *testing.T) {
	f := newFixture(t)
	f.config = f.write(t, "gated.yaml", `name: gated
templates:
  - id: relic
    item_kind: coin
    condition: "false"
`)

	_, err := run(t, f.args("spawn")...)
	require.NoError(t, err)

	_, err = run(t, f.args("spawn", "--strict")...)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestSpawn_ExportTo(t *testing.T) {
	f := newFixture(t)
	exports := filepath.Join(f.dir, "exports")

	_, err := run(t, f.args("spawn", "--format", "html", "--export-to", exports)...)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(exports, "cellar-1"))
	require.NoError(t, err)
	var exts []string
	for _, e := range entries {
		exts = append(exts, filepath.Ext(e.Name()))
	}
	assert.ElementsMatch(t, []string{".json", ".html"}, exts)
}

func TestSpawn_SlackNotify(t *testing.T) {
	f := newFixture(t)
	posted := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		posted <- body.Text
	}))
	defer srv.Close()

	_, err := run(t, f.args("spawn", "--slack-webhook", srv.URL)...)
	require.NoError(t, err)
	assert.Contains(t, <-posted, "cellar @ cellar-1: 3/3 spawned")
}

func TestSpawn_RequiresGrid(t *testing.T) {
	f := newFixture(t)

	_, err := run(t, "spawn", "--no-telemetry", "--ledger", f.ledger,
		"-f", f.config, "--catalog", f.catalog, "--container", "cellar-1")
	assert.ErrorContains(t, err, "--grid")
}

func TestPreview_DoesNotRecord(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, f.args("preview")...)
	require.NoError(t, err)
	assert.Contains(t, out, "3/3 spawned")

	out, err = run(t, f.args("check")...)
	require.NoError(t, err)
	assert.Contains(t, out, "should spawn")
	assert.Contains(t, out, "estimate: 3/3 instances fit by area, 38% of free cells used")
}

func TestReset(t *testing.T) {
	f := newFixture(t)

	_, err := run(t, "reset", "--no-telemetry", "--ledger", f.ledger)
	assert.Error(t, err)
	_, err = run(t, "reset", "--no-telemetry", "--ledger", f.ledger, "--all", "--container", "x")
	assert.Error(t, err)

	_, err = run(t, f.args("spawn")...)
	require.NoError(t, err)

	out, err := run(t, "reset", "--no-telemetry", "--ledger", f.ledger, "--container", "cellar-1")
	require.NoError(t, err)
	assert.Equal(t, "cellar-1 reset\n", out)

	out, err = run(t, f.args("check")...)
	require.NoError(t, err)
	assert.Contains(t, out, "should spawn")
}

func TestSettingsFile(t *testing.T) {
	f := newFixture(t)
	settings := f.write(t, "settings.yaml", "spawn:\n  format: json\n")

	out, err := run(t, append(f.args("spawn"), "--config", settings)...)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
}

func TestCompletion(t *testing.T) {
	out, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "gridspawn")

	_, err = run(t, "completion", "tcsh")
	assert.Error(t, err)
}
