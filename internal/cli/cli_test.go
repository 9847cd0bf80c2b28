package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const counterPage = `<!DOCTYPE html>
<html><head><title>counter</title></head><body>
<p z:text="upper(name)"></p>
<button id="inc" z:click="count++">+</button>
<span z:text="count"></span>
</body></html>`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func decodeResponse(t *testing.T, out string, data any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, data))
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "eval", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRenderText(t *testing.T) {
	page := writeFile(t, "page.html", counterPage)

	out, _, err := execute(t, "render", page,
		"--set", "name=ada", "--set", "count=1",
		"--exec", "count += 10", "--click", "inc")
	require.NoError(t, err)

	assert.Contains(t, out, `<p z:text="upper(name)">ADA</p>`)
	assert.Contains(t, out, `<button id="inc" z:click="count++" data-zeta-id="inc">+</button>`)
	assert.Contains(t, out, `<span z:text="count">12</span>`)
}

func TestRenderJSON(t *testing.T) {
	page := writeFile(t, "page.html", counterPage)

	out, _, err := execute(t, "--format", "json", "render", page,
		"--set", "name=ada", "--set", "count=1", "--click", "inc", "--click", "inc")
	require.NoError(t, err)

	var result RenderResult
	decodeResponse(t, out, &result)
	assert.Equal(t, map[string]any{"name": "ada", "count": float64(3)}, result.State)
	assert.Equal(t, 3, result.Directives)
	assert.Contains(t, result.HTML, `<span z:text="count">3</span>`)
	assert.Empty(t, result.Session)
}

func TestRenderReportsEngineErrors(t *testing.T) {
	page := writeFile(t, "page.html", `<p z:text="missing.field">stale</p>`)

	out, _, err := execute(t, "render", page)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 errors while rendering")
	assert.Contains(t, out, `<p z:text="missing.field"></p>`)
}

func TestRenderUnknownClickTarget(t *testing.T) {
	page := writeFile(t, "page.html", counterPage)

	_, _, err := execute(t, "render", page, "--set", "name=a", "--set", "count=0", "--click", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), `no handlers registered for click on element "nope"`)
}

func TestRenderMissingPage(t *testing.T) {
	_, _, err := execute(t, "render", filepath.Join(t.TempDir(), "missing.html"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open page")
}

func TestRenderVerboseLogsEvents(t *testing.T) {
	page := writeFile(t, "page.html", counterPage)

	_, errOut, err := execute(t, "--verbose", "render", page, "--set", "name=a", "--set", "count=0", "--click", "inc")
	require.NoError(t, err)
	assert.Contains(t, errOut, `"msg":"event"`)
	assert.Contains(t, errOut, `"element":"inc"`)
}

func TestRenderWithConfig(t *testing.T) {
	page := writeFile(t, "page.html", `<p z:text="total"></p><p z:text="label"></p>`)
	cfg := writeFile(t, "zeta.yaml", `
state:
  price: 4
  qty: 3
derive:
  total: price * qty
  label: '"total: " + total'
`)

	out, _, err := execute(t, "--config", cfg, "render", page, "--set", "qty=5")
	require.NoError(t, err)
	assert.Contains(t, out, `<p z:text="total">20</p>`)
	assert.Contains(t, out, `total: 20</p>`)
}

func TestBadConfig(t *testing.T) {
	cfg := writeFile(t, "zeta.yaml", "logging:\n  level: loud\n")

	_, _, err := execute(t, "--config", cfg, "eval", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestEval(t *testing.T) {
	out, _, err := execute(t, "eval", "a + b", "--set", "a=2", "--set", "b=3")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)

	out, _, err = execute(t, "eval", "items.length", "--set", "items=[1, 2, 3]")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, _, err = execute(t, "--format", "json", "eval", "n * 2", "--set", "n=4", "--exec", "n++")
	require.NoError(t, err)
	var value float64
	decodeResponse(t, out, &value)
	assert.Equal(t, float64(10), value)
}

func TestEvalErrors(t *testing.T) {
	_, _, err := execute(t, "eval", "1 +")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, _, err = execute(t, "eval", "1", "--set", "novalue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid --set "novalue"`)

	_, _, err = execute(t, "eval")
	require.Error(t, err)
}

func TestReplay(t *testing.T) {
	page := writeFile(t, "page.html", counterPage)
	db := filepath.Join(t.TempDir(), "run.db")

	out, _, err := execute(t, "--format", "json", "render", page,
		"--journal", db, "--set", "name=ada", "--set", "count=1",
		"--exec", "count += 10", "--click", "inc")
	require.NoError(t, err)
	var rendered RenderResult
	decodeResponse(t, out, &rendered)
	require.NotEmpty(t, rendered.Session)

	out, _, err = execute(t, "replay", db)
	require.NoError(t, err)
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, rendered.Session)
	assert.Contains(t, out, page)

	out, _, err = execute(t, "--format", "json", "replay", db)
	require.NoError(t, err)
	var sessions []SessionSummary
	decodeResponse(t, out, &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].Changes)

	out, _, err = execute(t, "replay", db, "--session", rendered.Session)
	require.NoError(t, err)
	var state map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &state))
	assert.Equal(t, map[string]any{"count": 12}, state)

	out, _, err = execute(t, "--format", "json", "replay", db, "--session", rendered.Session)
	require.NoError(t, err)
	var result ReplayResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, map[string]any{"count": float64(12)}, result.State)
}

func TestReplayErrors(t *testing.T) {
	_, _, err := execute(t, "replay", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")

	page := writeFile(t, "page.html", counterPage)
	db := filepath.Join(t.TempDir(), "run.db")
	_, _, err = execute(t, "render", page, "--journal", db, "--set", "name=a", "--set", "count=0")
	require.NoError(t, err)

	_, _, err = execute(t, "replay", db, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `session "nope" not found`)

	out, _, err := execute(t, "--format", "json", "replay", db)
	require.NoError(t, err)
	var sessions []SessionSummary
	decodeResponse(t, out, &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, 0, sessions[0].Changes)
	assert.True(t, strings.HasSuffix(sessions[0].Label, "page.html"))
}

func TestServeMissingPage(t *testing.T) {
	_, _, err := execute(t, "serve", filepath.Join(t.TempDir(), "missing.html"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "wrapped", assert.AnError)))
	assert.Equal(t, "wrapped: "+assert.AnError.Error(), WrapExitError(ExitCommandError, "wrapped", assert.AnError).Error())
}
