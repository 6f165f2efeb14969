package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: quick_withdraw
balances:
  - { account: alice, token: TKN, amount: 1000 }
steps:
  - { at: 0, op: create, caller: alice, recipient: bob, token: TKN, deposit: 1000, start: 10, stop: 110, expect: { stream: 1 } }
  - { at: 60, op: withdraw, caller: bob, stream: 1, expect: { amount: 500 } }
assertions:
  - { type: balance, account: bob, token: TKN, amount: 500 }
  - { type: conservation, token: TKN }
`

const failingScenario = `name: wrong_amount
balances:
  - { account: alice, token: TKN, amount: 1000 }
steps:
  - { at: 0, op: create, caller: alice, recipient: bob, token: TKN, deposit: 1000, start: 10, stop: 110 }
  - { at: 60, op: withdraw, caller: bob, stream: 1, expect: { amount: 499 } }
`

func writeScenario(t *testing.T, dir, file, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0644))
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandPassingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "quick_withdraw.yaml", passingScenario)

	out, err := runTestCommand(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ quick_withdraw")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "quick_withdraw.yaml", passingScenario)
	writeScenario(t, dir, "wrong_amount.yaml", failingScenario)

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_amount")
	assert.Contains(t, out, "amount")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommandJSONReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_amount.yaml", failingScenario)

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: broken\nsteps:\n  - { op: teleport, caller: alice }\n")

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "quick_withdraw.yaml", passingScenario)
	writeScenario(t, dir, "wrong_amount.yaml", failingScenario)

	out, err := runTestCommand(t, "text", dir, "--filter", "quick_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "wrong_amount")
}

func TestTestCommandGoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "quick_withdraw.yaml", passingScenario)
	goldenPath := filepath.Join(dir, "golden", "quick_withdraw.golden")

	out, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"quick_withdraw"`)
	assert.Contains(t, string(golden), `"kind":"stream.withdrawn"`)

	_, err = runTestCommand(t, "text", dir)
	require.NoError(t, err, "an unchanged run matches its golden file")

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}"), 0644))
	out, err = runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := runTestCommand(t, "text", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "4 passed, 0 failed, 4 total")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "pause_resume.golden"),
		goldenFilePath(filepath.Join("scenarios", "pause_resume.yaml")))
}
