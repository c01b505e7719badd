package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWithFixture(t *testing.T) {
	opts := testOptions(t, "text")
	planPath := writeFile(t, "filter.cue", filterPlan)
	fixturePath := writeFile(t, "tables.yaml", tablesFixture)

	out, err := execute(NewValidateCommand(opts), "--plan", planPath, "--fixture", fixturePath)
	require.NoError(t, err)
	assert.Contains(t, out, "Plan valid: 2 node(s)")
	assert.Contains(t, out, "scan#0 <- [source(T)]")
	assert.Contains(t, out, "filter#1 <- [node(0)]")
}

func TestValidateJSON(t *testing.T) {
	opts := testOptions(t, "json")
	planPath := writeFile(t, "filter.cue", filterPlan)
	fixturePath := writeFile(t, "tables.yaml", tablesFixture)

	out, err := execute(NewValidateCommand(opts), "--plan", planPath, "--fixture", fixturePath)
	require.NoError(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Nodes, 2)
	assert.Equal(t, "scan", resp.Data.Nodes[0].Kind)
	assert.Equal(t, "filter", resp.Data.Nodes[1].Kind)
	assert.Equal(t, []string{"node(0)"}, resp.Data.Nodes[1].Inputs)
	assert.Equal(t, "(col0 int)", resp.Data.Nodes[1].Schema)
}

func TestValidateAgainstStore(t *testing.T) {
	opts := testOptions(t, "text")
	planPath := writeFile(t, "filter.cue", filterPlan)

	_, err := execute(NewValidateCommand(opts), "--plan", planPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	fixturePath := writeFile(t, "tables.yaml", tablesFixture)
	_, err = execute(NewLoadCommand(opts), "--fixture", fixturePath)
	require.NoError(t, err)

	out, err := execute(NewValidateCommand(opts), "--plan", planPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Plan valid")
}

func TestValidateRejectsUDF(t *testing.T) {
	opts := testOptions(t, "text")
	planPath := writeFile(t, "udf.cue", `plan: {
	op: "filter"
	predicate: {call: "is_prime", args: [{col: 0}]}
	input: {op: "scan", table: "T"}
}
`)
	fixturePath := writeFile(t, "tables.yaml", tablesFixture)

	out, err := execute(NewValidateCommand(opts), "--plan", planPath, "--fixture", fixturePath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "UNSUPPORTED_EXPR")
}

func TestValidateDBAndFixtureExclusive(t *testing.T) {
	opts := testOptions(t, "text")
	_, err := execute(NewValidateCommand(opts), "--plan", "p.cue", "--db", "x.db", "--fixture", "f.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestValidateCompileError(t *testing.T) {
	opts := testOptions(t, "json")
	planPath := writeFile(t, "bad.cue", "plan: {\n")
	fixturePath := writeFile(t, "tables.yaml", tablesFixture)

	out, err := execute(NewValidateCommand(opts), "--plan", planPath, "--fixture", fixturePath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Error)
	assert.NotEmpty(t, resp.Data.Error.Message)
}

func TestValidateMissingPlanFile(t *testing.T) {
	opts := testOptions(t, "text")
	fixturePath := writeFile(t, "tables.yaml", tablesFixture)

	_, err := execute(NewValidateCommand(opts), "--plan", "/nonexistent/plan.cue", "--fixture", fixturePath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
