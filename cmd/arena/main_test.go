package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/amm-arena/internal/analysis"
	"github.com/talgya/amm-arena/internal/engine"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"LLM_API_KEY", "RANDOM_ORG_API_KEY", "NUM_AGENTS", "TURNS_PER_RUN", "TOTAL_RUNS", "ARENA_SEED", "ARENA_DB_PATH"} {
		t.Setenv(k, "")
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunThenReport(t *testing.T) {
	db := filepath.Join(t.TempDir(), "arena.db")

	out, err := execute(t, "run", "--db", db, "--runs", "2", "--agents", "2", "--turns", "2", "--seed", "11")
	require.NoError(t, err)
	assert.Contains(t, out, "Run 1 (seed 11, completed after 2 turns)")
	assert.Contains(t, out, "Run 2 (seed 12, completed after 2 turns)")
	assert.Contains(t, out, "SIMULATION REPORT")
	assert.Contains(t, out, "## Run 1 Summary")
	assert.Contains(t, out, "Trends across completed runs")

	out, err = execute(t, "report", "--db", db, "--json")
	require.NoError(t, err)
	var trends analysis.Trends
	require.NoError(t, json.Unmarshal([]byte(out), &trends))
	assert.Equal(t, 2, trends.RunCount)
	assert.Equal(t, analysis.TrendStable, trends.ProfitTrend, "idle runs lose the same amount")

	out, err = execute(t, "report", "--db", db, "--run", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Agent_0: dominant=do_nothing")
}

func TestRunJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "arena.db")

	out, err := execute(t, "run", "--db", db, "--agents", "1", "--turns", "1", "--seed", "3", "--json")
	require.NoError(t, err)

	var results []engine.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, int64(3), results[0].Seed)
	assert.Equal(t, engine.StatusCompleted, results[0].Status)
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	db := filepath.Join(t.TempDir(), "arena.db")
	_, err := execute(t, "run", "--db", db, "--agents", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "num_agents")
}

func TestReportUnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "arena.db")
	_, err := execute(t, "report", "--db", db, "--run", "42")
	assert.Error(t, err)
}
