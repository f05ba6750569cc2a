package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/talgya/amm-arena/internal/analysis"
	"github.com/talgya/amm-arena/internal/engine"
)

// Run is a row of the runs table.
type Run struct {
	ID         int64   `json:"id" db:"id"`
	UUID       string  `json:"uuid" db:"uuid"`
	RunNumber  int     `json:"run_number" db:"run_number"`
	Status     string  `json:"status" db:"status"`
	ConfigJSON string  `json:"-" db:"config_json"`
	StartedAt  string  `json:"started_at" db:"started_at"`
	EndedAt    *string `json:"ended_at,omitempty" db:"ended_at"`
}

// Params decodes the configuration the run was started with.
func (r *Run) Params() (engine.Params, error) {
	var p engine.Params
	if err := json.Unmarshal([]byte(r.ConfigJSON), &p); err != nil {
		return p, fmt.Errorf("decode run %d config: %w", r.ID, err)
	}
	return p, nil
}

// Action is a row of the actions table.
type Action struct {
	ID             int64          `json:"id" db:"id"`
	RunID          int64          `json:"run_id" db:"run_id"`
	Turn           int            `json:"turn" db:"turn"`
	AgentName      string         `json:"agent_name" db:"agent_name"`
	ActionType     string         `json:"action_type" db:"action_type"`
	PayloadJSON    string         `json:"-" db:"payload_json"`
	Payload        map[string]any `json:"payload" db:"-"`
	Success        bool           `json:"success" db:"success"`
	ReasoningTrace string         `json:"reasoning_trace" db:"reasoning_trace"`
	ThinkingTrace  string         `json:"thinking_trace,omitempty" db:"thinking_trace"`
}

func (a *Action) decode() {
	if a.PayloadJSON == "" {
		return
	}
	_ = json.Unmarshal([]byte(a.PayloadJSON), &a.Payload)
}

// RunDetail is everything recorded for one run.
type RunDetail struct {
	Run         Run                    `json:"run"`
	Metrics     *analysis.Metrics      `json:"metrics,omitempty"`
	Summary     string                 `json:"summary,omitempty"`
	Actions     []Action               `json:"actions"`
	AgentStates []engine.AgentSnapshot `json:"agent_states"`
	PoolStates  []engine.PoolSnapshot  `json:"pool_states"`
}

// ListRuns returns every run, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]Run, error) {
	var runs []Run
	if err := db.conn.SelectContext(ctx, &runs, "SELECT * FROM runs ORDER BY run_number DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run.
func (db *DB) GetRun(ctx context.Context, id int64) (*Run, error) {
	var r Run
	if err := db.conn.GetContext(ctx, &r, "SELECT * FROM runs WHERE id = ?", id); err != nil {
		return nil, notFound(err, "run %d", id)
	}
	return &r, nil
}

// GetMetrics returns a run's metrics.
func (db *DB) GetMetrics(ctx context.Context, runID int64) (*analysis.Metrics, error) {
	var m analysis.Metrics
	err := db.conn.GetContext(ctx, &m, `SELECT gini_coefficient, avg_agent_profit, cooperation_rate,
		betrayal_count, pool_stability FROM run_metrics WHERE run_id = ?`, runID)
	if err != nil {
		return nil, notFound(err, "metrics for run %d", runID)
	}
	return &m, nil
}

// CompletedRunMetrics returns metrics of completed runs in run order.
func (db *DB) CompletedRunMetrics(ctx context.Context) ([]analysis.Metrics, error) {
	var out []analysis.Metrics
	err := db.conn.SelectContext(ctx, &out, `SELECT m.gini_coefficient, m.avg_agent_profit, m.cooperation_rate,
		m.betrayal_count, m.pool_stability
		FROM run_metrics m JOIN runs r ON r.id = m.run_id
		WHERE r.status = ?
		ORDER BY r.run_number, r.id`, engine.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("completed run metrics: %w", err)
	}
	return out, nil
}

// Actions returns a run's actions in turn order.
func (db *DB) Actions(ctx context.Context, runID int64) ([]Action, error) {
	var out []Action
	if err := db.conn.SelectContext(ctx, &out, "SELECT * FROM actions WHERE run_id = ? ORDER BY turn, id", runID); err != nil {
		return nil, fmt.Errorf("actions for run %d: %w", runID, err)
	}
	for i := range out {
		out[i].decode()
	}
	return out, nil
}

// ActionSamples returns the agent and action type of each of a run's actions.
func (db *DB) ActionSamples(ctx context.Context, runID int64) ([]analysis.ActionSample, error) {
	var out []analysis.ActionSample
	err := db.conn.SelectContext(ctx, &out,
		"SELECT agent_name, action_type FROM actions WHERE run_id = ? ORDER BY turn, id", runID)
	if err != nil {
		return nil, fmt.Errorf("action samples for run %d: %w", runID, err)
	}
	return out, nil
}

// ActionByID returns a single action with its reasoning and thinking traces.
func (db *DB) ActionByID(ctx context.Context, id int64) (*Action, error) {
	var a Action
	if err := db.conn.GetContext(ctx, &a, "SELECT * FROM actions WHERE id = ?", id); err != nil {
		return nil, notFound(err, "action %d", id)
	}
	a.decode()
	return &a, nil
}

// Summary returns a run's summary text.
func (db *DB) Summary(ctx context.Context, runID int64) (string, error) {
	var text string
	if err := db.conn.GetContext(ctx, &text, "SELECT summary_text FROM run_summaries WHERE run_id = ?", runID); err != nil {
		return "", notFound(err, "summary for run %d", runID)
	}
	return text, nil
}

// RunDetail loads a run with its metrics, summary, actions and snapshots.
func (db *DB) RunDetail(ctx context.Context, runID int64) (*RunDetail, error) {
	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	d := &RunDetail{Run: *run}

	if m, err := db.GetMetrics(ctx, runID); err == nil {
		d.Metrics = m
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if text, err := db.Summary(ctx, runID); err == nil {
		d.Summary = text
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if d.Actions, err = db.Actions(ctx, runID); err != nil {
		return nil, err
	}

	err = db.conn.SelectContext(ctx, &d.AgentStates, `SELECT run_id, turn, agent_name, token_a_balance,
		token_b_balance, profit, strategy, boredom_penalty
		FROM agent_states WHERE run_id = ? ORDER BY turn, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("agent states for run %d: %w", runID, err)
	}

	err = db.conn.SelectContext(ctx, &d.PoolStates, `SELECT run_id, turn, reserve_a, reserve_b, price_ab, total_liquidity
		FROM pool_states WHERE run_id = ? ORDER BY turn, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("pool states for run %d: %w", runID, err)
	}

	return d, nil
}

func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
