// Package persistence provides SQLite-based storage for the historical
// record of runs: actions, per-turn snapshots, metrics and summaries.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/amm-arena/internal/analysis"
	"github.com/talgya/amm-arena/internal/engine"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection. It implements engine.Sink.
type DB struct {
	conn *sqlx.DB
}

var _ engine.Sink = (*DB)(nil)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		run_number INTEGER NOT NULL,
		status TEXT NOT NULL,
		config_json TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT
	);

	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		turn INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		action_type TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		success INTEGER NOT NULL,
		reasoning_trace TEXT NOT NULL,
		thinking_trace TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		turn INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		token_a_balance REAL NOT NULL,
		token_b_balance REAL NOT NULL,
		profit REAL NOT NULL,
		strategy TEXT NOT NULL,
		boredom_penalty REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pool_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		turn INTEGER NOT NULL,
		reserve_a REAL NOT NULL,
		reserve_b REAL NOT NULL,
		price_ab REAL NOT NULL,
		total_liquidity REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_metrics (
		run_id INTEGER PRIMARY KEY REFERENCES runs(id),
		gini_coefficient REAL NOT NULL,
		cooperation_rate REAL NOT NULL,
		betrayal_count INTEGER NOT NULL,
		avg_agent_profit REAL NOT NULL,
		pool_stability REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_summaries (
		run_id INTEGER PRIMARY KEY REFERENCES runs(id),
		summary_text TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_actions_run ON actions(run_id, turn);
	CREATE INDEX IF NOT EXISTS idx_agent_states_run ON agent_states(run_id, turn);
	CREATE INDEX IF NOT EXISTS idx_pool_states_run ON pool_states(run_id, turn);
	`
	_, err := db.conn.Exec(schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NextRunNumber returns one past the highest run number recorded.
func (db *DB) NextRunNumber(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.GetContext(ctx, &n, "SELECT COALESCE(MAX(run_number), 0) + 1 FROM runs"); err != nil {
		return 0, fmt.Errorf("next run number: %w", err)
	}
	return n, nil
}

// CreateRun records a new run in the running state and returns its ID.
func (db *DB) CreateRun(ctx context.Context, runNumber int, params engine.Params) (int64, error) {
	configJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("marshal params: %w", err)
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (uuid, run_number, status, config_json, started_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), runNumber, engine.StatusRunning, string(configJSON), now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run %d: %w", runNumber, err)
	}
	return res.LastInsertId()
}

// FinishRun sets the run's final status and end time.
func (db *DB) FinishRun(ctx context.Context, runID int64, status string) error {
	_, err := db.conn.ExecContext(ctx, "UPDATE runs SET status = ?, ended_at = ? WHERE id = ?", status, now(), runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

// SaveAction appends one agent action.
func (db *DB) SaveAction(ctx context.Context, rec engine.ActionRecord) error {
	payload := rec.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `INSERT INTO actions
		(run_id, turn, agent_name, action_type, payload_json, success, reasoning_trace, thinking_trace)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Turn, rec.AgentName, rec.ActionType, string(payloadJSON),
		rec.Success, rec.Reasoning, rec.Thinking,
	)
	if err != nil {
		return fmt.Errorf("insert action %s turn %d: %w", rec.AgentName, rec.Turn, err)
	}
	return nil
}

// SaveAgentStates appends a turn's agent snapshots in one transaction.
func (db *DB) SaveAgentStates(ctx context.Context, states []engine.AgentSnapshot) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range states {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO agent_states
			(run_id, turn, agent_name, token_a_balance, token_b_balance, profit, strategy, boredom_penalty)
			VALUES (:run_id, :turn, :agent_name, :token_a_balance, :token_b_balance, :profit, :strategy, :boredom_penalty)`, s)
		if err != nil {
			return fmt.Errorf("insert agent state %s: %w", s.AgentName, err)
		}
	}

	return tx.Commit()
}

// SavePoolState appends a turn's pool snapshot.
func (db *DB) SavePoolState(ctx context.Context, state engine.PoolSnapshot) error {
	_, err := db.conn.NamedExecContext(ctx, `INSERT INTO pool_states
		(run_id, turn, reserve_a, reserve_b, price_ab, total_liquidity)
		VALUES (:run_id, :turn, :reserve_a, :reserve_b, :price_ab, :total_liquidity)`, state)
	if err != nil {
		return fmt.Errorf("insert pool state turn %d: %w", state.Turn, err)
	}
	return nil
}

// SaveMetrics stores the run's metrics, replacing any earlier value.
func (db *DB) SaveMetrics(ctx context.Context, runID int64, m analysis.Metrics) error {
	_, err := db.conn.ExecContext(ctx, `INSERT OR REPLACE INTO run_metrics
		(run_id, gini_coefficient, cooperation_rate, betrayal_count, avg_agent_profit, pool_stability)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, m.GiniCoefficient, m.CooperationRate, m.BetrayalCount, m.AvgAgentProfit, m.PoolStability,
	)
	if err != nil {
		return fmt.Errorf("save metrics for run %d: %w", runID, err)
	}
	return nil
}

// SaveSummary stores the run's summary, replacing any earlier value.
func (db *DB) SaveSummary(ctx context.Context, runID int64, text string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO run_summaries (run_id, summary_text, created_at) VALUES (?, ?, ?)",
		runID, text, now(),
	)
	if err != nil {
		return fmt.Errorf("save summary for run %d: %w", runID, err)
	}
	return nil
}
