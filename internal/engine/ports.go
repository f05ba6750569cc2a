package engine

import (
	"context"

	"github.com/talgya/amm-arena/internal/agents"
	"github.com/talgya/amm-arena/internal/analysis"
	"github.com/talgya/amm-arena/internal/llm"
)

// Run statuses.
const (
	StatusRunning    = "running"
	StatusCompleted  = "completed"
	StatusIncomplete = "incomplete"
)

// DecisionOracle chooses an agent's action for the turn. The second return
// value is the reasoning trace, empty if the oracle exposes none.
type DecisionOracle interface {
	Decide(ctx context.Context, dc *llm.DecisionContext) (agents.Decision, string, error)
}

// Sink receives the historical record of every run. Failures are logged by
// the engine and never stop a run.
type Sink interface {
	NextRunNumber(ctx context.Context) (int, error)
	CreateRun(ctx context.Context, runNumber int, params Params) (int64, error)
	SaveAction(ctx context.Context, rec ActionRecord) error
	SaveAgentStates(ctx context.Context, states []AgentSnapshot) error
	SavePoolState(ctx context.Context, state PoolSnapshot) error
	SaveMetrics(ctx context.Context, runID int64, m analysis.Metrics) error
	SaveSummary(ctx context.Context, runID int64, text string) error
	FinishRun(ctx context.Context, runID int64, status string) error
}

// Summarizer writes the prose summary of a finished run.
type Summarizer interface {
	Summarize(ctx context.Context, data *llm.SummaryData) (string, error)
}

// Learner distills what an agent should remember into its next run.
type Learner interface {
	ExtractLearning(ctx context.Context, lc *llm.LearningContext) (string, error)
}

// ActionRecord is one agent's turn as persisted.
type ActionRecord struct {
	RunID      int64          `json:"run_id"`
	Turn       int            `json:"turn"`
	AgentName  string         `json:"agent_name"`
	ActionType string         `json:"action_type"`
	Payload    map[string]any `json:"payload"`
	Success    bool           `json:"success"`
	Reasoning  string         `json:"reasoning_trace"`
	Thinking   string         `json:"thinking_trace"`
}

// AgentSnapshot is an agent's balances at the end of a turn.
type AgentSnapshot struct {
	RunID          int64   `json:"run_id" db:"run_id"`
	Turn           int     `json:"turn" db:"turn"`
	AgentName      string  `json:"agent_name" db:"agent_name"`
	TokenA         float64 `json:"token_a_balance" db:"token_a_balance"`
	TokenB         float64 `json:"token_b_balance" db:"token_b_balance"`
	Profit         float64 `json:"profit" db:"profit"`
	Strategy       string  `json:"strategy" db:"strategy"`
	BoredomPenalty float64 `json:"boredom_penalty" db:"boredom_penalty"`
}

// PoolSnapshot is the pool at the end of a turn.
type PoolSnapshot struct {
	RunID          int64   `json:"run_id" db:"run_id"`
	Turn           int     `json:"turn" db:"turn"`
	ReserveA       float64 `json:"reserve_a" db:"reserve_a"`
	ReserveB       float64 `json:"reserve_b" db:"reserve_b"`
	PriceAB        float64 `json:"price_ab" db:"price_ab"`
	TotalLiquidity float64 `json:"total_liquidity" db:"total_liquidity"`
}

// NopSink discards everything. Run numbers count up from 1.
type NopSink struct {
	runs int
}

func (s *NopSink) NextRunNumber(context.Context) (int, error) { return s.runs + 1, nil }

func (s *NopSink) CreateRun(_ context.Context, runNumber int, _ Params) (int64, error) {
	s.runs = runNumber
	return int64(runNumber), nil
}

func (*NopSink) SaveAction(context.Context, ActionRecord) error { return nil }
func (*NopSink) SaveAgentStates(context.Context, []AgentSnapshot) error { return nil }
func (*NopSink) SavePoolState(context.Context, PoolSnapshot) error { return nil }
func (*NopSink) SaveMetrics(context.Context, int64, analysis.Metrics) error { return nil }
func (*NopSink) SaveSummary(context.Context, int64, string) error { return nil }
func (*NopSink) FinishRun(context.Context, int64, string) error { return nil }
