package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/amm-arena/internal/analysis"
	"github.com/talgya/amm-arena/internal/llm"
)

// LearningFailed is the learning summary an agent keeps when extraction fails.
const LearningFailed = "Learning extraction failed."

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// Runner executes consecutive runs and carries agent learning between them.
// Sink, Summarizer and Learner are optional.
type Runner struct {
	Params     Params
	Oracle     DecisionOracle
	Sink       Sink
	Summarizer Summarizer
	Learner    Learner

	// SeedSource supplies a seed when Params.Seed is 0.
	SeedSource func() int64

	mu       sync.Mutex
	started  int
	learning map[string]string
	nop      NopSink
}

// RunResult is the outcome of a single run.
type RunResult struct {
	RunID     int64              `json:"run_id"`
	RunNumber int                `json:"run_number"`
	Seed      int64              `json:"seed"`
	Status    string             `json:"status"`
	Turns     int                `json:"turns"`
	Metrics   analysis.Metrics   `json:"metrics"`
	Report    analysis.RunReport `json:"report"`
	Agents    []AgentSnapshot    `json:"agents"`
	Events    []Event            `json:"events"`
	Summary   string             `json:"summary,omitempty"`
}

// NewRunner creates a runner for the given parameters.
func NewRunner(p Params, oracle DecisionOracle) *Runner {
	return &Runner{
		Params:   p,
		Oracle:   oracle,
		learning: make(map[string]string),
	}
}

// Learning returns each agent's current learning summary.
func (r *Runner) Learning() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.learning))
	for k, v := range r.learning {
		out[k] = v
	}
	return out
}

// RunMany executes n runs back to back. It stops at the first cancelled
// run and returns the results so far with the context error.
func (r *Runner) RunMany(ctx context.Context, n int) ([]*RunResult, error) {
	var results []*RunResult
	for i := 0; i < n; i++ {
		res, err := r.RunOnce(ctx)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// RunOnce executes a single run to completion. On cancellation the run is
// marked incomplete, a final snapshot is saved, and the result is returned
// along with the context error.
func (r *Runner) RunOnce(ctx context.Context) (*RunResult, error) {
	p := r.Params
	p.Seed = 0
	return r.RunWith(ctx, p)
}

// RunWith is RunOnce with parameters overriding the runner's for this run
// only. Learning still carries over. A non-zero params.Seed is used as
// given; zero continues the runner's own seed sequence.
func (r *Runner) RunWith(ctx context.Context, params Params) (*RunResult, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	sink := r.Sink
	if sink == nil {
		sink = &r.nop
	}

	runNumber, err := sink.NextRunNumber(ctx)
	if err != nil {
		slog.Warn("next run number failed", "error", err)
		runNumber = r.started + 1
	}

	p := params
	if p.Seed == 0 {
		p.Seed = r.seed(r.Params.Seed)
	}
	r.started++

	runID, err := sink.CreateRun(ctx, runNumber, p)
	if err != nil {
		slog.Warn("create run failed", "run", runNumber, "error", err)
	}

	sim := NewSimulation(p, r.learning)
	sim.RunID = runID
	sim.Oracle = r.Oracle
	sim.Sink = sink

	slog.Info("run started", "run", runNumber, "run_id", runID, "agents", p.NumAgents, "turns", p.TurnsPerRun, "seed", p.Seed)

	eng := NewEngine(p.TurnDelay, sim.StepTurn)
	runErr := eng.Run(ctx, p.TurnsPerRun)

	res := &RunResult{
		RunID:     runID,
		RunNumber: runNumber,
		Seed:      p.Seed,
		Status:    StatusCompleted,
		Turns:     eng.Turn,
		Metrics:   analysis.CalculateMetrics(sim.Agents, sim.Pool),
		Report:    analysis.BuildReport(sim.Agents, sim.Pool, sim.InitialPool.PriceAB),
		Agents:    sim.AgentSnapshots(sim.Turn),
		Events:    sim.Events,
	}

	if runErr != nil {
		res.Status = StatusIncomplete
		bg := context.WithoutCancel(ctx)
		sim.saveSnapshot(bg, sim.Turn)
		r.finish(bg, sink, res)
		slog.Warn("run interrupted", "run", runNumber, "turn", sim.Turn, "error", runErr)
		return res, runErr
	}

	r.finish(ctx, sink, res)
	res.Summary = r.summarize(ctx, sink, sim, res)
	r.learn(ctx, sim, res)

	slog.Info("run complete",
		"run", runNumber,
		"gini", res.Metrics.GiniCoefficient,
		"avg_profit", res.Metrics.AvgAgentProfit,
		"cooperation", res.Metrics.CooperationRate,
	)
	return res, nil
}

func (r *Runner) seed(base int64) int64 {
	if base != 0 {
		return base + int64(r.started)
	}
	if r.SeedSource != nil {
		return r.SeedSource()
	}
	return int64(r.started + 1)
}

func (r *Runner) finish(ctx context.Context, sink Sink, res *RunResult) {
	if err := sink.SaveMetrics(ctx, res.RunID, res.Metrics); err != nil {
		slog.Warn("save metrics failed", "run_id", res.RunID, "error", err)
	}
	if err := sink.FinishRun(ctx, res.RunID, res.Status); err != nil {
		slog.Warn("finish run failed", "run_id", res.RunID, "error", err)
	}
}

func (r *Runner) summarize(ctx context.Context, sink Sink, sim *Simulation, res *RunResult) string {
	if r.Summarizer == nil {
		return ""
	}

	data := llm.BuildSummaryData(res.RunNumber, res.Metrics, sim.Agents, sim.ActionTypes(), sim.InitialPool, sim.Pool.State())
	text, err := r.Summarizer.Summarize(ctx, data)
	if err != nil {
		slog.Warn("summary failed", "run_id", res.RunID, "error", err)
	}
	if text == "" {
		return ""
	}
	if err := sink.SaveSummary(ctx, res.RunID, text); err != nil {
		slog.Warn("save summary failed", "run_id", res.RunID, "error", err)
	}
	return text
}

func (r *Runner) learn(ctx context.Context, sim *Simulation, res *RunResult) {
	if r.Learner == nil {
		return
	}

	for _, a := range sim.Agents {
		text, err := r.Learner.ExtractLearning(ctx, &llm.LearningContext{
			RunNumber: res.RunNumber,
			AgentName: a.Name,
			Profit:    a.Profit(),
			Strategy:  a.InferStrategy(),
			Metrics:   res.Metrics,
		})
		if err != nil {
			slog.Warn("learning failed", "agent", a.Name, "error", err)
			text = LearningFailed
		}
		r.learning[a.Name] = text
	}
}
