package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/amm-arena/internal/agents"
	"github.com/talgya/amm-arena/internal/analysis"
	"github.com/talgya/amm-arena/internal/llm"
)

// oracleFunc adapts a function to DecisionOracle.
type oracleFunc func(ctx context.Context, dc *llm.DecisionContext) (agents.Decision, string, error)

func (f oracleFunc) Decide(ctx context.Context, dc *llm.DecisionContext) (agents.Decision, string, error) {
	return f(ctx, dc)
}

func idle() DecisionOracle {
	return oracleFunc(func(context.Context, *llm.DecisionContext) (agents.Decision, string, error) {
		return agents.DoNothing("waiting"), "", nil
	})
}

// byAgent scripts a fixed decision per agent name.
func byAgent(decisions map[string]agents.Decision) DecisionOracle {
	return oracleFunc(func(_ context.Context, dc *llm.DecisionContext) (agents.Decision, string, error) {
		if d, ok := decisions[dc.Agent.Name]; ok {
			return d, "thinking about " + dc.Agent.Name, nil
		}
		return agents.DoNothing(""), "", nil
	})
}

type memSink struct {
	mu          sync.Mutex
	runs        int
	params      []Params
	actions     []ActionRecord
	agentStates [][]AgentSnapshot
	pools       []PoolSnapshot
	metrics     map[int64]analysis.Metrics
	summaries   map[int64]string
	status      map[int64]string
}

func newMemSink() *memSink {
	return &memSink{
		metrics:   make(map[int64]analysis.Metrics),
		summaries: make(map[int64]string),
		status:    make(map[int64]string),
	}
}

func (s *memSink) NextRunNumber(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs + 1, nil
}

func (s *memSink) CreateRun(_ context.Context, runNumber int, p Params) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.params = append(s.params, p)
	id := int64(100 + runNumber)
	s.status[id] = StatusRunning
	return id, nil
}

func (s *memSink) SaveAction(_ context.Context, rec ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, rec)
	return nil
}

func (s *memSink) SaveAgentStates(_ context.Context, states []AgentSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentStates = append(s.agentStates, states)
	return nil
}

func (s *memSink) SavePoolState(_ context.Context, state PoolSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools = append(s.pools, state)
	return nil
}

func (s *memSink) SaveMetrics(_ context.Context, runID int64, m analysis.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[runID] = m
	return nil
}

func (s *memSink) SaveSummary(_ context.Context, runID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[runID] = text
	return nil
}

func (s *memSink) FinishRun(_ context.Context, runID int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[runID] = status
	return nil
}

var errSinkDown = errors.New("sink down")

// brokenSink fails every call.
type brokenSink struct{}

func (brokenSink) NextRunNumber(context.Context) (int, error) { return 0, errSinkDown }
func (brokenSink) CreateRun(context.Context, int, Params) (int64, error) { return 0, errSinkDown }
func (brokenSink) SaveAction(context.Context, ActionRecord) error { return errSinkDown }
func (brokenSink) SaveAgentStates(context.Context, []AgentSnapshot) error { return errSinkDown }
func (brokenSink) SavePoolState(context.Context, PoolSnapshot) error { return errSinkDown }
func (brokenSink) SaveMetrics(context.Context, int64, analysis.Metrics) error { return errSinkDown }
func (brokenSink) SaveSummary(context.Context, int64, string) error { return errSinkDown }
func (brokenSink) FinishRun(context.Context, int64, string) error { return errSinkDown }

// calmParams disables random volatility and pushes the market maker out of
// reach so turns only reflect agent actions.
func calmParams(numAgents, turns int) Params {
	p := DefaultParams()
	p.NumAgents = numAgents
	p.TurnsPerRun = turns
	p.MarketMakerInterval = 1000
	p.PriceShockProbability = 0
	p.ChaosProbability = 0
	p.Seed = 1
	return p
}

func proposeTo(partner string) agents.Decision {
	return agents.ParseDecision("propose_alliance", "", map[string]any{"agent_name": partner})
}

func TestIdleRun(t *testing.T) {
	p := DefaultParams()
	p.NumAgents = 3
	p.TurnsPerRun = 3
	p.Seed = 42
	p.PriceShockProbability = 1
	p.ChaosProbability = 1

	sink := newMemSink()
	r := NewRunner(p, idle())
	r.Sink = sink

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 3, res.Turns)
	require.Len(t, res.Agents, 3)
	for _, a := range res.Agents {
		assert.InDelta(t, 40, a.TokenA, 1e-9, a.AgentName)
		assert.InDelta(t, 100, a.TokenB, 1e-9, "volatility never touches agents")
		assert.InDelta(t, -60, a.Profit, 1e-9)
		assert.InDelta(t, 60, a.BoredomPenalty, 1e-9)
		assert.Equal(t, "do_nothing", a.Strategy)
	}

	assert.InDelta(t, -60, res.Metrics.AvgAgentProfit, 1e-9)
	assert.InDelta(t, 0, res.Metrics.GiniCoefficient, 1e-9)
	assert.Zero(t, res.Metrics.CooperationRate)
	assert.Zero(t, res.Metrics.BetrayalCount)
	assert.Greater(t, res.Metrics.PoolStability, 0.0)

	assert.Len(t, sink.actions, 9)
	require.Len(t, sink.agentStates, 3)
	for j := 0; j < 3; j++ {
		var penalties []float64
		for i := range sink.agentStates {
			penalties = append(penalties, sink.agentStates[i][j].BoredomPenalty)
		}
		assert.Equal(t, []float64{10, 30, 60}, penalties, "agent %d", j)
	}
	assert.Len(t, sink.pools, 3)
	assert.Equal(t, StatusCompleted, sink.status[res.RunID])
	assert.Equal(t, res.Metrics, sink.metrics[res.RunID])
}

func TestMutualAlliance(t *testing.T) {
	p := calmParams(2, 1)
	p.ProfitBonus = 0

	sim := NewSimulation(p, nil)
	sim.Oracle = byAgent(map[string]agents.Decision{
		"Agent_0": proposeTo("Agent_1"),
		"Agent_1": proposeTo("Agent_0"),
	})

	require.NoError(t, sim.StepTurn(context.Background()))

	for _, pair := range [][2]string{{"Agent_0", "Agent_1"}, {"Agent_1", "Agent_0"}} {
		a := sim.AgentIndex[pair[0]]
		assert.InDelta(t, 104, a.TokenA, 1e-9)
		assert.Equal(t, agents.AllianceSuccess, a.Alliances[pair[1]])
		assert.Equal(t, 1, a.AllianceProposalCounts[pair[1]])
	}
	require.Len(t, sim.EventsForTurn(0), 1)
	assert.Equal(t, CategoryAlliance, sim.Events[0].Category)
}

func TestMutualAllianceWithProfitBonus(t *testing.T) {
	sim := NewSimulation(calmParams(2, 1), nil)
	sim.Oracle = byAgent(map[string]agents.Decision{
		"Agent_0": proposeTo("Agent_1"),
		"Agent_1": proposeTo("Agent_0"),
	})

	require.NoError(t, sim.StepTurn(context.Background()))

	// +4 from the alliance, then +10 for ending the turn in profit.
	assert.InDelta(t, 114, sim.AgentIndex["Agent_0"].TokenA, 1e-9)
	assert.InDelta(t, 114, sim.AgentIndex["Agent_1"].TokenA, 1e-9)
}

func TestAllianceFatigueAcrossTurns(t *testing.T) {
	p := calmParams(2, 3)
	p.ProfitBonus = 0

	sim := NewSimulation(p, nil)
	sim.Oracle = byAgent(map[string]agents.Decision{
		"Agent_0": proposeTo("Agent_1"),
		"Agent_1": proposeTo("Agent_0"),
	})

	want := []float64{104, 106, 106}
	for i, w := range want {
		require.NoError(t, sim.StepTurn(context.Background()))
		assert.InDelta(t, w, sim.AgentIndex["Agent_0"].TokenA, 1e-9, "turn %d", i)
		assert.InDelta(t, w, sim.AgentIndex["Agent_1"].TokenA, 1e-9, "turn %d", i)
	}
}

func TestOneSidedProposalPaysNothing(t *testing.T) {
	p := calmParams(3, 1)
	p.ProfitBonus = 0

	sim := NewSimulation(p, nil)
	sim.Oracle = byAgent(map[string]agents.Decision{
		"Agent_0": proposeTo("Agent_1"),
		"Agent_1": proposeTo("Agent_2"),
		"Agent_2": proposeTo("Agent_0"),
	})
	require.NoError(t, sim.StepTurn(context.Background()))

	for _, a := range sim.Agents {
		assert.InDelta(t, 100, a.TokenA, 1e-9, a.Name)
	}
	assert.Equal(t, agents.AllianceProposed, sim.AgentIndex["Agent_0"].Alliances["Agent_1"])
}

func TestActionBonus(t *testing.T) {
	sim := NewSimulation(calmParams(1, 1), nil)
	swap := agents.ParseDecision("swap", "", map[string]any{"from": "a", "amount": 1})

	tests := []struct {
		name        string
		decision    agents.Decision
		coordinated bool
		profitable  bool
		want        float64
	}{
		{"liquidity", agents.ParseDecision("provide_liquidity", "", nil), false, false, 8},
		{"swap", swap, false, false, 3},
		{"coordinated swap", swap, true, false, 8},
		{"profitable swap", swap, false, true, 8},
		{"coordinated profitable swap", swap, true, true, 13},
		{"alliance", proposeTo("Agent_9"), true, true, 0},
		{"idle", agents.DoNothing(""), true, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := agents.NewAgent("Agent_0", 100)
			before := a.Profit()
			if tt.profitable {
				a.TokenB += 1
			}
			startA := a.TokenA

			got := sim.actionBonus(a, tt.decision, before, tt.coordinated)
			assert.Equal(t, tt.want, got)
			assert.InDelta(t, startA+tt.want, a.TokenA, 1e-9)
		})
	}
}

func TestSwapTurnBonusAndProfitBonus(t *testing.T) {
	sim := NewSimulation(calmParams(1, 1), nil)
	sim.Oracle = byAgent(map[string]agents.Decision{
		"Agent_0": agents.ParseDecision("swap", "", map[string]any{"from": "a", "amount": 10}),
	})
	require.NoError(t, sim.StepTurn(context.Background()))

	a := sim.Agents[0]
	// Swap bonus 3 lifts the small swap loss into profit, earning the +10.
	assert.InDelta(t, 90+3+10, a.TokenA, 1e-9)
	assert.Greater(t, a.TokenB, 109.8)
	assert.Zero(t, a.ConsecutiveInaction)
}

func TestFailedActionEarnsNoBonus(t *testing.T) {
	sink := newMemSink()
	sim := NewSimulation(calmParams(1, 1), nil)
	sim.Sink = sink
	sim.Oracle = byAgent(map[string]agents.Decision{
		"Agent_0": agents.ParseDecision("swap", "", map[string]any{"from": "a", "amount": 500}),
	})
	require.NoError(t, sim.StepTurn(context.Background()))

	a := sim.Agents[0]
	assert.Equal(t, 100.0, a.TokenA)
	assert.Equal(t, 100.0, a.TokenB)
	assert.Zero(t, a.TotalBoredomPenalty, "a failed attempt still counts as acting")

	require.Len(t, sink.actions, 1)
	assert.False(t, sink.actions[0].Success)
	assert.Equal(t, "swap", sink.actions[0].ActionType)
	assert.Equal(t, 500.0, sink.actions[0].Payload["amount"])
}

func TestOracleErrorBecomesDoNothing(t *testing.T) {
	sink := newMemSink()
	sim := NewSimulation(calmParams(1, 1), nil)
	sim.Sink = sink
	sim.Oracle = oracleFunc(func(context.Context, *llm.DecisionContext) (agents.Decision, string, error) {
		return agents.Decision{}, "", errors.New("boom")
	})
	require.NoError(t, sim.StepTurn(context.Background()))

	require.Len(t, sink.actions, 1)
	assert.Equal(t, "do_nothing", sink.actions[0].ActionType)
	assert.Equal(t, "Error: boom", sink.actions[0].Reasoning)
	assert.True(t, sink.actions[0].Success)
	assert.InDelta(t, 90, sim.Agents[0].TokenA, 1e-9)
}

func TestDecisionContext(t *testing.T) {
	p := calmParams(3, 4)
	var seen []*llm.DecisionContext
	sim := NewSimulation(p, map[string]string{"Agent_1": "swap less"})
	sim.Oracle = oracleFunc(func(_ context.Context, dc *llm.DecisionContext) (agents.Decision, string, error) {
		seen = append(seen, dc)
		return agents.DoNothing(""), "", nil
	})
	require.NoError(t, sim.StepTurn(context.Background()))

	require.Len(t, seen, 3)
	dc := seen[1]
	assert.Equal(t, "Agent_1", dc.Agent.Name)
	assert.Equal(t, "swap less", dc.LearningSummary)
	assert.Equal(t, 4, dc.TotalTurns)
	assert.Equal(t, 8.0, dc.Rules.LiquidityBonus)
	require.Len(t, dc.Peers, 2)
	for _, peer := range dc.Peers {
		assert.NotEqual(t, "Agent_1", peer.Name)
	}
	assert.InDelta(t, 1000, dc.Pool.ReserveA, 1e-9)
}

func TestMarketMakerSchedule(t *testing.T) {
	p := calmParams(1, 6)
	p.MarketMakerInterval = 3
	sim := NewSimulation(p, nil)
	sim.Oracle = idle()

	for turn := 0; turn < 6; turn++ {
		k := sim.Pool.ConstantProduct()
		require.NoError(t, sim.StepTurn(context.Background()))

		var mm []Event
		for _, e := range sim.EventsForTurn(turn) {
			if e.Actor == ActorMarketMaker {
				mm = append(mm, e)
			}
		}
		if turn == 2 || turn == 5 {
			require.Len(t, mm, 1, "turn %d", turn)
			assert.GreaterOrEqual(t, sim.Pool.ConstantProduct(), k)
		} else {
			assert.Empty(t, mm, "turn %d", turn)
		}
	}
}

func TestCoordinatedOnlyWhenMarketMakerOrShockFires(t *testing.T) {
	p := calmParams(1, 1)
	p.MarketMakerInterval = 1
	assert.True(t, NewSimulation(p, nil).runVolatility(0))

	p = calmParams(1, 1)
	p.ChaosProbability = 1
	sim := NewSimulation(p, nil)
	assert.False(t, sim.runVolatility(0), "chaos alone is not coordinated")
	assert.Len(t, sim.Events, 1)

	p = calmParams(1, 1)
	p.PriceShockProbability = 1
	assert.True(t, NewSimulation(p, nil).runVolatility(0))
}

func TestVolatilityIsReproducible(t *testing.T) {
	p := DefaultParams()
	p.NumAgents = 2
	p.PriceShockProbability = 1
	p.ChaosProbability = 1
	p.Seed = 7

	run := func(seed int64) *Simulation {
		q := p
		q.Seed = seed
		sim := NewSimulation(q, nil)
		for i := 0; i < 6; i++ {
			require.NoError(t, sim.StepTurn(context.Background()))
		}
		return sim
	}

	a, b := run(7), run(7)
	assert.Equal(t, a.Pool.ReserveA, b.Pool.ReserveA)
	assert.Equal(t, a.Pool.ReserveB, b.Pool.ReserveB)
	assert.Equal(t, a.Events, b.Events)

	c := run(8)
	assert.NotEqual(t, a.Pool.ReserveA, c.Pool.ReserveA)
}

func TestVolatilityKeepsReservesPositive(t *testing.T) {
	p := DefaultParams()
	p.NumAgents = 1
	p.MarketMakerInterval = 1
	p.PriceShockProbability = 1
	p.ChaosProbability = 1

	for seed := int64(1); seed <= 20; seed++ {
		p.Seed = seed
		sim := NewSimulation(p, nil)
		for i := 0; i < 20; i++ {
			k := sim.Pool.ConstantProduct()
			sim.runVolatility(i)
			require.Greater(t, sim.Pool.ReserveA, 0.0)
			require.Greater(t, sim.Pool.ReserveB, 0.0)
			require.GreaterOrEqual(t, sim.Pool.ConstantProduct(), k*(1-1e-12))
		}
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	oracle := oracleFunc(func(ctx context.Context, dc *llm.DecisionContext) (agents.Decision, string, error) {
		calls++
		if dc.Turn == 1 {
			cancel()
			return agents.Decision{}, "", ctx.Err()
		}
		return agents.DoNothing(""), "", nil
	})

	sink := newMemSink()
	r := NewRunner(calmParams(2, 3), oracle)
	r.Sink = sink
	r.Summarizer = summarizerFunc(func(context.Context, *llm.SummaryData) (string, error) {
		t.Fatal("summary must not run after cancellation")
		return "", nil
	})

	res, err := r.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)

	assert.Equal(t, StatusIncomplete, res.Status)
	assert.Equal(t, 1, res.Turns)
	assert.Equal(t, 3, calls)
	assert.Len(t, sink.actions, 2, "the interrupted decision is not recorded")
	assert.Equal(t, StatusIncomplete, sink.status[res.RunID])
	assert.Contains(t, sink.metrics, res.RunID)
	// one snapshot per finished turn plus the final one
	assert.Len(t, sink.pools, 2)
}

type summarizerFunc func(ctx context.Context, data *llm.SummaryData) (string, error)

func (f summarizerFunc) Summarize(ctx context.Context, data *llm.SummaryData) (string, error) {
	return f(ctx, data)
}

type learnerFunc func(ctx context.Context, lc *llm.LearningContext) (string, error)

func (f learnerFunc) ExtractLearning(ctx context.Context, lc *llm.LearningContext) (string, error) {
	return f(ctx, lc)
}

func TestRunManyCarriesLearning(t *testing.T) {
	p := calmParams(2, 1)
	p.Seed = 10

	var summaries []*llm.SummaryData
	var prompts []string
	oracle := oracleFunc(func(_ context.Context, dc *llm.DecisionContext) (agents.Decision, string, error) {
		prompts = append(prompts, dc.LearningSummary)
		return agents.DoNothing(""), "", nil
	})

	sink := newMemSink()
	r := NewRunner(p, oracle)
	r.Sink = sink
	r.Summarizer = summarizerFunc(func(_ context.Context, data *llm.SummaryData) (string, error) {
		summaries = append(summaries, data)
		return "summary", nil
	})
	r.Learner = learnerFunc(func(_ context.Context, lc *llm.LearningContext) (string, error) {
		if lc.AgentName == "Agent_1" {
			return "", errors.New("no")
		}
		return "idle hurts after run " + strconv.Itoa(lc.RunNumber), nil
	})

	results, err := r.RunMany(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].RunNumber)
	assert.Equal(t, 2, results[1].RunNumber)
	assert.Equal(t, int64(10), results[0].Seed)
	assert.Equal(t, int64(11), results[1].Seed)
	assert.Equal(t, int64(10), sink.params[0].Seed)

	assert.Equal(t, []string{"", "", "idle hurts after run 1", LearningFailed}, prompts)
	assert.Equal(t, "idle hurts after run 2", r.Learning()["Agent_0"])

	require.Len(t, summaries, 2)
	assert.Equal(t, 2, summaries[0].ActionDistribution["do_nothing"])
	assert.Equal(t, "summary", sink.summaries[results[0].RunID])
	assert.Equal(t, "summary", results[1].Summary)
}

func TestSinkFailuresDoNotStopRun(t *testing.T) {
	p := DefaultParams()
	p.NumAgents = 2
	p.TurnsPerRun = 3
	p.Seed = 5
	p.PriceShockProbability = 1
	p.ChaosProbability = 1

	oracle := byAgent(map[string]agents.Decision{
		"Agent_0": agents.ParseDecision("swap", "", map[string]any{"from": "a", "amount": 10}),
		"Agent_1": agents.ParseDecision("provide_liquidity", "", map[string]any{"amount_a": 5, "amount_b": 5}),
	})
	summary := summarizerFunc(func(context.Context, *llm.SummaryData) (string, error) {
		return "fine", nil
	})

	broken := NewRunner(p, oracle)
	broken.Sink = brokenSink{}
	broken.Summarizer = summary
	got, err := broken.RunOnce(context.Background())
	require.NoError(t, err)

	clean := NewRunner(p, oracle)
	clean.Summarizer = summary
	want, err := clean.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 3, got.Turns)
	assert.Equal(t, 1, got.RunNumber)
	assert.Equal(t, "fine", got.Summary)
	assert.Equal(t, want.Metrics, got.Metrics)
	require.Len(t, got.Agents, 2)
	for i := range got.Agents {
		assert.Equal(t, want.Agents[i].TokenA, got.Agents[i].TokenA)
		assert.Equal(t, want.Agents[i].TokenB, got.Agents[i].TokenB)
		assert.Equal(t, want.Agents[i].Profit, got.Agents[i].Profit)
	}
	assert.Equal(t, want.Events, got.Events)
}

func TestSummaryErrorKeepsFallbackText(t *testing.T) {
	sink := newMemSink()
	r := NewRunner(calmParams(1, 1), idle())
	r.Sink = sink
	r.Summarizer = summarizerFunc(func(context.Context, *llm.SummaryData) (string, error) {
		return "fallback digest", errors.New("provider down")
	})

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "fallback digest", res.Summary)
	assert.Equal(t, "fallback digest", sink.summaries[res.RunID])
	assert.Equal(t, StatusCompleted, sink.status[res.RunID])
}

func TestRunnerSeedSource(t *testing.T) {
	p := calmParams(1, 1)
	p.Seed = 0

	r := NewRunner(p, idle())
	r.SeedSource = func() int64 { return 99 }
	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(99), res.Seed)
}

func TestRunWithExplicitSeed(t *testing.T) {
	p := calmParams(1, 1)
	p.Seed = 10
	r := NewRunner(p, idle())
	ctx := context.Background()

	first, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), first.Seed)

	q := p
	q.Seed = 42
	explicit, err := r.RunWith(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(42), explicit.Seed)

	q.Seed = 0
	continued, err := r.RunWith(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(12), continued.Seed)
	assert.Equal(t, int64(10), r.Params.Seed)
}

func TestRunnerRejectsInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.NumAgents = 0
	_, err := NewRunner(p, idle()).RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "num_agents"))
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.SwapFee = 1
	p.ChaosProbability = 2
	p.ChaosMinVolatility = 0.5
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "swap_fee")
	assert.Contains(t, err.Error(), "chaos_probability")
	assert.Contains(t, err.Error(), "chaos_min_volatility")

	p = DefaultParams()
	p.NumAgents = MaxAgents + 1
	p.TurnsPerRun = MaxTurnsPerRun + 1
	err = p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "num_agents")
	assert.Contains(t, err.Error(), "turns_per_run")

	p = DefaultParams()
	p.NumAgents = MaxAgents
	p.TurnsPerRun = MaxTurnsPerRun
	assert.NoError(t, p.Validate())
}

func TestEngineRun(t *testing.T) {
	n := 0
	eng := NewEngine(0, func(context.Context) error {
		n++
		return nil
	})
	require.NoError(t, eng.Run(context.Background(), 4))
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, eng.Turn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng = NewEngine(time.Hour, func(context.Context) error { return nil })
	assert.ErrorIs(t, eng.Run(ctx, 3), context.Canceled)
	assert.Zero(t, eng.Turn)
}

func TestEngineIntervalRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eng := NewEngine(time.Hour, func(context.Context) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, eng.Run(ctx, 3), context.Canceled)
	assert.Equal(t, 1, eng.Turn)
}
