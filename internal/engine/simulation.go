// Simulation ties the pool, the agents and the incentive rules together
// and runs them one turn at a time.
package engine

import (
	"math/rand"

	"github.com/talgya/amm-arena/internal/agents"
	"github.com/talgya/amm-arena/internal/economy"
)

// Event categories.
const (
	CategoryVolatility = "volatility"
	CategoryAlliance   = "alliance"
	CategoryBoredom    = "boredom"
	CategoryFailure    = "failure"
)

// Simulation holds the complete state of one run. It is owned by a single
// goroutine; nothing here is safe for concurrent use.
type Simulation struct {
	Params     Params
	Pool       *economy.Pool
	Agents     []*agents.Agent
	AgentIndex map[string]*agents.Agent
	Events     []Event
	Actions    []ActionRecord
	Turn       int // next turn to run

	// Pool at run start, for price change and summaries.
	InitialPool economy.PoolState

	RunID  int64
	Oracle DecisionOracle
	Sink   Sink

	rng *rand.Rand
}

// Event is a notable occurrence during a run.
type Event struct {
	Turn        int     `json:"turn"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Actor       string  `json:"actor"`
	Amount      float64 `json:"amount"`
}

// NewSimulation creates a run with fresh agents and pool. learning carries
// each agent's summary from earlier runs, keyed by agent name; it may be nil.
func NewSimulation(p Params, learning map[string]string) *Simulation {
	ag := make([]*agents.Agent, p.NumAgents)
	index := make(map[string]*agents.Agent, p.NumAgents)
	for i := range ag {
		a := agents.NewAgent(agents.AgentName(i), p.InitialTokens)
		a.LearningSummary = learning[a.Name]
		ag[i] = a
		index[a.Name] = a
	}

	pool := economy.NewPool(p.PoolReserveA, p.PoolReserveB, p.SwapFee)
	return &Simulation{
		Params:      p,
		Pool:        pool,
		Agents:      ag,
		AgentIndex:  index,
		InitialPool: pool.State(),
		Sink:        &NopSink{},
		rng:         rand.New(rand.NewSource(p.Seed)),
	}
}

func (s *Simulation) addEvent(turn int, category, actor, desc string, amount float64) {
	s.Events = append(s.Events, Event{
		Turn:        turn,
		Description: desc,
		Category:    category,
		Actor:       actor,
		Amount:      amount,
	})
}

// EventsForTurn returns the events recorded during the given turn.
func (s *Simulation) EventsForTurn(turn int) []Event {
	var out []Event
	for _, e := range s.Events {
		if e.Turn == turn {
			out = append(out, e)
		}
	}
	return out
}

// AgentSnapshots captures every agent's balances for the given turn.
func (s *Simulation) AgentSnapshots(turn int) []AgentSnapshot {
	out := make([]AgentSnapshot, len(s.Agents))
	for i, a := range s.Agents {
		out[i] = AgentSnapshot{
			RunID:          s.RunID,
			Turn:           turn,
			AgentName:      a.Name,
			TokenA:         a.TokenA,
			TokenB:         a.TokenB,
			Profit:         a.Profit(),
			Strategy:       a.InferStrategy(),
			BoredomPenalty: a.TotalBoredomPenalty,
		}
	}
	return out
}

// PoolSnapshot captures the pool for the given turn.
func (s *Simulation) PoolSnapshot(turn int) PoolSnapshot {
	return PoolSnapshot{
		RunID:          s.RunID,
		Turn:           turn,
		ReserveA:       s.Pool.ReserveA,
		ReserveB:       s.Pool.ReserveB,
		PriceAB:        s.Pool.PriceAB(),
		TotalLiquidity: s.Pool.TotalLiquidity(),
	}
}

// ActionTypes lists the action label of every recorded agent action.
func (s *Simulation) ActionTypes() []string {
	out := make([]string, len(s.Actions))
	for i, a := range s.Actions {
		out[i] = a.ActionType
	}
	return out
}
