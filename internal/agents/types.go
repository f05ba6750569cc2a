// Package agents provides the per-agent economic state: balances, alliance
// bookkeeping, inaction tracking and the action executor.
package agents

import "fmt"

// AllianceStatus is the state of an alliance this agent holds toward a partner.
type AllianceStatus string

const (
	AllianceProposed AllianceStatus = "proposed"
	AllianceSuccess  AllianceStatus = "success"
)

// Agent is one trader in the arena. It is created with an equal endowment of
// both tokens at run start and mutated every turn.
type Agent struct {
	Name          string  `json:"name"`
	TokenA        float64 `json:"token_a"`
	TokenB        float64 `json:"token_b"`
	InitialTokens float64 `json:"initial_tokens"`

	// Alliance bookkeeping.
	Alliances              map[string]AllianceStatus `json:"alliances"`
	AllianceProposalCounts map[string]int            `json:"alliance_proposal_counts"`

	// Inaction tracking.
	ConsecutiveInaction int     `json:"consecutive_inaction"`
	TotalBoredomPenalty float64 `json:"total_boredom_penalty"`

	TradeHistory    []TradeRecord `json:"trade_history"`
	LearningSummary string        `json:"learning_summary"`
}

// State is the compact view of an agent shown to peers and the decision oracle.
type State struct {
	Name      string                    `json:"name"`
	TokenA    float64                   `json:"token_a"`
	TokenB    float64                   `json:"token_b"`
	Profit    float64                   `json:"profit"`
	Alliances map[string]AllianceStatus `json:"alliances"`
}

// NewAgent creates an agent holding initialTokens of each token.
func NewAgent(name string, initialTokens float64) *Agent {
	return &Agent{
		Name:                   name,
		TokenA:                 initialTokens,
		TokenB:                 initialTokens,
		InitialTokens:          initialTokens,
		Alliances:              make(map[string]AllianceStatus),
		AllianceProposalCounts: make(map[string]int),
	}
}

// AgentName returns the stable name of the i-th agent of a run.
func AgentName(i int) string {
	return fmt.Sprintf("Agent_%d", i)
}

// Profit is the change in combined holdings relative to the starting endowment.
func (a *Agent) Profit() float64 {
	return (a.TokenA + a.TokenB) - 2*a.InitialTokens
}

// State returns the peer-visible view of the agent.
func (a *Agent) State() State {
	alliances := make(map[string]AllianceStatus, len(a.Alliances))
	for k, v := range a.Alliances {
		alliances[k] = v
	}
	return State{
		Name:      a.Name,
		TokenA:    a.TokenA,
		TokenB:    a.TokenB,
		Profit:    a.Profit(),
		Alliances: alliances,
	}
}

// Credit adds amount to token A. All incentive bonuses are paid this way.
func (a *Agent) Credit(amount float64) {
	a.TokenA += amount
}
