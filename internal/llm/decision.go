// Agent decisions: each agent asks the model for one action per turn.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/talgya/amm-arena/internal/agents"
	"github.com/talgya/amm-arena/internal/economy"
)

const decisionMaxTokens = 1024

// Rules are the incentive constants shown to the model so it can reason
// about bonuses and penalties.
type Rules struct {
	LiquidityBonus        float64
	SwapBonus             float64
	CoordinatedBonus      float64
	ProfitableTradeBonus  float64
	AllianceBonus         float64
	ProfitBonus           float64
	BoredomThreshold      int
	BoredomPenaltyPerTurn float64
}

// DecisionContext is everything an agent sees when choosing an action.
type DecisionContext struct {
	Agent               agents.State
	ConsecutiveInaction int
	LearningSummary     string

	Pool  economy.PoolState
	Peers []agents.State

	Turn       int
	TotalTurns int
	Events     []string // volatility events fired earlier this turn
	Rules      Rules
}

// decisionResponse is the JSON object the model returns. Some models name
// the action field action_type.
type decisionResponse struct {
	Action     string         `json:"action"`
	ActionType string         `json:"action_type"`
	Reasoning  string         `json:"reasoning"`
	Payload    map[string]any `json:"payload"`
}

// Decide asks the model for the agent's action this turn. It returns the
// decision and the provider's reasoning trace. A disabled client or an
// unparseable reply yields do_nothing without an error; transport failures
// are returned so the caller can record them.
func (c *Client) Decide(ctx context.Context, dc *DecisionContext) (agents.Decision, string, error) {
	if !c.Enabled() {
		return agents.DoNothing("LLM disabled"), "", nil
	}

	resp, err := c.Complete(ctx, decisionSystemPrompt, buildDecisionPrompt(dc), decisionMaxTokens)
	if err != nil {
		return agents.Decision{}, "", fmt.Errorf("decide %s: %w", dc.Agent.Name, err)
	}

	d, err := ParseDecisionResponse(resp.Text)
	if err != nil {
		return agents.DoNothing("Unparseable response: " + err.Error()), resp.Thinking, nil
	}
	return d, resp.Thinking, nil
}

const decisionSystemPrompt = `You are a strategic DeFi trader in an automated market simulation.
Analyze the market state and make optimal trading decisions.
Output ONLY valid JSON with your reasoning.`

func buildDecisionPrompt(dc *DecisionContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, an AI agent in a DeFi market simulation. Turn %d of %d.\n\n",
		dc.Agent.Name, dc.Turn+1, dc.TotalTurns)

	b.WriteString("=== YOUR STATE ===\n")
	fmt.Fprintf(&b, "Token A: %.2f\nToken B: %.2f\nProfit: %.2f\n", dc.Agent.TokenA, dc.Agent.TokenB, dc.Agent.Profit)
	if dc.ConsecutiveInaction > 0 {
		fmt.Fprintf(&b, "Consecutive turns idle: %d\n", dc.ConsecutiveInaction)
	}
	if len(dc.Agent.Alliances) > 0 {
		alliances, _ := json.Marshal(dc.Agent.Alliances)
		fmt.Fprintf(&b, "Alliances: %s\n", alliances)
	}

	b.WriteString("\n=== MARKET STATE ===\n")
	fmt.Fprintf(&b, "Pool reserves: A=%.2f, B=%.2f\n", dc.Pool.ReserveA, dc.Pool.ReserveB)
	fmt.Fprintf(&b, "Price (A/B): %.4f\n", dc.Pool.PriceAB)
	if len(dc.Events) > 0 {
		b.WriteString("This turn:\n")
		for _, e := range dc.Events {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	b.WriteString("\n=== OTHER AGENTS ===\n")
	peers, _ := json.MarshalIndent(dc.Peers, "", "  ")
	b.Write(peers)
	b.WriteString("\n")

	b.WriteString("\n=== YOUR LEARNING ===\n")
	if dc.LearningSummary != "" {
		b.WriteString(dc.LearningSummary)
	} else {
		b.WriteString("No previous runs yet.")
	}
	b.WriteString("\n")

	r := dc.Rules
	b.WriteString("\n=== INCENTIVES ===\n")
	fmt.Fprintf(&b, "- provide_liquidity: +%.0f token A\n", r.LiquidityBonus)
	fmt.Fprintf(&b, "- swap: +%.0f token A, +%.0f more after a market-maker or price-shock event, +%.0f more if the trade is profitable\n",
		r.SwapBonus, r.CoordinatedBonus, r.ProfitableTradeBonus)
	fmt.Fprintf(&b, "- mutual alliance (both propose to each other): +%.0f each, halved the second time, nothing after\n", r.AllianceBonus)
	fmt.Fprintf(&b, "- positive profit at turn end: +%.0f\n", r.ProfitBonus)
	fmt.Fprintf(&b, "- idling %d+ turns in a row costs %.0f token A per turn, escalating\n", r.BoredomThreshold, r.BoredomPenaltyPerTurn)

	b.WriteString(`
=== AVAILABLE ACTIONS ===
1. "swap": Trade tokens (payload: {"from": "a"|"b", "amount": number})
2. "provide_liquidity": Add liquidity to pool (payload: {"amount_a": number, "amount_b": number})
3. "propose_alliance": Suggest collaboration (payload: {"agent_name": "Agent_N"})
4. "do_nothing": Wait for better opportunity

Output JSON:
{
    "action": "swap|provide_liquidity|propose_alliance|do_nothing",
    "reasoning": "your reasoning",
    "payload": {...action specific data...}
}
`)
	return b.String()
}

// ParseDecisionResponse extracts a decision from a model reply, accepting
// bare JSON, prose around JSON, or a fenced code block.
func ParseDecisionResponse(response string) (agents.Decision, error) {
	jsonStr, err := extractJSONObject(response)
	if err != nil {
		return agents.Decision{}, err
	}

	var resp decisionResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return agents.Decision{}, fmt.Errorf("parse decision: %w", err)
	}

	action := resp.Action
	if action == "" {
		action = resp.ActionType
	}
	return agents.ParseDecision(action, resp.Reasoning, resp.Payload), nil
}
