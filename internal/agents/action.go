package agents

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/talgya/amm-arena/internal/economy"
)

// ActionKind enumerates the fixed action vocabulary.
type ActionKind string

const (
	ActionSwap             ActionKind = "swap"
	ActionProvideLiquidity ActionKind = "provide_liquidity"
	ActionProposeAlliance  ActionKind = "propose_alliance"
	ActionDoNothing        ActionKind = "do_nothing"
)

// SwapOrder sells Amount of From for the opposite token. A From that
// names neither side fails execution.
type SwapOrder struct {
	From   economy.Token `json:"from"`
	Amount float64       `json:"amount"`
}

// LiquidityOrder deposits both amounts into the pool.
type LiquidityOrder struct {
	AmountA float64 `json:"amount_a"`
	AmountB float64 `json:"amount_b"`
}

// AllianceProposal names the agent being courted.
type AllianceProposal struct {
	Partner string `json:"agent_name"`
}

// Decision is one agent's choice for a turn. Exactly one payload matching
// Kind is set; do_nothing carries none.
type Decision struct {
	Kind      ActionKind        `json:"action"`
	Reasoning string            `json:"reasoning"`
	Swap      *SwapOrder        `json:"swap,omitempty"`
	Liquidity *LiquidityOrder   `json:"liquidity,omitempty"`
	Alliance  *AllianceProposal `json:"alliance,omitempty"`
}

// DoNothing returns an idle decision with the given reasoning.
func DoNothing(reasoning string) Decision {
	return Decision{Kind: ActionDoNothing, Reasoning: reasoning}
}

// Payload returns the decision's payload in the wire shape the oracle uses.
func (d Decision) Payload() map[string]any {
	switch d.Kind {
	case ActionSwap:
		if d.Swap != nil {
			return map[string]any{"from": string(d.Swap.From), "amount": d.Swap.Amount}
		}
	case ActionProvideLiquidity:
		if d.Liquidity != nil {
			return map[string]any{"amount_a": d.Liquidity.AmountA, "amount_b": d.Liquidity.AmountB}
		}
	case ActionProposeAlliance:
		if d.Alliance != nil {
			return map[string]any{"agent_name": d.Alliance.Partner}
		}
	}
	return map[string]any{}
}

// ParseDecision normalizes a loosely-typed oracle response into a Decision.
// Unknown or missing action labels become do_nothing. Payload numbers may
// arrive as JSON numbers or strings; unparseable amounts read as zero.
func ParseDecision(action, reasoning string, payload map[string]any) Decision {
	d := Decision{Reasoning: reasoning}

	switch ActionKind(strings.ToLower(strings.TrimSpace(action))) {
	case ActionSwap:
		raw := cast.ToString(payload["from"])
		from, ok := economy.ParseToken(raw)
		if !ok {
			// kept as given so execution rejects it
			from = economy.Token(raw)
		}
		d.Kind = ActionSwap
		d.Swap = &SwapOrder{
			From:   from,
			Amount: cast.ToFloat64(payload["amount"]),
		}
	case ActionProvideLiquidity:
		d.Kind = ActionProvideLiquidity
		d.Liquidity = &LiquidityOrder{
			AmountA: cast.ToFloat64(payload["amount_a"]),
			AmountB: cast.ToFloat64(payload["amount_b"]),
		}
	case ActionProposeAlliance:
		partner := cast.ToString(payload["agent_name"])
		if partner == "" {
			partner = cast.ToString(payload["agent"])
		}
		d.Kind = ActionProposeAlliance
		d.Alliance = &AllianceProposal{Partner: strings.TrimSpace(partner)}
	default:
		d.Kind = ActionDoNothing
	}
	return d
}
