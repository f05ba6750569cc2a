// Action execution and incentive bookkeeping for a single agent.
package agents

import (
	"math"

	"github.com/talgya/amm-arena/internal/economy"
)

// Defaults for the boredom and fatigue rules.
const (
	DefaultBoredomThreshold      = 1
	DefaultBoredomPenaltyPerTurn = 10.0
)

// ExecuteAction applies a decision to the agent and the pool. It reports
// false, leaving everything untouched, when the agent cannot afford the
// order or the payload is invalid. do_nothing always succeeds.
func (a *Agent) ExecuteAction(d Decision, pool *economy.Pool) bool {
	switch d.Kind {
	case ActionSwap:
		return a.executeSwap(d.Swap, pool)
	case ActionProvideLiquidity:
		return a.executeLiquidity(d.Liquidity, pool)
	case ActionProposeAlliance:
		return a.executeAlliance(d.Alliance)
	default:
		return true
	}
}

func (a *Agent) executeSwap(order *SwapOrder, pool *economy.Pool) bool {
	if order == nil || !validAmount(order.Amount) {
		return false
	}

	switch order.From {
	case economy.TokenB:
		if a.TokenB < order.Amount {
			return false
		}
		out, _ := pool.Swap(economy.TokenB, order.Amount, a.Name)
		a.TokenB -= order.Amount
		a.TokenA += out
	case economy.TokenA:
		if a.TokenA < order.Amount {
			return false
		}
		out, _ := pool.Swap(economy.TokenA, order.Amount, a.Name)
		a.TokenA -= order.Amount
		a.TokenB += out
	default:
		return false
	}
	return true
}

func (a *Agent) executeLiquidity(order *LiquidityOrder, pool *economy.Pool) bool {
	if order == nil || !validAmount(order.AmountA) || !validAmount(order.AmountB) {
		return false
	}
	if a.TokenA < order.AmountA || a.TokenB < order.AmountB {
		return false
	}

	pool.ProvideLiquidity(order.AmountA, order.AmountB, a.Name)
	a.TokenA -= order.AmountA
	a.TokenB -= order.AmountB
	return true
}

func (a *Agent) executeAlliance(p *AllianceProposal) bool {
	if p == nil || p.Partner == "" {
		return false
	}
	a.Alliances[p.Partner] = AllianceProposed
	return true
}

// validAmount accepts zero (a harmless no-op order) but rejects negative
// and non-finite amounts, which would otherwise mint tokens.
func validAmount(x float64) bool {
	return x >= 0 && !math.IsInf(x, 0)
}

// ApplyBoredomPenalty charges the agent for its current inaction streak.
// The penalty escalates with streak length and comes out of token A only.
func (a *Agent) ApplyBoredomPenalty(threshold int, perTurn float64) float64 {
	if a.ConsecutiveInaction < threshold {
		return 0
	}
	penalty := float64(a.ConsecutiveInaction-threshold+1) * perTurn
	a.TokenA -= penalty
	a.TotalBoredomPenalty += penalty
	return penalty
}

// AllianceFatigue returns the bonus multiplier for another alliance with
// partner, based only on how often this agent has already proposed to them.
func (a *Agent) AllianceFatigue(partner string) float64 {
	switch a.AllianceProposalCounts[partner] {
	case 0:
		return 1.0
	case 1:
		return 0.5
	default:
		return 0.0
	}
}

// RecordProposal counts a resolved proposal toward partner.
func (a *Agent) RecordProposal(partner string) {
	a.AllianceProposalCounts[partner]++
}
