// Incentive resolution. Within a turn the order is fixed: action bonus
// after each agent acts, then boredom, alliances and the profit bonus once
// all agents have acted.
package engine

import (
	"fmt"

	"github.com/talgya/amm-arena/internal/agents"
)

// actionBonus pays the reward for a successful action. profitBefore is
// the agent's profit before it acted.
func (s *Simulation) actionBonus(a *agents.Agent, d agents.Decision, profitBefore float64, coordinated bool) float64 {
	p := s.Params
	bonus := 0.0

	switch d.Kind {
	case agents.ActionProvideLiquidity:
		bonus = p.LiquidityBonus
	case agents.ActionSwap:
		bonus = p.SwapBonus
		if coordinated {
			bonus += p.CoordinatedBonus
		}
		if a.Profit() > profitBefore {
			bonus += p.ProfitableTradeBonus
		}
	}

	if bonus > 0 {
		a.Credit(bonus)
	}
	return bonus
}

// applyBoredom charges every idle agent for its inaction streak.
func (s *Simulation) applyBoredom(turn int) {
	for _, a := range s.Agents {
		penalty := a.ApplyBoredomPenalty(s.Params.BoredomThreshold, s.Params.BoredomPenaltyPerTurn)
		if penalty > 0 {
			s.addEvent(turn, CategoryBoredom, a.Name,
				fmt.Sprintf("%s idle %d turns, penalized %.0f", a.Name, a.ConsecutiveInaction, penalty), penalty)
		}
	}
}

// resolveAlliances pays both sides of every mutual proposal, scaled by each
// side's fatigue toward the other, then marks the alliance successful.
// Pairs are visited in agent list order.
func (s *Simulation) resolveAlliances(turn int) {
	for i, a := range s.Agents {
		for _, b := range s.Agents[i+1:] {
			if a.Alliances[b.Name] != agents.AllianceProposed || b.Alliances[a.Name] != agents.AllianceProposed {
				continue
			}

			bonusA := s.Params.AllianceBonus * a.AllianceFatigue(b.Name)
			bonusB := s.Params.AllianceBonus * b.AllianceFatigue(a.Name)
			a.Credit(bonusA)
			b.Credit(bonusB)
			a.RecordProposal(b.Name)
			b.RecordProposal(a.Name)
			a.Alliances[b.Name] = agents.AllianceSuccess
			b.Alliances[a.Name] = agents.AllianceSuccess

			s.addEvent(turn, CategoryAlliance, a.Name,
				fmt.Sprintf("Alliance formed: %s (+%.1f) and %s (+%.1f)", a.Name, bonusA, b.Name, bonusB), bonusA+bonusB)
		}
	}
}

// applyProfitBonus rewards every agent that ends the turn in profit.
func (s *Simulation) applyProfitBonus() {
	for _, a := range s.Agents {
		if a.Profit() > 0 {
			a.Credit(s.Params.ProfitBonus)
		}
	}
}
