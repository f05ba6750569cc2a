package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/amm-arena/internal/agents"
	"github.com/talgya/amm-arena/internal/llm"
)

// StepTurn runs one full turn: volatility, each agent's decision and
// action in list order, then boredom, alliances and the profit bonus.
// Cancellation aborts the turn before the next agent decides; whatever
// already happened stays applied.
func (s *Simulation) StepTurn(ctx context.Context) error {
	turn := s.Turn
	coordinated := s.runVolatility(turn)
	events := describe(s.EventsForTurn(turn))

	for _, a := range s.Agents {
		if err := ctx.Err(); err != nil {
			return err
		}

		d, thinking, err := s.decide(ctx, a, turn, events)
		if err != nil {
			return err
		}

		profitBefore := a.Profit()
		ok := a.ExecuteAction(d, s.Pool)
		a.RecordDecision(turn, d, thinking)

		bonus := 0.0
		if ok {
			bonus = s.actionBonus(a, d, profitBefore, coordinated)
		} else {
			s.addEvent(turn, CategoryFailure, a.Name, fmt.Sprintf("%s failed to %s", a.Name, d.Kind), 0)
		}

		slog.Debug("agent acted", "turn", turn, "agent", a.Name, "action", d.Kind, "ok", ok, "bonus", bonus)
		s.recordAction(ctx, ActionRecord{
			RunID:      s.RunID,
			Turn:       turn,
			AgentName:  a.Name,
			ActionType: string(d.Kind),
			Payload:    d.Payload(),
			Success:    ok,
			Reasoning:  d.Reasoning,
			Thinking:   thinking,
		})
	}

	s.applyBoredom(turn)
	s.resolveAlliances(turn)
	s.applyProfitBonus()

	s.saveSnapshot(ctx, turn)
	s.Turn++
	return nil
}

// decide asks the oracle for an agent's action. Oracle failures become
// do_nothing with the error as reasoning; only cancellation is returned.
func (s *Simulation) decide(ctx context.Context, a *agents.Agent, turn int, events []string) (agents.Decision, string, error) {
	if s.Oracle == nil {
		return agents.DoNothing("No decision oracle"), "", nil
	}

	d, thinking, err := s.Oracle.Decide(ctx, s.decisionContext(a, turn, events))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return agents.Decision{}, "", ctxErr
		}
		slog.Warn("decision failed", "turn", turn, "agent", a.Name, "error", err)
		return agents.DoNothing("Error: " + err.Error()), "", nil
	}
	return d, thinking, nil
}

func (s *Simulation) decisionContext(a *agents.Agent, turn int, events []string) *llm.DecisionContext {
	peers := make([]agents.State, 0, len(s.Agents)-1)
	for _, other := range s.Agents {
		if other != a {
			peers = append(peers, other.State())
		}
	}

	return &llm.DecisionContext{
		Agent:               a.State(),
		ConsecutiveInaction: a.ConsecutiveInaction,
		LearningSummary:     a.LearningSummary,
		Pool:                s.Pool.State(),
		Peers:               peers,
		Turn:                turn,
		TotalTurns:          s.Params.TurnsPerRun,
		Events:              events,
		Rules:               s.Params.Rules(),
	}
}

func (s *Simulation) recordAction(ctx context.Context, rec ActionRecord) {
	s.Actions = append(s.Actions, rec)
	if err := s.Sink.SaveAction(ctx, rec); err != nil {
		slog.Warn("save action failed", "run_id", s.RunID, "turn", rec.Turn, "agent", rec.AgentName, "error", err)
	}
}

func (s *Simulation) saveSnapshot(ctx context.Context, turn int) {
	if err := s.Sink.SaveAgentStates(ctx, s.AgentSnapshots(turn)); err != nil {
		slog.Warn("save agent states failed", "run_id", s.RunID, "turn", turn, "error", err)
	}
	if err := s.Sink.SavePoolState(ctx, s.PoolSnapshot(turn)); err != nil {
		slog.Warn("save pool state failed", "run_id", s.RunID, "turn", turn, "error", err)
	}
}

func describe(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Description
	}
	return out
}
