// Package engine provides the turn-based arena loop: volatility, agent
// decisions, incentive resolution and the multi-run runner.
package engine

import (
	"context"
	"log/slog"
	"time"
)

// Engine drives a run forward one turn at a time.
type Engine struct {
	Turn     int           // Turns completed so far
	Interval time.Duration // Pause between turns, 0 for none

	// OnTurn runs a single turn. An error stops the loop.
	OnTurn func(ctx context.Context) error
}

// NewEngine creates an engine that pauses interval between turns.
func NewEngine(interval time.Duration, onTurn func(ctx context.Context) error) *Engine {
	return &Engine{
		Interval: interval,
		OnTurn:   onTurn,
	}
}

// Run executes turns until the engine has completed the given number or
// ctx is cancelled. It returns ctx's error on cancellation.
func (e *Engine) Run(ctx context.Context, turns int) error {
	slog.Debug("engine started", "turn", e.Turn, "turns", turns)

	for e.Turn < turns {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := e.step(ctx); err != nil {
			return err
		}

		if e.Interval > 0 && e.Turn < turns {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.Interval):
			}
		}
	}

	slog.Debug("engine stopped", "turn", e.Turn)
	return nil
}

// step advances the run by one turn.
func (e *Engine) step(ctx context.Context) error {
	if e.OnTurn != nil {
		if err := e.OnTurn(ctx); err != nil {
			return err
		}
	}
	e.Turn++
	return nil
}
