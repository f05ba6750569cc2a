package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/talgya/amm-arena/internal/agents"
	"github.com/talgya/amm-arena/internal/economy"
	"github.com/talgya/amm-arena/internal/llm"
)

// Params is the full configuration of a run. Every incentive and
// volatility constant is tunable; DefaultParams holds the standard values.
type Params struct {
	NumAgents     int     `yaml:"num_agents" json:"num_agents"`
	TurnsPerRun   int     `yaml:"turns_per_run" json:"turns_per_run"`
	TotalRuns     int     `yaml:"total_runs" json:"total_runs"`
	InitialTokens float64 `yaml:"initial_tokens" json:"initial_tokens"`

	PoolReserveA float64 `yaml:"pool_reserve_a" json:"pool_reserve_a"`
	PoolReserveB float64 `yaml:"pool_reserve_b" json:"pool_reserve_b"`
	SwapFee      float64 `yaml:"swap_fee" json:"swap_fee"`

	// Incentives.
	LiquidityBonus        float64 `yaml:"liquidity_bonus" json:"liquidity_bonus"`
	SwapBonus             float64 `yaml:"swap_bonus" json:"swap_bonus"`
	CoordinatedBonus      float64 `yaml:"coordinated_bonus" json:"coordinated_bonus"`
	ProfitableTradeBonus  float64 `yaml:"profitable_trade_bonus" json:"profitable_trade_bonus"`
	AllianceBonus         float64 `yaml:"alliance_bonus" json:"alliance_bonus"`
	ProfitBonus           float64 `yaml:"profit_bonus" json:"profit_bonus"`
	BoredomThreshold      int     `yaml:"boredom_threshold" json:"boredom_threshold"`
	BoredomPenaltyPerTurn float64 `yaml:"boredom_penalty_per_turn" json:"boredom_penalty_per_turn"`

	// Volatility.
	MarketMakerInterval   int     `yaml:"market_maker_interval" json:"market_maker_interval"`
	MarketMakerVolatility float64 `yaml:"market_maker_volatility" json:"market_maker_volatility"`
	PriceShockProbability float64 `yaml:"price_shock_probability" json:"price_shock_probability"`
	PriceShockMax         float64 `yaml:"price_shock_max" json:"price_shock_max"`
	ChaosProbability      float64 `yaml:"chaos_probability" json:"chaos_probability"`
	ChaosMinVolatility    float64 `yaml:"chaos_min_volatility" json:"chaos_min_volatility"`
	ChaosMaxVolatility    float64 `yaml:"chaos_max_volatility" json:"chaos_max_volatility"`
	MassiveSwapMultiplier float64 `yaml:"massive_swap_multiplier" json:"massive_swap_multiplier"`

	// Seed for every random draw of a run. 0 asks the runner for a fresh one.
	Seed int64 `yaml:"seed" json:"seed"`

	// Pause between turns.
	TurnDelay time.Duration `yaml:"turn_delay" json:"turn_delay"`
}

// DefaultParams returns the standard arena configuration.
func DefaultParams() Params {
	return Params{
		NumAgents:     5,
		TurnsPerRun:   5,
		TotalRuns:     1,
		InitialTokens: 100,

		PoolReserveA: 1000,
		PoolReserveB: 1000,
		SwapFee:      economy.DefaultSwapFee,

		LiquidityBonus:        8,
		SwapBonus:             3,
		CoordinatedBonus:      5,
		ProfitableTradeBonus:  5,
		AllianceBonus:         4,
		ProfitBonus:           10,
		BoredomThreshold:      agents.DefaultBoredomThreshold,
		BoredomPenaltyPerTurn: agents.DefaultBoredomPenaltyPerTurn,

		MarketMakerInterval:   3,
		MarketMakerVolatility: 0.15,
		PriceShockProbability: 0.15,
		PriceShockMax:         0.10,
		ChaosProbability:      0.20,
		ChaosMinVolatility:    0.15,
		ChaosMaxVolatility:    0.40,
		MassiveSwapMultiplier: 1.5,
	}
}

// Upper bounds on run size. Each agent costs an oracle call per turn.
const (
	MaxAgents      = 100
	MaxTurnsPerRun = 1000
)

// Validate reports every setting that would make a run meaningless.
func (p Params) Validate() error {
	var errs []error
	if p.NumAgents < 1 || p.NumAgents > MaxAgents {
		errs = append(errs, fmt.Errorf("num_agents must be in [1, %d], got %d", MaxAgents, p.NumAgents))
	}
	if p.TurnsPerRun < 1 || p.TurnsPerRun > MaxTurnsPerRun {
		errs = append(errs, fmt.Errorf("turns_per_run must be in [1, %d], got %d", MaxTurnsPerRun, p.TurnsPerRun))
	}
	if p.TotalRuns < 1 {
		errs = append(errs, fmt.Errorf("total_runs must be positive, got %d", p.TotalRuns))
	}
	if p.InitialTokens < 0 {
		errs = append(errs, fmt.Errorf("initial_tokens must not be negative"))
	}
	if !(p.PoolReserveA > 0) || !(p.PoolReserveB > 0) {
		errs = append(errs, fmt.Errorf("pool reserves must be positive"))
	}
	if p.SwapFee < 0 || p.SwapFee >= 1 {
		errs = append(errs, fmt.Errorf("swap_fee must be in [0, 1), got %g", p.SwapFee))
	}
	if p.BoredomThreshold < 1 {
		errs = append(errs, fmt.Errorf("boredom_threshold must be at least 1"))
	}
	if p.MarketMakerInterval < 1 {
		errs = append(errs, fmt.Errorf("market_maker_interval must be at least 1"))
	}
	if p.PriceShockProbability < 0 || p.PriceShockProbability > 1 {
		errs = append(errs, fmt.Errorf("price_shock_probability must be in [0, 1], got %g", p.PriceShockProbability))
	}
	if p.ChaosProbability < 0 || p.ChaosProbability > 1 {
		errs = append(errs, fmt.Errorf("chaos_probability must be in [0, 1], got %g", p.ChaosProbability))
	}
	if p.ChaosMinVolatility > p.ChaosMaxVolatility {
		errs = append(errs, fmt.Errorf("chaos_min_volatility exceeds chaos_max_volatility"))
	}
	return errors.Join(errs...)
}

// Rules returns the incentive constants in the form shown to agents.
func (p Params) Rules() llm.Rules {
	return llm.Rules{
		LiquidityBonus:        p.LiquidityBonus,
		SwapBonus:             p.SwapBonus,
		CoordinatedBonus:      p.CoordinatedBonus,
		ProfitableTradeBonus:  p.ProfitableTradeBonus,
		AllianceBonus:         p.AllianceBonus,
		ProfitBonus:           p.ProfitBonus,
		BoredomThreshold:      p.BoredomThreshold,
		BoredomPenaltyPerTurn: p.BoredomPenaltyPerTurn,
	}
}
