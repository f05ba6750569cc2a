// Volatility actors: non-agent traders that move the pool before agents
// decide each turn. They never touch agent balances.
package engine

import (
	"fmt"
	"math"

	"github.com/talgya/amm-arena/internal/economy"
)

// Volatility actor names, used as the pool actor and in events.
const (
	ActorMarketMaker = "market_maker"
	ActorPriceShock  = "price_shock"
	ActorChaos       = "chaos_actor"
)

// Chaos actor behaviors.
const (
	ChaosSwap        = "swap"
	ChaosLiquidity   = "liquidity"
	ChaosMassiveSwap = "massive_swap"
)

var chaosKinds = []string{ChaosSwap, ChaosLiquidity, ChaosMassiveSwap}

// runVolatility fires the market maker, price shock and chaos actor in that
// order. It reports whether a market-maker or price-shock event fired, which
// makes swaps this turn eligible for the coordinated bonus.
func (s *Simulation) runVolatility(turn int) (coordinated bool) {
	if s.marketMaker(turn) {
		coordinated = true
	}
	if s.priceShock(turn) {
		coordinated = true
	}
	s.chaosActor(turn)
	return coordinated
}

// marketMaker trades a fixed fraction of reserve A every few turns in a
// random direction.
func (s *Simulation) marketMaker(turn int) bool {
	p := s.Params
	if (turn+1)%p.MarketMakerInterval != 0 {
		return false
	}

	tokenIn := economy.TokenA
	if s.rng.Intn(2) == 1 {
		tokenIn = economy.TokenB
	}
	amount := s.Pool.ReserveA * p.MarketMakerVolatility
	out, _ := s.Pool.Swap(tokenIn, amount, ActorMarketMaker)

	s.addEvent(turn, CategoryVolatility, ActorMarketMaker,
		fmt.Sprintf("Market maker sold %.2f %s for %.2f %s", amount, tokenIn, out, tokenIn.Other()), amount)
	return true
}

// priceShock occasionally pushes the price up or down by a random fraction.
// A positive shock buys A with B; a negative one buys B with A.
func (s *Simulation) priceShock(turn int) bool {
	p := s.Params
	if s.rng.Float64() >= p.PriceShockProbability {
		return false
	}

	shock := (s.rng.Float64()*2 - 1) * p.PriceShockMax
	tokenIn := economy.TokenA
	if shock > 0 {
		tokenIn = economy.TokenB
	}
	amount := s.Pool.ReserveA * math.Abs(shock)
	s.Pool.Swap(tokenIn, amount, ActorPriceShock)

	s.addEvent(turn, CategoryVolatility, ActorPriceShock,
		fmt.Sprintf("Price shock of %+.1f%% (%.2f %s in)", shock*100, amount, tokenIn), amount)
	return true
}

// chaosActor occasionally makes a large random trade or deposit.
func (s *Simulation) chaosActor(turn int) {
	p := s.Params
	if s.rng.Float64() >= p.ChaosProbability {
		return
	}

	kind := chaosKinds[s.rng.Intn(len(chaosKinds))]
	v := p.ChaosMinVolatility + s.rng.Float64()*(p.ChaosMaxVolatility-p.ChaosMinVolatility)

	switch kind {
	case ChaosLiquidity:
		amountA := s.Pool.ReserveA * v
		amountB := s.Pool.ReserveB * v
		s.Pool.ProvideLiquidity(amountA, amountB, ActorChaos)
		s.addEvent(turn, CategoryVolatility, ActorChaos,
			fmt.Sprintf("Chaos actor deposited %.2f A and %.2f B", amountA, amountB), amountA)
	default:
		tokenIn := economy.TokenA
		if s.rng.Intn(2) == 1 {
			tokenIn = economy.TokenB
		}
		amount := s.Pool.ReserveA * v
		if kind == ChaosMassiveSwap {
			amount *= p.MassiveSwapMultiplier
		}
		s.Pool.Swap(tokenIn, amount, ActorChaos)
		s.addEvent(turn, CategoryVolatility, ActorChaos,
			fmt.Sprintf("Chaos actor %s: %.2f %s in", kind, amount, tokenIn), amount)
	}
}
