// Package economy provides the constant-product liquidity pool that all
// agents and volatility actors trade against.
package economy

import (
	"math"
	"strings"
)

// DefaultSwapFee is the fraction of swap output retained by the pool.
const DefaultSwapFee = 0.003

// Token identifies one side of the pool.
type Token string

const (
	TokenA Token = "a"
	TokenB Token = "b"
)

// Other returns the opposite side of the pool.
func (t Token) Other() Token {
	if t == TokenA {
		return TokenB
	}
	return TokenA
}

// ParseToken maps a loose payload value ("a", "B", "token_b") to a Token.
// An empty value means side A. Any other unrecognized value reports false.
func ParseToken(s string) (Token, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "a", "token_a", "tokena":
		return TokenA, true
	case "b", "token_b", "tokenb":
		return TokenB, true
	default:
		return "", false
	}
}

// Pool is a two-asset constant-product automated market maker.
// The fee is taken from swap output before it leaves the pool, so k only grows.
type Pool struct {
	ReserveA           float64            `json:"reserve_a"`
	ReserveB           float64            `json:"reserve_b"`
	LiquidityProviders map[string]float64 `json:"liquidity_providers"`
	Fee                float64            `json:"fee"`
}

// PoolState is a point-in-time view of the pool used for prompts and snapshots.
type PoolState struct {
	ReserveA        float64 `json:"reserve_a"`
	ReserveB        float64 `json:"reserve_b"`
	PriceAB         float64 `json:"price_ab"`
	PriceBA         float64 `json:"price_ba"`
	TotalLiquidity  float64 `json:"total_liquidity"`
	ConstantProduct float64 `json:"constant_product"`
}

// NewPool creates a pool with the given reserves and swap fee rate.
func NewPool(reserveA, reserveB, fee float64) *Pool {
	return &Pool{
		ReserveA:           reserveA,
		ReserveB:           reserveB,
		LiquidityProviders: make(map[string]float64),
		Fee:                fee,
	}
}

// Swap trades amountIn of tokenIn for the opposite token and returns the
// amount paid out (fee already deducted) and the fee kept in the pool.
// Non-positive input is a no-op. There is no slippage limit.
func (p *Pool) Swap(tokenIn Token, amountIn float64, actor string) (amountOut, fee float64) {
	if !(amountIn > 0) {
		return 0, 0
	}

	if tokenIn == TokenA {
		amountOut = calculateOutput(amountIn, p.ReserveA, p.ReserveB)
		fee = amountOut * p.Fee
		amountOut -= fee
		p.ReserveA += amountIn
		p.ReserveB -= amountOut
	} else {
		amountOut = calculateOutput(amountIn, p.ReserveB, p.ReserveA)
		fee = amountOut * p.Fee
		amountOut -= fee
		p.ReserveB += amountIn
		p.ReserveA -= amountOut
	}
	return amountOut, fee
}

// ProvideLiquidity deposits both amounts and mints LP shares to actor.
// The first deposit mints the geometric mean; later deposits mint the smaller
// of the two proportional shares against pre-deposit reserves. Both full
// amounts are added regardless of balance, so lopsided deposits move the price.
func (p *Pool) ProvideLiquidity(amountA, amountB float64, actor string) float64 {
	if !(amountA > 0) || !(amountB > 0) {
		return 0
	}

	var lpTokens float64
	if p.TotalLiquidity() == 0 {
		lpTokens = math.Sqrt(amountA * amountB)
	} else {
		share := math.Min(amountA/p.ReserveA, amountB/p.ReserveB)
		lpTokens = share * (p.ReserveA + p.ReserveB)
	}

	p.ReserveA += amountA
	p.ReserveB += amountB
	if p.LiquidityProviders == nil {
		p.LiquidityProviders = make(map[string]float64)
	}
	p.LiquidityProviders[actor] += lpTokens
	return lpTokens
}

// WithdrawLiquidity burns lpTokens from actor and returns the proportional
// reserves. Over-withdrawal is not guarded; the actor balance can go negative.
func (p *Pool) WithdrawLiquidity(lpTokens float64, actor string) (amountA, amountB float64) {
	total := p.TotalLiquidity()
	if total == 0 || !(lpTokens > 0) {
		return 0, 0
	}

	share := lpTokens / total
	amountA = p.ReserveA * share
	amountB = p.ReserveB * share

	p.ReserveA -= amountA
	p.ReserveB -= amountB
	p.LiquidityProviders[actor] -= lpTokens
	return amountA, amountB
}

// PriceAB returns the price of A in terms of B.
func (p *Pool) PriceAB() float64 {
	if p.ReserveA <= 0 {
		return 0
	}
	return p.ReserveB / p.ReserveA
}

// PriceBA returns the price of B in terms of A.
func (p *Pool) PriceBA() float64 {
	if p.ReserveB <= 0 {
		return 0
	}
	return p.ReserveA / p.ReserveB
}

// TotalLiquidity returns the outstanding LP supply.
func (p *Pool) TotalLiquidity() float64 {
	total := 0.0
	for _, shares := range p.LiquidityProviders {
		total += shares
	}
	return total
}

// ConstantProduct returns k = reserveA * reserveB.
func (p *Pool) ConstantProduct() float64 {
	return p.ReserveA * p.ReserveB
}

// State returns a snapshot of the pool.
func (p *Pool) State() PoolState {
	return PoolState{
		ReserveA:        p.ReserveA,
		ReserveB:        p.ReserveB,
		PriceAB:         p.PriceAB(),
		PriceBA:         p.PriceBA(),
		TotalLiquidity:  p.TotalLiquidity(),
		ConstantProduct: p.ConstantProduct(),
	}
}

// calculateOutput applies (x + dx)(y - dy) = xy, i.e. dy = y*dx / (x + dx).
func calculateOutput(amountIn, reserveIn, reserveOut float64) float64 {
	if amountIn <= 0 || reserveIn <= 0 || reserveOut <= 0 {
		return 0
	}
	return amountIn * reserveOut / (reserveIn + amountIn)
}
