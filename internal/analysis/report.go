package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/amm-arena/internal/agents"
	"github.com/talgya/amm-arena/internal/economy"
)

// RunReport extends Metrics with descriptive figures for operators.
type RunReport struct {
	Metrics
	AgentCount  int     `json:"agent_count"`
	MinProfit   float64 `json:"min_profit"`
	MaxProfit   float64 `json:"max_profit"`
	TotalTrades int     `json:"total_trades"`
	PriceChange float64 `json:"pool_price_change"` // relative change of price_ab since run start
}

// BuildReport computes a RunReport. initialPrice is price_ab at run start.
func BuildReport(agentList []*agents.Agent, pool *economy.Pool, initialPrice float64) RunReport {
	r := RunReport{
		Metrics:    CalculateMetrics(agentList, pool),
		AgentCount: len(agentList),
	}

	profits := Profits(agentList)
	if len(profits) > 0 {
		sorted := append([]float64(nil), profits...)
		sort.Float64s(sorted)
		r.MinProfit = sorted[0]
		r.MaxProfit = sorted[len(sorted)-1]
	}

	for _, a := range agentList {
		r.TotalTrades += agents.CountActions(a, agents.ActionSwap)
	}

	if pool != nil && initialPrice > 0 {
		r.PriceChange = (pool.PriceAB() - initialPrice) / initialPrice
	}
	return r
}

// Inequality interprets a Gini coefficient.
func Inequality(gini float64) string {
	switch {
	case gini < 0.2:
		return "Low inequality"
	case gini < 0.4:
		return "Moderate inequality"
	default:
		return "High inequality"
	}
}

// FormatReport renders a report for the terminal.
func FormatReport(r RunReport) string {
	rule := strings.Repeat("=", 40)
	var b strings.Builder

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "SIMULATION REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Agents: %d\n", r.AgentCount)
	fmt.Fprintln(&b, strings.Repeat("-", 40))
	fmt.Fprintf(&b, "Gini Coefficient: %.4f\n", r.GiniCoefficient)
	fmt.Fprintf(&b, "Avg Profit: %.2f (min %.2f, max %.2f)\n", r.AvgAgentProfit, r.MinProfit, r.MaxProfit)
	fmt.Fprintf(&b, "Total Trades: %d\n", r.TotalTrades)
	fmt.Fprintf(&b, "Cooperation Rate: %.2f\n", r.CooperationRate)
	fmt.Fprintf(&b, "Pool Stability: %s\n", humanize.Commaf(float64(int64(r.PoolStability))))
	fmt.Fprintf(&b, "Price Change: %+.2f%%\n", r.PriceChange*100)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Inequality: %s\n", Inequality(r.GiniCoefficient))
	return b.String()
}

// FormatTrends renders cross-run trends for the terminal.
func FormatTrends(t Trends) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Runs analysed: %s\n", humanize.Comma(int64(t.RunCount)))
	fmt.Fprintf(&b, "Profit trend: %s (avg %.2f)\n", t.ProfitTrend, t.AvgProfit)
	fmt.Fprintf(&b, "Inequality trend: %s (avg gini %.3f)\n", t.InequalityTrend, t.AvgGini)
	return b.String()
}

// FormatArmsRace renders strategy profiles sorted by agent name.
func FormatArmsRace(profiles map[string]StrategyProfile) string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		p := profiles[name]
		fmt.Fprintf(&b, "%s: dominant=%s diversity=%.2f aggressiveness=%.2f counts=%v\n",
			name, p.DominantStrategy, p.StrategyDiversity, p.Aggressiveness, p.StrategyCounts)
	}
	return b.String()
}
