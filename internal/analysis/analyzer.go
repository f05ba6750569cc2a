// Package analysis computes run metrics and cross-run patterns from the
// historical record. Nothing here mutates simulation state.
package analysis

import (
	"sort"

	"github.com/talgya/amm-arena/internal/agents"
	"github.com/talgya/amm-arena/internal/economy"
)

// Trend labels.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// trendThreshold is the half-over-half mean change that counts as movement.
const trendThreshold = 0.1

// Metrics are the end-of-run figures persisted for every run.
type Metrics struct {
	GiniCoefficient float64 `json:"gini_coefficient" db:"gini_coefficient"`
	AvgAgentProfit  float64 `json:"avg_agent_profit" db:"avg_agent_profit"`
	CooperationRate float64 `json:"cooperation_rate" db:"cooperation_rate"`
	BetrayalCount   int     `json:"betrayal_count" db:"betrayal_count"` // reserved, always 0
	PoolStability   float64 `json:"pool_stability" db:"pool_stability"`
}

// CalculateMetrics derives run metrics from the final agents and pool.
func CalculateMetrics(agentList []*agents.Agent, pool *economy.Pool) Metrics {
	if len(agentList) == 0 {
		return Metrics{}
	}

	profits := Profits(agentList)
	total := 0.0
	for _, p := range profits {
		total += p
	}

	m := Metrics{
		GiniCoefficient: GiniCoefficient(profits),
		AvgAgentProfit:  total / float64(len(profits)),
		CooperationRate: CooperationRate(agentList),
	}
	if pool != nil {
		m.PoolStability = pool.ReserveA * pool.ReserveB
	}
	return m
}

// Profits returns each agent's profit in list order.
func Profits(agentList []*agents.Agent) []float64 {
	profits := make([]float64, len(agentList))
	for i, a := range agentList {
		profits[i] = a.Profit()
	}
	return profits
}

// GiniCoefficient measures inequality of values on [0, 1]. Empty and
// zero-sum inputs yield 0.
func GiniCoefficient(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	weighted := 0.0
	for i, v := range sorted {
		sum += v
		weighted += float64(i+1) * v
	}
	if sum == 0 {
		return 0
	}

	n := float64(len(sorted))
	gini := (2*weighted)/(n*sum) - (n+1)/n
	if gini < 0 {
		return 0
	}
	if gini > 1 {
		return 1
	}
	return gini
}

// CooperationRate is the number of alliance entries (proposed or
// successful) per agent.
func CooperationRate(agentList []*agents.Agent) float64 {
	total := 0
	for _, a := range agentList {
		total += len(a.Alliances)
	}
	n := len(agentList)
	if n < 1 {
		n = 1
	}
	return float64(total) / float64(n)
}

// Trends summarizes how metrics move across a series of runs.
type Trends struct {
	ProfitTrend     string  `json:"profit_trend"`
	InequalityTrend string  `json:"inequality_trend"`
	AvgProfit       float64 `json:"avg_profit"`
	AvgGini         float64 `json:"avg_gini"`
	RunCount        int     `json:"run_count"`
}

// DetectTrends compares profit and inequality across runs in order.
func DetectTrends(runs []Metrics) Trends {
	profits := make([]float64, len(runs))
	ginis := make([]float64, len(runs))
	for i, r := range runs {
		profits[i] = r.AvgAgentProfit
		ginis[i] = r.GiniCoefficient
	}

	return Trends{
		ProfitTrend:     TrendDirection(profits),
		InequalityTrend: TrendDirection(ginis),
		AvgProfit:       mean(profits),
		AvgGini:         mean(ginis),
		RunCount:        len(runs),
	}
}

// TrendDirection splits values in half and compares the means.
func TrendDirection(values []float64) string {
	if len(values) < 2 {
		return TrendStable
	}

	half := len(values) / 2
	diff := mean(values[half:]) - mean(values[:half])
	switch {
	case diff > trendThreshold:
		return TrendUp
	case diff < -trendThreshold:
		return TrendDown
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// ActionSample is the minimum an action record needs for strategy analysis.
type ActionSample struct {
	AgentName  string `json:"agent_name" db:"agent_name"`
	ActionType string `json:"action_type" db:"action_type"`
}

// StrategyProfile describes one agent's behavior over a run.
type StrategyProfile struct {
	DominantStrategy  string         `json:"dominant_strategy"`
	StrategyCounts    map[string]int `json:"strategy_counts"`
	StrategyDiversity float64        `json:"strategy_diversity"`
	Aggressiveness    float64        `json:"aggressiveness"`
}

// DetectArmsRaces profiles every agent that appears in actions.
func DetectArmsRaces(actions []ActionSample) map[string]StrategyProfile {
	byAgent := make(map[string][]string)
	for _, act := range actions {
		name := act.AgentName
		if name == "" {
			name = "unknown"
		}
		kind := act.ActionType
		if kind == "" {
			kind = "unknown"
		}
		byAgent[name] = append(byAgent[name], kind)
	}

	profiles := make(map[string]StrategyProfile, len(byAgent))
	for name, list := range byAgent {
		profiles[name] = profile(list)
	}
	return profiles
}

func profile(list []string) StrategyProfile {
	counts := make(map[string]int)
	var order []string
	for _, kind := range list {
		if _, seen := counts[kind]; !seen {
			order = append(order, kind)
		}
		counts[kind]++
	}

	dominant := ""
	best := 0
	for _, kind := range order {
		if counts[kind] > best {
			dominant = kind
			best = counts[kind]
		}
	}

	p := StrategyProfile{
		DominantStrategy: dominant,
		StrategyCounts:   counts,
		Aggressiveness:   Aggressiveness(list),
	}
	if len(list) > 0 {
		p.StrategyDiversity = float64(len(counts)) / float64(len(list))
	}
	return p
}

// Aggressiveness is the share of actions that move tokens into the pool.
// An agent with no actions scores a neutral 0.5.
func Aggressiveness(list []string) float64 {
	if len(list) == 0 {
		return 0.5
	}
	n := 0
	for _, kind := range list {
		if kind == string(agents.ActionSwap) || kind == string(agents.ActionProvideLiquidity) {
			n++
		}
	}
	return float64(n) / float64(len(list))
}
