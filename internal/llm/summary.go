// Run summaries: a short analytical write-up of a finished run.
package llm

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/talgya/amm-arena/internal/agents"
	"github.com/talgya/amm-arena/internal/analysis"
	"github.com/talgya/amm-arena/internal/economy"
)

const (
	summaryMaxTokens = 1024
	maxMarketEvents  = 5
)

// AgentPerformance is one agent's end-of-run standing.
type AgentPerformance struct {
	Name     string
	Profit   float64
	Strategy string
	TokenA   float64
	TokenB   float64
}

// SummaryData is the digest of a run the summary is written from.
type SummaryData struct {
	RunNumber          int
	Metrics            analysis.Metrics
	Agents             []AgentPerformance // ranked by profit, highest first
	ActionDistribution map[string]int
	MarketEvents       []string
}

// BuildSummaryData ranks agents, counts actions and picks out notable
// market events. first and last are the pool at run start and end.
func BuildSummaryData(runNumber int, m analysis.Metrics, agentList []*agents.Agent, actionTypes []string, first, last economy.PoolState) *SummaryData {
	data := &SummaryData{
		RunNumber:          runNumber,
		Metrics:            m,
		ActionDistribution: make(map[string]int),
	}

	for _, a := range agentList {
		data.Agents = append(data.Agents, AgentPerformance{
			Name:     a.Name,
			Profit:   a.Profit(),
			Strategy: a.InferStrategy(),
			TokenA:   a.TokenA,
			TokenB:   a.TokenB,
		})
	}
	sort.SliceStable(data.Agents, func(i, j int) bool {
		return data.Agents[i].Profit > data.Agents[j].Profit
	})

	for _, t := range actionTypes {
		data.ActionDistribution[t]++
	}

	dA := last.ReserveA - first.ReserveA
	dB := last.ReserveB - first.ReserveB
	if math.Abs(dA) > 100 || math.Abs(dB) > 100 {
		data.MarketEvents = append(data.MarketEvents, fmt.Sprintf("Pool shifted: A %+.0f, B %+.0f", dA, dB))
	}
	if n := data.ActionDistribution[string(agents.ActionProposeAlliance)]; n > 3 {
		data.MarketEvents = append(data.MarketEvents, fmt.Sprintf("%d alliance proposals made", n))
	}
	if n := data.ActionDistribution[string(agents.ActionSwap)]; n > 5 {
		data.MarketEvents = append(data.MarketEvents, fmt.Sprintf("%d swap transactions executed", n))
	}
	if len(data.MarketEvents) > maxMarketEvents {
		data.MarketEvents = data.MarketEvents[:maxMarketEvents]
	}
	return data
}

// Summarize writes a run summary. A disabled client gets the plain digest;
// a failed call returns the digest alongside the error.
func (c *Client) Summarize(ctx context.Context, data *SummaryData) (string, error) {
	if !c.Enabled() {
		return FallbackSummary(data), nil
	}

	resp, err := c.Complete(ctx, "", buildSummaryPrompt(data), summaryMaxTokens)
	if err != nil {
		return FallbackSummary(data), fmt.Errorf("summarize run %d: %w", data.RunNumber, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func buildSummaryPrompt(data *SummaryData) string {
	var b strings.Builder

	b.WriteString("Generate a detailed summary of this DeFi agent simulation run.\n\n")
	writeDigest(&b, data)
	b.WriteString(`
### Analysis
Write a 2-3 paragraph analysis covering:
1. Overall market behavior and whether agents cooperated or competed
2. Notable strategy patterns and their effectiveness
3. Key insights about the DeFi market dynamics

Keep the tone informative and analytical. Use markdown formatting for readability.
`)
	return b.String()
}

// FallbackSummary renders the digest without prose.
func FallbackSummary(data *SummaryData) string {
	var b strings.Builder
	writeDigest(&b, data)
	fmt.Fprintf(&b, "\n%s.\n", analysis.Inequality(data.Metrics.GiniCoefficient))
	return strings.TrimSpace(b.String())
}

func writeDigest(b *strings.Builder, data *SummaryData) {
	m := data.Metrics
	fmt.Fprintf(b, "## Run %d Summary\n\n", data.RunNumber)
	b.WriteString("### Overall Metrics\n")
	fmt.Fprintf(b, "- Gini Coefficient: %.4f (0=equal, 1=unequal)\n", m.GiniCoefficient)
	fmt.Fprintf(b, "- Average Agent Profit: %.2f\n", m.AvgAgentProfit)
	fmt.Fprintf(b, "- Cooperation Rate: %.2f alliances per agent\n", m.CooperationRate)
	fmt.Fprintf(b, "- Pool Stability: %.0f\n", m.PoolStability)

	top := data.Agents
	if len(top) > 3 {
		top = top[:3]
	}
	b.WriteString("\n### Agent Performance (ranked by profit)\n")
	for i, a := range top {
		fmt.Fprintf(b, "%d. %s: %+.2f profit (%s), %.0fA / %.0fB\n", i+1, a.Name, a.Profit, a.Strategy, a.TokenA, a.TokenB)
	}
	if len(data.Agents) > 3 {
		b.WriteString("\nBottom performers:\n")
		for _, a := range data.Agents[max(3, len(data.Agents)-2):] {
			fmt.Fprintf(b, "- %s: %+.2f (%s)\n", a.Name, a.Profit, a.Strategy)
		}
	}

	kinds := make([]string, 0, len(data.ActionDistribution))
	for k := range data.ActionDistribution {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		ci, cj := data.ActionDistribution[kinds[i]], data.ActionDistribution[kinds[j]]
		if ci != cj {
			return ci > cj
		}
		return kinds[i] < kinds[j]
	})
	b.WriteString("\n### Action Distribution\n")
	for _, k := range kinds {
		fmt.Fprintf(b, "- %s: %d\n", k, data.ActionDistribution[k])
	}

	if len(data.MarketEvents) > 0 {
		b.WriteString("\n### Notable Market Events\n")
		for _, e := range data.MarketEvents {
			fmt.Fprintf(b, "- %s\n", e)
		}
	}
}
