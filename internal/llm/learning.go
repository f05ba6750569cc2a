package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/talgya/amm-arena/internal/analysis"
)

// LearningContext is an agent's view of the run it just finished.
type LearningContext struct {
	RunNumber int
	AgentName string
	Profit    float64
	Strategy  string
	Metrics   analysis.Metrics
}

// ExtractLearning asks the model for a one or two sentence lesson the
// agent carries into its next run.
func (c *Client) ExtractLearning(ctx context.Context, lc *LearningContext) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	prompt := fmt.Sprintf(`You are %s. You just completed run %d.

Your performance: Profit=%.2f, Strategy=%s
Market metrics: Gini=%.3f, Avg Profit=%.2f

What did you learn in 1-2 sentences?
Output JSON: {"learning": "your learning"}`,
		lc.AgentName, lc.RunNumber, lc.Profit, lc.Strategy,
		lc.Metrics.GiniCoefficient, lc.Metrics.AvgAgentProfit)

	resp, err := c.Complete(ctx, "", prompt, 256)
	if err != nil {
		return "", fmt.Errorf("learning for %s: %w", lc.AgentName, err)
	}

	jsonStr, err := extractJSONObject(resp.Text)
	if err != nil {
		return "", err
	}
	var out struct {
		Learning string `json:"learning"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return "", fmt.Errorf("parse learning: %w", err)
	}
	return strings.TrimSpace(out.Learning), nil
}
