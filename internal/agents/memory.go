// Trade history: the per-agent record of decisions, used for strategy
// inference and as context for learning between runs.
package agents

// RecentWindow is how many history entries strategy inference looks at.
const RecentWindow = 10

// TradeRecord is one turn's decision as the agent saw it.
type TradeRecord struct {
	Turn      int    `json:"turn"`
	Action    string `json:"action"`
	Reasoning string `json:"reasoning"`
	Thinking  string `json:"thinking"`
}

// RecordDecision appends the decision to the trade history and updates the
// inaction streak: do_nothing extends it, anything else resets it.
func (a *Agent) RecordDecision(turn int, d Decision, thinking string) {
	a.TradeHistory = append(a.TradeHistory, TradeRecord{
		Turn:      turn,
		Action:    string(d.Kind),
		Reasoning: d.Reasoning,
		Thinking:  thinking,
	})

	if d.Kind == ActionDoNothing {
		a.ConsecutiveInaction++
	} else {
		a.ConsecutiveInaction = 0
	}
}

// RecentHistory returns up to the last n history entries.
func RecentHistory(a *Agent, n int) []TradeRecord {
	if n <= 0 || len(a.TradeHistory) == 0 {
		return nil
	}
	if len(a.TradeHistory) <= n {
		return a.TradeHistory
	}
	return a.TradeHistory[len(a.TradeHistory)-n:]
}

// InferStrategy returns the most frequent action among the recent history.
// Ties go to the label seen first. Empty history yields "unknown".
func (a *Agent) InferStrategy() string {
	var order []string
	counts := make(map[string]int)
	for _, rec := range RecentHistory(a, RecentWindow) {
		if rec.Action == "" {
			continue
		}
		if _, seen := counts[rec.Action]; !seen {
			order = append(order, rec.Action)
		}
		counts[rec.Action]++
	}

	best := "unknown"
	bestCount := 0
	for _, label := range order {
		if counts[label] > bestCount {
			best = label
			bestCount = counts[label]
		}
	}
	return best
}

// CountActions returns how many history entries carry the given action.
func CountActions(a *Agent, kind ActionKind) int {
	n := 0
	for _, rec := range a.TradeHistory {
		if rec.Action == string(kind) {
			n++
		}
	}
	return n
}
