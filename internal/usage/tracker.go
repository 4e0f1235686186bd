package usage

// DefaultBudget is the token budget given to a session when none is
// configured.
const DefaultBudget = 50_000

// Tracker accumulates token usage for one session against a fixed
// budget. TotalTokens always equals PromptTokens+CompletionTokens; the
// only mutator is [Tracker.Add], and counters never go down.
//
// A Tracker is owned by a single session and is not safe for concurrent
// use.
type Tracker struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	BudgetLimit      int `json:"budget_limit"`
}

// NewTracker returns an empty tracker with the given budget limit.
func NewTracker(limit int) Tracker {
	return Tracker{BudgetLimit: limit}
}

// Add records the usage of one reasoning call. Counters are not clamped
// at the budget; exceeding it is detected by [Tracker.IsExceeded].
func (t *Tracker) Add(prompt, completion int) {
	t.PromptTokens += prompt
	t.CompletionTokens += completion
	t.TotalTokens += prompt + completion
}

// IsExceeded reports whether the total has reached the budget limit.
// Reaching the limit exactly counts as exceeded.
func (t *Tracker) IsExceeded() bool {
	return t.TotalTokens >= t.BudgetLimit
}

// Remaining returns the unused budget, never less than zero.
func (t *Tracker) Remaining() int {
	if r := t.BudgetLimit - t.TotalTokens; r > 0 {
		return r
	}
	return 0
}
