// Package cost tracks LLM token usage and USD cost across a machine
// execution, attributed per node, for runs that make model calls.
package cost

import (
	"fmt"
	"sync"
	"time"
)

// ModelPricing gives input/output token cost in USD per 1M tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultPricing covers the model adapters DyGram ships with. Update
// as providers change their rates.
var defaultPricing = map[string]ModelPricing{
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":                {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-3.5-turbo":               {InputPer1M: 0.50, OutputPer1M: 1.50},
	"claude-sonnet-4-5-20250929": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-opus-20240229":     {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-haiku-20240307":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"gemini-2.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
}

// Call is one recorded model invocation.
type Call struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Timestamp    time.Time
	NodeID       string
}

// Tracker accumulates model call cost for one run. Safe for
// concurrent use across paths executing the same run.
type Tracker struct {
	RunID    string
	Currency string

	mu         sync.RWMutex
	pricing    map[string]ModelPricing
	calls      []Call
	totalCost  float64
	modelCosts map[string]float64
	inTokens   int64
	outTokens  int64
	enabled    bool
}

func NewTracker(runID, currency string) *Tracker {
	pricing := make(map[string]ModelPricing, len(defaultPricing))
	for k, v := range defaultPricing {
		pricing[k] = v
	}
	return &Tracker{
		RunID:      runID,
		Currency:   currency,
		pricing:    pricing,
		modelCosts: make(map[string]float64),
		enabled:    true,
	}
}

// Record adds one model call's token usage, computing its cost from
// the tracker's pricing table. An unrecognized model is still
// recorded, at zero cost.
func (t *Tracker) Record(model string, inputTokens, outputTokens int, nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled {
		return
	}

	pricing := t.pricing[model]
	inputCost := (float64(inputTokens) / 1_000_000.0) * pricing.InputPer1M
	outputCost := (float64(outputTokens) / 1_000_000.0) * pricing.OutputPer1M
	total := inputCost + outputCost

	t.calls = append(t.calls, Call{
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      total,
		Timestamp:    time.Now(),
		NodeID:       nodeID,
	})
	t.totalCost += total
	t.modelCosts[model] += total
	t.inTokens += int64(inputTokens)
	t.outTokens += int64(outputTokens)
}

func (t *Tracker) TotalCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalCost
}

func (t *Tracker) CostByModel() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.modelCosts))
	for k, v := range t.modelCosts {
		out[k] = v
	}
	return out
}

func (t *Tracker) CallHistory() []Call {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}

func (t *Tracker) TokenUsage() (inputTokens, outputTokens int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inTokens, t.outTokens
}

// SetPricing overrides (or adds) pricing for model, e.g. for a
// provider not in the default table or a negotiated enterprise rate.
func (t *Tracker) SetPricing(model string, inputPer1M, outputPer1M float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pricing == nil {
		t.pricing = make(map[string]ModelPricing)
	}
	t.pricing[model] = ModelPricing{InputPer1M: inputPer1M, OutputPer1M: outputPer1M}
}

func (t *Tracker) Disable() { t.mu.Lock(); t.enabled = false; t.mu.Unlock() }
func (t *Tracker) Enable()  { t.mu.Lock(); t.enabled = true; t.mu.Unlock() }

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
	t.totalCost = 0
	t.modelCosts = make(map[string]float64)
	t.inTokens = 0
	t.outTokens = 0
}

func (t *Tracker) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fmt.Sprintf("cost.Tracker{RunID: %s, Calls: %d, TotalCost: $%.4f %s}",
		t.RunID, len(t.calls), t.totalCost, t.Currency)
}
