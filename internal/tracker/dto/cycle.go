package dto

import (
	"sort"
	"time"
)

type ItemKind string

const (
	ItemKindHolding   ItemKind = "holding"
	ItemKindCandidate ItemKind = "candidate"
)

type ItemOutcome string

const (
	OutcomeAdmitted ItemOutcome = "admitted"
	OutcomeSkipped  ItemOutcome = "skipped"
	OutcomeWatched  ItemOutcome = "watched"
	OutcomeHeld     ItemOutcome = "held"
	OutcomeClosed   ItemOutcome = "closed"
	OutcomeFailed   ItemOutcome = "failed"
)

// ItemResult is the outcome of one processed task.
type ItemResult struct {
	Kind       ItemKind    `json:"kind" yaml:"kind"`
	Ticker     string      `json:"ticker" yaml:"ticker"`
	Outcome    ItemOutcome `json:"outcome" yaml:"outcome"`
	Reason     string      `json:"reason,omitempty" yaml:"reason,omitempty"`
	Attempts   int         `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
	TradeError string      `json:"trade_error,omitempty" yaml:"trade_error,omitempty"`
}

// CycleResult aggregates the outcomes of one pipeline cycle.
type CycleResult struct {
	Admitted         int            `json:"admitted" yaml:"admitted"`
	Watched          int            `json:"watched" yaml:"watched"`
	Held             int            `json:"held" yaml:"held"`
	Closed           int            `json:"closed" yaml:"closed"`
	EvaluationFailed int            `json:"evaluation_failed" yaml:"evaluation_failed"`
	TradeFailures    int            `json:"trade_failures" yaml:"trade_failures"`
	SkippedByReason  map[string]int `json:"skipped_by_reason" yaml:"skipped_by_reason"`
	Cancelled        bool           `json:"cancelled" yaml:"cancelled"`
	Items            []ItemResult   `json:"items" yaml:"items"`
}

func NewCycleResult() *CycleResult {
	return &CycleResult{SkippedByReason: map[string]int{}}
}

// Record appends item and updates the counters.
func (r *CycleResult) Record(item ItemResult) {
	switch item.Outcome {
	case OutcomeAdmitted:
		r.Admitted++
	case OutcomeWatched:
		r.Watched++
	case OutcomeHeld:
		r.Held++
	case OutcomeClosed:
		r.Closed++
	case OutcomeFailed:
		r.EvaluationFailed++
	case OutcomeSkipped:
		r.SkippedByReason[item.Reason]++
	}
	if item.TradeError != "" {
		r.TradeFailures++
	}
	r.Items = append(r.Items, item)
}

// Skipped returns the total number of skipped items.
func (r *CycleResult) Skipped() int {
	total := 0
	for _, n := range r.SkippedByReason {
		total += n
	}
	return total
}

// SkipReasons returns the skip reasons in a stable order.
func (r *CycleResult) SkipReasons() []string {
	reasons := make([]string, 0, len(r.SkippedByReason))
	for reason := range r.SkippedByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	return reasons
}

// RunSummary is what a run reports on stdout, in the --output file and to Telegram.
type RunSummary struct {
	RunID              string       `json:"run_id" yaml:"run_id"`
	Mode               RunMode      `json:"mode" yaml:"mode"`
	SessionDate        string       `json:"session_date" yaml:"session_date"`
	StartedAt          time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt         time.Time    `json:"finished_at" yaml:"finished_at"`
	MarketClosed       bool         `json:"market_closed" yaml:"market_closed"`
	CandidatesDetected int          `json:"candidates_detected" yaml:"candidates_detected"`
	HoldingsEvaluated  int          `json:"holdings_evaluated" yaml:"holdings_evaluated"`
	Result             *CycleResult `json:"result" yaml:"result"`
}
