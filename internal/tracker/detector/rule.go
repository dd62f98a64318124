package detector

import (
	"prism-insight/internal/tracker/config"
	"prism-insight/internal/tracker/dto"
)

// Weights of the normalised metrics in the composite score.
type Weights struct {
	VolumeSurge   float64
	GapUp         float64
	Turnover      float64
	CloseStrength float64
}

// Rule decides which tickers qualify and how they are scored.
type Rule struct {
	MinVolumeSurgeRatio float64
	MinGapUpPct         float64
	// RequireBoth demands volume surge AND gap-up instead of either.
	RequireBoth      bool
	MinTurnoverRatio float64
	MinClose         float64
	// MaxCandidates truncates the ranked list; 0 keeps everything.
	MaxCandidates int
	Weights       Weights
}

// RuleFromConfig maps the configured rule of a session mode.
func RuleFromConfig(c config.DetectorRule) Rule {
	return Rule{
		MinVolumeSurgeRatio: c.MinVolumeSurgeRatio,
		MinGapUpPct:         c.MinGapUpPct,
		RequireBoth:         c.RequireBoth,
		MinTurnoverRatio:    c.MinTurnoverRatio,
		MinClose:            c.MinClose,
		MaxCandidates:       c.MaxCandidates,
		Weights: Weights{
			VolumeSurge:   c.Weights.VolumeSurge,
			GapUp:         c.Weights.GapUp,
			Turnover:      c.Weights.Turnover,
			CloseStrength: c.Weights.CloseStrength,
		},
	}
}

// Qualifies applies the signal and liquidity conditions.
func (r Rule) Qualifies(m Metrics, q dto.Quote) bool {
	surge := m.VolumeSurgeRatio >= r.MinVolumeSurgeRatio
	gap := m.GapUpPct >= r.MinGapUpPct

	signal := surge || gap
	if r.RequireBoth {
		signal = surge && gap
	}
	if !signal {
		return false
	}
	if m.TurnoverRatio < r.MinTurnoverRatio {
		return false
	}
	return q.Close >= r.MinClose
}

// Signals names the conditions a candidate met, for the ledger.
func (r Rule) Signals(m Metrics) []string {
	var signals []string
	if m.VolumeSurgeRatio >= r.MinVolumeSurgeRatio {
		signals = append(signals, "volume_surge")
	}
	if m.GapUpPct >= r.MinGapUpPct {
		signals = append(signals, "gap_up")
	}
	return signals
}
