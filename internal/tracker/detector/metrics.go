package detector

import "prism-insight/internal/tracker/dto"

// Metrics are the per-ticker anomaly measures of one session.
type Metrics struct {
	VolumeSurgeRatio float64 `json:"volume_surge_ratio"`
	GapUpPct         float64 `json:"gap_up_pct"`
	TurnoverRatio    float64 `json:"turnover_ratio"`
	CloseStrength    float64 `json:"close_strength"`
}

// ComputeMetrics derives the metrics of cur against the previous session.
// It returns false when a ratio is undefined: no previous volume, no previous
// close or no market cap. Turnover is always volume × close over market cap;
// a reported traded amount is informational only.
func ComputeMetrics(cur, prev dto.Quote) (Metrics, bool) {
	if prev.Volume <= 0 || prev.Close <= 0 || cur.MarketCap <= 0 {
		return Metrics{}, false
	}

	return Metrics{
		VolumeSurgeRatio: cur.Volume / prev.Volume,
		GapUpPct:         (cur.Open - prev.Close) / prev.Close * 100,
		TurnoverRatio:    cur.Volume * cur.Close / cur.MarketCap,
		CloseStrength:    CloseStrength(cur),
	}, true
}

// CloseStrength is (close - low) / (high - low) clamped to [0, 1].
// A flat session counts as full strength.
func CloseStrength(q dto.Quote) float64 {
	span := q.High - q.Low
	if span <= 0 {
		return 1
	}
	s := (q.Close - q.Low) / span
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
