// Package constraint decides whether a scored candidate may enter the
// simulated portfolio. Everything here is pure.
package constraint

import (
	"strings"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/config"
	"prism-insight/internal/tracker/detector"
	"prism-insight/internal/tracker/dto"

	"github.com/shopspring/decimal"
)

// Skip reasons, in evaluation order.
const (
	ReasonAlreadyHeld         = "already held"
	ReasonBelowScore          = "below score threshold"
	ReasonOracleRejected      = "rejected by decision oracle"
	ReasonNoSlots             = "no available slots"
	ReasonSectorLimit         = "sector limit reached"
	ReasonSectorConcentration = "sector concentration limit"

	ReasonOracleWatch = "watch recommended by decision oracle"
)

// Constraints bound the simulated portfolio. Every held position is sized at
// SlotCapital when bought.
type Constraints struct {
	MaxSlots        int
	MaxSameSector   int
	MaxSectorWeight float64
	MinScore        int
	SlotCapital     float64
}

func FromConfig(p config.Portfolio) Constraints {
	return Constraints{
		MaxSlots:        p.MaxSlots,
		MaxSameSector:   p.MaxSameSector,
		MaxSectorWeight: p.MaxSectorWeight,
		MinScore:        p.MinScore,
		SlotCapital:     p.SlotCapital,
	}
}

func (c Constraints) slotCapital() decimal.Decimal {
	if c.SlotCapital <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(c.SlotCapital)
}

// Portfolio is the set of currently held positions.
type Portfolio struct {
	Holdings []entity.StockHolding
}

// Holds reports whether ticker is already held.
func (p Portfolio) Holds(ticker string) bool {
	for _, h := range p.Holdings {
		if h.Ticker == ticker {
			return true
		}
	}
	return false
}

// SectorCount counts holdings in sector.
func (p Portfolio) SectorCount(sector string) int {
	n := 0
	for _, h := range p.Holdings {
		if sameSector(h.Sector, sector) {
			n++
		}
	}
	return n
}

// AdmissionResult is the decision for one candidate.
type AdmissionResult struct {
	Decision entity.WatchlistDecision
	Reason   string
}

func (r AdmissionResult) Admitted() bool {
	return r.Decision == entity.DecisionBuy
}

// ResolveSector prefers the snapshot's sector and falls back to the oracle's.
func ResolveSector(c detector.Candidate, v dto.CandidateVerdict) string {
	if s := strings.TrimSpace(c.Sector); s != "" {
		return s
	}
	return strings.TrimSpace(v.Sector)
}

// EvaluateAdmission applies the admission rules in order; the first failing
// rule decides the SKIP reason. An oracle WATCH is passed through.
func EvaluateAdmission(c detector.Candidate, v dto.CandidateVerdict, p Portfolio, k Constraints) AdmissionResult {
	if p.Holds(c.Ticker) {
		return skip(ReasonAlreadyHeld)
	}
	if v.Action == dto.ActionWatch {
		return AdmissionResult{Decision: entity.DecisionWatch, Reason: ReasonOracleWatch}
	}
	if v.Score < k.MinScore {
		return skip(ReasonBelowScore)
	}
	if v.Action != dto.ActionBuy {
		return skip(ReasonOracleRejected)
	}
	if len(p.Holdings) >= k.MaxSlots {
		return skip(ReasonNoSlots)
	}

	sector := ResolveSector(c, v)
	if k.MaxSameSector > 0 && p.SectorCount(sector) >= k.MaxSameSector {
		return skip(ReasonSectorLimit)
	}
	if k.MaxSectorWeight > 0 {
		weight := SectorWeightAfterBuy(sector, p, k)
		if weight.GreaterThan(decimal.NewFromFloat(k.MaxSectorWeight)) {
			return skip(ReasonSectorConcentration)
		}
	}

	return AdmissionResult{Decision: entity.DecisionBuy}
}

// SectorWeightAfterBuy is the share of the simulated portfolio value that
// sector would carry after buying one more slot of it. Holdings are marked
// to market; unused slots count as cash.
func SectorWeightAfterBuy(sector string, p Portfolio, k Constraints) decimal.Decimal {
	slot := k.slotCapital()

	free := k.MaxSlots - len(p.Holdings)
	if free < 0 {
		free = 0
	}
	total := slot.Mul(decimal.NewFromInt(int64(free)))
	exposure := slot

	for _, h := range p.Holdings {
		value := holdingValue(h, slot)
		total = total.Add(value)
		if sameSector(h.Sector, sector) {
			exposure = exposure.Add(value)
		}
	}

	if free == 0 {
		// buying without a free slot needs fresh capital
		total = total.Add(slot)
	}
	if total.IsZero() {
		return decimal.NewFromInt(1)
	}
	return exposure.Div(total)
}

func holdingValue(h entity.StockHolding, slot decimal.Decimal) decimal.Decimal {
	if h.BuyPrice <= 0 || h.CurrentPrice <= 0 {
		return slot
	}
	return slot.Mul(decimal.NewFromFloat(h.CurrentPrice)).Div(decimal.NewFromFloat(h.BuyPrice))
}

func sameSector(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func skip(reason string) AdmissionResult {
	return AdmissionResult{Decision: entity.DecisionSkip, Reason: reason}
}
