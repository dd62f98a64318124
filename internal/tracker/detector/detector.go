package detector

import (
	"cmp"
	"iter"
	"slices"
	"sort"
	"sync"

	"prism-insight/internal/tracker/dto"
)

// Candidate is a ticker that passed screening.
type Candidate struct {
	Ticker  string
	Name    string
	Sector  string
	Quote   dto.Quote
	Metrics Metrics
	Signals []string
	Score   float64
	Rank    int
}

// Candidates is a ranked, finite sequence computed on first use.
// Iterating again replays the same order.
type Candidates struct {
	once    sync.Once
	compute func() []Candidate
	items   []Candidate
}

// FromSlice wraps already ranked candidates.
func FromSlice(items []Candidate) *Candidates {
	return &Candidates{compute: func() []Candidate { return items }}
}

func (c *Candidates) load() []Candidate {
	c.once.Do(func() {
		if c.compute != nil {
			c.items = c.compute()
			c.compute = nil
		}
	})
	return c.items
}

// All yields candidates in rank order.
func (c *Candidates) All() iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, item := range c.load() {
			if !yield(item) {
				return
			}
		}
	}
}

func (c *Candidates) Len() int {
	return len(c.load())
}

// Slice returns a copy of the ranked candidates.
func (c *Candidates) Slice() []Candidate {
	return slices.Clone(c.load())
}

// Detector screens a snapshot against the previous session.
type Detector struct {
	rule    Rule
	workers int
}

func New(rule Rule, workers int) *Detector {
	if workers <= 0 {
		workers = 1
	}
	return &Detector{rule: rule, workers: workers}
}

// Detect returns the ranked candidates of current. Nothing is computed until
// the result is first read.
func (d *Detector) Detect(current, previous *dto.MarketSnapshot) *Candidates {
	return &Candidates{compute: func() []Candidate {
		return d.rank(d.screen(current, previous))
	}}
}

type scored struct {
	ok        bool
	candidate Candidate
}

// screen computes metrics for every ticker with a worker pool.
func (d *Detector) screen(current, previous *dto.MarketSnapshot) []Candidate {
	if current == nil || previous == nil || len(current.Quotes) == 0 {
		return nil
	}

	tickers := make([]string, 0, len(current.Quotes))
	for t := range current.Quotes {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	results := make([]scored, len(tickers))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := min(d.workers, len(tickers))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = d.evaluate(tickers[i], current.Quotes[tickers[i]], previous)
			}
		}()
	}
	for i := range tickers {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make([]Candidate, 0, len(results))
	for _, r := range results {
		if r.ok {
			out = append(out, r.candidate)
		}
	}
	return out
}

func (d *Detector) evaluate(ticker string, cur dto.Quote, previous *dto.MarketSnapshot) scored {
	prev, ok := previous.Get(ticker)
	if !ok {
		return scored{}
	}
	m, ok := ComputeMetrics(cur, prev)
	if !ok || !d.rule.Qualifies(m, cur) {
		return scored{}
	}
	return scored{ok: true, candidate: Candidate{
		Ticker:  ticker,
		Name:    cur.Name,
		Sector:  cur.Sector,
		Quote:   cur,
		Metrics: m,
		Signals: d.rule.Signals(m),
	}}
}

// rank scores the qualifying set and orders it by score desc, ticker asc.
func (d *Detector) rank(cands []Candidate) []Candidate {
	if len(cands) == 0 {
		return nil
	}

	volume := newRange()
	gap := newRange()
	turnover := newRange()
	for _, c := range cands {
		volume.add(c.Metrics.VolumeSurgeRatio)
		gap.add(c.Metrics.GapUpPct)
		turnover.add(c.Metrics.TurnoverRatio)
	}

	w := d.rule.Weights
	for i := range cands {
		m := cands[i].Metrics
		cands[i].Score = w.VolumeSurge*volume.normalize(m.VolumeSurgeRatio) +
			w.GapUp*gap.normalize(m.GapUpPct) +
			w.Turnover*turnover.normalize(m.TurnoverRatio) +
			w.CloseStrength*m.CloseStrength
	}

	slices.SortFunc(cands, func(a, b Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Ticker, b.Ticker)
	})

	if d.rule.MaxCandidates > 0 && len(cands) > d.rule.MaxCandidates {
		cands = cands[:d.rule.MaxCandidates]
	}
	for i := range cands {
		cands[i].Rank = i + 1
	}
	return cands
}

type valueRange struct {
	lo, hi float64
	seen   bool
}

func newRange() *valueRange {
	return &valueRange{}
}

func (r *valueRange) add(v float64) {
	if !r.seen {
		r.lo, r.hi, r.seen = v, v, true
		return
	}
	r.lo = min(r.lo, v)
	r.hi = max(r.hi, v)
}

// normalize maps v into [0, 1]; a degenerate range maps to 1.
func (r *valueRange) normalize(v float64) float64 {
	if r.hi <= r.lo {
		return 1
	}
	return (v - r.lo) / (r.hi - r.lo)
}
