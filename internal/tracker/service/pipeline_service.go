package service

import (
	"context"
	"errors"
	"time"

	"prism-insight/internal/entity"
	"prism-insight/internal/tracker/constraint"
	"prism-insight/internal/tracker/detector"
	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/repository"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/utils"
)

// ReasonAlreadyEvaluated marks a candidate the ledger already decided on
// for the same session date.
const ReasonAlreadyEvaluated = "already evaluated"

// ReasonClosedThisSession marks a candidate whose position was closed earlier
// in the same cycle; it may re-enter in a later session.
const ReasonClosedThisSession = "closed this session"

const reasonClosedElsewhere = "already closed"

// CycleInput is one pipeline cycle's work.
type CycleInput struct {
	Mode        dto.RunMode
	SessionDate time.Time
	Snapshot    *dto.MarketSnapshot
	Holdings    []entity.StockHolding
	Candidates  *detector.Candidates
	Conditions  *MarketConditionCache
}

type task struct {
	kind      dto.ItemKind
	holding   entity.StockHolding
	candidate detector.Candidate
}

func (t task) ticker() string {
	if t.kind == dto.ItemKindHolding {
		return t.holding.Ticker
	}
	return t.candidate.Ticker
}

// PipelineService runs the oracle-driven part of a cycle one item at a time.
type PipelineService interface {
	RunCycle(ctx context.Context, in CycleInput) *dto.CycleResult
}

type pipelineService struct {
	ai          repository.AIRepository
	news        repository.NewsRepository
	watchlist   repository.WatchlistHistoryRepository
	lifecycle   LifecycleService
	retry       RetryPolicy
	constraints constraint.Constraints
	log         *logger.Logger
}

func NewPipelineService(ai repository.AIRepository, news repository.NewsRepository, watchlist repository.WatchlistHistoryRepository, lifecycle LifecycleService, retry RetryPolicy, constraints constraint.Constraints, log *logger.Logger) PipelineService {
	return &pipelineService{
		ai:          ai,
		news:        news,
		watchlist:   watchlist,
		lifecycle:   lifecycle,
		retry:       retry,
		constraints: constraints,
		log:         log,
	}
}

// RunCycle evaluates holdings first, then candidates in rank order. Item
// failures are recorded and never stop the cycle; cancellation is checked
// between items.
func (p *pipelineService) RunCycle(ctx context.Context, in CycleInput) *dto.CycleResult {
	result := dto.NewCycleResult()

	queue := make([]task, 0, len(in.Holdings))
	for _, h := range in.Holdings {
		queue = append(queue, task{kind: dto.ItemKindHolding, holding: h})
	}
	if in.Candidates != nil {
		for c := range in.Candidates.All() {
			queue = append(queue, task{kind: dto.ItemKindCandidate, candidate: c})
		}
	}

	portfolio := constraint.Portfolio{Holdings: append([]entity.StockHolding(nil), in.Holdings...)}
	closed := make(map[string]struct{})

	for _, t := range queue {
		if ctx.Err() != nil {
			result.Cancelled = true
			p.log.WarnContext(ctx, "Cycle cancelled", logger.IntField("processed", len(result.Items)), logger.IntField("queued", len(queue)))
			break
		}

		itemCtx := logger.WithContext(ctx, logger.StringField("ticker", t.ticker()), logger.StringField("kind", string(t.kind)))
		var item dto.ItemResult
		switch t.kind {
		case dto.ItemKindHolding:
			item = p.processHolding(itemCtx, in, t.holding, &portfolio)
			if item.Outcome == dto.OutcomeClosed || item.Reason == reasonClosedElsewhere {
				closed[t.holding.Ticker] = struct{}{}
			}
		default:
			item = p.processCandidate(itemCtx, in, t.candidate, &portfolio, closed)
		}
		if item.Outcome == dto.OutcomeFailed && ctx.Err() != nil {
			// interrupted mid-item; nothing was committed for it
			result.Cancelled = true
			break
		}
		result.Record(item)

		if item.Outcome == dto.OutcomeFailed {
			p.log.WarnContext(itemCtx, "Item evaluation failed",
				logger.StringField("error", item.Error), logger.IntField("attempts", item.Attempts))
		}
	}

	return result
}

func (p *pipelineService) processHolding(ctx context.Context, in CycleInput, h entity.StockHolding, portfolio *constraint.Portfolio) dto.ItemResult {
	item := dto.ItemResult{Kind: dto.ItemKindHolding, Ticker: h.Ticker}

	price := h.CurrentPrice
	quote, ok := in.Snapshot.Get(h.Ticker)
	if ok && quote.Close > 0 {
		price = quote.Close
	} else {
		p.log.WarnContext(ctx, "Holding missing from snapshot, using last known price", logger.FloatField("price", price))
	}

	exit := ExitInput{
		Mode:         in.Mode,
		SessionDate:  in.SessionDate,
		Holding:      h,
		CurrentPrice: price,
	}

	if reason, hit := HardExit(h, price); hit {
		exit.HardExit = reason
	} else {
		req := &dto.HoldingOracleRequest{
			Mode:            in.Mode,
			SessionDate:     in.SessionDate,
			Holding:         h,
			CurrentPrice:    price,
			MarketCondition: p.marketCondition(ctx, in),
			News:            p.headlines(ctx, h.Ticker, h.CompanyName),
		}
		if ok {
			req.Quote = &quote
		}

		verdict, attempts, err := Retry(ctx, p.retry, func(ctx context.Context) (dto.HoldingVerdict, error) {
			resp, err := p.ai.MonitorHolding(ctx, req)
			if err != nil {
				return dto.HoldingVerdict{}, err
			}
			return ValidateHoldingVerdict(resp)
		})
		item.Attempts = attempts
		if err != nil {
			return failed(item, err)
		}
		exit.Verdict = &verdict
	}

	t, err := p.lifecycle.Evaluate(ctx, exit)
	if err != nil {
		return failed(item, err)
	}
	item.TradeError = t.TradeError

	if t.To == entity.StateClosed {
		removeHolding(portfolio, h.Ticker)
		item.Outcome = dto.OutcomeClosed
		item.Reason = t.Reason
		return item
	}
	if !t.Applied {
		// closed concurrently by an earlier run
		removeHolding(portfolio, h.Ticker)
		item.Outcome = dto.OutcomeSkipped
		item.Reason = reasonClosedElsewhere
		return item
	}
	if t.Holding != nil {
		replaceHolding(portfolio, *t.Holding)
	}
	item.Outcome = dto.OutcomeHeld
	return item
}

func (p *pipelineService) processCandidate(ctx context.Context, in CycleInput, c detector.Candidate, portfolio *constraint.Portfolio, closed map[string]struct{}) dto.ItemResult {
	item := dto.ItemResult{Kind: dto.ItemKindCandidate, Ticker: c.Ticker}

	if _, ok := closed[c.Ticker]; ok {
		item.Outcome = dto.OutcomeSkipped
		item.Reason = ReasonClosedThisSession
		return item
	}

	if portfolio.Holds(c.Ticker) {
		item.Outcome = dto.OutcomeSkipped
		item.Reason = constraint.ReasonAlreadyHeld
		return item
	}

	exists, err := p.watchlist.Exists(ctx, c.Ticker, utils.DateOf(in.SessionDate))
	if err != nil {
		return failed(item, err)
	}
	if exists {
		item.Outcome = dto.OutcomeSkipped
		item.Reason = ReasonAlreadyEvaluated
		return item
	}

	req := &dto.CandidateOracleRequest{
		Mode:             in.Mode,
		SessionDate:      in.SessionDate,
		Ticker:           c.Ticker,
		CompanyName:      c.Name,
		Sector:           c.Sector,
		Quote:            c.Quote,
		Rank:             c.Rank,
		CompositeScore:   c.Score,
		VolumeSurgeRatio: c.Metrics.VolumeSurgeRatio,
		GapUpPct:         c.Metrics.GapUpPct,
		TurnoverRatio:    c.Metrics.TurnoverRatio,
		CloseStrength:    c.Metrics.CloseStrength,
		MarketCondition:  p.marketCondition(ctx, in),
		Holdings:         portfolio.Holdings,
		AvailableSlots:   max(p.constraints.MaxSlots-len(portfolio.Holdings), 0),
		News:             p.headlines(ctx, c.Ticker, c.Name),
	}

	verdict, attempts, err := Retry(ctx, p.retry, func(ctx context.Context) (dto.CandidateVerdict, error) {
		resp, err := p.ai.AnalyzeCandidate(ctx, req)
		if err != nil {
			return dto.CandidateVerdict{}, err
		}
		return ValidateCandidateVerdict(resp)
	})
	item.Attempts = attempts
	if err != nil {
		return failed(item, err)
	}

	admission := constraint.EvaluateAdmission(c, verdict, *portfolio, p.constraints)

	t, err := p.lifecycle.Admit(ctx, AdmissionInput{
		Mode:        in.Mode,
		SessionDate: in.SessionDate,
		Candidate:   c,
		Verdict:     verdict,
		Result:      admission,
	})
	if err != nil {
		return failed(item, err)
	}
	item.TradeError = t.TradeError

	if !t.Applied {
		item.Outcome = dto.OutcomeSkipped
		item.Reason = ReasonAlreadyEvaluated
		return item
	}

	switch admission.Decision {
	case entity.DecisionBuy:
		portfolio.Holdings = append(portfolio.Holdings, *t.Holding)
		item.Outcome = dto.OutcomeAdmitted
	case entity.DecisionWatch:
		item.Outcome = dto.OutcomeWatched
		item.Reason = admission.Reason
	default:
		item.Outcome = dto.OutcomeSkipped
		item.Reason = admission.Reason
	}
	return item
}

// marketCondition is supporting context only; a failed lookup is logged by
// the cache and the oracle is asked without it.
func (p *pipelineService) marketCondition(ctx context.Context, in CycleInput) *entity.MarketCondition {
	if in.Conditions == nil {
		return nil
	}
	mc, _ := in.Conditions.Get(ctx, in.SessionDate)
	return mc
}

func (p *pipelineService) headlines(ctx context.Context, ticker, name string) []dto.NewsItem {
	items, err := p.news.GetHeadlines(ctx, ticker, name)
	if err != nil {
		p.log.DebugContext(ctx, "Headlines unavailable", logger.ErrorField(err))
		return nil
	}
	return items
}

func failed(item dto.ItemResult, err error) dto.ItemResult {
	item.Outcome = dto.OutcomeFailed
	item.Error = err.Error()
	if item.Attempts == 0 {
		item.Attempts = AttemptsOf(err)
	}
	var retryErr *RetryError
	if errors.As(err, &retryErr) {
		item.Error = retryErr.Err.Error()
	}
	return item
}

func removeHolding(p *constraint.Portfolio, ticker string) {
	out := p.Holdings[:0]
	for _, h := range p.Holdings {
		if h.Ticker != ticker {
			out = append(out, h)
		}
	}
	p.Holdings = out
}

func replaceHolding(p *constraint.Portfolio, holding entity.StockHolding) {
	for i := range p.Holdings {
		if p.Holdings[i].Ticker == holding.Ticker {
			p.Holdings[i] = holding
			return
		}
	}
}
