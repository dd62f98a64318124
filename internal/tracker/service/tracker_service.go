package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"prism-insight/internal/tracker/config"
	"prism-insight/internal/tracker/detector"
	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/repository"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/telegram"
	"prism-insight/pkg/utils"

	"github.com/google/uuid"
)

var (
	ErrInvalidMode         = dto.ErrInvalidMode
	ErrSnapshotUnavailable = errors.New("market snapshot unavailable")
	ErrLedgerUnavailable   = errors.New("ledger unavailable")
	ErrRunInProgress       = errors.New("a run is already in progress")
)

// RunOptions tune a single run.
type RunOptions struct {
	// Force runs even when the calendar says the market is closed.
	Force bool
}

// Pinger reports whether the ledger database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TrackerService runs one full morning or afternoon cycle.
type TrackerService interface {
	Run(ctx context.Context, mode dto.RunMode, opts RunOptions) (*dto.RunSummary, error)
}

type trackerService struct {
	cfg           *config.Config
	db            Pinger
	marketData    repository.MarketDataRepository
	holdingsRepo  repository.StockHoldingsRepository
	conditionRepo repository.MarketConditionRepository
	pipeline      PipelineService
	notifier      telegram.Notifier
	retry         RetryPolicy
	log           *logger.Logger
	now           func() time.Time

	running sync.Mutex
}

func NewTrackerService(
	cfg *config.Config,
	db Pinger,
	marketData repository.MarketDataRepository,
	holdingsRepo repository.StockHoldingsRepository,
	conditionRepo repository.MarketConditionRepository,
	pipeline PipelineService,
	notifier telegram.Notifier,
	retry RetryPolicy,
	log *logger.Logger,
	now func() time.Time,
) TrackerService {
	if now == nil {
		now = time.Now
	}
	if notifier == nil {
		notifier = telegram.NewNoopNotifier()
	}
	return &trackerService{
		cfg:           cfg,
		db:            db,
		marketData:    marketData,
		holdingsRepo:  holdingsRepo,
		conditionRepo: conditionRepo,
		pipeline:      pipeline,
		notifier:      notifier,
		retry:         retry,
		log:           log,
		now:           now,
	}
}

// Run executes one cycle. Only foundational failures are returned as errors;
// item failures are reported in the summary.
func (s *trackerService) Run(ctx context.Context, mode dto.RunMode, opts RunOptions) (*dto.RunSummary, error) {
	if _, err := dto.ParseRunMode(mode.String()); err != nil {
		return nil, err
	}
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	loc := utils.LoadLocation(s.cfg.Tracker.TimeZone)
	startedAt := s.now().In(loc)
	sessionDate := utils.DateOf(startedAt)

	summary := &dto.RunSummary{
		RunID:       uuid.NewString(),
		Mode:        mode,
		SessionDate: utils.FormatDate(sessionDate),
		StartedAt:   startedAt,
	}
	ctx = logger.WithContext(ctx,
		logger.StringField("run_id", summary.RunID),
		logger.StringField("mode", mode.String()),
		logger.StringField("session_date", summary.SessionDate))

	if !opts.Force && !utils.IsMarketDay(sessionDate, s.cfg.Tracker.Holidays) {
		s.log.InfoContext(ctx, "Market closed, skipping run")
		summary.MarketClosed = true
		summary.Result = dto.NewCycleResult()
		summary.FinishedAt = s.now().In(loc)
		return summary, nil
	}

	s.log.InfoContext(ctx, "Tracker run started")

	summary, err := s.run(ctx, mode, sessionDate, summary)
	if err != nil {
		s.log.ErrorContext(ctx, "Tracker run aborted", logger.ErrorField(err))
		s.notify(ctx, telegram.FormatErrorAlertMessage(s.now().In(loc), "Tracker run aborted", err.Error(),
			fmt.Sprintf("mode=%s session=%s", mode, utils.FormatDate(sessionDate))))
		return nil, err
	}
	summary.FinishedAt = s.now().In(loc)

	r := summary.Result
	s.log.InfoContext(ctx, "Tracker run finished",
		logger.IntField("admitted", r.Admitted),
		logger.IntField("closed", r.Closed),
		logger.IntField("held", r.Held),
		logger.IntField("watched", r.Watched),
		logger.IntField("skipped", r.Skipped()),
		logger.IntField("evaluation_failed", r.EvaluationFailed),
		logger.BoolField("cancelled", r.Cancelled),
		logger.DurationField("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))

	s.notify(ctx, telegram.FormatRunSummaryMessage(summary))
	return summary, nil
}

func (s *trackerService) run(ctx context.Context, mode dto.RunMode, sessionDate time.Time, summary *dto.RunSummary) (*dto.RunSummary, error) {
	if err := s.db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}

	current, err := s.fetchSnapshot(ctx, sessionDate, mode)
	if err != nil {
		return nil, err
	}
	previousDate := utils.PreviousMarketDay(sessionDate, s.cfg.Tracker.Holidays)
	previous, err := s.fetchSnapshot(ctx, previousDate, dto.RunModeAfternoon)
	if err != nil {
		return nil, err
	}

	holdings, err := s.holdingsRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}

	candidates := detector.New(s.ruleFor(mode), s.cfg.Tracker.Detector.Workers).Detect(current, previous)
	summary.CandidatesDetected = candidates.Len()
	summary.HoldingsEvaluated = len(holdings)

	s.log.InfoContext(ctx, "Cycle prepared",
		logger.IntField("quotes", len(current.Quotes)),
		logger.IntField("candidates", summary.CandidatesDetected),
		logger.IntField("holdings", summary.HoldingsEvaluated))

	summary.Result = s.pipeline.RunCycle(ctx, CycleInput{
		Mode:        mode,
		SessionDate: sessionDate,
		Snapshot:    current,
		Holdings:    holdings,
		Candidates:  candidates,
		Conditions:  NewMarketConditionCache(s.conditionRepo, s.marketData, s.retry, s.log),
	})
	return summary, nil
}

func (s *trackerService) fetchSnapshot(ctx context.Context, date time.Time, mode dto.RunMode) (*dto.MarketSnapshot, error) {
	snapshot, _, err := Retry(ctx, s.retry, func(ctx context.Context) (*dto.MarketSnapshot, error) {
		return s.marketData.GetSnapshot(ctx, date, mode)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrSnapshotUnavailable, utils.FormatDate(date), mode, err)
	}
	if len(snapshot.Quotes) == 0 {
		return nil, fmt.Errorf("%w: %s %s has no quotes", ErrSnapshotUnavailable, utils.FormatDate(date), mode)
	}
	return snapshot, nil
}

func (s *trackerService) ruleFor(mode dto.RunMode) detector.Rule {
	if mode == dto.RunModeAfternoon {
		return detector.RuleFromConfig(s.cfg.Tracker.Detector.Afternoon)
	}
	return detector.RuleFromConfig(s.cfg.Tracker.Detector.Morning)
}

func (s *trackerService) notify(ctx context.Context, msg string) {
	if err := s.notifier.SendMessage(msg); err != nil {
		s.log.WarnContext(ctx, "Failed to send telegram message", logger.ErrorField(err))
	}
}
