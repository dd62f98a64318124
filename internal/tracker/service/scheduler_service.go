package service

import (
	"context"
	"errors"
	"fmt"

	"prism-insight/internal/tracker/config"
	"prism-insight/internal/tracker/dto"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/utils"

	"github.com/robfig/cron/v3"
)

// SchedulerService triggers the morning and afternoon runs on their cron
// expressions in the exchange time zone.
type SchedulerService interface {
	Start(ctx context.Context) error
}

type schedulerService struct {
	cfg     *config.Config
	tracker TrackerService
	log     *logger.Logger
}

func NewSchedulerService(cfg *config.Config, tracker TrackerService, log *logger.Logger) SchedulerService {
	return &schedulerService{cfg: cfg, tracker: tracker, log: log}
}

// Start registers both jobs and blocks until ctx is done.
func (s *schedulerService) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(utils.LoadLocation(s.cfg.Tracker.TimeZone)),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	jobs := []struct {
		spec string
		mode dto.RunMode
	}{
		{spec: s.cfg.Tracker.MorningCron, mode: dto.RunModeMorning},
		{spec: s.cfg.Tracker.AfternoonCron, mode: dto.RunModeAfternoon},
	}
	for _, job := range jobs {
		mode := job.mode
		if _, err := c.AddFunc(job.spec, func() { s.trigger(ctx, mode) }); err != nil {
			return fmt.Errorf("invalid %s cron %q: %w", mode, job.spec, err)
		}
		s.log.Info("Tracker run scheduled", logger.StringField("mode", mode.String()), logger.StringField("cron", job.spec))
	}

	c.Start()
	<-ctx.Done()
	s.log.Info("Scheduler service stopping")
	<-c.Stop().Done()
	return nil
}

func (s *schedulerService) trigger(ctx context.Context, mode dto.RunMode) {
	_, err := s.tracker.Run(ctx, mode, RunOptions{})
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		s.log.WarnContext(ctx, "Skipping scheduled run, another run is in progress", logger.StringField("mode", mode.String()))
	default:
		s.log.ErrorContext(ctx, "Scheduled run failed", logger.ErrorField(err), logger.StringField("mode", mode.String()))
	}
}
