package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/pipeline"

	"github.com/robfig/cron/v3"
)

// Runner is the parsing pipeline as seen by the scheduler.
type Runner interface {
	ParseItems(ctx context.Context, itemType string) (*pipeline.RunReport, error)
}

// Scheduler runs a "both" parsing pass on a cron spec. A tick that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	spec   string
	runner Runner
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg config.ScheduleConfig, runner Runner) *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		spec:   cfg.Spec,
		runner: runner,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	log.Printf("Starting scheduler with cron: %s", s.spec)
	if _, err := s.cron.AddFunc(s.spec, func() { s.run(s.ctx) }); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule, cancels a running pass and waits for it to return.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	<-done.Done()
}

// TriggerNow runs one pass synchronously outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) (*pipeline.RunReport, error) {
	return s.runner.ParseItems(ctx, config.TypeBoth)
}

func (s *Scheduler) run(ctx context.Context) {
	report, err := s.runner.ParseItems(ctx, config.TypeBoth)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		log.Printf("[Scheduler] skipped: %v", err)
	case err != nil:
		log.Printf("Scheduled run error: %v", err)
	default:
		log.Printf("[Scheduler] %s", report)
	}
}
