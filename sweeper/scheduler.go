package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler runs the sweeper on a fixed interval. Singleton mode reschedules
// an overlapping run instead of stacking passes.
type Scheduler struct {
	scheduler gocron.Scheduler
	sweeper   *Sweeper
	log       *zap.Logger
}

func NewScheduler(s *Sweeper, interval time.Duration, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("sweeper: new scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := s.Sweep(context.Background()); err != nil {
				log.Error("sweep pass failed", zap.Error(err))
			}
		}),
		gocron.WithName("match_expiry_sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("sweeper: register job: %w", err)
	}

	return &Scheduler{scheduler: sched, sweeper: s, log: log}, nil
}

// Start begins the periodic sweep.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.log.Info("expiry sweeper started")
}

// Stop shuts the scheduler down, waiting for an in-flight pass.
func (s *Scheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("sweeper: shutdown: %w", err)
	}
	s.log.Info("expiry sweeper stopped")
	return nil
}
