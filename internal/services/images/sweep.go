package images

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Sweeper runs the freshness sweep on a cron schedule
type Sweeper struct {
	service  *Service
	schedule string
	cron     *cron.Cron
	logger   arbor.ILogger
}

// NewSweeper creates a scheduled sweeper. An empty schedule disables it.
func NewSweeper(service *Service, schedule string, logger arbor.ILogger) *Sweeper {
	return &Sweeper{
		service:  service,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep job and begins the scheduler
func (s *Sweeper) Start(ctx context.Context) error {
	if s.schedule == "" {
		s.logger.Debug().Msg("Image freshness sweep disabled")
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.service.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Image freshness sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("Image freshness sweep scheduled")
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
