package services

import (
	"context"
	"time"

	"energia-backend/internal/adapters/persistence/repositories"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// ============================================================
// Background jobs: expired reset ticket purge
// ============================================================

// CronService runs scheduled maintenance jobs
type CronService struct {
	store    repositories.Store
	cron     *cron.Cron
	schedule string
	now      Clock
}

// NewCronService creates a new cron service. schedule uses robfig/cron syntax (e.g. "@every 10m").
func NewCronService(store repositories.Store, schedule string) *CronService {
	return &CronService{
		store:    store,
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		schedule: schedule,
		now:      time.Now,
	}
}

// Start registers jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runPurge); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Msg("🚀 CronService started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("🛑 CronService stopped")
}

func (s *CronService) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.PurgeExpiredResets(ctx); err != nil {
		log.Error().Err(err).Msg("❌ Reset ticket purge failed")
	}
}

// PurgeExpiredResets deletes reset tickets past their expiry
func (s *CronService) PurgeExpiredResets(ctx context.Context) (int64, error) {
	n, err := s.store.Repos().Resets.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("purged", n).Msg("🧹 Expired reset tickets purged")
	}
	return n, nil
}
