package services

import (
	"context"
	"errors"
	"log"
	"time"

	"training-management-api/config"
	"training-management-api/models"
)

// StartSyncScheduler launches periodic incremental runs for every registered
// entity type. A zero interval disables scheduling. Types already running are
// skipped; the per-type run lock makes the overlap check race-free.
func StartSyncScheduler(ctx context.Context, orchestrator *SyncOrchestrator, interval time.Duration) {
	if interval <= 0 {
		return
	}
	if orchestrator == nil {
		orchestrator = NewSyncOrchestrator(nil, nil, nil)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runScheduledSyncs(ctx, orchestrator)
			}
		}
	}()
}

func runScheduledSyncs(ctx context.Context, orchestrator *SyncOrchestrator) {
	for _, entityType := range RegisteredEntityTypes() {
		run, err := orchestrator.RunSync(ctx, &SyncInput{
			EntityType:    entityType,
			Mode:          models.SyncModeIncremental,
			TriggerSource: models.SyncTriggerScheduled,
		})
		if err != nil {
			if errors.Is(err, ErrSyncAlreadyRunning) {
				log.Printf("scheduled sync: %s already running, skipped", entityType)
				continue
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("scheduled sync: %s failed: %v", entityType, err)
			continue
		}
		log.Printf("scheduled sync: %s run %d finished with status %s (%d fetched, %d failed)",
			entityType, run.ID, run.Status, run.FetchedCount, run.FailedCount)
	}
}

// SchedulerIntervalFromConfig resolves the scheduler period from the
// integration config.
func SchedulerIntervalFromConfig(cfg *config.IntegrationConfig) time.Duration {
	if cfg == nil {
		cfg = config.LoadIntegrationConfig()
	}
	return cfg.SyncScheduleEvery
}
