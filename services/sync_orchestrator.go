package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"training-management-api/config"
	"training-management-api/models"

	"gorm.io/gorm"
)

// SyncInput controls one orchestrated pull from the remote system.
type SyncInput struct {
	EntityType    string
	Mode          string // full | incremental
	TriggerSource string // manual | scheduled | webhook-backfill
	// Filters are passed through to the remote list endpoint.
	Filters url.Values
}

// SyncOrchestrator pulls pages of remote entities and applies them through
// the shared linkage contract.
type SyncOrchestrator struct {
	db     *gorm.DB
	client *RemoteClient
	cfg    *config.IntegrationConfig
	runSvc *SyncRunService
}

func NewSyncOrchestrator(db *gorm.DB, client *RemoteClient, cfg *config.IntegrationConfig) *SyncOrchestrator {
	if db == nil {
		db = config.DB
	}
	if cfg == nil {
		cfg = config.LoadIntegrationConfig()
	}
	if client == nil {
		client = NewRemoteClient(cfg, nil)
	}
	return &SyncOrchestrator{
		db:     db,
		client: client,
		cfg:    cfg,
		runSvc: NewSyncRunService(db),
	}
}

// RunSync executes one sync run for an entity type. At most one run per
// entity type executes at a time; a held lock fails fast with
// ErrSyncAlreadyRunning. Cancellation is honored at page boundaries.
func (s *SyncOrchestrator) RunSync(ctx context.Context, input *SyncInput) (*models.SyncRun, error) {
	if input == nil {
		return nil, errors.New("input is nil")
	}
	adapter, err := adapterFor(input.EntityType)
	if err != nil {
		return nil, err
	}

	mode := strings.TrimSpace(input.Mode)
	if mode == "" {
		mode = models.SyncModeIncremental
	}
	if mode != models.SyncModeFull && mode != models.SyncModeIncremental {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSyncMode, input.Mode)
	}
	// Types without a reliable updated_since filter on the remote side fall
	// back to full sync; this is explicit configuration, never assumed.
	if mode == models.SyncModeIncremental && !s.cfg.IncrementalTypes[adapter.entityType] {
		mode = models.SyncModeFull
	}

	release, err := s.acquireLock(ctx, syncLockName(adapter.entityType))
	if err != nil {
		return nil, err
	}
	defer func() {
		if relErr := release(); relErr != nil {
			log.Printf("failed to release sync lock for %s: %v", adapter.entityType, relErr)
		}
	}()

	query := url.Values{}
	for key, vals := range input.Filters {
		for _, v := range vals {
			query.Add(key, v)
		}
	}
	if mode == models.SyncModeIncremental {
		since, err := s.incrementalWatermark(adapter.entityType)
		if err != nil {
			return nil, err
		}
		if since == nil {
			// No completed run yet: nothing to be incremental against.
			mode = models.SyncModeFull
		} else {
			query.Set("updated_since", since.UTC().Format(time.RFC3339))
		}
	}

	run, err := s.runSvc.Start(adapter.entityType, input.TriggerSource, mode)
	if err != nil {
		return nil, err
	}

	summary := &SyncRunSummary{}
	runErr := s.pullPages(ctx, run.ID, adapter, query, summary)

	if runErr != nil {
		if markErr := s.runSvc.MarkAborted(run.ID, summary, runErr); markErr != nil {
			log.Printf("failed to mark sync run %d aborted: %v", run.ID, markErr)
		}
	} else if markErr := s.runSvc.MarkCompleted(run.ID, summary); markErr != nil {
		log.Printf("failed to mark sync run %d completed: %v", run.ID, markErr)
	}

	if updated, err := s.runSvc.GetByID(run.ID); err == nil {
		run = updated
	}
	if runErr != nil {
		return run, runErr
	}
	return run, nil
}

func (s *SyncOrchestrator) pullPages(ctx context.Context, runID uint, adapter *entityAdapter, query url.Values, summary *SyncRunSummary) error {
	page := 1
	for {
		// Cooperative cancellation, checked once per page boundary.
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := s.client.ListPage(ctx, adapter.listPath, page, s.cfg.SyncPageSize, query)
		if err != nil {
			// Transport failures already exhausted their retries inside the
			// client; they abort the run.
			return err
		}
		if len(resp.Data) == 0 {
			return nil
		}

		for _, raw := range resp.Data {
			summary.FetchedCount++
			s.applyRecord(ctx, adapter, raw, summary)
		}

		summary.PagesProcessed++
		if err := s.runSvc.UpdateProgress(runID, summary); err != nil {
			log.Printf("sync %s: failed to update run progress: %v", adapter.entityType, err)
		}

		if resp.Meta.TotalPages > 0 && page >= resp.Meta.TotalPages {
			return nil
		}
		page++
	}
}

// applyRecord applies one remote record, isolating per-record failures so a
// bad record never aborts the run.
func (s *SyncOrchestrator) applyRecord(ctx context.Context, adapter *entityAdapter, raw json.RawMessage, summary *SyncRunSummary) {
	outcome, err := applyRemoteRecord(ctx, s.db, adapter, raw)
	if errors.Is(err, errLinkageConflict) {
		// A webhook worker created the linkage first; the retry updates.
		outcome, err = applyRemoteRecord(ctx, s.db, adapter, raw)
	}
	if err != nil {
		summary.FailedCount++
		log.Printf("sync %s: failed to apply record %s: %v", adapter.entityType, externalIDForLog(raw), err)
		return
	}

	summary.SucceededCount++
	switch outcome {
	case applyCreated:
		summary.CreatedCount++
	case applyUpdated:
		summary.UpdatedCount++
	}
}

// incrementalWatermark derives the updated_since filter from the most recent
// completed run, widened by the configured lookback to absorb clock skew.
func (s *SyncOrchestrator) incrementalWatermark(entityType string) (*time.Time, error) {
	last, err := s.runSvc.GetLatestCompleted(entityType)
	if err != nil {
		return nil, err
	}
	if last == nil || last.FinishedAt == nil {
		return nil, nil
	}
	since := last.FinishedAt.Add(-s.cfg.SyncLookback)
	return &since, nil
}

func syncLockName(entityType string) string {
	return "remote_sync_" + entityType
}

func (s *SyncOrchestrator) acquireLock(ctx context.Context, lockName string) (func() error, error) {
	lockCtx := persistentContext(ctx)

	var ok int
	if err := s.db.WithContext(lockCtx).Raw("SELECT GET_LOCK(?, 0)", lockName).Scan(&ok).Error; err != nil {
		return nil, err
	}
	if ok != 1 {
		return nil, ErrSyncAlreadyRunning
	}

	return func() error {
		var released int
		if err := s.db.WithContext(lockCtx).Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error; err != nil {
			return err
		}
		if released != 1 {
			return fmt.Errorf("release lock %q returned %d", lockName, released)
		}
		return nil
	}, nil
}

// externalIDForLog extracts the remote id for log lines without failing on
// malformed payloads.
func externalIDForLog(raw json.RawMessage) string {
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil || ref.ID == "" {
		return "<unparseable>"
	}
	return ref.ID
}
