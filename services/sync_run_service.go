package services

import (
	"errors"
	"fmt"
	"time"

	"training-management-api/config"
	"training-management-api/models"

	"gorm.io/gorm"
)

var ErrSyncRunNotFound = errors.New("sync run not found")

// SyncRunSummary carries the per-run counters of an orchestrated pull.
type SyncRunSummary struct {
	PagesProcessed int `json:"pages_processed"`
	FetchedCount   int `json:"fetched_count"`
	CreatedCount   int `json:"created_count"`
	UpdatedCount   int `json:"updated_count"`
	SucceededCount int `json:"succeeded_count"`
	FailedCount    int `json:"failed_count"`
}

type SyncRunService struct {
	db *gorm.DB
}

func NewSyncRunService(db *gorm.DB) *SyncRunService {
	if db == nil {
		db = config.DB
	}
	return &SyncRunService{db: db}
}

func (s *SyncRunService) Start(entityType, trigger, mode string) (*models.SyncRun, error) {
	if trigger == "" {
		trigger = "unknown"
	}
	run := &models.SyncRun{
		EntityType: entityType,
		Trigger:    trigger,
		Mode:       mode,
		Status:     models.SyncRunStatusRunning,
		StartedAt:  time.Now(),
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// UpdateProgress persists the counters accumulated so far. Called as pages
// complete so a running sync is inspectable.
func (s *SyncRunService) UpdateProgress(runID uint, summary *SyncRunSummary) error {
	return s.applyUpdates(runID, summaryUpdates(summary))
}

func (s *SyncRunService) MarkCompleted(runID uint, summary *SyncRunSummary) error {
	status := models.SyncRunStatusCompleted
	if summary != nil && summary.FailedCount > 0 {
		status = models.SyncRunStatusCompletedWithErrors
	}
	return s.finish(runID, status, summary, nil)
}

func (s *SyncRunService) MarkAborted(runID uint, summary *SyncRunSummary, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return s.finish(runID, models.SyncRunStatusAborted, summary, &msg)
}

func (s *SyncRunService) finish(runID uint, status string, summary *SyncRunSummary, errMsg *string) error {
	updates := summaryUpdates(summary)
	updates["status"] = status
	updates["finished_at"] = time.Now()
	if errMsg != nil {
		if len(*errMsg) > 2000 {
			truncated := fmt.Sprintf("%s...", (*errMsg)[:1997])
			updates["error_message"] = truncated
		} else {
			updates["error_message"] = *errMsg
		}
	}
	return s.applyUpdates(runID, updates)
}

func (s *SyncRunService) applyUpdates(runID uint, updates map[string]interface{}) error {
	res := s.db.Model(&models.SyncRun{}).Where("id = ?", runID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSyncRunNotFound
	}
	return nil
}

func summaryUpdates(summary *SyncRunSummary) map[string]interface{} {
	updates := map[string]interface{}{}
	if summary != nil {
		updates["pages_processed"] = summary.PagesProcessed
		updates["fetched_count"] = summary.FetchedCount
		updates["created_count"] = summary.CreatedCount
		updates["updated_count"] = summary.UpdatedCount
		updates["succeeded_count"] = summary.SucceededCount
		updates["failed_count"] = summary.FailedCount
	}
	return updates
}

func (s *SyncRunService) GetByID(id uint) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := s.db.Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSyncRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// GetLatestCompleted returns the most recent completed run for the entity
// type; its finished_at is the watermark for the next incremental run. A run
// that completed with errors still advances the watermark because failed
// records were individually logged, not silently lost.
func (s *SyncRunService) GetLatestCompleted(entityType string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := s.db.Where("entity_type = ? AND status IN ?", entityType,
		[]string{models.SyncRunStatusCompleted, models.SyncRunStatusCompletedWithErrors}).
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (s *SyncRunService) GetRunning(entityType string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := s.db.Where("entity_type = ? AND status = ?", entityType, models.SyncRunStatusRunning).
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (s *SyncRunService) List(entityType string, limit, offset int) ([]models.SyncRun, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := s.db.Model(&models.SyncRun{})
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.SyncRun
	err := query.Order("started_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
