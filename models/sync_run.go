package models

import "time"

const (
	SyncRunStatusRunning             = "running"
	SyncRunStatusCompleted           = "completed"
	SyncRunStatusCompletedWithErrors = "completed_with_errors"
	SyncRunStatusAborted             = "aborted"
)

const (
	SyncTriggerManual          = "manual"
	SyncTriggerScheduled       = "scheduled"
	SyncTriggerWebhookBackfill = "webhook-backfill"
)

const (
	SyncModeFull        = "full"
	SyncModeIncremental = "incremental"
)

// SyncRun records one orchestrated pull from the remote system. The
// finished_at of the most recent completed run is the watermark for the next
// incremental run of the same entity type.
type SyncRun struct {
	ID             uint       `gorm:"primaryKey;column:id" json:"id"`
	EntityType     string     `gorm:"column:entity_type;type:varchar(32);not null;index" json:"entity_type"`
	Trigger        string     `gorm:"column:trigger_source;type:varchar(32);not null" json:"trigger"`
	Mode           string     `gorm:"column:mode;type:varchar(16);not null" json:"mode"`
	Status         string     `gorm:"column:status;type:varchar(32);not null" json:"status"`
	PagesProcessed int        `gorm:"column:pages_processed;not null;default:0" json:"pages_processed"`
	FetchedCount   int        `gorm:"column:fetched_count;not null;default:0" json:"fetched_count"`
	CreatedCount   int        `gorm:"column:created_count;not null;default:0" json:"created_count"`
	UpdatedCount   int        `gorm:"column:updated_count;not null;default:0" json:"updated_count"`
	SucceededCount int        `gorm:"column:succeeded_count;not null;default:0" json:"succeeded_count"`
	FailedCount    int        `gorm:"column:failed_count;not null;default:0" json:"failed_count"`
	ErrorMessage   *string    `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	StartedAt      time.Time  `gorm:"column:started_at;autoCreateTime" json:"started_at"`
	FinishedAt     *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreateAt       time.Time  `gorm:"column:create_at;autoCreateTime" json:"create_at"`
	UpdateAt       time.Time  `gorm:"column:update_at;autoUpdateTime" json:"update_at"`
}

func (SyncRun) TableName() string { return "sync_runs" }
