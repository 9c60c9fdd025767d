package models

import "time"

const (
	WebhookStatusPending    = "pending"
	WebhookStatusProcessing = "processing"
	WebhookStatusSucceeded  = "succeeded"
	WebhookStatusFailed     = "failed"
	WebhookStatusDuplicate  = "duplicate"
	WebhookStatusRejected   = "rejected"
)

// WebhookEvent stores one delivery from the remote system with deduplication
// metadata for idempotent processing. RawPayload is immutable after receipt.
type WebhookEvent struct {
	ID               uint       `gorm:"primaryKey;column:id" json:"id"`
	EventID          string     `gorm:"column:event_id;type:varchar(191);not null;uniqueIndex" json:"event_id"`
	EventType        string     `gorm:"column:event_type;type:varchar(100);not null;index" json:"event_type"`
	RawPayload       string     `gorm:"column:raw_payload;type:longtext;not null" json:"raw_payload"`
	SignatureValid   bool       `gorm:"column:signature_valid;not null;default:false" json:"signature_valid"`
	ProcessingStatus string     `gorm:"column:processing_status;type:varchar(32);not null;index" json:"processing_status"`
	AttemptCount     int        `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	MaxAttempts      int        `gorm:"column:max_attempts;not null;default:5" json:"max_attempts"`
	NextAttemptAt    *time.Time `gorm:"column:next_attempt_at;index" json:"next_attempt_at,omitempty"`
	LastError        *string    `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	ReceivedAt       time.Time  `gorm:"column:received_at;autoCreateTime;index" json:"received_at"`
	ProcessedAt      *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty"`
	UpdateAt         time.Time  `gorm:"column:update_at;autoUpdateTime" json:"-"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// DeadLettered reports whether the event exhausted its attempts and needs
// manual replay.
func (e *WebhookEvent) DeadLettered() bool {
	return e.ProcessingStatus == WebhookStatusFailed && e.AttemptCount >= e.MaxAttempts
}
