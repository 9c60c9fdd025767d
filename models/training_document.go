package models

import "time"

// TrainingDocument mirrors a document record (certificate, attestation, report)
// owned by the remote system.
type TrainingDocument struct {
	DocumentID      uint       `gorm:"primaryKey;column:document_id" json:"document_id"`
	ExternalID      *string    `gorm:"column:external_id;type:varchar(64);uniqueIndex" json:"external_id,omitempty"`
	OwnerExternalID *string    `gorm:"column:owner_external_id;type:varchar(64);index" json:"owner_external_id,omitempty"`
	Title           string     `gorm:"column:title;type:varchar(255)" json:"title"`
	Category        *string    `gorm:"column:category;type:varchar(64)" json:"category,omitempty"`
	MimeType        *string    `gorm:"column:mime_type;type:varchar(100)" json:"mime_type,omitempty"`
	RemoteURL       *string    `gorm:"column:remote_url;type:varchar(500)" json:"remote_url,omitempty"`
	IssuedOn        *time.Time `gorm:"column:issued_on" json:"issued_on,omitempty"`
	Status          string     `gorm:"column:status;type:varchar(32);not null;default:'unknown'" json:"status"`
	LastSyncedAt    *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	CreateAt        time.Time  `gorm:"column:create_at;autoCreateTime" json:"create_at"`
	UpdateAt        time.Time  `gorm:"column:update_at;autoUpdateTime" json:"update_at"`
}

func (TrainingDocument) TableName() string { return "training_documents" }
