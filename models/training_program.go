package models

import "time"

// TrainingProgram mirrors a training program owned by the remote system.
type TrainingProgram struct {
	ProgramID    uint       `gorm:"primaryKey;column:program_id" json:"program_id"`
	ExternalID   *string    `gorm:"column:external_id;type:varchar(64);uniqueIndex" json:"external_id,omitempty"`
	Name         string     `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Code         *string    `gorm:"column:code;type:varchar(64)" json:"code,omitempty"`
	Description  *string    `gorm:"column:description;type:text" json:"description,omitempty"`
	Capacity     *int       `gorm:"column:capacity" json:"capacity,omitempty"`
	StartDate    *time.Time `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate      *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	Status       string     `gorm:"column:status;type:varchar(32);not null;default:'unknown'" json:"status"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	CreateAt     time.Time  `gorm:"column:create_at;autoCreateTime" json:"create_at"`
	UpdateAt     time.Time  `gorm:"column:update_at;autoUpdateTime" json:"update_at"`
}

func (TrainingProgram) TableName() string { return "training_programs" }
