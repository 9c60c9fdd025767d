package models

import "time"

// CompetencyAssessment mirrors a competency assessment owned by the remote system.
// TraineeExternalID and ProgramExternalID keep the remote-side references even when
// the referenced records have not been pulled yet.
type CompetencyAssessment struct {
	AssessmentID      uint       `gorm:"primaryKey;column:assessment_id" json:"assessment_id"`
	ExternalID        *string    `gorm:"column:external_id;type:varchar(64);uniqueIndex" json:"external_id,omitempty"`
	TraineeExternalID *string    `gorm:"column:trainee_external_id;type:varchar(64);index" json:"trainee_external_id,omitempty"`
	ProgramExternalID *string    `gorm:"column:program_external_id;type:varchar(64);index" json:"program_external_id,omitempty"`
	Score             *float64   `gorm:"column:score" json:"score,omitempty"`
	MaxScore          *float64   `gorm:"column:max_score" json:"max_score,omitempty"`
	Status            string     `gorm:"column:status;type:varchar(32);not null;default:'unknown'" json:"status"`
	AssessedAt        *time.Time `gorm:"column:assessed_at" json:"assessed_at,omitempty"`
	LastSyncedAt      *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	CreateAt          time.Time  `gorm:"column:create_at;autoCreateTime" json:"create_at"`
	UpdateAt          time.Time  `gorm:"column:update_at;autoUpdateTime" json:"update_at"`
}

func (CompetencyAssessment) TableName() string { return "competency_assessments" }
