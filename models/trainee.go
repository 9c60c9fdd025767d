package models

import "time"

// Trainee mirrors a trainee record owned by the remote training-records system.
type Trainee struct {
	TraineeID    uint       `gorm:"primaryKey;column:trainee_id" json:"trainee_id"`
	ExternalID   *string    `gorm:"column:external_id;type:varchar(64);uniqueIndex" json:"external_id,omitempty"`
	FirstName    string     `gorm:"column:first_name;type:varchar(100)" json:"first_name"`
	LastName     string     `gorm:"column:last_name;type:varchar(100)" json:"last_name"`
	Email        *string    `gorm:"column:email;type:varchar(191)" json:"email,omitempty"`
	Phone        *string    `gorm:"column:phone;type:varchar(32)" json:"phone,omitempty"`
	BirthDate    *time.Time `gorm:"column:birth_date" json:"birth_date,omitempty"`
	AddressLine  *string    `gorm:"column:address_line;type:varchar(255)" json:"address_line,omitempty"`
	City         *string    `gorm:"column:city;type:varchar(100)" json:"city,omitempty"`
	PostalCode   *string    `gorm:"column:postal_code;type:varchar(16)" json:"postal_code,omitempty"`
	Country      *string    `gorm:"column:country;type:varchar(100)" json:"country,omitempty"`
	Status       string     `gorm:"column:status;type:varchar(32);not null;default:'unknown'" json:"status"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	CreateAt     time.Time  `gorm:"column:create_at;autoCreateTime" json:"create_at"`
	UpdateAt     time.Time  `gorm:"column:update_at;autoUpdateTime" json:"update_at"`
}

func (Trainee) TableName() string { return "trainees" }
