package models

import "time"

// SyncLinkage maps a remote entity identifier to the local internal id. It is
// the single authority for idempotent upsert: a create is only permitted when
// no linkage row exists for the (entity_type, external_id) pair.
type SyncLinkage struct {
	ID              uint       `gorm:"primaryKey;column:id" json:"id"`
	EntityType      string     `gorm:"column:entity_type;type:varchar(32);not null;uniqueIndex:ux_sync_linkages_type_external,priority:1" json:"entity_type"`
	ExternalID      string     `gorm:"column:external_id;type:varchar(64);not null;uniqueIndex:ux_sync_linkages_type_external,priority:2" json:"external_id"`
	InternalID      uint       `gorm:"column:internal_id;not null" json:"internal_id"`
	RemoteUpdatedAt *time.Time `gorm:"column:remote_updated_at" json:"remote_updated_at,omitempty"`
	SyncVersionHash *string    `gorm:"column:sync_version_hash;type:char(64)" json:"sync_version_hash,omitempty"`
	LastSyncedAt    time.Time  `gorm:"column:last_synced_at" json:"last_synced_at"`
	CreateAt        time.Time  `gorm:"column:create_at;autoCreateTime" json:"create_at"`
	UpdateAt        time.Time  `gorm:"column:update_at;autoUpdateTime" json:"update_at"`
}

func (SyncLinkage) TableName() string { return "sync_linkages" }
