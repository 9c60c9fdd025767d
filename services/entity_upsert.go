package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"training-management-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type applyOutcome int

const (
	applySkipped applyOutcome = iota
	applyCreated
	applyUpdated
)

// errLinkageConflict signals that another worker created the linkage while
// this transaction was in flight. The transaction rolls back; a retry takes
// the update path.
var errLinkageConflict = errors.New("sync linkage created concurrently")

// applyRemoteRecord maps one raw remote payload and applies it through the
// linkage contract: create when no linkage exists, update otherwise. The whole
// application runs in one transaction, and the linkage insert uses an
// ON CONFLICT DO NOTHING compare-and-create so concurrent sync runs and
// webhook deliveries for the same external id cannot create duplicates.
func applyRemoteRecord(ctx context.Context, db *gorm.DB, adapter *entityAdapter, raw json.RawMessage) (applyOutcome, error) {
	rec, err := adapter.mapRecord(raw)
	if err != nil {
		return applySkipped, err
	}

	hashBytes := sha256.Sum256(raw)
	versionHash := hex.EncodeToString(hashBytes[:])
	now := time.Now().UTC()

	var outcome applyOutcome
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var linkage models.SyncLinkage
		lookupErr := tx.Where("entity_type = ? AND external_id = ?", adapter.entityType, rec.ExternalID).
			First(&linkage).Error
		if lookupErr != nil {
			if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
				return lookupErr
			}
			return createWithLinkage(tx, adapter, rec, versionHash, now, &outcome)
		}

		// Linkage exists: the remote is authoritative for its own fields, but
		// a stale delivery must not clobber a newer application.
		if rec.UpdatedAt != nil && linkage.RemoteUpdatedAt != nil && rec.UpdatedAt.Before(*linkage.RemoteUpdatedAt) {
			outcome = applySkipped
			return nil
		}
		if linkage.SyncVersionHash != nil && *linkage.SyncVersionHash == versionHash {
			outcome = applySkipped
			return nil
		}

		if err := rec.update(tx, linkage.InternalID, now); err != nil {
			return err
		}
		outcome = applyUpdated
		return tx.Model(&linkage).Updates(map[string]interface{}{
			"remote_updated_at": rec.UpdatedAt,
			"sync_version_hash": versionHash,
			"last_synced_at":    now,
		}).Error
	})
	if err != nil {
		return applySkipped, err
	}
	return outcome, nil
}

// createWithLinkage handles the idempotent-create path. A prior partially
// completed attempt may have left an entity row without a linkage, so the
// entity table is consulted by external id before creating.
func createWithLinkage(tx *gorm.DB, adapter *entityAdapter, rec *remoteRecord, versionHash string, now time.Time, outcome *applyOutcome) error {
	internalID, found, err := adapter.findByExternalID(tx, rec.ExternalID)
	if err != nil {
		return err
	}
	if found {
		if err := rec.update(tx, internalID, now); err != nil {
			return err
		}
		*outcome = applyUpdated
	} else {
		internalID, err = rec.create(tx, now)
		if err != nil {
			return err
		}
		*outcome = applyCreated
	}

	linkage := &models.SyncLinkage{
		EntityType:      adapter.entityType,
		ExternalID:      rec.ExternalID,
		InternalID:      internalID,
		RemoteUpdatedAt: rec.UpdatedAt,
		SyncVersionHash: &versionHash,
		LastSyncedAt:    now,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_type"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(linkage)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Another worker won the compare-and-create; roll back so the retry
		// sees the linkage and updates instead.
		return fmt.Errorf("%w: %s %s", errLinkageConflict, adapter.entityType, rec.ExternalID)
	}
	return nil
}

// applyRemoteDeletion marks the local entity for a deleted remote record. A
// deletion for a record never pulled is an idempotent no-op.
func applyRemoteDeletion(ctx context.Context, db *gorm.DB, adapter *entityAdapter, externalID string) error {
	var linkage models.SyncLinkage
	err := db.WithContext(ctx).Where("entity_type = ? AND external_id = ?", adapter.entityType, externalID).
		First(&linkage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return adapter.markDeleted(db.WithContext(ctx), linkage.InternalID)
}
