package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"training-management-api/models"

	"gorm.io/gorm"
)

// remoteRecord is the mapped form of one remote payload, ready to be applied
// through the linkage contract.
type remoteRecord struct {
	ExternalID string
	UpdatedAt  *time.Time

	create func(tx *gorm.DB, now time.Time) (uint, error)
	update func(tx *gorm.DB, internalID uint, now time.Time) error
}

// entityAdapter bundles the mapper and store capabilities for one entity
// type. New entity types are added by registration, not by branching on type
// strings.
type entityAdapter struct {
	entityType string
	// listPath is the paginated remote collection endpoint.
	listPath string

	mapRecord        func(raw json.RawMessage) (*remoteRecord, error)
	findByExternalID func(tx *gorm.DB, externalID string) (uint, bool, error)
	markDeleted      func(tx *gorm.DB, internalID uint) error
	buildPush        func(db *gorm.DB, internalID uint) (externalID string, payload map[string]interface{}, err error)
}

var entityRegistry = map[string]*entityAdapter{}

// entityTypeOrder fixes the iteration order for scheduled runs: programs and
// trainees first so assessments and documents can reference them.
var entityTypeOrder = []string{
	models.EntityTypeProgram,
	models.EntityTypeTrainee,
	models.EntityTypeAssessment,
	models.EntityTypeDocument,
}

func registerEntityAdapter(a *entityAdapter) {
	entityRegistry[a.entityType] = a
}

// RegisteredEntityTypes lists the entity types known to the registry.
func RegisteredEntityTypes() []string {
	types := make([]string, 0, len(entityTypeOrder))
	for _, t := range entityTypeOrder {
		if _, ok := entityRegistry[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

func adapterFor(entityType string) (*entityAdapter, error) {
	adapter, ok := entityRegistry[strings.TrimSpace(entityType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	return adapter, nil
}

// adapterForEvent resolves a webhook event type like "trainee.updated" into
// the owning adapter and the action suffix.
func adapterForEvent(eventType string) (*entityAdapter, string, error) {
	parts := strings.SplitN(strings.TrimSpace(eventType), ".", 2)
	if len(parts) != 2 {
		return nil, "", fmt.Errorf("%w: event type %q", ErrUnknownEntityType, eventType)
	}
	adapter, err := adapterFor(parts[0])
	if err != nil {
		return nil, "", err
	}
	return adapter, parts[1], nil
}

func init() {
	registerEntityAdapter(&entityAdapter{
		entityType: models.EntityTypeTrainee,
		listPath:   "/trainees",
		mapRecord: func(raw json.RawMessage) (*remoteRecord, error) {
			trainee, updatedAt, err := TraineeFromRemote(raw)
			if err != nil {
				return nil, err
			}
			return &remoteRecord{
				ExternalID: *trainee.ExternalID,
				UpdatedAt:  updatedAt,
				create: func(tx *gorm.DB, now time.Time) (uint, error) {
					trainee.LastSyncedAt = &now
					if err := tx.Create(trainee).Error; err != nil {
						return 0, err
					}
					return trainee.TraineeID, nil
				},
				update: func(tx *gorm.DB, internalID uint, now time.Time) error {
					trainee.TraineeID = internalID
					trainee.LastSyncedAt = &now
					return tx.Save(trainee).Error
				},
			}, nil
		},
		findByExternalID: func(tx *gorm.DB, externalID string) (uint, bool, error) {
			var trainee models.Trainee
			if err := tx.Where("external_id = ?", externalID).First(&trainee).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return 0, false, nil
				}
				return 0, false, err
			}
			return trainee.TraineeID, true, nil
		},
		markDeleted: func(tx *gorm.DB, internalID uint) error {
			return tx.Model(&models.Trainee{}).Where("trainee_id = ?", internalID).
				Update("status", "archived").Error
		},
		buildPush: func(db *gorm.DB, internalID uint) (string, map[string]interface{}, error) {
			var trainee models.Trainee
			if err := db.Where("trainee_id = ?", internalID).First(&trainee).Error; err != nil {
				return "", nil, err
			}
			if trainee.ExternalID == nil {
				return "", TraineeToRemote(&trainee), nil
			}
			return *trainee.ExternalID, TraineeToRemote(&trainee), nil
		},
	})

	registerEntityAdapter(&entityAdapter{
		entityType: models.EntityTypeProgram,
		listPath:   "/programs",
		mapRecord: func(raw json.RawMessage) (*remoteRecord, error) {
			program, updatedAt, err := ProgramFromRemote(raw)
			if err != nil {
				return nil, err
			}
			return &remoteRecord{
				ExternalID: *program.ExternalID,
				UpdatedAt:  updatedAt,
				create: func(tx *gorm.DB, now time.Time) (uint, error) {
					program.LastSyncedAt = &now
					if err := tx.Create(program).Error; err != nil {
						return 0, err
					}
					return program.ProgramID, nil
				},
				update: func(tx *gorm.DB, internalID uint, now time.Time) error {
					program.ProgramID = internalID
					program.LastSyncedAt = &now
					return tx.Save(program).Error
				},
			}, nil
		},
		findByExternalID: func(tx *gorm.DB, externalID string) (uint, bool, error) {
			var program models.TrainingProgram
			if err := tx.Where("external_id = ?", externalID).First(&program).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return 0, false, nil
				}
				return 0, false, err
			}
			return program.ProgramID, true, nil
		},
		markDeleted: func(tx *gorm.DB, internalID uint) error {
			return tx.Model(&models.TrainingProgram{}).Where("program_id = ?", internalID).
				Update("status", "archived").Error
		},
		buildPush: func(db *gorm.DB, internalID uint) (string, map[string]interface{}, error) {
			var program models.TrainingProgram
			if err := db.Where("program_id = ?", internalID).First(&program).Error; err != nil {
				return "", nil, err
			}
			if program.ExternalID == nil {
				return "", ProgramToRemote(&program), nil
			}
			return *program.ExternalID, ProgramToRemote(&program), nil
		},
	})

	registerEntityAdapter(&entityAdapter{
		entityType: models.EntityTypeAssessment,
		listPath:   "/assessments",
		mapRecord: func(raw json.RawMessage) (*remoteRecord, error) {
			assessment, updatedAt, err := AssessmentFromRemote(raw)
			if err != nil {
				return nil, err
			}
			return &remoteRecord{
				ExternalID: *assessment.ExternalID,
				UpdatedAt:  updatedAt,
				create: func(tx *gorm.DB, now time.Time) (uint, error) {
					assessment.LastSyncedAt = &now
					if err := tx.Create(assessment).Error; err != nil {
						return 0, err
					}
					return assessment.AssessmentID, nil
				},
				update: func(tx *gorm.DB, internalID uint, now time.Time) error {
					assessment.AssessmentID = internalID
					assessment.LastSyncedAt = &now
					return tx.Save(assessment).Error
				},
			}, nil
		},
		findByExternalID: func(tx *gorm.DB, externalID string) (uint, bool, error) {
			var assessment models.CompetencyAssessment
			if err := tx.Where("external_id = ?", externalID).First(&assessment).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return 0, false, nil
				}
				return 0, false, err
			}
			return assessment.AssessmentID, true, nil
		},
		markDeleted: func(tx *gorm.DB, internalID uint) error {
			return tx.Model(&models.CompetencyAssessment{}).Where("assessment_id = ?", internalID).
				Update("status", "cancelled").Error
		},
		buildPush: func(db *gorm.DB, internalID uint) (string, map[string]interface{}, error) {
			var assessment models.CompetencyAssessment
			if err := db.Where("assessment_id = ?", internalID).First(&assessment).Error; err != nil {
				return "", nil, err
			}
			if assessment.ExternalID == nil {
				return "", AssessmentToRemote(&assessment), nil
			}
			return *assessment.ExternalID, AssessmentToRemote(&assessment), nil
		},
	})

	registerEntityAdapter(&entityAdapter{
		entityType: models.EntityTypeDocument,
		listPath:   "/documents",
		mapRecord: func(raw json.RawMessage) (*remoteRecord, error) {
			document, updatedAt, err := DocumentFromRemote(raw)
			if err != nil {
				return nil, err
			}
			return &remoteRecord{
				ExternalID: *document.ExternalID,
				UpdatedAt:  updatedAt,
				create: func(tx *gorm.DB, now time.Time) (uint, error) {
					document.LastSyncedAt = &now
					if err := tx.Create(document).Error; err != nil {
						return 0, err
					}
					return document.DocumentID, nil
				},
				update: func(tx *gorm.DB, internalID uint, now time.Time) error {
					document.DocumentID = internalID
					document.LastSyncedAt = &now
					return tx.Save(document).Error
				},
			}, nil
		},
		findByExternalID: func(tx *gorm.DB, externalID string) (uint, bool, error) {
			var document models.TrainingDocument
			if err := tx.Where("external_id = ?", externalID).First(&document).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return 0, false, nil
				}
				return 0, false, err
			}
			return document.DocumentID, true, nil
		},
		markDeleted: func(tx *gorm.DB, internalID uint) error {
			return tx.Model(&models.TrainingDocument{}).Where("document_id = ?", internalID).
				Update("status", "archived").Error
		},
		buildPush: func(db *gorm.DB, internalID uint) (string, map[string]interface{}, error) {
			var document models.TrainingDocument
			if err := db.Where("document_id = ?", internalID).First(&document).Error; err != nil {
				return "", nil, err
			}
			if document.ExternalID == nil {
				return "", DocumentToRemote(&document), nil
			}
			return *document.ExternalID, DocumentToRemote(&document), nil
		},
	})
}
