package gormrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var _ repositories.MedicalRecordRepositoryContract = (*MedicalRecordRepository)(nil)

type MedicalRecordRepository struct {
	db *gorm.DB
}

func NewMedicalRecordRepository(db *gorm.DB) *MedicalRecordRepository {
	return &MedicalRecordRepository{db: db}
}

func (r *MedicalRecordRepository) Create(ctx context.Context, record *entities.MedicalRecord, initial *entities.RecordVersion) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create record: %w", err)
		}
		if initial == nil {
			return nil
		}

		initial.RecordID = record.ID
		initial.VersionNumber = 1
		initial.PreviousVersionID = nil
		if err := tx.Create(initial).Error; err != nil {
			return fmt.Errorf("failed to create initial version: %w", err)
		}

		versionID := initial.ID
		if err := tx.Model(&entities.MedicalRecord{}).
			Where("id = ?", record.ID).
			UpdateColumn("current_version_id", versionID).Error; err != nil {
			return fmt.Errorf("failed to set current version: %w", err)
		}
		record.CurrentVersionID = &versionID
		return nil
	})
}

func (r *MedicalRecordRepository) GetByRecordID(ctx context.Context, recordID string, includeDeleted bool) (*entities.MedicalRecord, error) {
	var record entities.MedicalRecord
	query := conn(ctx, r.db).Where("record_id = ?", recordID)
	if !includeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if err := query.First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFoundf("record %s not found", recordID)
		}
		return nil, fmt.Errorf("failed to load record %s: %w", recordID, err)
	}
	return &record, nil
}

func (r *MedicalRecordRepository) Find(ctx context.Context, filter repositories.RecordFilter) ([]*entities.MedicalRecord, int64, error) {
	query := conn(ctx, r.db).Model(&entities.MedicalRecord{})
	if filter.PatientID != nil {
		query = query.Where("patient_id = ?", *filter.PatientID)
	}
	if !filter.IncludeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if filter.Tag != "" {
		// tags is a JSON array of strings; match the encoded element.
		element, err := json.Marshal(filter.Tag)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode tag filter: %w", err)
		}
		query = query.Where(`tags LIKE ? ESCAPE '\'`, "%"+escapeLike(string(element))+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	records := make([]*entities.MedicalRecord, 0)
	page := query.Order("created_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		page = page.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := page.Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	return records, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match itself literally in a LIKE pattern escaped by '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *MedicalRecordRepository) UpdateMetadata(ctx context.Context, record *entities.MedicalRecord) error {
	result := conn(ctx, r.db).Model(record).
		Select("title", "description", "tags", "last_modified_by", "updated_at").
		UpdateColumns(record)
	if result.Error != nil {
		return fmt.Errorf("failed to update record %s: %w", record.RecordID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFoundf("record %s not found", record.RecordID)
	}
	return nil
}

func (r *MedicalRecordRepository) UpdateAttachments(ctx context.Context, record *entities.MedicalRecord) error {
	result := conn(ctx, r.db).Model(record).
		Select("attachments", "last_modified_by", "updated_at").
		UpdateColumns(record)
	if result.Error != nil {
		return fmt.Errorf("failed to update attachments of record %s: %w", record.RecordID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFoundf("record %s not found", record.RecordID)
	}
	return nil
}

func (r *MedicalRecordRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID, deletedAt time.Time) error {
	result := conn(ctx, r.db).Model(&entities.MedicalRecord{}).
		Where("id = ? AND is_deleted = ?", id, false).
		UpdateColumns(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": deletedAt,
			"deleted_by": deletedBy,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to delete record: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := conn(ctx, r.db).Model(&entities.MedicalRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check record: %w", err)
	}
	if count == 0 {
		return apperrors.NotFoundf("record not found")
	}
	return apperrors.Conflictf("record is already deleted")
}

func (r *MedicalRecordRepository) Restore(ctx context.Context, id uuid.UUID) error {
	result := conn(ctx, r.db).Model(&entities.MedicalRecord{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"is_deleted": false,
			"deleted_at": nil,
			"deleted_by": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to restore record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFoundf("record not found")
	}
	return nil
}
