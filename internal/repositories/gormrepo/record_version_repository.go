package gormrepo

import (
	"context"
	"errors"
	"fmt"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ repositories.RecordVersionRepositoryContract = (*RecordVersionRepository)(nil)

type RecordVersionRepository struct {
	db          *gorm.DB
	maxAttempts int
}

// NewRecordVersionRepository returns a repository that retries an append up
// to maxAttempts times when it loses a race for a version number.
func NewRecordVersionRepository(db *gorm.DB, maxAttempts int) *RecordVersionRepository {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RecordVersionRepository{db: db, maxAttempts: maxAttempts}
}

func (r *RecordVersionRepository) Append(ctx context.Context, version *entities.RecordVersion) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err = conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
			return appendVersion(tx, version)
		})
		if err == nil || !isUniqueViolation(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return apperrors.Wrap(apperrors.KindConflict, err,
		fmt.Sprintf("could not assign a version number after %d attempts", r.maxAttempts))
}

// appendVersion locks the owning record row so that appends to one record
// are serialised; the unique index catches dialects without row locks.
func appendVersion(tx *gorm.DB, version *entities.RecordVersion) error {
	var record entities.MedicalRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", version.RecordID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFoundf("record not found")
		}
		return fmt.Errorf("failed to lock record: %w", err)
	}

	var head entities.RecordVersion
	err = tx.Select("id", "version_number").
		Where("record_id = ?", version.RecordID).
		Order("version_number DESC").
		First(&head).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		version.VersionNumber = 1
		version.PreviousVersionID = nil
	case err != nil:
		return fmt.Errorf("failed to read latest version: %w", err)
	default:
		previous := head.ID
		version.VersionNumber = head.VersionNumber + 1
		version.PreviousVersionID = &previous
	}

	if err := tx.Create(version).Error; err != nil {
		return fmt.Errorf("failed to insert version %d: %w", version.VersionNumber, err)
	}

	err = tx.Model(&entities.MedicalRecord{}).
		Where("id = ?", version.RecordID).
		UpdateColumns(map[string]interface{}{
			"current_version_id": version.ID,
			"last_modified_by":   version.CreatedBy,
			"updated_at":         version.CreatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to move current version: %w", err)
	}
	return nil
}

func (r *RecordVersionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.RecordVersion, error) {
	var version entities.RecordVersion
	if err := conn(ctx, r.db).Where("id = ?", id).First(&version).Error; err != nil {
		return nil, notFoundOr(err, "version not found")
	}
	return &version, nil
}

func (r *RecordVersionRepository) GetByNumber(ctx context.Context, recordID uuid.UUID, versionNumber int) (*entities.RecordVersion, error) {
	var version entities.RecordVersion
	err := conn(ctx, r.db).
		Where("record_id = ? AND version_number = ?", recordID, versionNumber).
		First(&version).Error
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("version %d not found", versionNumber))
	}
	return &version, nil
}

func (r *RecordVersionRepository) GetLatest(ctx context.Context, recordID uuid.UUID) (*entities.RecordVersion, error) {
	var version entities.RecordVersion
	err := conn(ctx, r.db).
		Where("record_id = ?", recordID).
		Order("version_number DESC").
		First(&version).Error
	if err != nil {
		return nil, notFoundOr(err, "record has no versions")
	}
	return &version, nil
}

func (r *RecordVersionRepository) History(ctx context.Context, recordID uuid.UUID, limit int) ([]*entities.RecordVersion, error) {
	versions := make([]*entities.RecordVersion, 0)
	query := conn(ctx, r.db).
		Omit("content").
		Where("record_id = ?", recordID).
		Order("version_number DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("failed to load version history: %w", err)
	}
	return versions, nil
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFoundf("%s", message)
	}
	return fmt.Errorf("%s: %w", message, err)
}
