package repositories

import (
	"context"
	"time"

	"medical-record-versioning/internal/domain/entities"

	"github.com/google/uuid"
)

// RecordFilter narrows a record listing. Limit <= 0 means no limit.
type RecordFilter struct {
	PatientID      *uuid.UUID
	Tag            string
	IncludeDeleted bool
	Offset         int
	Limit          int
}

type MedicalRecordRepositoryContract interface {
	// Create persists record and, when initial is non-nil, version 1 of its
	// content in the same transaction.
	Create(ctx context.Context, record *entities.MedicalRecord, initial *entities.RecordVersion) error
	GetByRecordID(ctx context.Context, recordID string, includeDeleted bool) (*entities.MedicalRecord, error)
	Find(ctx context.Context, filter RecordFilter) ([]*entities.MedicalRecord, int64, error)
	UpdateMetadata(ctx context.Context, record *entities.MedicalRecord) error
	UpdateAttachments(ctx context.Context, record *entities.MedicalRecord) error
	// SoftDelete fails with a conflict when the record is already deleted.
	SoftDelete(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID, deletedAt time.Time) error
	Restore(ctx context.Context, id uuid.UUID) error
}
