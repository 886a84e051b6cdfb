package repositories

import (
	"context"

	"medical-record-versioning/internal/domain/entities"

	"github.com/google/uuid"
)

type RecordVersionRepositoryContract interface {
	// Append assigns version.VersionNumber and version.PreviousVersionID from
	// the current head of version.RecordID, inserts the row and moves the
	// record's current version pointer, atomically. Concurrent appends to the
	// same record never share a version number.
	Append(ctx context.Context, version *entities.RecordVersion) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.RecordVersion, error)
	GetByNumber(ctx context.Context, recordID uuid.UUID, versionNumber int) (*entities.RecordVersion, error)
	GetLatest(ctx context.Context, recordID uuid.UUID) (*entities.RecordVersion, error)
	// History returns versions newest first without their content.
	History(ctx context.Context, recordID uuid.UUID, limit int) ([]*entities.RecordVersion, error)
}
