package repositories

import (
	"context"
	"time"

	"medical-record-versioning/internal/domain/entities"

	"github.com/google/uuid"
)

// AuditQuery selects audit entries; all set fields are combined with AND.
// Results are ordered by timestamp, newest first. Limit <= 0 means no limit.
type AuditQuery struct {
	PatientID   *uuid.UUID
	RecordID    string
	PerformedBy *uuid.UUID
	Actions     []entities.AuditAction
	StartDate   *time.Time
	EndDate     *time.Time
	Offset      int
	Limit       int
}

// ActionSummary aggregates one actor's entries for a single action.
type ActionSummary struct {
	Action        entities.AuditAction
	Count         int64
	LastPerformed time.Time
}

type AuditEntryRepositoryContract interface {
	Insert(ctx context.Context, entry *entities.AuditEntry) error
	Find(ctx context.Context, query AuditQuery) ([]*entities.AuditEntry, int64, error)
	SummarizeActor(ctx context.Context, actorID uuid.UUID, start, end time.Time) ([]ActionSummary, error)
}
