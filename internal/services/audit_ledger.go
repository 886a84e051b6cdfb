package services

import (
	"context"
	"time"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/clock"
	"medical-record-versioning/internal/domain/dtos"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuditLedgerContract interface {
	// LogAction persists entry and returns it. It never fails: a write error
	// is logged and the unsaved entry is returned.
	LogAction(ctx context.Context, entry *entities.AuditEntry) *entities.AuditEntry
	GetPatientAuditTrail(ctx context.Context, patientID uuid.UUID, query dtos.AuditTrailQuery) (*dtos.AuditTrailResponse, error)
	GetRecordAuditTrail(ctx context.Context, recordID string, limit int) ([]*entities.AuditEntry, error)
	GetActorActivity(ctx context.Context, actorID uuid.UUID, query dtos.ActivityQuery) (*dtos.ActorActivityResponse, error)
}

type AuditLedgerOptions struct {
	WriteTimeout   time.Duration
	ActivityWindow time.Duration
	DefaultLimit   int
	MaxLimit       int
}

type AuditLedgerImpl struct {
	repo    repositories.AuditEntryRepositoryContract
	clock   clock.Clock
	logger  *zap.Logger
	options AuditLedgerOptions
}

func NewAuditLedger(repo repositories.AuditEntryRepositoryContract, clk clock.Clock, logger *zap.Logger, options AuditLedgerOptions) AuditLedgerContract {
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = 2 * time.Second
	}
	if options.ActivityWindow <= 0 {
		options.ActivityWindow = 30 * 24 * time.Hour
	}
	if options.DefaultLimit <= 0 {
		options.DefaultLimit = 50
	}
	if options.MaxLimit < options.DefaultLimit {
		options.MaxLimit = options.DefaultLimit
	}
	return &AuditLedgerImpl{
		repo:    repo,
		clock:   clk,
		logger:  logger.With(zap.String("service", "audit_ledger")),
		options: options,
	}
}

func (l *AuditLedgerImpl) LogAction(ctx context.Context, entry *entities.AuditEntry) *entities.AuditEntry {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.clock.Now()
	}

	// The write outlives a cancelled request but not the timeout.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.options.WriteTimeout)
	defer cancel()

	if err := l.repo.Insert(writeCtx, entry); err != nil {
		l.logger.Error("Failed to write audit entry",
			zap.String("action", string(entry.Action)),
			zap.String("resource_id", entry.ResourceID),
			zap.String("performed_by", entry.PerformedBy.String()),
			zap.Bool("success", entry.Success),
			zap.Error(err),
		)
	}
	return entry
}

func (l *AuditLedgerImpl) GetPatientAuditTrail(ctx context.Context, patientID uuid.UUID, query dtos.AuditTrailQuery) (*dtos.AuditTrailResponse, error) {
	actions, err := parseActions(query.Actions)
	if err != nil {
		return nil, err
	}
	if query.StartDate != nil && query.EndDate != nil && query.EndDate.Before(*query.StartDate) {
		return nil, apperrors.Validationf("endDate must not be before startDate")
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := l.clampLimit(query.Limit)

	entries, total, err := l.repo.Find(ctx, repositories.AuditQuery{
		PatientID: &patientID,
		Actions:   actions,
		StartDate: query.StartDate,
		EndDate:   query.EndDate,
		Offset:    (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	pagination := dtos.NewPagination(total, page, limit)
	return &dtos.AuditTrailResponse{AuditTrail: entries, Pagination: &pagination}, nil
}

func (l *AuditLedgerImpl) GetRecordAuditTrail(ctx context.Context, recordID string, limit int) ([]*entities.AuditEntry, error) {
	entries, _, err := l.repo.Find(ctx, repositories.AuditQuery{
		RecordID: recordID,
		Limit:    l.clampLimit(limit),
	})
	return entries, err
}

func (l *AuditLedgerImpl) GetActorActivity(ctx context.Context, actorID uuid.UUID, query dtos.ActivityQuery) (*dtos.ActorActivityResponse, error) {
	end := l.clock.Now()
	if query.EndDate != nil {
		end = query.EndDate.UTC()
	}
	start := end.Add(-l.options.ActivityWindow)
	if query.StartDate != nil {
		start = query.StartDate.UTC()
	}
	if end.Before(start) {
		return nil, apperrors.Validationf("endDate must not be before startDate")
	}

	summaries, err := l.repo.SummarizeActor(ctx, actorID, start, end)
	if err != nil {
		return nil, err
	}

	activity := make([]dtos.ActionActivity, 0, len(summaries))
	for _, s := range summaries {
		activity = append(activity, dtos.ActionActivity{
			Action:        s.Action,
			Count:         s.Count,
			LastPerformed: s.LastPerformed,
		})
	}
	return &dtos.ActorActivityResponse{
		ActorID:   actorID,
		StartDate: start,
		EndDate:   end,
		Activity:  activity,
	}, nil
}

func (l *AuditLedgerImpl) clampLimit(limit int) int {
	if limit <= 0 {
		return l.options.DefaultLimit
	}
	if limit > l.options.MaxLimit {
		return l.options.MaxLimit
	}
	return limit
}

func parseActions(names []string) ([]entities.AuditAction, error) {
	actions := make([]entities.AuditAction, 0, len(names))
	for _, name := range names {
		action := entities.AuditAction(name)
		if !action.Valid() {
			return nil, apperrors.Validationf("unknown audit action %q", name)
		}
		actions = append(actions, action)
	}
	return actions, nil
}
