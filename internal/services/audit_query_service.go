package services

import (
	"context"

	"medical-record-versioning/internal/domain/dtos"
	"medical-record-versioning/internal/domain/entities"

	"go.uber.org/zap"
)

// AuditQueryServiceContract exposes read-only views over the audit ledger.
// Reads through it are not themselves written to the ledger.
type AuditQueryServiceContract interface {
	GetRecordAuditTrail(ctx context.Context, actor entities.Actor, recordID string, limit int) (*dtos.AuditTrailResponse, error)
	GetPatientAuditTrail(ctx context.Context, actor entities.Actor, patientID string, query dtos.AuditTrailQuery) (*dtos.AuditTrailResponse, error)
	GetActorActivity(ctx context.Context, actor entities.Actor, actorID string, query dtos.ActivityQuery) (*dtos.ActorActivityResponse, error)
}

type AuditQueryServiceImpl struct {
	ledger AuditLedgerContract
	gate   AccessGateContract
	logger *zap.Logger
}

func NewAuditQueryService(ledger AuditLedgerContract, gate AccessGateContract, logger *zap.Logger) AuditQueryServiceContract {
	return &AuditQueryServiceImpl{
		ledger: ledger,
		gate:   gate,
		logger: logger.With(zap.String("service", "audit_query")),
	}
}

func (s *AuditQueryServiceImpl) GetRecordAuditTrail(ctx context.Context, actor entities.Actor, recordID string, limit int) (*dtos.AuditTrailResponse, error) {
	if err := s.authorize(actor, "record", recordID); err != nil {
		return nil, err
	}
	entries, err := s.ledger.GetRecordAuditTrail(ctx, recordID, limit)
	if err != nil {
		return nil, err
	}
	return &dtos.AuditTrailResponse{AuditTrail: entries}, nil
}

func (s *AuditQueryServiceImpl) GetPatientAuditTrail(ctx context.Context, actor entities.Actor, rawPatientID string, query dtos.AuditTrailQuery) (*dtos.AuditTrailResponse, error) {
	patientID, err := ParseID("patientId", rawPatientID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, "patient", rawPatientID); err != nil {
		return nil, err
	}
	return s.ledger.GetPatientAuditTrail(ctx, patientID, query)
}

func (s *AuditQueryServiceImpl) GetActorActivity(ctx context.Context, actor entities.Actor, rawActorID string, query dtos.ActivityQuery) (*dtos.ActorActivityResponse, error) {
	actorID, err := ParseID("actorId", rawActorID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, "actor", rawActorID); err != nil {
		return nil, err
	}
	return s.ledger.GetActorActivity(ctx, actorID, query)
}

// authorize applies the audit trail policy, which does not depend on the
// patient that owns the data.
func (s *AuditQueryServiceImpl) authorize(actor entities.Actor, scope, id string) error {
	decision := s.gate.Authorize(actor, OpViewAuditTrail, actor.ID)
	if decision.Allowed {
		return nil
	}
	s.logger.Warn("Audit trail access denied",
		zap.String("actor_id", actor.ID.String()),
		zap.String("role", string(actor.Role)),
		zap.String("scope", scope),
		zap.String("id", id),
	)
	return decision.Err()
}
