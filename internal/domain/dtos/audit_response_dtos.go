package dtos

import (
	"time"

	"medical-record-versioning/internal/domain/entities"

	"github.com/google/uuid"
)

type AuditTrailResponse struct {
	AuditTrail []*entities.AuditEntry `json:"auditTrail"`
	Pagination *Pagination            `json:"pagination,omitempty"`
}

type ActionActivity struct {
	Action        entities.AuditAction `json:"action"`
	Count         int64                `json:"count"`
	LastPerformed time.Time            `json:"lastPerformed"`
}

type ActorActivityResponse struct {
	ActorID   uuid.UUID        `json:"actorId"`
	StartDate time.Time        `json:"startDate"`
	EndDate   time.Time        `json:"endDate"`
	Activity  []ActionActivity `json:"activity"`
}
