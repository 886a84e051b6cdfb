package services

import (
	"fmt"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/entities"

	"github.com/google/uuid"
)

// Operation is an action an actor asks the AccessGate about.
type Operation string

const (
	OpCreate            Operation = "create"
	OpRead              Operation = "read"
	OpUpdate            Operation = "update"
	OpDelete            Operation = "delete"
	OpRestore           Operation = "restore"
	OpBackup            Operation = "backup"
	OpManageAttachments Operation = "manage_attachments"
	OpViewAuditTrail    Operation = "view_audit_trail"
)

// UnauthorizedMessage is recorded on the audit entry of every denied call.
const UnauthorizedMessage = "Unauthorized access attempt"

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Err returns nil for an allowed decision and a Forbidden error otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperrors.Forbiddenf("%s", d.Reason)
}

type AccessGateContract interface {
	// Authorize decides whether actor may perform op on data owned by patientID.
	Authorize(actor entities.Actor, op Operation, patientID uuid.UUID) Decision
}

// AccessGateImpl is the fixed role policy: doctors may do anything, patients
// may only read their own records, admins are kept off clinical data.
type AccessGateImpl struct{}

func NewAccessGate() AccessGateContract {
	return AccessGateImpl{}
}

func (AccessGateImpl) Authorize(actor entities.Actor, op Operation, patientID uuid.UUID) Decision {
	switch actor.Role {
	case entities.RoleDoctor:
		return Decision{Allowed: true}
	case entities.RolePatient:
		if op != OpRead {
			return Decision{Reason: fmt.Sprintf("patients may not %s records", op)}
		}
		if actor.ID != patientID {
			return Decision{Reason: "patients may only read their own records"}
		}
		return Decision{Allowed: true}
	case entities.RoleAdmin:
		return Decision{Reason: "administrators have no access to medical records"}
	default:
		return Decision{Reason: fmt.Sprintf("unknown role %q", actor.Role)}
	}
}
