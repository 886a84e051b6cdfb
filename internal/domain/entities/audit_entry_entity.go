package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditAction string

const (
	ActionCreateRecord         AuditAction = "CREATE_RECORD"
	ActionReadRecord           AuditAction = "READ_RECORD"
	ActionUpdateRecord         AuditAction = "UPDATE_RECORD"
	ActionDeleteRecord         AuditAction = "DELETE_RECORD"
	ActionRestoreRecord        AuditAction = "RESTORE_RECORD"
	ActionCreateVersion        AuditAction = "CREATE_VERSION"
	ActionViewVersion          AuditAction = "VIEW_VERSION"
	ActionBackupRecord         AuditAction = "BACKUP_RECORD"
	ActionUploadAttachment     AuditAction = "UPLOAD_ATTACHMENT"
	ActionDeleteAttachment     AuditAction = "DELETE_ATTACHMENT"
	ActionAccessPatientRecords AuditAction = "ACCESS_PATIENT_RECORDS"
)

// AllAuditActions lists every action in declaration order.
var AllAuditActions = []AuditAction{
	ActionCreateRecord, ActionReadRecord, ActionUpdateRecord, ActionDeleteRecord,
	ActionRestoreRecord, ActionCreateVersion, ActionViewVersion, ActionBackupRecord,
	ActionUploadAttachment, ActionDeleteAttachment, ActionAccessPatientRecords,
}

func (a AuditAction) Valid() bool {
	for _, known := range AllAuditActions {
		if a == known {
			return true
		}
	}
	return false
}

type ResourceType string

const (
	ResourceRecord     ResourceType = "RECORD"
	ResourceVersion    ResourceType = "VERSION"
	ResourcePatient    ResourceType = "PATIENT"
	ResourceAttachment ResourceType = "ATTACHMENT"
)

// AuditEntry is a write-once fact about one action, successful or not.
// ResourceID names the touched resource; RecordID is the external id of the
// owning record (empty when the action was not scoped to one record).
type AuditEntry struct {
	ID              uint           `json:"-" gorm:"primaryKey;autoIncrement"`
	AuditID         uuid.UUID      `json:"auditId" gorm:"type:uuid;uniqueIndex;not null"`
	Action          AuditAction    `json:"action" gorm:"size:50;not null;index"`
	ResourceType    ResourceType   `json:"resourceType" gorm:"size:20;not null"`
	ResourceID      string         `json:"resourceId" gorm:"size:64;not null"`
	RecordID        string         `json:"recordId,omitempty" gorm:"size:64;index"`
	PatientID       *uuid.UUID     `json:"patientId" gorm:"type:uuid;index"`
	PerformedBy     uuid.UUID      `json:"performedBy" gorm:"type:uuid;not null;index"`
	PerformedByType Role           `json:"performedByType" gorm:"size:20;not null"`
	Details         datatypes.JSON `json:"details"`
	Timestamp       time.Time      `json:"timestamp" gorm:"not null;index"`
	Success         bool           `json:"success" gorm:"not null"`
	ErrorMessage    *string        `json:"errorMessage" gorm:"type:text"`
	Duration        int64          `json:"duration" gorm:"not null;default:0"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}

func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.AuditID == uuid.Nil {
		a.AuditID = uuid.New()
	}
	return nil
}
