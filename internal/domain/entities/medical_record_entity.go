package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MedicalRecord is a titled folder of medical content belonging to one patient.
// ID is the storage key; RecordID is the stable identifier handed to clients.
// Content lives in RecordVersion rows; CurrentVersionID points at the head.
type MedicalRecord struct {
	ID               uuid.UUID    `json:"-" gorm:"type:uuid;primaryKey"`
	RecordID         string       `json:"recordId" gorm:"size:64;uniqueIndex;not null"`
	PatientID        uuid.UUID    `json:"patientId" gorm:"type:uuid;not null;index"`
	Title            string       `json:"title" gorm:"size:255;not null"`
	Description      string       `json:"description" gorm:"type:text"`
	Tags             []string     `json:"tags" gorm:"type:text;serializer:json"`
	CurrentVersionID *uuid.UUID   `json:"currentVersionId" gorm:"type:uuid"`
	Attachments      []Attachment `json:"attachments" gorm:"type:text;serializer:json"`
	CreatedBy        uuid.UUID    `json:"createdBy" gorm:"type:uuid;not null"`
	LastModifiedBy   uuid.UUID    `json:"lastModifiedBy" gorm:"type:uuid;not null"`
	IsDeleted        bool         `json:"isDeleted" gorm:"not null;default:false;index"`
	DeletedAt        *time.Time   `json:"deletedAt"`
	DeletedBy        *uuid.UUID   `json:"deletedBy" gorm:"type:uuid"`
	CreatedAt        time.Time    `json:"createdAt" gorm:"not null"`
	UpdatedAt        time.Time    `json:"updatedAt" gorm:"not null"`
}

func (MedicalRecord) TableName() string {
	return "medical_records"
}

func (r *MedicalRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.RecordID == "" {
		r.RecordID = uuid.NewString()
	}
	return nil
}

// Attachment is file metadata kept on the record; the bytes live in the object store.
type Attachment struct {
	AttachmentID string    `json:"attachmentId"`
	FileName     string    `json:"fileName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	ContentHash  string    `json:"contentHash"`
	Location     string    `json:"location"`
	UploadedBy   uuid.UUID `json:"uploadedBy"`
	UploadedAt   time.Time `json:"uploadedAt"`
}
