package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordVersion is an immutable snapshot of a record's content. Corrections are
// new versions; rows are never updated. (RecordID, VersionNumber) is unique.
// RecordRef carries the owning record's public id in responses and is not stored.
type RecordVersion struct {
	ID                uuid.UUID  `json:"versionId" gorm:"type:uuid;primaryKey"`
	RecordID          uuid.UUID  `json:"-" gorm:"type:uuid;not null;uniqueIndex:idx_record_versions_number,priority:1"`
	RecordRef         string     `json:"recordId" gorm:"-"`
	VersionNumber     int        `json:"versionNumber" gorm:"not null;uniqueIndex:idx_record_versions_number,priority:2"`
	Content           string     `json:"content,omitempty" gorm:"type:text;not null"`
	ContentHash       string     `json:"contentHash" gorm:"size:64;not null"`
	ContentSize       int64      `json:"contentSize" gorm:"not null"`
	ChangeDescription string     `json:"changeDescription" gorm:"type:text"`
	CreatedBy         uuid.UUID  `json:"createdBy" gorm:"type:uuid;not null"`
	IsApproved        bool       `json:"isApproved" gorm:"not null;default:false"`
	ApprovedBy        *uuid.UUID `json:"approvedBy" gorm:"type:uuid"`
	ApprovedAt        *time.Time `json:"approvedAt"`
	PreviousVersionID *uuid.UUID `json:"previousVersionId" gorm:"type:uuid"`
	CreatedAt         time.Time  `json:"createdAt" gorm:"not null"`
}

func (RecordVersion) TableName() string {
	return "record_versions"
}

func (v *RecordVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
