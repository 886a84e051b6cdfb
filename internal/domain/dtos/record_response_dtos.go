package dtos

import (
	"medical-record-versioning/internal/domain/entities"
)

type CreateRecordResponse struct {
	Record  *entities.MedicalRecord `json:"record"`
	Version *entities.RecordVersion `json:"version,omitempty"`
}

type PatientRecordsResponse struct {
	Records    []*entities.MedicalRecord `json:"records"`
	Pagination Pagination                `json:"pagination"`
}

type RecordDetailResponse struct {
	Record        *entities.MedicalRecord `json:"record"`
	LatestVersion *entities.RecordVersion `json:"latestVersion"`
	Patient       *PatientDTO             `json:"patient,omitempty"`
}

type UpdateRecordResponse struct {
	Record         *entities.MedicalRecord `json:"record"`
	NewVersion     *entities.RecordVersion `json:"newVersion,omitempty"`
	RecordUpdated  bool                    `json:"recordUpdated"`
	ContentUpdated bool                    `json:"contentUpdated"`
}

type DeleteRecordResponse struct {
	Success        bool `json:"success"`
	AlreadyDeleted bool `json:"alreadyDeleted,omitempty"`
}

type BackupResponse struct {
	Path          string `json:"path"`
	Size          int64  `json:"size"`
	VersionNumber int    `json:"versionNumber"`
}

// UploadAttachmentRequest carries an attachment's bytes into the service.
// In JSON bodies Data is base64 encoded.
type UploadAttachmentRequest struct {
	ParseState

	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,max=127"`
	Data        []byte `json:"data" validate:"required"`
}

type AttachmentResponse struct {
	Record     *entities.MedicalRecord `json:"record"`
	Attachment entities.Attachment     `json:"attachment"`
}
