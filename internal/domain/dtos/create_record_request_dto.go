package dtos

// CreateRecordRequest defines the payload for creating a medical record.
// Content, when present, becomes version 1 of the record.
type CreateRecordRequest struct {
	ParseState

	PatientID         string   `json:"patientId" validate:"required,uuid"`
	Title             string   `json:"title" validate:"required,max=255"`
	Description       string   `json:"description" validate:"max=4000"`
	Tags              []string `json:"tags" validate:"max=50,dive,required,max=64"`
	Content           *string  `json:"content,omitempty"`
	ChangeDescription string   `json:"changeDescription" validate:"max=1000"`
}
