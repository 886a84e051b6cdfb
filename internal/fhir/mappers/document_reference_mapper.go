package mappers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"medical-record-versioning/internal/domain/entities"
)

const contentHashSystem = "urn:medical-record-versioning:content-hash:sha256"

type FHIRReference struct {
	Reference string `json:"reference"`
}

type FHIRIdentifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

type FHIRCoding struct {
	System string `json:"system,omitempty"`
	Code   string `json:"code"`
}

type FHIRMeta struct {
	VersionID   string       `json:"versionId,omitempty"`
	LastUpdated string       `json:"lastUpdated,omitempty"`
	Tag         []FHIRCoding `json:"tag,omitempty"`
}

type FHIRAttachment struct {
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
	Size        int64  `json:"size"`
	Title       string `json:"title,omitempty"`
	Creation    string `json:"creation,omitempty"`
}

type FHIRDocumentContent struct {
	Attachment FHIRAttachment `json:"attachment"`
}

type FHIRCodeableConcept struct {
	Text string `json:"text"`
}

// FHIRDocumentReference is the subset of the R4 DocumentReference resource
// used to carry one record version.
type FHIRDocumentReference struct {
	ResourceType     string                `json:"resourceType"`
	ID               string                `json:"id"`
	Meta             FHIRMeta              `json:"meta"`
	MasterIdentifier FHIRIdentifier        `json:"masterIdentifier"`
	Identifier       []FHIRIdentifier      `json:"identifier,omitempty"`
	Status           string                `json:"status"`
	DocStatus        string                `json:"docStatus"`
	Type             FHIRCodeableConcept   `json:"type"`
	Subject          FHIRReference         `json:"subject"`
	Date             string                `json:"date"`
	Author           []FHIRReference       `json:"author,omitempty"`
	Description      string                `json:"description,omitempty"`
	Content          []FHIRDocumentContent `json:"content"`
}

type FHIRBundleEntry struct {
	FullURL  string      `json:"fullUrl"`
	Resource interface{} `json:"resource"`
}

type FHIRBundle struct {
	ResourceType string            `json:"resourceType"`
	Type         string            `json:"type"`
	Timestamp    string            `json:"timestamp"`
	Entry        []FHIRBundleEntry `json:"entry"`
}

// RecordSnapshot is one record at one version, optionally with its patient.
type RecordSnapshot struct {
	Record  *entities.MedicalRecord
	Version *entities.RecordVersion
	Patient *entities.Patient
}

// MapRecordVersionToDocumentReference maps one version of a record.
// Soft-deleted records are marked entered-in-error.
func MapRecordVersionToDocumentReference(record *entities.MedicalRecord, version *entities.RecordVersion) (*FHIRDocumentReference, error) {
	if record == nil || version == nil {
		return nil, fmt.Errorf("record and version are required for FHIR mapping")
	}
	if version.RecordID != record.ID {
		return nil, fmt.Errorf("version %s does not belong to record %s", version.ID, record.RecordID)
	}

	status := "current"
	if record.IsDeleted {
		status = "entered-in-error"
	}

	tags := make([]FHIRCoding, 0, len(record.Tags))
	for _, tag := range record.Tags {
		tags = append(tags, FHIRCoding{Code: tag})
	}

	created := version.CreatedAt.UTC().Format(time.RFC3339)
	return &FHIRDocumentReference{
		ResourceType: "DocumentReference",
		ID:           version.ID.String(),
		Meta: FHIRMeta{
			VersionID:   strconv.Itoa(version.VersionNumber),
			LastUpdated: created,
			Tag:         tags,
		},
		MasterIdentifier: FHIRIdentifier{System: "urn:ietf:rfc:3986", Value: "urn:uuid:" + record.RecordID},
		Identifier:       []FHIRIdentifier{{System: contentHashSystem, Value: version.ContentHash}},
		Status:           status,
		DocStatus:        "final",
		Type:             FHIRCodeableConcept{Text: record.Title},
		Subject:          FHIRReference{Reference: "Patient/" + record.PatientID.String()},
		Date:             created,
		Author:           []FHIRReference{{Reference: "Practitioner/" + version.CreatedBy.String()}},
		Description:      record.Description,
		Content: []FHIRDocumentContent{{
			Attachment: FHIRAttachment{
				ContentType: "text/plain; charset=utf-8",
				Data:        base64.StdEncoding.EncodeToString([]byte(version.Content)),
				Size:        version.ContentSize,
				Title:       version.ChangeDescription,
				Creation:    created,
			},
		}},
	}, nil
}

// MapSnapshotToFHIRBundle renders a snapshot as a FHIR collection Bundle.
func MapSnapshotToFHIRBundle(snapshot RecordSnapshot, now time.Time) (json.RawMessage, error) {
	document, err := MapRecordVersionToDocumentReference(snapshot.Record, snapshot.Version)
	if err != nil {
		return nil, err
	}

	bundle := FHIRBundle{
		ResourceType: "Bundle",
		Type:         "collection",
		Timestamp:    now.UTC().Format(time.RFC3339),
		Entry: []FHIRBundleEntry{{
			FullURL:  "urn:uuid:" + document.ID,
			Resource: document,
		}},
	}

	if snapshot.Patient != nil {
		patient, err := MapPatientToFHIR(*snapshot.Patient)
		if err != nil {
			return nil, err
		}
		bundle.Entry = append(bundle.Entry, FHIRBundleEntry{
			FullURL:  "urn:uuid:" + patient.ID,
			Resource: patient,
		})
	}

	raw, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("error marshalling FHIR bundle to JSON: %w", err)
	}
	return raw, nil
}
