package mappers

import (
	"fmt"
	"strings"

	"medical-record-versioning/internal/domain/entities"
)

// FHIRHumanName represents a FHIR HumanName data type.
type FHIRHumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type FHIRContactPoint struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

// FHIRPatientResource is the subset of the R4 Patient resource carried in backups.
type FHIRPatientResource struct {
	ResourceType string             `json:"resourceType"`
	ID           string             `json:"id,omitempty"`
	Name         []FHIRHumanName    `json:"name,omitempty"`
	BirthDate    string             `json:"birthDate,omitempty"`
	Telecom      []FHIRContactPoint `json:"telecom,omitempty"`
}

// MapPatientToFHIR converts a Patient into a FHIR Patient resource. The last
// word of the name is taken as the family name.
func MapPatientToFHIR(patient entities.Patient) (*FHIRPatientResource, error) {
	name := strings.TrimSpace(patient.Name)
	if name == "" {
		return nil, fmt.Errorf("patient name is required for FHIR mapping")
	}

	humanName := FHIRHumanName{Use: "official", Text: name}
	if parts := strings.Fields(name); len(parts) > 1 {
		humanName.Family = parts[len(parts)-1]
		humanName.Given = parts[:len(parts)-1]
	} else {
		humanName.Given = parts
	}

	resource := &FHIRPatientResource{
		ResourceType: "Patient",
		ID:           patient.ID.String(),
		Name:         []FHIRHumanName{humanName},
	}
	if !patient.DateOfBirth.IsZero() {
		resource.BirthDate = patient.DateOfBirth.Format("2006-01-02")
	}
	if patient.Email != "" {
		resource.Telecom = []FHIRContactPoint{{System: "email", Value: patient.Email}}
	}
	return resource, nil
}
