package dtos

import (
	"medical-record-versioning/internal/domain/entities"
)

type VersionHistoryResponse struct {
	Versions []*entities.RecordVersion `json:"versions"`
}

type VersionResponse struct {
	Version        *entities.RecordVersion `json:"version"`
	IntegrityValid bool                    `json:"integrityValid"`
}

// VersionDiff pairs a version with its predecessor.
type VersionDiff struct {
	PreviousVersion   *entities.RecordVersion `json:"previousVersion"`
	CurrentVersion    *entities.RecordVersion `json:"currentVersion"`
	PreviousContent   string                  `json:"previousContent"`
	CurrentContent    string                  `json:"currentContent"`
	ChangeDescription string                  `json:"changeDescription"`
}

// VersionDiffResponse has a nil Diff for version 1.
type VersionDiffResponse struct {
	Diff *VersionDiff `json:"diff"`
}
