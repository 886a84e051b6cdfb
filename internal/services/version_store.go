package services

import (
	"context"
	"errors"
	"strings"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/clock"
	"medical-record-versioning/internal/domain/dtos"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"
	"medical-record-versioning/internal/hashing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type VersionStoreContract interface {
	// PrepareVersion stamps a new, unsaved, auto-approved version.
	PrepareVersion(content string, authorID uuid.UUID, changeDescription string) (*entities.RecordVersion, error)
	CreateNewVersion(ctx context.Context, recordID uuid.UUID, content string, authorID uuid.UUID, changeDescription string) (*entities.RecordVersion, error)
	// GetLatestVersion returns nil without error when the record has no content yet.
	GetLatestVersion(ctx context.Context, recordID uuid.UUID) (*entities.RecordVersion, error)
	GetVersion(ctx context.Context, recordID uuid.UUID, versionNumber int) (*entities.RecordVersion, error)
	GetVersionHistory(ctx context.Context, recordID uuid.UUID, limit int) ([]*entities.RecordVersion, error)
	// GetDiffWithPrevious returns nil without error for version 1.
	GetDiffWithPrevious(ctx context.Context, version *entities.RecordVersion) (*dtos.VersionDiff, error)
	VerifyIntegrity(version *entities.RecordVersion) bool
}

type VersionStoreImpl struct {
	repo   repositories.RecordVersionRepositoryContract
	clock  clock.Clock
	logger *zap.Logger
}

func NewVersionStore(repo repositories.RecordVersionRepositoryContract, clk clock.Clock, logger *zap.Logger) VersionStoreContract {
	return &VersionStoreImpl{
		repo:   repo,
		clock:  clk,
		logger: logger.With(zap.String("service", "version_store")),
	}
}

func (s *VersionStoreImpl) PrepareVersion(content string, authorID uuid.UUID, changeDescription string) (*entities.RecordVersion, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.Validationf("content must not be empty")
	}
	now := s.clock.Now()
	approver := authorID
	return &entities.RecordVersion{
		ID:                uuid.New(),
		Content:           content,
		ContentHash:       hashing.Hash(content),
		ContentSize:       hashing.Size(content),
		ChangeDescription: changeDescription,
		CreatedBy:         authorID,
		IsApproved:        true,
		ApprovedBy:        &approver,
		ApprovedAt:        &now,
		CreatedAt:         now,
	}, nil
}

func (s *VersionStoreImpl) CreateNewVersion(ctx context.Context, recordID uuid.UUID, content string, authorID uuid.UUID, changeDescription string) (*entities.RecordVersion, error) {
	version, err := s.PrepareVersion(content, authorID, changeDescription)
	if err != nil {
		return nil, err
	}
	version.RecordID = recordID

	if err := s.repo.Append(ctx, version); err != nil {
		return nil, err
	}

	s.logger.Debug("Version appended",
		zap.String("record", recordID.String()),
		zap.Int("version_number", version.VersionNumber),
		zap.Int64("content_size", version.ContentSize),
	)
	return version, nil
}

func (s *VersionStoreImpl) GetLatestVersion(ctx context.Context, recordID uuid.UUID) (*entities.RecordVersion, error) {
	version, err := s.repo.GetLatest(ctx, recordID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return version, err
}

func (s *VersionStoreImpl) GetVersion(ctx context.Context, recordID uuid.UUID, versionNumber int) (*entities.RecordVersion, error) {
	if versionNumber < 1 {
		return nil, apperrors.Validationf("version number must be positive")
	}
	return s.repo.GetByNumber(ctx, recordID, versionNumber)
}

func (s *VersionStoreImpl) GetVersionHistory(ctx context.Context, recordID uuid.UUID, limit int) ([]*entities.RecordVersion, error) {
	return s.repo.History(ctx, recordID, limit)
}

func (s *VersionStoreImpl) GetDiffWithPrevious(ctx context.Context, version *entities.RecordVersion) (*dtos.VersionDiff, error) {
	if version.PreviousVersionID == nil {
		return nil, nil
	}
	previous, err := s.repo.GetByID(ctx, *version.PreviousVersionID)
	if err != nil {
		return nil, err
	}
	return &dtos.VersionDiff{
		PreviousVersion:   previous,
		CurrentVersion:    version,
		PreviousContent:   previous.Content,
		CurrentContent:    version.Content,
		ChangeDescription: version.ChangeDescription,
	}, nil
}

func (s *VersionStoreImpl) VerifyIntegrity(version *entities.RecordVersion) bool {
	return hashing.Verify(version.Content, version.ContentHash)
}
