package services

import (
	"context"
	"sort"
	"strings"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/clock"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// NewRecord is the input of RecordStore.Create. PatientID is raw caller input.
type NewRecord struct {
	PatientID   string
	Title       string
	Description string
	Tags        []string
	CreatedBy   uuid.UUID
}

// MetadataUpdate holds the fields to change; nil means unchanged.
type MetadataUpdate struct {
	Title       *string
	Description *string
	Tags        *[]string
}

type RecordStoreContract interface {
	// Create stores a new active record, plus initial as its version 1 when non-nil.
	Create(ctx context.Context, input NewRecord, initial *entities.RecordVersion) (*entities.MedicalRecord, error)
	Get(ctx context.Context, recordID string, includeDeleted bool) (*entities.MedicalRecord, error)
	// FindActive never returns soft-deleted records, whatever the filter says.
	FindActive(ctx context.Context, filter repositories.RecordFilter) ([]*entities.MedicalRecord, int64, error)
	Find(ctx context.Context, filter repositories.RecordFilter) ([]*entities.MedicalRecord, int64, error)
	SoftDelete(ctx context.Context, record *entities.MedicalRecord, deletedBy uuid.UUID) error
	Restore(ctx context.Context, record *entities.MedicalRecord) error
	// UpdateMetadata reports whether anything changed; nothing is written otherwise.
	UpdateMetadata(ctx context.Context, record *entities.MedicalRecord, update MetadataUpdate, modifiedBy uuid.UUID) (bool, error)
	SetAttachments(ctx context.Context, record *entities.MedicalRecord, attachments []entities.Attachment, modifiedBy uuid.UUID) error
}

type RecordStoreImpl struct {
	repo      repositories.MedicalRecordRepositoryContract
	directory PatientDirectoryContract
	clock     clock.Clock
	logger    *zap.Logger
}

func NewRecordStore(repo repositories.MedicalRecordRepositoryContract, directory PatientDirectoryContract, clk clock.Clock, logger *zap.Logger) RecordStoreContract {
	return &RecordStoreImpl{
		repo:      repo,
		directory: directory,
		clock:     clk,
		logger:    logger.With(zap.String("service", "record_store")),
	}
}

func (s *RecordStoreImpl) Create(ctx context.Context, input NewRecord, initial *entities.RecordVersion) (*entities.MedicalRecord, error) {
	patientID, err := ParseID("patientId", input.PatientID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.Validationf("title is required")
	}

	exists, err := s.directory.Exists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NotFoundf("patient %s not found", patientID)
	}

	now := s.clock.Now()
	record := &entities.MedicalRecord{
		RecordID:       uuid.NewString(),
		PatientID:      patientID,
		Title:          title,
		Description:    input.Description,
		Tags:           NormalizeTags(input.Tags),
		Attachments:    []entities.Attachment{},
		CreatedBy:      input.CreatedBy,
		LastModifiedBy: input.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, record, initial); err != nil {
		return nil, err
	}

	s.logger.Info("Record created",
		zap.String("record_id", record.RecordID),
		zap.String("patient_id", patientID.String()),
		zap.Bool("with_content", initial != nil),
	)
	return record, nil
}

func (s *RecordStoreImpl) Get(ctx context.Context, recordID string, includeDeleted bool) (*entities.MedicalRecord, error) {
	if strings.TrimSpace(recordID) == "" {
		return nil, apperrors.Validationf("recordId is required")
	}
	return s.repo.GetByRecordID(ctx, recordID, includeDeleted)
}

func (s *RecordStoreImpl) FindActive(ctx context.Context, filter repositories.RecordFilter) ([]*entities.MedicalRecord, int64, error) {
	filter.IncludeDeleted = false
	return s.repo.Find(ctx, filter)
}

func (s *RecordStoreImpl) Find(ctx context.Context, filter repositories.RecordFilter) ([]*entities.MedicalRecord, int64, error) {
	return s.repo.Find(ctx, filter)
}

func (s *RecordStoreImpl) SoftDelete(ctx context.Context, record *entities.MedicalRecord, deletedBy uuid.UUID) error {
	if record.IsDeleted {
		return apperrors.Conflictf("record %s is already deleted", record.RecordID)
	}
	now := s.clock.Now()
	if err := s.repo.SoftDelete(ctx, record.ID, deletedBy, now); err != nil {
		return err
	}
	record.IsDeleted = true
	record.DeletedAt = &now
	record.DeletedBy = &deletedBy

	s.logger.Info("Record soft-deleted",
		zap.String("record_id", record.RecordID),
		zap.String("deleted_by", deletedBy.String()),
	)
	return nil
}

func (s *RecordStoreImpl) Restore(ctx context.Context, record *entities.MedicalRecord) error {
	if err := s.repo.Restore(ctx, record.ID); err != nil {
		return err
	}
	record.IsDeleted = false
	record.DeletedAt = nil
	record.DeletedBy = nil

	s.logger.Info("Record restored", zap.String("record_id", record.RecordID))
	return nil
}

func (s *RecordStoreImpl) UpdateMetadata(ctx context.Context, record *entities.MedicalRecord, update MetadataUpdate, modifiedBy uuid.UUID) (bool, error) {
	changed := false
	next := *record

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return false, apperrors.Validationf("title must not be empty")
		}
		if title != record.Title {
			next.Title = title
			changed = true
		}
	}
	if update.Description != nil && *update.Description != record.Description {
		next.Description = *update.Description
		changed = true
	}
	if update.Tags != nil {
		tags := NormalizeTags(*update.Tags)
		if !sameTagSet(tags, record.Tags) {
			next.Tags = tags
			changed = true
		}
	}
	if !changed {
		return false, nil
	}

	next.LastModifiedBy = modifiedBy
	next.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateMetadata(ctx, &next); err != nil {
		return false, err
	}
	*record = next
	return true, nil
}

func (s *RecordStoreImpl) SetAttachments(ctx context.Context, record *entities.MedicalRecord, attachments []entities.Attachment, modifiedBy uuid.UUID) error {
	next := *record
	next.Attachments = attachments
	next.LastModifiedBy = modifiedBy
	next.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateAttachments(ctx, &next); err != nil {
		return err
	}
	*record = next
	return nil
}

// NormalizeTags trims and case-folds tags, dropping blanks and duplicates.
// The first spelling of a tag decides its position.
func NormalizeTags(tags []string) []string {
	folder := cases.Fold()
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		folded := folder.String(strings.TrimSpace(tag))
		if folded == "" {
			continue
		}
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		out = append(out, folded)
	}
	return out
}

// NormalizeTag folds a single tag the same way NormalizeTags does.
func NormalizeTag(tag string) string {
	return cases.Fold().String(strings.TrimSpace(tag))
}

func sameTagSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// ParseID validates a caller supplied identifier.
func ParseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apperrors.Validationf("%s must be a valid identifier", field)
	}
	return id, nil
}
