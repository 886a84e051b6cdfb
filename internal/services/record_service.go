package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"medical-record-versioning/internal/adapters"
	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/clock"
	"medical-record-versioning/internal/domain/dtos"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"
	"medical-record-versioning/internal/hashing"
	"medical-record-versioning/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordServiceContract is the public operation surface over medical records.
// Every call writes exactly one audit entry, whether it succeeds or not.
type RecordServiceContract interface {
	CreateRecord(ctx context.Context, actor entities.Actor, req dtos.CreateRecordRequest) (*dtos.CreateRecordResponse, error)
	GetPatientRecords(ctx context.Context, actor entities.Actor, patientID string, query dtos.RecordListQuery) (*dtos.PatientRecordsResponse, error)
	GetRecord(ctx context.Context, actor entities.Actor, recordID string) (*dtos.RecordDetailResponse, error)
	UpdateRecord(ctx context.Context, actor entities.Actor, recordID string, req dtos.UpdateRecordRequest) (*dtos.UpdateRecordResponse, error)
	DeleteRecord(ctx context.Context, actor entities.Actor, recordID string) (*dtos.DeleteRecordResponse, error)
	RestoreRecord(ctx context.Context, actor entities.Actor, recordID string) (*dtos.RecordDetailResponse, error)
	GetVersionHistory(ctx context.Context, actor entities.Actor, recordID string, query dtos.HistoryQuery) (*dtos.VersionHistoryResponse, error)
	GetVersion(ctx context.Context, actor entities.Actor, recordID string, versionNumber int) (*dtos.VersionResponse, error)
	GetVersionDiff(ctx context.Context, actor entities.Actor, recordID string, versionNumber int) (*dtos.VersionDiffResponse, error)
	BackupRecord(ctx context.Context, actor entities.Actor, recordID string) (*dtos.BackupResponse, error)
	UploadAttachment(ctx context.Context, actor entities.Actor, recordID string, req dtos.UploadAttachmentRequest) (*dtos.AttachmentResponse, error)
	DeleteAttachment(ctx context.Context, actor entities.Actor, recordID, attachmentID string) (*dtos.AttachmentResponse, error)
}

type RecordServiceOptions struct {
	DefaultPageSize     int
	MaxPageSize         int
	DefaultHistoryLimit int
	MaxAttachmentBytes  int
	BackupTimeout       time.Duration
}

// Transactor runs fn in one database transaction. Stores called with the
// context handed to fn take part in it.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RecordServiceDeps wires a RecordServiceImpl. Backups and Attachments may
// be nil, which disables the operations that need them. Without Tx, multi
// step writes are not atomic.
type RecordServiceDeps struct {
	Tx          Transactor
	Records     RecordStoreContract
	Versions    VersionStoreContract
	Ledger      AuditLedgerContract
	Gate        AccessGateContract
	Directory   PatientDirectoryContract
	Backups     BackupDispatcher
	Attachments adapters.ObjectStore
	Validate    *validator.Validate
	Metrics     *metrics.MetricsCollector
	Clock       clock.Clock
	Logger      *zap.Logger
}

type RecordServiceImpl struct {
	RecordServiceDeps
	options RecordServiceOptions
	logger  *zap.Logger
}

func NewRecordService(deps RecordServiceDeps, options RecordServiceOptions) RecordServiceContract {
	if options.DefaultPageSize <= 0 {
		options.DefaultPageSize = 10
	}
	if options.MaxPageSize < options.DefaultPageSize {
		options.MaxPageSize = options.DefaultPageSize
	}
	if options.DefaultHistoryLimit <= 0 {
		options.DefaultHistoryLimit = 50
	}
	if options.MaxAttachmentBytes <= 0 {
		options.MaxAttachmentBytes = 10 * 1024 * 1024
	}
	if options.BackupTimeout <= 0 {
		options.BackupTimeout = 5 * time.Second
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetricsCollector()
	}
	if deps.Validate == nil {
		deps.Validate = validator.New()
	}
	return &RecordServiceImpl{
		RecordServiceDeps: deps,
		options:           options,
		logger:            deps.Logger.With(zap.String("service", "record_service")),
	}
}

// auditScope collects what the audit entry of one operation should say.
type auditScope struct {
	resourceType entities.ResourceType
	resourceID   string
	recordID     string
	patientID    *uuid.UUID
	details      map[string]interface{}
}

func newScope(resourceType entities.ResourceType, resourceID string) *auditScope {
	return &auditScope{
		resourceType: resourceType,
		resourceID:   resourceID,
		details:      make(map[string]interface{}),
	}
}

func (a *auditScope) forRecord(record *entities.MedicalRecord) {
	a.recordID = record.RecordID
	if a.resourceType == entities.ResourceRecord {
		a.resourceID = record.RecordID
	}
	patientID := record.PatientID
	a.patientID = &patientID
	a.details["title"] = record.Title
}

func (a *auditScope) forPatient(patientID uuid.UUID) {
	a.patientID = &patientID
}

// perform runs op and writes its audit entry. The entry is written after op
// returns, so it sees everything op put into scope.
func (s *RecordServiceImpl) perform(ctx context.Context, actor entities.Actor, action entities.AuditAction, scope *auditScope, op func() error) error {
	start := time.Now()
	err := op()
	elapsed := time.Since(start)

	entry := &entities.AuditEntry{
		Action:          action,
		ResourceType:    scope.resourceType,
		ResourceID:      scope.resourceID,
		RecordID:        scope.recordID,
		PatientID:       scope.patientID,
		PerformedBy:     actor.ID,
		PerformedByType: actor.Role,
		Timestamp:       s.Clock.Now(),
		Success:         err == nil,
		Duration:        elapsed.Milliseconds(),
	}

	outcome := "success"
	if err != nil {
		kind := apperrors.KindOf(err)
		outcome = strings.ToLower(string(kind))
		message := err.Error()
		if kind == apperrors.KindForbidden {
			scope.details["reason"] = message
			message = UnauthorizedMessage
		}
		entry.ErrorMessage = &message
	}

	if details, mErr := json.Marshal(scope.details); mErr == nil {
		entry.Details = details
	} else {
		s.logger.Warn("Failed to encode audit details", zap.String("action", string(action)), zap.Error(mErr))
	}

	s.Ledger.LogAction(ctx, entry)

	s.Metrics.IncrementCounter("record_operations_total", map[string]string{
		"action":  string(action),
		"outcome": outcome,
	})
	s.Metrics.ObserveLatency("record_operation."+strings.ToLower(string(action)), elapsed)

	if err != nil {
		s.logger.Debug("Operation failed",
			zap.String("action", string(action)),
			zap.String("actor_id", actor.ID.String()),
			zap.String("resource_id", scope.resourceID),
			zap.Error(err),
		)
	}
	return err
}

// parseFailer is implemented by requests that carry a decoding error.
type parseFailer interface {
	ParseFailure() error
}

// rejectUnparsed returns the decoding failure carried by v, if any.
func rejectUnparsed(v interface{}) error {
	pf, ok := v.(parseFailer)
	if !ok || pf.ParseFailure() == nil {
		return nil
	}
	err := pf.ParseFailure()
	if apperrors.KindOf(err) == apperrors.KindValidation {
		return err
	}
	return apperrors.Wrap(apperrors.KindValidation, err, "could not parse request")
}

func (s *RecordServiceImpl) validateStruct(v interface{}) error {
	if err := rejectUnparsed(v); err != nil {
		return err
	}
	if err := s.Validate.Struct(v); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, err, "invalid request")
	}
	return nil
}

func (s *RecordServiceImpl) CreateRecord(ctx context.Context, actor entities.Actor, req dtos.CreateRecordRequest) (*dtos.CreateRecordResponse, error) {
	scope := newScope(entities.ResourceRecord, "")
	var resp *dtos.CreateRecordResponse

	err := s.perform(ctx, actor, entities.ActionCreateRecord, scope, func() error {
		if err := rejectUnparsed(req); err != nil {
			return err
		}
		patientID, err := ParseID("patientId", req.PatientID)
		if err != nil {
			return err
		}
		scope.forPatient(patientID)
		if err := s.validateStruct(req); err != nil {
			return err
		}
		if err := s.Gate.Authorize(actor, OpCreate, patientID).Err(); err != nil {
			return err
		}

		var initial *entities.RecordVersion
		if req.Content != nil {
			initial, err = s.Versions.PrepareVersion(*req.Content, actor.ID, req.ChangeDescription)
			if err != nil {
				return err
			}
		}

		record, err := s.Records.Create(ctx, NewRecord{
			PatientID:   req.PatientID,
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CreatedBy:   actor.ID,
		}, initial)
		if err != nil {
			return err
		}

		scope.forRecord(record)
		scope.details["tags"] = record.Tags
		scope.details["hasContent"] = initial != nil
		if initial != nil {
			scope.details["versionNumber"] = initial.VersionNumber
			s.Metrics.ObserveSize("version_content_bytes", float64(initial.ContentSize))
		}
		stampRecordID(record.RecordID, initial)
		resp = &dtos.CreateRecordResponse{Record: record, Version: initial}
		return nil
	})
	return resp, err
}

func (s *RecordServiceImpl) GetPatientRecords(ctx context.Context, actor entities.Actor, rawPatientID string, query dtos.RecordListQuery) (*dtos.PatientRecordsResponse, error) {
	scope := newScope(entities.ResourcePatient, rawPatientID)
	var resp *dtos.PatientRecordsResponse

	err := s.perform(ctx, actor, entities.ActionAccessPatientRecords, scope, func() error {
		patientID, err := ParseID("patientId", rawPatientID)
		if err != nil {
			return err
		}
		scope.forPatient(patientID)
		if err := s.validateStruct(query); err != nil {
			return err
		}
		if err := s.Gate.Authorize(actor, OpRead, patientID).Err(); err != nil {
			return err
		}

		exists, err := s.Directory.Exists(ctx, patientID)
		if err != nil {
			return err
		}
		if !exists {
			return apperrors.NotFoundf("patient %s not found", patientID)
		}

		page, limit := s.pageBounds(query.Page, query.Limit)
		includeDeleted := query.IncludeDeleted && actor.Role == entities.RoleDoctor
		filter := repositories.RecordFilter{
			PatientID: &patientID,
			Tag:       NormalizeTag(query.Tag),
			Offset:    (page - 1) * limit,
			Limit:     limit,
		}

		var records []*entities.MedicalRecord
		var total int64
		if includeDeleted {
			filter.IncludeDeleted = true
			records, total, err = s.Records.Find(ctx, filter)
		} else {
			records, total, err = s.Records.FindActive(ctx, filter)
		}
		if err != nil {
			return err
		}

		scope.details["page"] = page
		scope.details["limit"] = limit
		scope.details["count"] = len(records)
		scope.details["includeDeleted"] = includeDeleted
		resp = &dtos.PatientRecordsResponse{
			Records:    records,
			Pagination: dtos.NewPagination(total, page, limit),
		}
		return nil
	})
	return resp, err
}

func (s *RecordServiceImpl) GetRecord(ctx context.Context, actor entities.Actor, recordID string) (*dtos.RecordDetailResponse, error) {
	scope := newScope(entities.ResourceRecord, recordID)
	var resp *dtos.RecordDetailResponse

	err := s.perform(ctx, actor, entities.ActionReadRecord, scope, func() error {
		record, err := s.Records.Get(ctx, recordID, false)
		if err != nil {
			return err
		}
		scope.forRecord(record)
		if err := s.Gate.Authorize(actor, OpRead, record.PatientID).Err(); err != nil {
			return err
		}

		resp, err = s.recordDetail(ctx, record)
		if err != nil {
			return err
		}
		if resp.LatestVersion != nil {
			scope.details["versionNumber"] = resp.LatestVersion.VersionNumber
		}
		return nil
	})
	return resp, err
}

func (s *RecordServiceImpl) recordDetail(ctx context.Context, record *entities.MedicalRecord) (*dtos.RecordDetailResponse, error) {
	latest, err := s.Versions.GetLatestVersion(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	stampRecordID(record.RecordID, latest)
	resp := &dtos.RecordDetailResponse{Record: record, LatestVersion: latest}
	if patient, err := s.Directory.Get(ctx, record.PatientID); err == nil {
		resp.Patient = PatientToDTO(patient)
	} else {
		s.logger.Warn("Could not load patient for record",
			zap.String("record_id", record.RecordID),
			zap.String("patient_id", record.PatientID.String()),
			zap.Error(err),
		)
	}
	return resp, nil
}

func (s *RecordServiceImpl) UpdateRecord(ctx context.Context, actor entities.Actor, recordID string, req dtos.UpdateRecordRequest) (*dtos.UpdateRecordResponse, error) {
	scope := newScope(entities.ResourceRecord, recordID)
	var resp *dtos.UpdateRecordResponse

	err := s.perform(ctx, actor, entities.ActionUpdateRecord, scope, func() error {
		if err := s.validateStruct(req); err != nil {
			return err
		}
		if req.Content != nil && strings.TrimSpace(*req.Content) == "" {
			return apperrors.Validationf("content must not be empty")
		}

		var (
			record        *entities.MedicalRecord
			recordUpdated bool
			newVersion    *entities.RecordVersion
		)
		err := s.inTransaction(ctx, func(ctx context.Context) error {
			var err error
			record, err = s.Records.Get(ctx, recordID, false)
			if err != nil {
				return err
			}
			scope.forRecord(record)
			if err := s.Gate.Authorize(actor, OpUpdate, record.PatientID).Err(); err != nil {
				return err
			}

			recordUpdated, err = s.Records.UpdateMetadata(ctx, record, MetadataUpdate{
				Title:       req.Title,
				Description: req.Description,
				Tags:        req.Tags,
			}, actor.ID)
			if err != nil {
				return err
			}

			if req.Content == nil {
				return nil
			}
			current, err := s.Versions.GetLatestVersion(ctx, record.ID)
			if err != nil {
				return err
			}
			if current != nil && current.Content == *req.Content {
				return nil
			}
			newVersion, err = s.Versions.CreateNewVersion(ctx, record.ID, *req.Content, actor.ID, req.ChangeDescription)
			return err
		})
		if err != nil {
			return err
		}
		if newVersion != nil {
			versionID := newVersion.ID
			record.CurrentVersionID = &versionID
			record.LastModifiedBy = actor.ID
			record.UpdatedAt = newVersion.CreatedAt
			stampRecordID(record.RecordID, newVersion)
			s.Metrics.ObserveSize("version_content_bytes", float64(newVersion.ContentSize))
		}

		contentUpdated := newVersion != nil
		scope.details["title"] = record.Title
		scope.details["recordUpdated"] = recordUpdated
		scope.details["contentUpdated"] = contentUpdated
		if contentUpdated {
			scope.details["versionNumber"] = newVersion.VersionNumber
			scope.details["changeDescription"] = newVersion.ChangeDescription
			s.dispatchBackup(actor, record, newVersion)
		}

		resp = &dtos.UpdateRecordResponse{
			Record:         record,
			NewVersion:     newVersion,
			RecordUpdated:  recordUpdated,
			ContentUpdated: contentUpdated,
		}
		return nil
	})
	return resp, err
}

// inTransaction runs fn atomically when a Transactor is wired.
func (s *RecordServiceImpl) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithinTransaction(ctx, fn)
}

// dispatchBackup hands the new version to the backup queue without holding
// up the caller. Failures are only logged.
func (s *RecordServiceImpl) dispatchBackup(actor entities.Actor, record *entities.MedicalRecord, version *entities.RecordVersion) {
	if s.Backups == nil {
		return
	}
	job := BackupJob{
		RecordID:      record.RecordID,
		VersionNumber: version.VersionNumber,
		RequestedBy:   actor.ID.String(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.options.BackupTimeout)
		defer cancel()
		if err := s.Backups.Dispatch(ctx, job); err != nil {
			s.logger.Warn("Automatic backup not dispatched",
				zap.String("record_id", job.RecordID),
				zap.Int("version_number", job.VersionNumber),
				zap.Error(err),
			)
		}
	}()
}

func (s *RecordServiceImpl) DeleteRecord(ctx context.Context, actor entities.Actor, recordID string) (*dtos.DeleteRecordResponse, error) {
	scope := newScope(entities.ResourceRecord, recordID)
	var resp *dtos.DeleteRecordResponse

	err := s.perform(ctx, actor, entities.ActionDeleteRecord, scope, func() error {
		record, err := s.Records.Get(ctx, recordID, true)
		if err != nil {
			return err
		}
		scope.forRecord(record)
		if err := s.Gate.Authorize(actor, OpDelete, record.PatientID).Err(); err != nil {
			return err
		}

		alreadyDeleted := record.IsDeleted
		if !alreadyDeleted {
			err = s.Records.SoftDelete(ctx, record, actor.ID)
			switch {
			case errors.Is(err, apperrors.ErrConflict):
				// Lost a race with another delete.
				alreadyDeleted = true
			case err != nil:
				return err
			}
		}

		scope.details["alreadyDeleted"] = alreadyDeleted
		resp = &dtos.DeleteRecordResponse{Success: true, AlreadyDeleted: alreadyDeleted}
		return nil
	})
	return resp, err
}

func (s *RecordServiceImpl) RestoreRecord(ctx context.Context, actor entities.Actor, recordID string) (*dtos.RecordDetailResponse, error) {
	scope := newScope(entities.ResourceRecord, recordID)
	var resp *dtos.RecordDetailResponse

	err := s.perform(ctx, actor, entities.ActionRestoreRecord, scope, func() error {
		record, err := s.Records.Get(ctx, recordID, true)
		if err != nil {
			return err
		}
		scope.forRecord(record)
		if err := s.Gate.Authorize(actor, OpRestore, record.PatientID).Err(); err != nil {
			return err
		}

		wasDeleted := record.IsDeleted
		if wasDeleted {
			if err := s.Records.Restore(ctx, record); err != nil {
				return err
			}
		}
		scope.details["wasDeleted"] = wasDeleted

		resp, err = s.recordDetail(ctx, record)
		return err
	})
	return resp, err
}

func (s *RecordServiceImpl) GetVersionHistory(ctx context.Context, actor entities.Actor, recordID string, query dtos.HistoryQuery) (*dtos.VersionHistoryResponse, error) {
	scope := newScope(entities.ResourceRecord, recordID)
	var resp *dtos.VersionHistoryResponse

	err := s.perform(ctx, actor, entities.ActionViewVersion, scope, func() error {
		if err := s.validateStruct(query); err != nil {
			return err
		}
		record, err := s.Records.Get(ctx, recordID, false)
		if err != nil {
			return err
		}
		scope.forRecord(record)
		if err := s.Gate.Authorize(actor, OpRead, record.PatientID).Err(); err != nil {
			return err
		}

		limit := query.Limit
		if limit <= 0 {
			limit = s.options.DefaultHistoryLimit
		}
		versions, err := s.Versions.GetVersionHistory(ctx, record.ID, limit)
		if err != nil {
			return err
		}

		scope.details["history"] = true
		scope.details["count"] = len(versions)
		stampRecordID(record.RecordID, versions...)
		resp = &dtos.VersionHistoryResponse{Versions: versions}
		return nil
	})
	return resp, err
}

func (s *RecordServiceImpl) GetVersion(ctx context.Context, actor entities.Actor, recordID string, versionNumber int) (*dtos.VersionResponse, error) {
	scope := newScope(entities.ResourceVersion, recordID)
	var resp *dtos.VersionResponse

	err := s.perform(ctx, actor, entities.ActionViewVersion, scope, func() error {
		version, err := s.readVersion(ctx, actor, recordID, versionNumber, scope)
		if err != nil {
			return err
		}
		valid := s.checkIntegrity(recordID, version)
		scope.details["integrityValid"] = valid
		resp = &dtos.VersionResponse{Version: version, IntegrityValid: valid}
		return nil
	})
	return resp, err
}

func (s *RecordServiceImpl) GetVersionDiff(ctx context.Context, actor entities.Actor, recordID string, versionNumber int) (*dtos.VersionDiffResponse, error) {
	scope := newScope(entities.ResourceVersion, recordID)
	var resp *dtos.VersionDiffResponse

	err := s.perform(ctx, actor, entities.ActionViewVersion, scope, func() error {
		version, err := s.readVersion(ctx, actor, recordID, versionNumber, scope)
		if err != nil {
			return err
		}
		diff, err := s.Versions.GetDiffWithPrevious(ctx, version)
		if err != nil {
			return err
		}
		scope.details["diff"] = true
		scope.details["hasPrevious"] = diff != nil
		if diff != nil {
			stampRecordID(version.RecordRef, diff.PreviousVersion, diff.CurrentVersion)
		}
		resp = &dtos.VersionDiffResponse{Diff: diff}
		return nil
	})
	return resp, err
}

func (s *RecordServiceImpl) readVersion(ctx context.Context, actor entities.Actor, recordID string, versionNumber int, scope *auditScope) (*entities.RecordVersion, error) {
	scope.details["versionNumber"] = versionNumber
	if versionNumber < 1 {
		return nil, apperrors.Validationf("versionNumber must be a positive integer")
	}
	record, err := s.Records.Get(ctx, recordID, false)
	if err != nil {
		return nil, err
	}
	scope.forRecord(record)
	if err := s.Gate.Authorize(actor, OpRead, record.PatientID).Err(); err != nil {
		return nil, err
	}

	version, err := s.Versions.GetVersion(ctx, record.ID, versionNumber)
	if err != nil {
		return nil, err
	}
	scope.resourceID = version.ID.String()
	stampRecordID(record.RecordID, version)
	return version, nil
}

func stampRecordID(recordID string, versions ...*entities.RecordVersion) {
	for _, version := range versions {
		if version != nil {
			version.RecordRef = recordID
		}
	}
}

// checkIntegrity reports a hash mismatch without repairing it.
func (s *RecordServiceImpl) checkIntegrity(recordID string, version *entities.RecordVersion) bool {
	if s.Versions.VerifyIntegrity(version) {
		return true
	}
	err := apperrors.Integrityf("content hash mismatch on version %d", version.VersionNumber)
	s.logger.Error("Version failed integrity check",
		zap.String("record_id", recordID),
		zap.String("version_id", version.ID.String()),
		zap.String("stored_hash", version.ContentHash),
		zap.String("computed_hash", hashing.Hash(version.Content)),
		zap.Error(err),
	)
	s.Metrics.IncrementCounter("integrity_failures_total", nil)
	return false
}

func (s *RecordServiceImpl) BackupRecord(ctx context.Context, actor entities.Actor, recordID string) (*dtos.BackupResponse, error) {
	scope := newScope(entities.ResourceRecord, recordID)
	var resp *dtos.BackupResponse

	err := s.perform(ctx, actor, entities.ActionBackupRecord, scope, func() error {
		record, err := s.Records.Get(ctx, recordID, false)
		if err != nil {
			return err
		}
		scope.forRecord(record)
		if err := s.Gate.Authorize(actor, OpBackup, record.PatientID).Err(); err != nil {
			return err
		}
		if s.Backups == nil {
			return apperrors.Backup(errors.New("no backup service configured"), "backups are disabled")
		}

		latest, err := s.Versions.GetLatestVersion(ctx, record.ID)
		if err != nil {
			return err
		}
		if latest == nil {
			return apperrors.Conflictf("record %s has no content to back up", record.RecordID)
		}

		result, err := s.Backups.Backup(ctx, record, latest)
		if err != nil {
			return err
		}
		scope.details["versionNumber"] = result.VersionNumber
		scope.details["path"] = result.Path
		scope.details["size"] = result.Size
		resp = &dtos.BackupResponse{Path: result.Path, Size: result.Size, VersionNumber: result.VersionNumber}
		return nil
	})
	return resp, err
}

func (s *RecordServiceImpl) UploadAttachment(ctx context.Context, actor entities.Actor, recordID string, req dtos.UploadAttachmentRequest) (*dtos.AttachmentResponse, error) {
	scope := newScope(entities.ResourceAttachment, "")
	var resp *dtos.AttachmentResponse

	err := s.perform(ctx, actor, entities.ActionUploadAttachment, scope, func() error {
		scope.details["fileName"] = req.FileName
		scope.details["size"] = len(req.Data)
		if err := s.validateStruct(req); err != nil {
			return err
		}
		if len(req.Data) > s.options.MaxAttachmentBytes {
			return apperrors.Validationf("attachment exceeds %d bytes", s.options.MaxAttachmentBytes)
		}

		record, err := s.Records.Get(ctx, recordID, false)
		if err != nil {
			return err
		}
		scope.forRecord(record)
		if err := s.Gate.Authorize(actor, OpManageAttachments, record.PatientID).Err(); err != nil {
			return err
		}
		if s.Attachments == nil {
			return apperrors.Wrap(apperrors.KindInternal, errors.New("no object store configured"), "attachments are disabled")
		}

		attachmentID := uuid.NewString()
		scope.resourceID = attachmentID
		name := fmt.Sprintf("attachments/%s/%s", record.RecordID, attachmentID)
		location, err := s.Attachments.Put(ctx, name, req.Data, req.ContentType)
		if err != nil {
			return fmt.Errorf("failed to store attachment: %w", err)
		}

		attachment := entities.Attachment{
			AttachmentID: attachmentID,
			FileName:     req.FileName,
			ContentType:  req.ContentType,
			Size:         int64(len(req.Data)),
			ContentHash:  hashing.Hash(string(req.Data)),
			Location:     location,
			UploadedBy:   actor.ID,
			UploadedAt:   s.Clock.Now(),
		}
		attachments := append(append([]entities.Attachment{}, record.Attachments...), attachment)
		if err := s.Records.SetAttachments(ctx, record, attachments, actor.ID); err != nil {
			s.removeObject(location)
			return err
		}

		resp = &dtos.AttachmentResponse{Record: record, Attachment: attachment}
		return nil
	})
	return resp, err
}

func (s *RecordServiceImpl) DeleteAttachment(ctx context.Context, actor entities.Actor, recordID, attachmentID string) (*dtos.AttachmentResponse, error) {
	scope := newScope(entities.ResourceAttachment, attachmentID)
	var resp *dtos.AttachmentResponse

	err := s.perform(ctx, actor, entities.ActionDeleteAttachment, scope, func() error {
		record, err := s.Records.Get(ctx, recordID, false)
		if err != nil {
			return err
		}
		scope.forRecord(record)
		if err := s.Gate.Authorize(actor, OpManageAttachments, record.PatientID).Err(); err != nil {
			return err
		}

		var removed *entities.Attachment
		remaining := make([]entities.Attachment, 0, len(record.Attachments))
		for i := range record.Attachments {
			if record.Attachments[i].AttachmentID == attachmentID {
				removed = &record.Attachments[i]
				continue
			}
			remaining = append(remaining, record.Attachments[i])
		}
		if removed == nil {
			return apperrors.NotFoundf("attachment %s not found", attachmentID)
		}
		detached := *removed

		if err := s.Records.SetAttachments(ctx, record, remaining, actor.ID); err != nil {
			return err
		}
		s.removeObject(detached.Location)

		scope.details["fileName"] = detached.FileName
		resp = &dtos.AttachmentResponse{Record: record, Attachment: detached}
		return nil
	})
	return resp, err
}

// removeObject deletes a stored blob on a best-effort basis.
func (s *RecordServiceImpl) removeObject(location string) {
	if s.Attachments == nil || location == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.options.BackupTimeout)
	defer cancel()
	if err := s.Attachments.Delete(ctx, location); err != nil {
		s.logger.Warn("Failed to delete stored attachment", zap.String("location", location), zap.Error(err))
	}
}

// pageBounds turns a 1-based page and a limit into bounded values.
func (s *RecordServiceImpl) pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = s.options.DefaultPageSize
	}
	if limit > s.options.MaxPageSize {
		limit = s.options.MaxPageSize
	}
	return page, limit
}
