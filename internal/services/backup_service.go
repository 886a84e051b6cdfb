package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"medical-record-versioning/internal/adapters"
	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/clock"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/fhir/mappers"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultBackupQueue = "record_backup_jobs"

const backupContentType = "application/fhir+json"

// BackupJob asks for one version of a record to be copied to the object store.
type BackupJob struct {
	JobID         string    `json:"jobId"`
	RecordID      string    `json:"recordId"`
	VersionNumber int       `json:"versionNumber"`
	RequestedBy   string    `json:"requestedBy"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`
}

type BackupResult struct {
	Path          string
	Size          int64
	VersionNumber int
}

// BackupDispatcher is the part of the backup service RecordService talks to.
type BackupDispatcher interface {
	// Dispatch queues job for the background consumer.
	Dispatch(ctx context.Context, job BackupJob) error
	// Backup stores the version synchronously. Errors are of kind Backup.
	Backup(ctx context.Context, record *entities.MedicalRecord, version *entities.RecordVersion) (*BackupResult, error)
}

type BackupServiceContract interface {
	BackupDispatcher
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type BackupServiceImpl struct {
	records       RecordStoreContract
	versions      VersionStoreContract
	directory     PatientDirectoryContract
	store         adapters.ObjectStore
	queueAdapter  adapters.QueueAdapter
	queueName     string
	clock         clock.Clock
	logger        *zap.Logger
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

func NewBackupService(
	records RecordStoreContract,
	versions VersionStoreContract,
	directory PatientDirectoryContract,
	store adapters.ObjectStore,
	queueAdapter adapters.QueueAdapter,
	queueName string,
	clk clock.Clock,
	logger *zap.Logger,
) BackupServiceContract {
	if queueName == "" {
		queueName = DefaultBackupQueue
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BackupServiceImpl{
		records:       records,
		versions:      versions,
		directory:     directory,
		store:         store,
		queueAdapter:  queueAdapter,
		queueName:     queueName,
		clock:         clk,
		logger:        logger.With(zap.String("service", "backup")),
		serviceCtx:    ctx,
		serviceCancel: cancel,
	}
}

func (s *BackupServiceImpl) Start(ctx context.Context) error {
	if err := s.queueAdapter.StartConsuming(s.serviceCtx, s.queueName, s.handleBackupJob); err != nil {
		return fmt.Errorf("failed to start consumer for %s: %w", s.queueName, err)
	}
	s.logger.Info("Backup consumer started", zap.String("queue", s.queueName))
	return nil
}

func (s *BackupServiceImpl) Stop(ctx context.Context) error {
	s.serviceCancel()
	if err := s.queueAdapter.StopConsuming(ctx, s.queueName); err != nil {
		return err
	}
	s.logger.Info("Backup consumer stopped")
	return nil
}

func (s *BackupServiceImpl) Dispatch(ctx context.Context, job BackupJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = s.clock.Now()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return apperrors.Backup(err, "failed to encode backup job")
	}
	if err := s.queueAdapter.Publish(ctx, s.queueName, payload); err != nil {
		return apperrors.Backup(err, "failed to enqueue backup job")
	}

	s.logger.Debug("Backup job enqueued",
		zap.String("job_id", job.JobID),
		zap.String("record_id", job.RecordID),
		zap.Int("version_number", job.VersionNumber),
	)
	return nil
}

func (s *BackupServiceImpl) Backup(ctx context.Context, record *entities.MedicalRecord, version *entities.RecordVersion) (*BackupResult, error) {
	if s.store == nil {
		return nil, apperrors.Backup(errors.New("no object store configured"), "backups are disabled")
	}

	snapshot := mappers.RecordSnapshot{Record: record, Version: version}
	if patient, err := s.directory.Get(ctx, record.PatientID); err == nil {
		snapshot.Patient = patient
	} else {
		s.logger.Warn("Backing up without patient details",
			zap.String("record_id", record.RecordID),
			zap.String("patient_id", record.PatientID.String()),
			zap.Error(err),
		)
	}

	now := s.clock.Now()
	payload, err := mappers.MapSnapshotToFHIRBundle(snapshot, now)
	if err != nil {
		return nil, apperrors.Backup(err, "failed to build backup document")
	}

	name := fmt.Sprintf("backups/%s/v%04d-%s.json", record.RecordID, version.VersionNumber, now.Format("20060102T150405Z"))
	location, err := s.store.Put(ctx, name, payload, backupContentType)
	if err != nil {
		return nil, apperrors.Backup(err, "failed to store backup")
	}

	s.logger.Info("Record backed up",
		zap.String("record_id", record.RecordID),
		zap.Int("version_number", version.VersionNumber),
		zap.String("location", location),
		zap.Int("size", len(payload)),
	)
	return &BackupResult{Path: location, Size: int64(len(payload)), VersionNumber: version.VersionNumber}, nil
}

func (s *BackupServiceImpl) handleBackupJob(ctx context.Context, data []byte) error {
	var job BackupJob
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("failed to decode backup job: %w", err)
	}

	record, err := s.records.Get(ctx, job.RecordID, true)
	if err != nil {
		return fmt.Errorf("backup job %s: %w", job.JobID, err)
	}
	version, err := s.versions.GetVersion(ctx, record.ID, job.VersionNumber)
	if err != nil {
		return fmt.Errorf("backup job %s: %w", job.JobID, err)
	}
	if _, err := s.Backup(ctx, record, version); err != nil {
		return fmt.Errorf("backup job %s: %w", job.JobID, err)
	}
	return nil
}
