package services

import (
	"context"
	"testing"
	"time"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/clock"
	"medical-record-versioning/internal/database/dbtest"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"
	"medical-record-versioning/internal/repositories/gormrepo"
	"medical-record-versioning/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// testEnv is the record service wired to a private SQLite database.
type testEnv struct {
	db          *gorm.DB
	clock       *clock.ManagedClock
	auditRepo   *MockAuditEntryRepository
	backups     *MockBackupDispatcher
	attachments *MockObjectStore
	metrics     *metrics.MetricsCollector

	records   RecordStoreContract
	versions  VersionStoreContract
	ledger    AuditLedgerContract
	directory PatientDirectoryContract
	service   RecordServiceContract
	deps      RecordServiceDeps

	doctor  entities.Actor
	patient entities.Actor
	admin   entities.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := dbtest.Open(t)
	clk := clock.NewManaged(testEpoch, time.Second)
	logger := zap.NewNop()
	validate := validator.New()

	auditRepo := &MockAuditEntryRepository{Next: gormrepo.NewAuditEntryRepository(db)}
	directory := NewPatientDirectory(gormrepo.NewPatientRepository(db), gormrepo.NewDoctorRepository(db), validate, logger)
	records := NewRecordStore(gormrepo.NewMedicalRecordRepository(db), directory, clk, logger)
	versions := NewVersionStore(gormrepo.NewRecordVersionRepository(db, 5), clk, logger)
	ledger := NewAuditLedger(auditRepo, clk, logger, AuditLedgerOptions{})

	env := &testEnv{
		db:          db,
		clock:       clk,
		auditRepo:   auditRepo,
		backups:     &MockBackupDispatcher{},
		attachments: NewMockObjectStore(),
		metrics:     metrics.NewMetricsCollector(),
		records:     records,
		versions:    versions,
		ledger:      ledger,
		directory:   directory,
	}
	env.deps = RecordServiceDeps{
		Tx:          gormrepo.NewTransactor(db),
		Records:     records,
		Versions:    versions,
		Ledger:      ledger,
		Gate:        NewAccessGate(),
		Directory:   directory,
		Backups:     env.backups,
		Attachments: env.attachments,
		Validate:    validate,
		Metrics:     env.metrics,
		Clock:       clk,
		Logger:      logger,
	}
	env.service = NewRecordService(env.deps, env.options())

	patient := &entities.Patient{Name: "Ana Souza", Email: "ana@example.com", DateOfBirth: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(patient).Error)
	doctor := &entities.Doctor{Name: "Dr. Rui Lima", Email: "rui@example.com", Specialization: "cardiology"}
	require.NoError(t, db.Create(doctor).Error)

	env.patient = entities.Actor{ID: patient.ID, Role: entities.RolePatient}
	env.doctor = entities.Actor{ID: doctor.ID, Role: entities.RoleDoctor}
	env.admin = entities.Actor{ID: uuid.New(), Role: entities.RoleAdmin}
	return env
}

func (e *testEnv) options() RecordServiceOptions {
	return RecordServiceOptions{MaxAttachmentBytes: 1024}
}

func (e *testEnv) addPatient(t *testing.T, name, email string) entities.Actor {
	t.Helper()
	patient := &entities.Patient{Name: name, Email: email, DateOfBirth: time.Date(1985, 1, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, e.db.Create(patient).Error)
	return entities.Actor{ID: patient.ID, Role: entities.RolePatient}
}

// auditEntries returns every stored entry, oldest first.
func (e *testEnv) auditEntries(t *testing.T) []*entities.AuditEntry {
	t.Helper()
	var entries []*entities.AuditEntry
	require.NoError(t, e.db.Order("id ASC").Find(&entries).Error)
	return entries
}

func (e *testEnv) lastAudit(t *testing.T) *entities.AuditEntry {
	t.Helper()
	entries := e.auditEntries(t)
	require.NotEmpty(t, entries)
	return entries[len(entries)-1]
}

func (e *testEnv) auditCount(t *testing.T) int {
	t.Helper()
	return len(e.auditEntries(t))
}

// breakAudit makes every audit write fail from now on.
func (e *testEnv) breakAudit() {
	e.auditRepo.InsertFunc = func(ctx context.Context, entry *entities.AuditEntry) error {
		return apperrors.Wrap(apperrors.KindInternal, context.DeadlineExceeded, "audit store unavailable")
	}
}

func (e *testEnv) storedRecord(t *testing.T, recordID string) *entities.MedicalRecord {
	t.Helper()
	var record entities.MedicalRecord
	require.NoError(t, e.db.Where("record_id = ?", recordID).First(&record).Error)
	return &record
}

var _ repositories.AuditEntryRepositoryContract = (*gormrepo.AuditEntryRepository)(nil)

func strPtr(s string) *string { return &s }
