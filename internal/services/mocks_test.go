package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"medical-record-versioning/internal/adapters"
	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"

	"github.com/google/uuid"
)

// --- MockPatientRepository ---
var _ repositories.PatientRepositoryContract = (*MockPatientRepository)(nil)

type MockPatientRepository struct {
	CreateFunc      func(ctx context.Context, patient *entities.Patient) error
	GetByIDFunc     func(ctx context.Context, id uuid.UUID) (*entities.Patient, error)
	FindByEmailFunc func(ctx context.Context, email string) (*entities.Patient, error)

	CreateFuncCallCount  int32
	GetByIDFuncCallCount int32
}

func (m *MockPatientRepository) Create(ctx context.Context, patient *entities.Patient) error {
	atomic.AddInt32(&m.CreateFuncCallCount, 1)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, patient)
	}
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	return nil
}

func (m *MockPatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Patient, error) {
	atomic.AddInt32(&m.GetByIDFuncCallCount, 1)
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, apperrors.NotFoundf("patient %s not found", id)
}

func (m *MockPatientRepository) FindByEmail(ctx context.Context, email string) (*entities.Patient, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, email)
	}
	return nil, apperrors.NotFoundf("patient not found")
}

// --- MockDoctorRepository ---
var _ repositories.DoctorRepositoryContract = (*MockDoctorRepository)(nil)

type MockDoctorRepository struct {
	CreateFunc      func(ctx context.Context, doctor *entities.Doctor) error
	GetByIDFunc     func(ctx context.Context, id uuid.UUID) (*entities.Doctor, error)
	FindByEmailFunc func(ctx context.Context, email string) (*entities.Doctor, error)
}

func (m *MockDoctorRepository) Create(ctx context.Context, doctor *entities.Doctor) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, doctor)
	}
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	return nil
}

func (m *MockDoctorRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Doctor, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, apperrors.NotFoundf("doctor %s not found", id)
}

func (m *MockDoctorRepository) FindByEmail(ctx context.Context, email string) (*entities.Doctor, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, email)
	}
	return nil, apperrors.NotFoundf("doctor not found")
}

// --- MockAuditEntryRepository ---
var _ repositories.AuditEntryRepositoryContract = (*MockAuditEntryRepository)(nil)

// MockAuditEntryRepository delegates to Next unless a func field overrides
// the call, so a test can break the audit store on a real database.
type MockAuditEntryRepository struct {
	Next               repositories.AuditEntryRepositoryContract
	InsertFunc         func(ctx context.Context, entry *entities.AuditEntry) error
	FindFunc           func(ctx context.Context, q repositories.AuditQuery) ([]*entities.AuditEntry, int64, error)
	SummarizeActorFunc func(ctx context.Context, actorID uuid.UUID, start, end time.Time) ([]repositories.ActionSummary, error)

	InsertFuncCallCount int32
}

func (m *MockAuditEntryRepository) Insert(ctx context.Context, entry *entities.AuditEntry) error {
	atomic.AddInt32(&m.InsertFuncCallCount, 1)
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	if m.Next != nil {
		return m.Next.Insert(ctx, entry)
	}
	return nil
}

func (m *MockAuditEntryRepository) Find(ctx context.Context, q repositories.AuditQuery) ([]*entities.AuditEntry, int64, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, q)
	}
	if m.Next != nil {
		return m.Next.Find(ctx, q)
	}
	return nil, 0, nil
}

func (m *MockAuditEntryRepository) SummarizeActor(ctx context.Context, actorID uuid.UUID, start, end time.Time) ([]repositories.ActionSummary, error) {
	if m.SummarizeActorFunc != nil {
		return m.SummarizeActorFunc(ctx, actorID, start, end)
	}
	if m.Next != nil {
		return m.Next.SummarizeActor(ctx, actorID, start, end)
	}
	return nil, nil
}

// --- MockBackupDispatcher ---
var _ BackupDispatcher = (*MockBackupDispatcher)(nil)

type MockBackupDispatcher struct {
	DispatchFunc func(ctx context.Context, job BackupJob) error
	BackupFunc   func(ctx context.Context, record *entities.MedicalRecord, version *entities.RecordVersion) (*BackupResult, error)

	mu         sync.Mutex
	Dispatched []BackupJob
	// DispatchedCh receives every dispatched job when non-nil.
	DispatchedCh chan BackupJob
}

func (m *MockBackupDispatcher) Dispatch(ctx context.Context, job BackupJob) error {
	m.mu.Lock()
	m.Dispatched = append(m.Dispatched, job)
	m.mu.Unlock()
	if m.DispatchedCh != nil {
		m.DispatchedCh <- job
	}
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, job)
	}
	return nil
}

func (m *MockBackupDispatcher) Backup(ctx context.Context, record *entities.MedicalRecord, version *entities.RecordVersion) (*BackupResult, error) {
	if m.BackupFunc != nil {
		return m.BackupFunc(ctx, record, version)
	}
	return nil, errors.New("BackupFunc not implemented in mock")
}

func (m *MockBackupDispatcher) DispatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Dispatched)
}

// --- MockQueueAdapter ---
var _ adapters.QueueAdapter = (*MockQueueAdapter)(nil)

type MockQueueAdapter struct {
	PublishFunc func(ctx context.Context, queueName string, jobData []byte) error

	mu                sync.Mutex
	PublishedMessages map[string][][]byte
	Handlers          map[string]adapters.JobHandler
	Stopped           map[string]bool
}

func NewMockQueueAdapter() *MockQueueAdapter {
	return &MockQueueAdapter{
		PublishedMessages: make(map[string][][]byte),
		Handlers:          make(map[string]adapters.JobHandler),
		Stopped:           make(map[string]bool),
	}
}

func (m *MockQueueAdapter) Publish(ctx context.Context, queueName string, jobData []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, queueName, jobData)
	}
	m.PublishedMessages[queueName] = append(m.PublishedMessages[queueName], jobData)
	return nil
}

func (m *MockQueueAdapter) StartConsuming(ctx context.Context, queueName string, handler adapters.JobHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[queueName] = handler
	return nil
}

func (m *MockQueueAdapter) StopConsuming(ctx context.Context, queueName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stopped[queueName] = true
	return nil
}

func (m *MockQueueAdapter) Close() error {
	return nil
}

func (m *MockQueueAdapter) Published(queueName string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.PublishedMessages[queueName]...)
}

func (m *MockQueueAdapter) Handler(queueName string) adapters.JobHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Handlers[queueName]
}

// --- MockObjectStore ---
var _ adapters.ObjectStore = (*MockObjectStore)(nil)

type MockObjectStore struct {
	PutFunc    func(ctx context.Context, name string, data []byte, contentType string) (string, error)
	DeleteFunc func(ctx context.Context, location string) error

	mu      sync.Mutex
	objects map[string][]byte
	Deleted []string
}

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{objects: make(map[string][]byte)}
}

func (m *MockObjectStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, name, data, contentType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	location := "mem://" + name
	m.objects[location] = append([]byte(nil), data...)
	return location, nil
}

func (m *MockObjectStore) Get(ctx context.Context, location string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[location]
	if !ok {
		return nil, adapters.ErrNoObject
	}
	return data, nil
}

func (m *MockObjectStore) Delete(ctx context.Context, location string) error {
	m.mu.Lock()
	m.Deleted = append(m.Deleted, location)
	delete(m.objects, location)
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, location)
	}
	return nil
}

func (m *MockObjectStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
