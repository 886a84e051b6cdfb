package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medical-record-versioning/internal/adapters"
	"medical-record-versioning/internal/clock"
	"medical-record-versioning/internal/config"
	"medical-record-versioning/internal/database/dbtest"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/repositories/gormrepo"
	"medical-record-versioning/internal/services"
	"medical-record-versioning/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type apiEnv struct {
	app     *fiber.App
	db      *gorm.DB
	doctor  string
	patient string
	other   string
	admin   string
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	db := dbtest.Open(t)
	clk := clock.NewManaged(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), time.Second)
	logger := zap.NewNop()
	validate := validator.New()
	collector := metrics.NewMetricsCollector()

	ldb, err := leveldb.Open(storage.NewMemStorage(), nil)
	require.NoError(t, err)
	store := adapters.NewLevelDBStore(ldb)
	t.Cleanup(func() { _ = store.Close() })

	queue := adapters.NewInMemoryQueueAdapter(logger, 16, time.Second)
	t.Cleanup(func() { _ = queue.Close() })

	directory := services.NewPatientDirectory(gormrepo.NewPatientRepository(db), gormrepo.NewDoctorRepository(db), validate, logger)
	records := services.NewRecordStore(gormrepo.NewMedicalRecordRepository(db), directory, clk, logger)
	versions := services.NewVersionStore(gormrepo.NewRecordVersionRepository(db, 5), clk, logger)
	ledger := services.NewAuditLedger(gormrepo.NewAuditEntryRepository(db), clk, logger, services.AuditLedgerOptions{})
	gate := services.NewAccessGate()
	backups := services.NewBackupService(records, versions, directory, store, queue, "", clk, logger)

	adminID := uuid.New()
	resolver, err := services.NewIdentityResolver(directory, []string{adminID.String()}, logger)
	require.NoError(t, err)

	recordService := services.NewRecordService(services.RecordServiceDeps{
		Tx:          gormrepo.NewTransactor(db),
		Records:     records,
		Versions:    versions,
		Ledger:      ledger,
		Gate:        gate,
		Directory:   directory,
		Backups:     backups,
		Attachments: store,
		Validate:    validate,
		Metrics:     collector,
		Clock:       clk,
		Logger:      logger,
	}, services.RecordServiceOptions{MaxAttachmentBytes: 1024})

	sqlDB, err := db.DB()
	require.NoError(t, err)

	app := NewRouter(RouterDeps{
		Server:    config.ServerConfig{BodyLimit: 1 << 20},
		Logger:    logger,
		Metrics:   collector,
		Resolver:  resolver,
		Records:   recordService,
		Audit:     services.NewAuditQueryService(ledger, gate, logger),
		Directory: directory,
		DB:        sqlDB,
	})

	patient := &entities.Patient{Name: "Ana Souza", Email: "ana@example.com", DateOfBirth: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(patient).Error)
	other := &entities.Patient{Name: "Bruno Dias", Email: "bruno@example.com", DateOfBirth: time.Date(1982, 8, 3, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(other).Error)
	doctor := &entities.Doctor{Name: "Dr. Rui Lima", Email: "rui@example.com", Specialization: "cardiology"}
	require.NoError(t, db.Create(doctor).Error)

	return &apiEnv{
		app:     app,
		db:      db,
		doctor:  doctor.ID.String(),
		patient: patient.ID.String(),
		other:   other.ID.String(),
		admin:   adminID.String(),
	}
}

// call sends a JSON request as token and decodes the response body into a map.
func (e *apiEnv) call(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (e *apiEnv) createRecord(t *testing.T, content string) string {
	t.Helper()
	status, body := e.call(t, http.MethodPost, "/records", e.doctor, map[string]interface{}{
		"patientId": e.patient,
		"title":     "Cardiology follow-up",
		"tags":      []string{"Cardio"},
		"content":   content,
	})
	require.Equal(t, http.StatusCreated, status, body)
	record := body["record"].(map[string]interface{})
	return record["recordId"].(string)
}

func TestRouter_HealthAndMetricsArePublic(t *testing.T) {
	env := newAPIEnv(t)

	status, body := env.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])

	status, body = env.call(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "counters")
}

func TestRouter_RejectsMissingOrUnknownTokens(t *testing.T) {
	env := newAPIEnv(t)

	status, body := env.call(t, http.MethodGet, "/patients/"+env.patient+"/records", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", body["kind"])

	status, _ = env.call(t, http.MethodGet, "/patients/"+env.patient+"/records", "not-a-uuid", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.call(t, http.MethodGet, "/patients/"+env.patient+"/records", uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_RecordLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	recordID := env.createRecord(t, "BP 120/80")
	base := "/records/" + recordID

	status, body := env.call(t, http.MethodGet, base, env.patient, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "BP 120/80", body["latestVersion"].(map[string]interface{})["content"])

	status, body = env.call(t, http.MethodGet, base, env.other, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["kind"])

	status, body = env.call(t, http.MethodPatch, base, env.doctor, map[string]interface{}{
		"content":           "BP 130/85",
		"changeDescription": "second reading",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["contentUpdated"])
	newVersion := body["newVersion"].(map[string]interface{})
	assert.Equal(t, float64(2), newVersion["versionNumber"])
	assert.Equal(t, recordID, newVersion["recordId"])

	status, body = env.call(t, http.MethodGet, base+"/versions/2", env.doctor, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["integrityValid"])
	assert.Equal(t, recordID, body["version"].(map[string]interface{})["recordId"])

	status, body = env.call(t, http.MethodGet, base+"/versions/2/diff", env.doctor, nil)
	require.Equal(t, http.StatusOK, status, body)
	diff := body["diff"].(map[string]interface{})
	assert.Equal(t, "BP 120/80", diff["previousContent"])
	assert.Equal(t, "BP 130/85", diff["currentContent"])
	assert.Equal(t, recordID, diff["previousVersion"].(map[string]interface{})["recordId"])

	status, body = env.call(t, http.MethodGet, base+"/versions", env.doctor, nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Len(t, body["versions"], 2)
	for _, v := range body["versions"].([]interface{}) {
		assert.Equal(t, recordID, v.(map[string]interface{})["recordId"])
	}

	status, _ = env.call(t, http.MethodGet, base+"/versions/abc", env.doctor, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.call(t, http.MethodGet, base+"/versions/9", env.doctor, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.call(t, http.MethodDelete, base, env.doctor, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])

	status, _ = env.call(t, http.MethodGet, base, env.doctor, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.call(t, http.MethodPost, base+"/restore", env.doctor, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, false, body["record"].(map[string]interface{})["isDeleted"])
}

func TestRouter_PatientCannotWrite(t *testing.T) {
	env := newAPIEnv(t)

	status, body := env.call(t, http.MethodPost, "/records", env.patient, map[string]interface{}{
		"patientId": env.patient,
		"title":     "Self-reported",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["kind"])
}

func TestRouter_ValidationErrors(t *testing.T) {
	env := newAPIEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/records", bytes.NewReader([]byte("{not json")))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+env.doctor)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	status, body := env.call(t, http.MethodPost, "/records", env.doctor, map[string]interface{}{
		"patientId": env.patient,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", body["kind"])
}

func (e *apiEnv) auditEntries(t *testing.T) []*entities.AuditEntry {
	t.Helper()
	var entries []*entities.AuditEntry
	require.NoError(t, e.db.Order("id ASC").Find(&entries).Error)
	return entries
}

func TestRouter_UndecodableRequestsAreAudited(t *testing.T) {
	env := newAPIEnv(t)
	recordID := env.createRecord(t, "note")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		action entities.AuditAction
	}{
		{"update with wrong field type", http.MethodPatch, "/records/" + recordID, env.patient, map[string]interface{}{"title": 5}, entities.ActionUpdateRecord},
		{"create with wrong field type", http.MethodPost, "/records", env.doctor, map[string]interface{}{"patientId": env.patient, "title": []int{1}}, entities.ActionCreateRecord},
		{"history with bad limit", http.MethodGet, "/records/" + recordID + "/versions?limit=many", env.doctor, nil, entities.ActionViewVersion},
		{"list with bad page", http.MethodGet, "/patients/" + env.patient + "/records?page=first", env.doctor, nil, entities.ActionAccessPatientRecords},
		{"attachment with bad data", http.MethodPost, "/records/" + recordID + "/attachments", env.doctor, map[string]interface{}{"fileName": "a.txt", "contentType": "text/plain", "data": 7}, entities.ActionUploadAttachment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(env.auditEntries(t))

			status, body := env.call(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "VALIDATION", body["kind"])

			entries := env.auditEntries(t)
			require.Len(t, entries, before+1)
			last := entries[len(entries)-1]
			assert.Equal(t, tt.action, last.Action)
			assert.False(t, last.Success)
		})
	}
}

func TestRouter_BackupAndAttachments(t *testing.T) {
	env := newAPIEnv(t)
	recordID := env.createRecord(t, "Echo normal")
	base := "/records/" + recordID

	status, body := env.call(t, http.MethodPost, base+"/backup", env.doctor, nil)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, float64(1), body["versionNumber"])
	assert.NotEmpty(t, body["path"])

	status, body = env.call(t, http.MethodPost, base+"/attachments", env.doctor, map[string]interface{}{
		"fileName":    "ecg.txt",
		"contentType": "text/plain",
		"data":        []byte("lead II normal"),
	})
	require.Equal(t, http.StatusCreated, status, body)
	attachmentID := body["attachment"].(map[string]interface{})["attachmentId"].(string)

	status, body = env.call(t, http.MethodPost, base+"/attachments", env.doctor, map[string]interface{}{
		"fileName":    "scan.bin",
		"contentType": "application/octet-stream",
		"data":        bytes.Repeat([]byte{1}, 2048),
	})
	assert.Equal(t, http.StatusBadRequest, status, body)

	status, body = env.call(t, http.MethodDelete, base+"/attachments/"+attachmentID, env.doctor, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Empty(t, body["record"].(map[string]interface{})["attachments"])
}

func TestRouter_AuditQueries(t *testing.T) {
	env := newAPIEnv(t)
	recordID := env.createRecord(t, "note")

	status, _ := env.call(t, http.MethodGet, "/records/"+recordID, env.patient, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := env.call(t, http.MethodGet, "/records/"+recordID+"/audit", env.doctor, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["auditTrail"], 2)

	status, body = env.call(t, http.MethodGet, "/patients/"+env.patient+"/audit?actions=create_record", env.doctor, nil)
	require.Equal(t, http.StatusOK, status, body)
	trail := body["auditTrail"].([]interface{})
	require.Len(t, trail, 1)
	assert.Equal(t, "CREATE_RECORD", trail[0].(map[string]interface{})["action"])

	status, _ = env.call(t, http.MethodGet, "/patients/"+env.patient+"/audit?startDate=yesterday", env.doctor, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.call(t, http.MethodGet, "/actors/"+env.doctor+"/activity?startDate=2024-01-01", env.doctor, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.NotEmpty(t, body["activity"])

	status, _ = env.call(t, http.MethodGet, "/records/"+recordID+"/audit", env.patient, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRouter_DirectoryIsAdminOnly(t *testing.T) {
	env := newAPIEnv(t)
	payload := map[string]interface{}{
		"name":          "Carla Reis",
		"email":         "carla@example.com",
		"date_of_birth": "1979-11-23",
	}

	status, _ := env.call(t, http.MethodPost, "/directory/patients", env.doctor, payload)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := env.call(t, http.MethodPost, "/directory/patients", env.admin, payload)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "carla@example.com", body["email"])

	status, _ = env.call(t, http.MethodPost, "/directory/patients", env.admin, payload)
	assert.Equal(t, http.StatusConflict, status)

	status, body = env.call(t, http.MethodPost, "/directory/doctors", env.admin, map[string]interface{}{
		"name":  "Dr. Paula Nunes",
		"email": "paula@example.com",
	})
	require.Equal(t, http.StatusCreated, status, body)
}
