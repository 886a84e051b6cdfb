package gormrepo

import (
	"context"
	"fmt"
	"time"

	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var _ repositories.AuditEntryRepositoryContract = (*AuditEntryRepository)(nil)

// AuditEntryRepository only ever inserts; entries are write-once.
type AuditEntryRepository struct {
	db *gorm.DB
}

func NewAuditEntryRepository(db *gorm.DB) *AuditEntryRepository {
	return &AuditEntryRepository{db: db}
}

func (r *AuditEntryRepository) Insert(ctx context.Context, entry *entities.AuditEntry) error {
	if err := conn(ctx, r.db).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditEntryRepository) Find(ctx context.Context, q repositories.AuditQuery) ([]*entities.AuditEntry, int64, error) {
	query := conn(ctx, r.db).Model(&entities.AuditEntry{})
	if q.PatientID != nil {
		query = query.Where("patient_id = ?", *q.PatientID)
	}
	if q.RecordID != "" {
		query = query.Where("record_id = ?", q.RecordID)
	}
	if q.PerformedBy != nil {
		query = query.Where("performed_by = ?", *q.PerformedBy)
	}
	if len(q.Actions) > 0 {
		query = query.Where("action IN ?", q.Actions)
	}
	if q.StartDate != nil {
		query = query.Where("timestamp >= ?", q.StartDate.UTC())
	}
	if q.EndDate != nil {
		query = query.Where("timestamp <= ?", q.EndDate.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	entries := make([]*entities.AuditEntry, 0)
	page := query.Order("timestamp DESC").Order("id DESC")
	if q.Limit > 0 {
		page = page.Limit(q.Limit).Offset(q.Offset)
	}
	if err := page.Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load audit entries: %w", err)
	}
	return entries, total, nil
}

// SummarizeActor groups the actor's entries by action, busiest first.
func (r *AuditEntryRepository) SummarizeActor(ctx context.Context, actorID uuid.UUID, start, end time.Time) ([]repositories.ActionSummary, error) {
	var rows []struct {
		Action        entities.AuditAction
		Total         int64
		LastPerformed sqlTime
	}
	err := conn(ctx, r.db).Model(&entities.AuditEntry{}).
		Select("action, COUNT(*) AS total, MAX(timestamp) AS last_performed").
		Where("performed_by = ? AND timestamp >= ? AND timestamp <= ?", actorID, start.UTC(), end.UTC()).
		Group("action").
		Order("total DESC").
		Order("action ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize actor activity: %w", err)
	}

	summaries := make([]repositories.ActionSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, repositories.ActionSummary{
			Action:        row.Action,
			Count:         row.Total,
			LastPerformed: row.LastPerformed.Time,
		})
	}
	return summaries, nil
}

// sqlTime scans an aggregated timestamp. SQLite drivers return MAX over a
// datetime column as text.
type sqlTime struct {
	time.Time
}

var sqlTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
}

func (t *sqlTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into a timestamp", value)
	}
}

func (t *sqlTime) parse(s string) error {
	for _, layout := range sqlTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
