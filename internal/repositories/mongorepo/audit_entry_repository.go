// Package mongorepo stores the audit ledger in MongoDB.
package mongorepo

import (
	"context"
	"fmt"
	"time"

	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/datatypes"
)

var _ repositories.AuditEntryRepositoryContract = (*AuditEntryRepository)(nil)

// auditDocument is the stored shape of an AuditEntry. Identifiers are kept as
// strings so they stay readable from the mongo shell.
type auditDocument struct {
	AuditID         string    `bson:"audit_id"`
	Action          string    `bson:"action"`
	ResourceType    string    `bson:"resource_type"`
	ResourceID      string    `bson:"resource_id"`
	RecordID        string    `bson:"record_id,omitempty"`
	PatientID       string    `bson:"patient_id,omitempty"`
	PerformedBy     string    `bson:"performed_by"`
	PerformedByType string    `bson:"performed_by_type"`
	Details         string    `bson:"details,omitempty"`
	Timestamp       time.Time `bson:"timestamp"`
	Success         bool      `bson:"success"`
	ErrorMessage    *string   `bson:"error_message,omitempty"`
	Duration        int64     `bson:"duration"`
}

type AuditEntryRepository struct {
	collection *mongo.Collection
}

func NewAuditEntryRepository(client *mongo.Client, database, collection string) *AuditEntryRepository {
	return &AuditEntryRepository{collection: client.Database(database).Collection(collection)}
}

// EnsureIndexes creates the indexes backing the trail queries.
func (r *AuditEntryRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "audit_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "record_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "performed_by", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}

func (r *AuditEntryRepository) Insert(ctx context.Context, entry *entities.AuditEntry) error {
	if entry.AuditID == uuid.Nil {
		entry.AuditID = uuid.New()
	}
	if _, err := r.collection.InsertOne(ctx, toDocument(entry)); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditEntryRepository) Find(ctx context.Context, q repositories.AuditQuery) ([]*entities.AuditEntry, int64, error) {
	filter := buildFilter(q)

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit)).SetSkip(int64(q.Offset))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []auditDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	entries := make([]*entities.AuditEntry, 0, len(docs))
	for i := range docs {
		entries = append(entries, fromDocument(&docs[i]))
	}
	return entries, total, nil
}

func (r *AuditEntryRepository) SummarizeActor(ctx context.Context, actorID uuid.UUID, start, end time.Time) ([]repositories.ActionSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"performed_by": actorID.String(),
			"timestamp":    bson.M{"$gte": start.UTC(), "$lte": end.UTC()},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":            "$action",
			"count":          bson.M{"$sum": 1},
			"last_performed": bson.M{"$max": "$timestamp"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate actor activity: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Action        string    `bson:"_id"`
		Count         int64     `bson:"count"`
		LastPerformed time.Time `bson:"last_performed"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode actor activity: %w", err)
	}

	summaries := make([]repositories.ActionSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, repositories.ActionSummary{
			Action:        entities.AuditAction(row.Action),
			Count:         row.Count,
			LastPerformed: row.LastPerformed.UTC(),
		})
	}
	return summaries, nil
}

func buildFilter(q repositories.AuditQuery) bson.M {
	filter := bson.M{}
	if q.PatientID != nil {
		filter["patient_id"] = q.PatientID.String()
	}
	if q.RecordID != "" {
		filter["record_id"] = q.RecordID
	}
	if q.PerformedBy != nil {
		filter["performed_by"] = q.PerformedBy.String()
	}
	if len(q.Actions) > 0 {
		actions := make([]string, 0, len(q.Actions))
		for _, a := range q.Actions {
			actions = append(actions, string(a))
		}
		filter["action"] = bson.M{"$in": actions}
	}
	if q.StartDate != nil || q.EndDate != nil {
		window := bson.M{}
		if q.StartDate != nil {
			window["$gte"] = q.StartDate.UTC()
		}
		if q.EndDate != nil {
			window["$lte"] = q.EndDate.UTC()
		}
		filter["timestamp"] = window
	}
	return filter
}

func toDocument(entry *entities.AuditEntry) auditDocument {
	doc := auditDocument{
		AuditID:         entry.AuditID.String(),
		Action:          string(entry.Action),
		ResourceType:    string(entry.ResourceType),
		ResourceID:      entry.ResourceID,
		RecordID:        entry.RecordID,
		PerformedBy:     entry.PerformedBy.String(),
		PerformedByType: string(entry.PerformedByType),
		Details:         string(entry.Details),
		Timestamp:       entry.Timestamp.UTC(),
		Success:         entry.Success,
		ErrorMessage:    entry.ErrorMessage,
		Duration:        entry.Duration,
	}
	if entry.PatientID != nil {
		doc.PatientID = entry.PatientID.String()
	}
	return doc
}

func fromDocument(doc *auditDocument) *entities.AuditEntry {
	entry := &entities.AuditEntry{
		Action:          entities.AuditAction(doc.Action),
		ResourceType:    entities.ResourceType(doc.ResourceType),
		ResourceID:      doc.ResourceID,
		RecordID:        doc.RecordID,
		PerformedByType: entities.Role(doc.PerformedByType),
		Timestamp:       doc.Timestamp.UTC(),
		Success:         doc.Success,
		ErrorMessage:    doc.ErrorMessage,
		Duration:        doc.Duration,
	}
	if id, err := uuid.Parse(doc.AuditID); err == nil {
		entry.AuditID = id
	}
	if id, err := uuid.Parse(doc.PerformedBy); err == nil {
		entry.PerformedBy = id
	}
	if doc.PatientID != "" {
		if id, err := uuid.Parse(doc.PatientID); err == nil {
			entry.PatientID = &id
		}
	}
	if doc.Details != "" {
		entry.Details = datatypes.JSON(doc.Details)
	}
	return entry
}
