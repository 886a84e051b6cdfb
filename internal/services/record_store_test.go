package services

import (
	"context"
	"testing"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"trims and folds", []string{" Cardio ", "ECG"}, []string{"cardio", "ecg"}},
		{"drops duplicates after folding", []string{"Renal", "renal", "RENAL"}, []string{"renal"}},
		{"drops blanks", []string{"", "  ", "x"}, []string{"x"}},
		{"folds beyond ascii", []string{"ÉCHO"}, []string{"écho"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.in))
		})
	}
	assert.Equal(t, "cardio", NormalizeTag("  CARDIO "))
}

func TestSameTagSet(t *testing.T) {
	assert.True(t, sameTagSet([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, sameTagSet([]string{"a"}, []string{"a", "b"}))
	assert.False(t, sameTagSet([]string{"a", "c"}, []string{"a", "b"}))
}

func TestParseID(t *testing.T) {
	id := uuid.New()
	parsed, err := ParseID("patientId", " "+id.String()+" ")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, raw := range []string{"", "abc", uuid.Nil.String()} {
		_, err := ParseID("patientId", raw)
		assert.ErrorIs(t, err, apperrors.ErrValidation, raw)
	}
}

func TestRecordStore_SoftDeleteAndRestore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	record, err := env.records.Create(ctx, NewRecord{
		PatientID: env.patient.ID.String(),
		Title:     "  Discharge summary ",
		Tags:      []string{"Ward"},
		CreatedBy: env.doctor.ID,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Discharge summary", record.Title)

	filter := repositories.RecordFilter{PatientID: &env.patient.ID}
	active, total, err := env.records.FindActive(ctx, filter)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, active, 1)

	require.NoError(t, env.records.SoftDelete(ctx, record, env.doctor.ID))
	assert.True(t, record.IsDeleted)
	assert.ErrorIs(t, env.records.SoftDelete(ctx, record, env.doctor.ID), apperrors.ErrConflict)

	filter.IncludeDeleted = true
	active, total, err = env.records.FindActive(ctx, filter)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, active)

	all, _, err := env.records.Find(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = env.records.Get(ctx, record.RecordID, false)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, env.records.Restore(ctx, record))
	assert.False(t, record.IsDeleted)
	assert.Nil(t, record.DeletedAt)
	assert.Nil(t, record.DeletedBy)

	got, err := env.records.Get(ctx, record.RecordID, false)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
}

func TestRecordStore_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.records.Create(ctx, NewRecord{PatientID: "x", Title: "t"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.records.Create(ctx, NewRecord{PatientID: env.patient.ID.String(), Title: "   "}, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.records.Create(ctx, NewRecord{PatientID: uuid.NewString(), Title: "t"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.records.Get(ctx, " ", false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRecordStore_UpdateMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	record, err := env.records.Create(ctx, NewRecord{
		PatientID: env.patient.ID.String(), Title: "Labs", Description: "d", CreatedBy: env.doctor.ID,
	}, nil)
	require.NoError(t, err)
	editor := uuid.New()

	changed, err := env.records.UpdateMetadata(ctx, record, MetadataUpdate{}, editor)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, env.doctor.ID, record.LastModifiedBy)

	_, err = env.records.UpdateMetadata(ctx, record, MetadataUpdate{Title: strPtr(" ")}, editor)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "Labs", record.Title)

	changed, err = env.records.UpdateMetadata(ctx, record, MetadataUpdate{Description: strPtr("fasting")}, editor)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, editor, record.LastModifiedBy)

	stored := env.storedRecord(t, record.RecordID)
	assert.Equal(t, "fasting", stored.Description)
	assert.Equal(t, editor, stored.LastModifiedBy)
	assert.True(t, stored.UpdatedAt.Equal(record.UpdatedAt))
}
