package database

import (
	"testing"

	"medical-record-versioning/internal/domain/entities"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMigrateCreatesTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db, zap.NewNop()))

	for _, model := range []interface{}{
		&entities.Patient{},
		&entities.Doctor{},
		&entities.MedicalRecord{},
		&entities.RecordVersion{},
		&entities.AuditEntry{},
	} {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasIndex(&entities.RecordVersion{}, "idx_record_versions_number"))
}
