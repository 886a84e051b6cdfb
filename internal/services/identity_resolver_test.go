package services

import (
	"context"
	"errors"
	"testing"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/entities"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIdentityResolver_Resolve(t *testing.T) {
	adminID, doctorID, patientID := uuid.New(), uuid.New(), uuid.New()
	patients := &MockPatientRepository{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*entities.Patient, error) {
			if id == patientID {
				return &entities.Patient{ID: id}, nil
			}
			return nil, apperrors.NotFoundf("patient not found")
		},
	}
	doctors := &MockDoctorRepository{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*entities.Doctor, error) {
			if id == doctorID {
				return &entities.Doctor{ID: id}, nil
			}
			return nil, apperrors.NotFoundf("doctor not found")
		},
	}
	resolver, err := NewIdentityResolver(newTestDirectory(patients, doctors), []string{adminID.String()}, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
		want  entities.Role
	}{
		{"admin from configuration", adminID.String(), entities.RoleAdmin},
		{"doctor from directory", doctorID.String(), entities.RoleDoctor},
		{"patient from directory", " " + patientID.String() + " ", entities.RolePatient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, err := resolver.Resolve(ctx, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, actor.Role)
		})
	}

	_, err = resolver.Resolve(ctx, "garbage")
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = resolver.Resolve(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestIdentityResolver_DirectoryFailure(t *testing.T) {
	doctors := &MockDoctorRepository{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*entities.Doctor, error) {
			return nil, errors.New("connection reset")
		},
	}
	resolver, err := NewIdentityResolver(newTestDirectory(&MockPatientRepository{}, doctors), nil, zap.NewNop())
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), uuid.NewString())
	assert.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestNewIdentityResolver_RejectsBadAdminID(t *testing.T) {
	_, err := NewIdentityResolver(newTestDirectory(&MockPatientRepository{}, &MockDoctorRepository{}), []string{"root"}, zap.NewNop())
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
