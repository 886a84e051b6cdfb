package repositories

import (
	"context"

	"medical-record-versioning/internal/domain/entities"

	"github.com/google/uuid"
)

type PatientRepositoryContract interface {
	Create(ctx context.Context, patient *entities.Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Patient, error)
	FindByEmail(ctx context.Context, email string) (*entities.Patient, error)
}

type DoctorRepositoryContract interface {
	Create(ctx context.Context, doctor *entities.Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Doctor, error)
	FindByEmail(ctx context.Context, email string) (*entities.Doctor, error)
}
