package gormrepo

import (
	"context"
	"fmt"

	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	_ repositories.PatientRepositoryContract = (*PatientRepository)(nil)
	_ repositories.DoctorRepositoryContract  = (*DoctorRepository)(nil)
)

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Create(ctx context.Context, patient *entities.Patient) error {
	if err := conn(ctx, r.db).Create(patient).Error; err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Patient, error) {
	var patient entities.Patient
	if err := conn(ctx, r.db).Where("id = ?", id).First(&patient).Error; err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("patient %s not found", id))
	}
	return &patient, nil
}

func (r *PatientRepository) FindByEmail(ctx context.Context, email string) (*entities.Patient, error) {
	var patient entities.Patient
	if err := conn(ctx, r.db).Where("email = ?", email).First(&patient).Error; err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("patient with email %s not found", email))
	}
	return &patient, nil
}

type DoctorRepository struct {
	db *gorm.DB
}

func NewDoctorRepository(db *gorm.DB) *DoctorRepository {
	return &DoctorRepository{db: db}
}

func (r *DoctorRepository) Create(ctx context.Context, doctor *entities.Doctor) error {
	if err := conn(ctx, r.db).Create(doctor).Error; err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *DoctorRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Doctor, error) {
	var doctor entities.Doctor
	if err := conn(ctx, r.db).Where("id = ?", id).First(&doctor).Error; err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("doctor %s not found", id))
	}
	return &doctor, nil
}

func (r *DoctorRepository) FindByEmail(ctx context.Context, email string) (*entities.Doctor, error) {
	var doctor entities.Doctor
	if err := conn(ctx, r.db).Where("email = ?", email).First(&doctor).Error; err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("doctor with email %s not found", email))
	}
	return &doctor, nil
}
