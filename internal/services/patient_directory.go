package services

import (
	"context"
	"errors"
	"time"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/dtos"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/domain/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PatientDirectoryContract interface {
	Exists(ctx context.Context, patientID uuid.UUID) (bool, error)
	Get(ctx context.Context, patientID uuid.UUID) (*entities.Patient, error)
	GetDoctor(ctx context.Context, doctorID uuid.UUID) (*entities.Doctor, error)
	RegisterPatient(ctx context.Context, req dtos.CreatePatientRequest) (*dtos.PatientDTO, error)
	RegisterDoctor(ctx context.Context, req dtos.CreateDoctorRequest) (*dtos.DoctorDTO, error)
}

// PatientDirectoryImpl answers identity lookups for patients and doctors.
type PatientDirectoryImpl struct {
	patientRepo repositories.PatientRepositoryContract
	doctorRepo  repositories.DoctorRepositoryContract
	validate    *validator.Validate
	logger      *zap.Logger
}

func NewPatientDirectory(
	patientRepo repositories.PatientRepositoryContract,
	doctorRepo repositories.DoctorRepositoryContract,
	validate *validator.Validate,
	logger *zap.Logger,
) PatientDirectoryContract {
	return &PatientDirectoryImpl{
		patientRepo: patientRepo,
		doctorRepo:  doctorRepo,
		validate:    validate,
		logger:      logger.With(zap.String("service", "patient_directory")),
	}
}

func (d *PatientDirectoryImpl) Exists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	_, err := d.patientRepo.GetByID(ctx, patientID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *PatientDirectoryImpl) Get(ctx context.Context, patientID uuid.UUID) (*entities.Patient, error) {
	return d.patientRepo.GetByID(ctx, patientID)
}

func (d *PatientDirectoryImpl) GetDoctor(ctx context.Context, doctorID uuid.UUID) (*entities.Doctor, error) {
	return d.doctorRepo.GetByID(ctx, doctorID)
}

func (d *PatientDirectoryImpl) RegisterPatient(ctx context.Context, req dtos.CreatePatientRequest) (*dtos.PatientDTO, error) {
	if err := d.validate.Struct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, err, "invalid patient")
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, apperrors.Validationf("invalid date_of_birth %q", req.DateOfBirth)
	}
	if _, err := d.patientRepo.FindByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.Conflictf("a patient with email %s already exists", req.Email)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	patient := &entities.Patient{
		Name:        req.Name,
		DateOfBirth: dob,
		Email:       req.Email,
	}
	if err := d.patientRepo.Create(ctx, patient); err != nil {
		d.logger.Error("Failed to register patient", zap.Error(err))
		return nil, err
	}

	d.logger.Info("Patient registered", zap.String("patient_id", patient.ID.String()))
	return PatientToDTO(patient), nil
}

func (d *PatientDirectoryImpl) RegisterDoctor(ctx context.Context, req dtos.CreateDoctorRequest) (*dtos.DoctorDTO, error) {
	if err := d.validate.Struct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, err, "invalid doctor")
	}
	if _, err := d.doctorRepo.FindByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.Conflictf("a doctor with email %s already exists", req.Email)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	doctor := &entities.Doctor{
		Name:           req.Name,
		Email:          req.Email,
		Specialization: req.Specialization,
	}
	if err := d.doctorRepo.Create(ctx, doctor); err != nil {
		d.logger.Error("Failed to register doctor", zap.Error(err))
		return nil, err
	}

	d.logger.Info("Doctor registered", zap.String("doctor_id", doctor.ID.String()))
	return &dtos.DoctorDTO{
		ID:             doctor.ID,
		Name:           doctor.Name,
		Email:          doctor.Email,
		Specialization: doctor.Specialization,
		CreatedAt:      doctor.CreatedAt,
		UpdatedAt:      doctor.UpdatedAt,
	}, nil
}

func PatientToDTO(p *entities.Patient) *dtos.PatientDTO {
	return &dtos.PatientDTO{
		ID:          p.ID,
		Name:        p.Name,
		DateOfBirth: p.DateOfBirth.Format("2006-01-02"),
		Email:       p.Email,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
