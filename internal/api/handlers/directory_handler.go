package handlers

import (
	"medical-record-versioning/internal/api/middleware"
	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/dtos"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DirectoryHandler lets administrators register patients and doctors.
type DirectoryHandler struct {
	directory services.PatientDirectoryContract
	logger    *zap.Logger
}

func NewDirectoryHandler(directory services.PatientDirectoryContract, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		directory: directory,
		logger:    logger.With(zap.String("handler", "directory")),
	}
}

func (h *DirectoryHandler) RegisterPatient(c *fiber.Ctx) error {
	if err := requireAdmin(c); err != nil {
		return err
	}

	var req dtos.CreatePatientRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validationf("could not parse request body: %v", err)
	}

	patient, err := h.directory.RegisterPatient(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(patient)
}

func (h *DirectoryHandler) RegisterDoctor(c *fiber.Ctx) error {
	if err := requireAdmin(c); err != nil {
		return err
	}

	var req dtos.CreateDoctorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validationf("could not parse request body: %v", err)
	}

	doctor, err := h.directory.RegisterDoctor(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(doctor)
}

func requireAdmin(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	if actor.Role != entities.RoleAdmin {
		return apperrors.Forbiddenf("only administrators may manage the directory")
	}
	return nil
}

func RegisterDirectoryRoutes(router fiber.Router, dh *DirectoryHandler) {
	directory := router.Group("/directory")
	directory.Post("/patients", dh.RegisterPatient)
	directory.Post("/doctors", dh.RegisterDoctor)
}
