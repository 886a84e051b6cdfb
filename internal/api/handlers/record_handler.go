package handlers

import (
	"io"
	"strconv"
	"strings"

	"medical-record-versioning/internal/api/middleware"
	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/dtos"
	"medical-record-versioning/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type RecordHandler struct {
	recordService services.RecordServiceContract
	logger        *zap.Logger
}

func NewRecordHandler(rs services.RecordServiceContract, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{
		recordService: rs,
		logger:        logger.With(zap.String("handler", "records")),
	}
}

func (h *RecordHandler) CreateRecord(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	// Decoding failures go to the service so that they are audited.
	var req dtos.CreateRecordRequest
	if err := c.BodyParser(&req); err != nil {
		req.ParseError = apperrors.Validationf("could not parse request body: %v", err)
	}

	resp, err := h.recordService.CreateRecord(c.UserContext(), actor, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *RecordHandler) GetPatientRecords(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var query dtos.RecordListQuery
	if err := c.QueryParser(&query); err != nil {
		query.ParseError = apperrors.Validationf("invalid query: %v", err)
	}

	resp, err := h.recordService.GetPatientRecords(c.UserContext(), actor, c.Params("patientId"), query)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *RecordHandler) GetRecord(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.recordService.GetRecord(c.UserContext(), actor, c.Params("recordId"))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *RecordHandler) UpdateRecord(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var req dtos.UpdateRecordRequest
	if err := c.BodyParser(&req); err != nil {
		req.ParseError = apperrors.Validationf("could not parse request body: %v", err)
	}

	resp, err := h.recordService.UpdateRecord(c.UserContext(), actor, c.Params("recordId"), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *RecordHandler) DeleteRecord(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.recordService.DeleteRecord(c.UserContext(), actor, c.Params("recordId"))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *RecordHandler) RestoreRecord(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.recordService.RestoreRecord(c.UserContext(), actor, c.Params("recordId"))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *RecordHandler) GetVersionHistory(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var query dtos.HistoryQuery
	if err := c.QueryParser(&query); err != nil {
		query.ParseError = apperrors.Validationf("invalid query: %v", err)
	}

	resp, err := h.recordService.GetVersionHistory(c.UserContext(), actor, c.Params("recordId"), query)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *RecordHandler) GetVersion(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	// Malformed numbers reach the service as 0 so the failure is audited.
	versionNumber, _ := strconv.Atoi(c.Params("versionNumber"))
	resp, err := h.recordService.GetVersion(c.UserContext(), actor, c.Params("recordId"), versionNumber)
	if err != nil {
		return err
	}
	if !resp.IntegrityValid {
		h.logger.Warn("Serving version that failed its integrity check",
			zap.String("record_id", c.Params("recordId")),
			zap.Int("version_number", versionNumber),
		)
	}
	return c.JSON(resp)
}

func (h *RecordHandler) GetVersionDiff(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	versionNumber, _ := strconv.Atoi(c.Params("versionNumber"))
	resp, err := h.recordService.GetVersionDiff(c.UserContext(), actor, c.Params("recordId"), versionNumber)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *RecordHandler) BackupRecord(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.recordService.BackupRecord(c.UserContext(), actor, c.Params("recordId"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// UploadAttachment accepts either a multipart form with a "file" field or a
// JSON body with base64 data.
func (h *RecordHandler) UploadAttachment(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var req dtos.UploadAttachmentRequest
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		req, err = readMultipartAttachment(c)
		if err != nil {
			req.ParseError = err
		}
	} else if err := c.BodyParser(&req); err != nil {
		req.ParseError = apperrors.Validationf("could not parse request body: %v", err)
	}

	resp, err := h.recordService.UploadAttachment(c.UserContext(), actor, c.Params("recordId"), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func readMultipartAttachment(c *fiber.Ctx) (dtos.UploadAttachmentRequest, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return dtos.UploadAttachmentRequest{}, apperrors.Validationf("file is required")
	}
	file, err := header.Open()
	if err != nil {
		return dtos.UploadAttachmentRequest{}, apperrors.Validationf("could not read file: %v", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return dtos.UploadAttachmentRequest{}, apperrors.Validationf("could not read file: %v", err)
	}
	contentType := header.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	return dtos.UploadAttachmentRequest{
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (h *RecordHandler) DeleteAttachment(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.recordService.DeleteAttachment(c.UserContext(), actor, c.Params("recordId"), c.Params("attachmentId"))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func RegisterRecordRoutes(router fiber.Router, rh *RecordHandler) {
	router.Post("/records", rh.CreateRecord)
	router.Get("/patients/:patientId/records", rh.GetPatientRecords)

	records := router.Group("/records/:recordId")
	records.Get("/", rh.GetRecord)
	records.Patch("/", rh.UpdateRecord)
	records.Delete("/", rh.DeleteRecord)
	records.Post("/restore", rh.RestoreRecord)
	records.Get("/versions", rh.GetVersionHistory)
	records.Get("/versions/:versionNumber", rh.GetVersion)
	records.Get("/versions/:versionNumber/diff", rh.GetVersionDiff)
	records.Post("/backup", rh.BackupRecord)
	records.Post("/attachments", rh.UploadAttachment)
	records.Delete("/attachments/:attachmentId", rh.DeleteAttachment)
}
