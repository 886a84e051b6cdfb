package handlers

import (
	"strings"
	"time"

	"medical-record-versioning/internal/api/middleware"
	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/dtos"
	"medical-record-versioning/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuditHandler struct {
	auditService services.AuditQueryServiceContract
	logger       *zap.Logger
}

func NewAuditHandler(as services.AuditQueryServiceContract, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: as,
		logger:       logger.With(zap.String("handler", "audit")),
	}
}

func (h *AuditHandler) GetRecordAuditTrail(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.auditService.GetRecordAuditTrail(c.UserContext(), actor, c.Params("recordId"), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *AuditHandler) GetPatientAuditTrail(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var query dtos.AuditTrailQuery
	if err := c.QueryParser(&query); err != nil {
		return apperrors.Validationf("invalid query: %v", err)
	}
	query.Actions = splitList(c.Query("actions"))
	if query.StartDate, err = parseDate(c.Query("startDate"), "startDate"); err != nil {
		return err
	}
	if query.EndDate, err = parseDate(c.Query("endDate"), "endDate"); err != nil {
		return err
	}

	resp, err := h.auditService.GetPatientAuditTrail(c.UserContext(), actor, c.Params("patientId"), query)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *AuditHandler) GetActorActivity(c *fiber.Ctx) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}

	var query dtos.ActivityQuery
	if query.StartDate, err = parseDate(c.Query("startDate"), "startDate"); err != nil {
		return err
	}
	if query.EndDate, err = parseDate(c.Query("endDate"), "endDate"); err != nil {
		return err
	}

	resp, err := h.auditService.GetActorActivity(c.UserContext(), actor, c.Params("actorId"), query)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func RegisterAuditRoutes(router fiber.Router, ah *AuditHandler) {
	router.Get("/records/:recordId/audit", ah.GetRecordAuditTrail)
	router.Get("/patients/:patientId/audit", ah.GetPatientAuditTrail)
	router.Get("/actors/:actorId/activity", ah.GetActorActivity)
}

// splitList reads "a,b , c" as [a b c].
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func parseDate(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperrors.Validationf("%s must be an RFC 3339 timestamp or a YYYY-MM-DD date", field)
}
