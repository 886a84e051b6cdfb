package middleware

import (
	"errors"

	"medical-record-versioning/internal/apperrors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return fiber.StatusBadRequest
	case apperrors.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case apperrors.KindForbidden:
		return fiber.StatusForbidden
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindConflict, apperrors.KindIntegrity:
		return fiber.StatusConflict
	case apperrors.KindBackup:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders handler errors as {"error", "kind"} JSON bodies.
// Internal errors are logged and replaced by a generic message.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		status := StatusFor(err)
		kind := apperrors.KindOf(err)
		message := err.Error()
		if status == fiber.StatusInternalServerError {
			logger.Error("Unhandled error", zap.String("path", c.Path()), zap.Error(err))
			message = "operation failed"
		}

		body := fiber.Map{"error": message, "kind": kind}
		if kind == apperrors.KindIntegrity {
			body["integrity"] = false
		}
		return c.Status(status).JSON(body)
	}
}
