package middleware

import (
	"strings"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/entities"
	"medical-record-versioning/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const actorKey = "actor"

// Identity resolves the bearer token of every request to an Actor and
// stores it in c.Locals. Requests without a resolvable token are rejected.
func Identity(resolver services.IdentityResolverContract, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			return apperrors.Unauthenticatedf("missing bearer token")
		}

		actor, err := resolver.Resolve(c.UserContext(), token)
		if err != nil {
			logger.Debug("Identity resolution failed", zap.String("path", c.Path()), zap.Error(err))
			return err
		}
		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// ActorFrom returns the actor stored by Identity.
func ActorFrom(c *fiber.Ctx) (entities.Actor, error) {
	actor, ok := c.Locals(actorKey).(entities.Actor)
	if !ok {
		return entities.Actor{}, apperrors.Unauthenticatedf("request has no resolved actor")
	}
	return actor, nil
}
