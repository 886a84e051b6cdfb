package api

import (
	"medical-record-versioning/internal/api/handlers"
	"medical-record-versioning/internal/api/middleware"
	"medical-record-versioning/internal/config"
	"medical-record-versioning/internal/services"
	"medical-record-versioning/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RouterDeps holds what the HTTP surface needs. DB may be nil, in which case
// /health does not ping the database.
type RouterDeps struct {
	Server    config.ServerConfig
	Logger    *zap.Logger
	Metrics   *metrics.MetricsCollector
	Resolver  services.IdentityResolverContract
	Records   services.RecordServiceContract
	Audit     services.AuditQueryServiceContract
	Directory services.PatientDirectoryContract
	DB        handlers.Pinger
}

// NewRouter builds the fiber app. /health and /metrics are public; every
// other route requires a bearer token.
func NewRouter(deps RouterDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "medical-record-versioning",
		ReadTimeout:           deps.Server.ReadTimeout.Duration,
		WriteTimeout:          deps.Server.WriteTimeout.Duration,
		IdleTimeout:           deps.Server.IdleTimeout.Duration,
		BodyLimit:             deps.Server.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(deps.Logger),
		DisableStartupMessage: true,
	})

	app.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))

	handlers.RegisterSystemRoutes(app, handlers.NewSystemHandler(deps.DB, deps.Metrics))

	// Routes registered above this point are matched before Identity runs.
	app.Use(middleware.Identity(deps.Resolver, deps.Logger))
	handlers.RegisterRecordRoutes(app, handlers.NewRecordHandler(deps.Records, deps.Logger))
	handlers.RegisterAuditRoutes(app, handlers.NewAuditHandler(deps.Audit, deps.Logger))
	handlers.RegisterDirectoryRoutes(app, handlers.NewDirectoryHandler(deps.Directory, deps.Logger))

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "route not found")
	})

	return app
}
