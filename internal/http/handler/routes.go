package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"legalease/docs"
	"legalease/internal/config"
	"legalease/internal/http/middleware"
	"legalease/internal/service"
)

const (
	serviceName    = "legalease"
	serviceVersion = "1.0.0"
)

// Options carries what the routes need beyond the document service.
type Options struct {
	Upload    config.UploadConfig
	RateLimit config.RateLimitConfig
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	// Offline is reported by the health check when no oracle is configured.
	Offline bool
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, docSvc service.DocumentService, opts Options) {
	app.Get("/api/health", HealthCheck(opts.Offline))
	app.Get("/healthz", LivenessProbe())

	window := opts.RateLimit.Window
	if window <= 0 {
		window = 5 * time.Minute
	}

	api := app.Group("/api")
	api.Post("/analyze",
		middleware.RateLimit(opts.RateLimit.Analyze, window, RateLimited()),
		AnalyzeDocument(docSvc, opts.Upload.MaxFileSize),
	)
	api.Post("/question",
		middleware.RateLimit(opts.RateLimit.Question, window, RateLimited()),
		AskQuestion(docSvc, opts.Upload.MaxQuestionLength),
	)
	api.Get("/documents/:id", GetDocumentInfo(docSvc))
	api.Delete("/documents/:id", DeleteDocument(docSvc))
	api.Get("/stats", GetStats(docSvc))

	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Get("/swagger/*", Swagger())
}

// HealthCheck reports liveness along with the analysis mode.
//
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/health [get]
func HealthCheck(offline bool) fiber.Handler {
	mode := "online"
	if offline {
		mode = "offline"
	}
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"version":   serviceVersion,
			"service":   serviceName,
			"mode":      mode,
		})
	}
}

// LivenessProbe is a bare 200 for orchestrators.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Swagger serves the UI with the host and scheme of the incoming request.
func Swagger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	}
}
