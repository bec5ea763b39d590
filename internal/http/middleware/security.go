package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Security sets the standard hardening headers on every response.
func Security() fiber.Handler {
	return helmet.New(helmet.Config{
		ReferrerPolicy: "strict-origin-when-cross-origin",
	})
}

// CORS allows the configured origins (comma separated, "*" for any) to call the API.
func CORS(allowOrigins string) fiber.Handler {
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept," + RequestIDHeader,
		ExposeHeaders: RequestIDHeader,
	})
}

// RateLimit allows max requests per client IP within window. onLimit writes the rejection.
// A non-positive max disables the limit.
func RateLimit(max int, window time.Duration, onLimit fiber.Handler) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	cfg := limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
	}
	if onLimit != nil {
		cfg.LimitReached = onLimit
	}
	return limiter.New(cfg)
}
