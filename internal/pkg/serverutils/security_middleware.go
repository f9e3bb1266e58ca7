package serverutils

import (
	"strings"
	"time"

	"ctfpilot-be/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Login attempts get a much tighter window than the rest of the API.
const loginRateLimit = 5

// SecurityHeadersMiddleware sets the standard browser hardening headers on
// every response. HSTS is only meaningful behind TLS, so it is gated on the
// ENABLE_TLS flag.
func SecurityHeadersMiddleware(cfg *config.Config) fiber.Handler {
	hstsMaxAge := 0
	if cfg.App.EnableTLS {
		hstsMaxAge = 31536000
	}

	return helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		PermissionPolicy:   "geolocation=(), microphone=(), camera=()",
		ContentSecurityPolicy: "default-src 'self'; " +
			"script-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; " +
			"font-src 'self'; " +
			"frame-ancestors 'none'; " +
			"form-action 'self';",
		HSTSMaxAge:         hstsMaxAge,
		HSTSPreloadEnabled: cfg.App.EnableTLS,
	})
}

// NewRateLimitMiddleware enforces per-client request windows, keyed by
// ip+path over one minute. Login attempts and job creation get their own
// tighter caps.
func NewRateLimitMiddleware(cfg *config.Config) fiber.Handler {
	loginLimiter := newWindowLimiter(loginRateLimit)
	uploadLimiter := newWindowLimiter(cfg.App.RateLimitUploads)
	apiLimiter := newWindowLimiter(cfg.App.RateLimitAPI)

	return func(ctx *fiber.Ctx) error {
		path := ctx.Path()
		switch {
		case strings.HasPrefix(path, "/api/auth/login"):
			return loginLimiter(ctx)
		case strings.HasPrefix(path, "/api/jobs") && ctx.Method() == fiber.MethodPost:
			return uploadLimiter(ctx)
		default:
			return apiLimiter(ctx)
		}
	}
}

func newWindowLimiter(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		KeyGenerator: func(ctx *fiber.Ctx) string {
			return ctx.IP() + ":" + ctx.Path()
		},
		LimitReached: func(ctx *fiber.Ctx) error {
			ctx.Set(fiber.HeaderRetryAfter, "60")
			return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"detail":      "Too many requests. Please try again later.",
				"code":        "RATE_LIMITED",
				"retry_after": 60,
			})
		},
	})
}
