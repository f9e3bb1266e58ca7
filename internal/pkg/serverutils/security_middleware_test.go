package serverutils

import (
	"net/http/httptest"
	"testing"

	"ctfpilot-be/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecurityConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.App.RateLimitAPI = 3
	cfg.App.RateLimitUploads = 2
	cfg.App.EnableTLS = false
	return cfg
}

func newSecuredApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Use(SecurityHeadersMiddleware(cfg))
	app.Use(NewRateLimitMiddleware(cfg))

	ok := func(ctx *fiber.Ctx) error { return ctx.SendString("ok") }
	app.Post("/api/auth/login", ok)
	app.Post("/api/jobs", ok)
	app.Get("/api/jobs", ok)
	return app
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	app := newSecuredApp(testSecurityConfig(t))

	res, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/jobs", nil))
	require.NoError(t, err)

	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", res.Header.Get("X-XSS-Protection"))
	assert.Equal(t, "strict-origin-when-cross-origin", res.Header.Get("Referrer-Policy"))
	assert.Equal(t, "geolocation=(), microphone=(), camera=()", res.Header.Get("Permissions-Policy"))
	assert.Contains(t, res.Header.Get("Content-Security-Policy"), "frame-ancestors 'none'")
	// HSTS only makes sense behind TLS.
	assert.Empty(t, res.Header.Get("Strict-Transport-Security"))
}

func TestLoginRateLimitIsStrict(t *testing.T) {
	app := newSecuredApp(testSecurityConfig(t))

	for i := 0; i < loginRateLimit; i++ {
		res, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/auth/login", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)
	}

	res, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/auth/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, "60", res.Header.Get("Retry-After"))
}

func TestUploadRateLimitOnJobCreation(t *testing.T) {
	cfg := testSecurityConfig(t)
	app := newSecuredApp(cfg)

	for i := 0; i < cfg.App.RateLimitUploads; i++ {
		res, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/jobs", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)
	}

	res, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/jobs", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, res.StatusCode)

	// Reads are a separate window with the general limit.
	res, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/jobs", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}
