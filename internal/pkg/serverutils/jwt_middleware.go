// FILE: internal/pkg/serverutils/jwt_middleware.go
package serverutils

import (
	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/repository/memory"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// NewAuthMiddleware guards routes with the bearer session token issued at
// login. With REQUIRE_AUTH=false the dashboard runs in single-user mode and
// every request passes through.
func NewAuthMiddleware(cfg *config.Config, sessions *memory.SessionRepository) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if !cfg.Auth.RequireAuth {
			return ctx.Next()
		}

		tokenStr := BearerToken(ctx)
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Missing token"})
		}

		sessionID, err := ParseSessionToken(tokenStr, cfg.Auth.JWTSecret)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
		}

		session, found := sessions.Get(sessionID)
		if !found {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Session expired"})
		}

		ctx.Locals("session_id", session.ID)
		return ctx.Next()
	}
}

// BearerToken extracts the token from the Authorization header, falling
// back to the "token" query param for websocket handshakes where browsers
// cannot set headers.
func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

// ParseSessionToken validates the signed token and returns the embedded
// session id.
func ParseSessionToken(tokenStr, secret string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fiber.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fiber.ErrUnauthorized
	}

	sessionID, ok := claims["session_id"].(string)
	if !ok || sessionID == "" {
		return "", fiber.ErrUnauthorized
	}

	return sessionID, nil
}
