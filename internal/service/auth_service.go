// FILE: internal/service/auth_service.go
package service

import (
	"crypto/subtle"
	"time"

	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/dto"
	"ctfpilot-be/internal/pkg/logger"
	"ctfpilot-be/internal/pkg/serverutils"
	"ctfpilot-be/internal/repository/memory"
	"ctfpilot-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type IAuthService interface {
	Login(req *dto.LoginRequest) (*dto.LoginResponse, error)
	Logout(sessionID string)
	SessionInfo(sessionID string) *dto.SessionInfoResponse
}

type authService struct {
	cfg      *config.Config
	sessions *memory.SessionRepository
	logger   logger.ILogger
}

func NewAuthService(cfg *config.Config, sessions *memory.SessionRepository, logger logger.ILogger) IAuthService {
	return &authService{
		cfg:      cfg,
		sessions: sessions,
		logger:   logger,
	}
}

func (s *authService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	if !s.verifyPassword(req.Password) {
		return nil, serverutils.NewApiError(fiber.StatusUnauthorized, "Invalid password")
	}

	now := time.Now().UTC()
	ttl := time.Duration(s.cfg.Auth.SessionTimeoutSec) * time.Second
	session := &store.Session{
		ID:        uuid.NewString(),
		CSRFToken: uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.sessions.Save(session)

	claims := jwt.MapClaims{
		"session_id": session.ID,
		"exp":        session.ExpiresAt.Unix(),
		"iat":        now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Auth.JWTSecret))
	if err != nil {
		s.sessions.Delete(session.ID)
		return nil, serverutils.NewApiError(fiber.StatusInternalServerError, "Failed to issue token")
	}

	s.logger.Info("auth", "Operator logged in", map[string]interface{}{
		"session_id": session.ID,
	})

	return &dto.LoginResponse{
		Message:   "Login successful",
		Token:     signed,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// verifyPassword prefers the bcrypt hash when configured and falls back to a
// constant-time comparison against the plain admin password.
func (s *authService) verifyPassword(password string) bool {
	if hash := s.cfg.Auth.AdminPasswordHash; hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Auth.AdminPassword)) == 1
}

func (s *authService) Logout(sessionID string) {
	if sessionID != "" {
		s.sessions.Delete(sessionID)
	}
}

func (s *authService) SessionInfo(sessionID string) *dto.SessionInfoResponse {
	if !s.cfg.Auth.RequireAuth {
		// Single-user mode, every request is implicitly authenticated.
		return &dto.SessionInfoResponse{
			Authenticated: true,
			Mode:          "single-user",
		}
	}

	session, found := s.sessions.Get(sessionID)
	if !found {
		return &dto.SessionInfoResponse{Authenticated: false}
	}
	return &dto.SessionInfoResponse{
		Authenticated: true,
		Mode:          "session",
		ExpiresAt:     &session.ExpiresAt,
	}
}
