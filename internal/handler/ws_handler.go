package handler

import (
	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/pkg/logger"
	"ctfpilot-be/internal/pkg/serverutils"
	"ctfpilot-be/internal/repository/memory"
	internalWS "ctfpilot-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type WsHandler struct {
	cfg      *config.Config
	sessions *memory.SessionRepository
	hub      *internalWS.Hub
	logger   logger.ILogger
}

func NewWsHandler(cfg *config.Config, sessions *memory.SessionRepository, hub *internalWS.Hub, log logger.ILogger) *WsHandler {
	return &WsHandler{
		cfg:      cfg,
		sessions: sessions,
		hub:      hub,
		logger:   log,
	}
}

func (h *WsHandler) RegisterRoutes(r fiber.Router) {
	ws := r.Group("/ws")
	ws.Get("/jobs", h.ServeJobs)
	ws.Get("/jobs/:id", h.ServeJobs)
}

// ServeJobs upgrades the connection and streams job updates. Without a job
// id the client receives updates for every job.
func (h *WsHandler) ServeJobs(c *fiber.Ctx) error {
	if h.cfg.Auth.RequireAuth {
		tokenStr := serverutils.BearerToken(c)
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
		}

		sessionID, err := serverutils.ParseSessionToken(tokenStr, h.cfg.Auth.JWTSecret)
		if err != nil {
			h.logger.Warn("WsHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}
		if _, found := h.sessions.Get(sessionID); !found {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Session expired"})
		}
	}

	jobID := c.Params("id")
	if jobID != "" {
		if _, err := uuid.Parse(jobID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid job id"})
		}
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("WsHandler", "Starting WebSocket session", map[string]interface{}{"job_id": jobID})
			internalWS.ServeWs(h.hub, conn, jobID)
			h.logger.Info("WsHandler", "WebSocket session ended", map[string]interface{}{"job_id": jobID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
