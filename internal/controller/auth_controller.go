// FILE: internal/controller/auth_controller.go
package controller

import (
	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/dto"
	"ctfpilot-be/internal/pkg/serverutils"
	"ctfpilot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Login(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
	Me(ctx *fiber.Ctx) error
}

type authController struct {
	cfg            *config.Config
	authService    service.IAuthService
	authMiddleware fiber.Handler
}

func NewAuthController(cfg *config.Config, authService service.IAuthService, authMiddleware fiber.Handler) IAuthController {
	return &authController{
		cfg:            cfg,
		authService:    authService,
		authMiddleware: authMiddleware,
	}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth")
	h.Post("login", c.Login)
	h.Post("logout", c.authMiddleware, c.Logout)
	h.Get("me", c.Me)
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.authService.Login(&req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success login", res))
}

func (c *authController) Logout(ctx *fiber.Ctx) error {
	if sessionID, ok := ctx.Locals("session_id").(string); ok {
		c.authService.Logout(sessionID)
	}
	return ctx.JSON(serverutils.SuccessResponse("Logged out", fiber.Map{}))
}

func (c *authController) Me(ctx *fiber.Ctx) error {
	sessionID := ""
	if token := serverutils.BearerToken(ctx); token != "" {
		if id, err := serverutils.ParseSessionToken(token, c.cfg.Auth.JWTSecret); err == nil {
			sessionID = id
		}
	}
	return ctx.JSON(serverutils.SuccessResponse("Session info", c.authService.SessionInfo(sessionID)))
}
