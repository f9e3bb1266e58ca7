package controller

import (
	"ctfpilot-be/internal/dto"
	"ctfpilot-be/internal/pkg/serverutils"
	"ctfpilot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IConfigController interface {
	RegisterRoutes(r fiber.Router)
	Show(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
}

type configController struct {
	configService  service.IConfigService
	authMiddleware fiber.Handler
}

func NewConfigController(configService service.IConfigService, authMiddleware fiber.Handler) IConfigController {
	return &configController{
		configService:  configService,
		authMiddleware: authMiddleware,
	}
}

func (c *configController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/config")
	h.Use(c.authMiddleware)
	h.Get("", c.Show)
	h.Patch("", c.Update)
}

func (c *configController) Show(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Current configuration", c.configService.Show()))
}

func (c *configController) Update(ctx *fiber.Ctx) error {
	var req dto.ConfigUpdateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Configuration updated", c.configService.Update(&req)))
}
