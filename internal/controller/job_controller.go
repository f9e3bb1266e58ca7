package controller

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"ctfpilot-be/internal/dto"
	"ctfpilot-be/internal/pkg/serverutils"
	"ctfpilot-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IJobController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Run(ctx *fiber.Ctx) error
	Commands(ctx *fiber.Ctx) error
	Artifacts(ctx *fiber.Ctx) error
	Files(ctx *fiber.Ctx) error
	Terminal(ctx *fiber.Ctx) error
	DownloadReport(ctx *fiber.Ctx) error
	DownloadBundle(ctx *fiber.Ctx) error
}

type jobController struct {
	jobService     service.IJobService
	fileService    service.IFileService
	authMiddleware fiber.Handler
}

func NewJobController(jobService service.IJobService, fileService service.IFileService, authMiddleware fiber.Handler) IJobController {
	return &jobController{
		jobService:     jobService,
		fileService:    fileService,
		authMiddleware: authMiddleware,
	}
}

func (c *jobController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/jobs")
	h.Use(c.authMiddleware)
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Post(":id/run", c.Run)
	h.Get(":id/commands", c.Commands)
	h.Get(":id/artifacts", c.Artifacts)
	h.Get(":id/files", c.Files)
	h.Post(":id/terminal", c.Terminal)
	h.Get(":id/download/report", c.DownloadReport)
	h.Get(":id/download/bundle", c.DownloadBundle)
}

func (c *jobController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateJobRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "Invalid form data")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "Multipart form required")
	}
	files := form.File["files"]

	res, err := c.jobService.Create(ctx.Context(), &req, files)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Job created", res))
}

func (c *jobController) List(ctx *fiber.Ctx) error {
	status := ctx.Query("status")
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))

	res, err := c.jobService.List(ctx.Context(), status, limit, offset)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list jobs", res))
}

func (c *jobController) Show(ctx *fiber.Ctx) error {
	id, err := parseJobId(ctx)
	if err != nil {
		return err
	}

	res, err := c.jobService.Show(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show job", res))
}

func (c *jobController) Run(ctx *fiber.Ctx) error {
	id, err := parseJobId(ctx)
	if err != nil {
		return err
	}

	res, err := c.jobService.Run(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Job queued", res))
}

func (c *jobController) Commands(ctx *fiber.Ctx) error {
	id, err := parseJobId(ctx)
	if err != nil {
		return err
	}

	res, err := c.jobService.Commands(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list commands", res))
}

func (c *jobController) Artifacts(ctx *fiber.Ctx) error {
	id, err := parseJobId(ctx)
	if err != nil {
		return err
	}

	res, err := c.jobService.Artifacts(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list artifacts", res))
}

func (c *jobController) Files(ctx *fiber.Ctx) error {
	id, err := parseJobId(ctx)
	if err != nil {
		return err
	}

	res, err := c.jobService.Files(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list files", res))
}

func (c *jobController) Terminal(ctx *fiber.Ctx) error {
	id, err := parseJobId(ctx)
	if err != nil {
		return err
	}

	var req dto.TerminalCommandRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.jobService.Terminal(ctx.Context(), id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *jobController) DownloadReport(ctx *fiber.Ctx) error {
	id, err := parseJobId(ctx)
	if err != nil {
		return err
	}

	reportPath := c.fileService.ReportPath(id)
	if _, err := os.Stat(reportPath); err != nil {
		return serverutils.NewApiError(fiber.StatusNotFound, "Report not found")
	}

	ctx.Set(fiber.HeaderContentType, "text/markdown")
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=writeup_%s.md`, id))
	return ctx.SendFile(reportPath)
}

func (c *jobController) DownloadBundle(ctx *fiber.Ctx) error {
	id, err := parseJobId(ctx)
	if err != nil {
		return err
	}

	jobDir := c.fileService.JobDir(id)
	if _, err := os.Stat(jobDir); err != nil {
		return serverutils.NewApiError(fiber.StatusNotFound, "Job artifacts not found")
	}

	ctx.Set(fiber.HeaderContentType, "application/zip")
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=job_%s_bundle.zip`, id))

	zw := zip.NewWriter(ctx.Response().BodyWriter())
	defer zw.Close()

	return filepath.Walk(jobDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(jobDir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
}

func parseJobId(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, serverutils.NewApiError(fiber.StatusBadRequest, "Invalid job id")
	}
	return id, nil
}
