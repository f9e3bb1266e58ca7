package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"time"

	"ctfpilot-be/internal/dto"
	"ctfpilot-be/internal/entity"
	"ctfpilot-be/internal/pkg/logger"
	"ctfpilot-be/internal/pkg/serverutils"
	"ctfpilot-be/internal/repository/specification"
	"ctfpilot-be/internal/repository/unitofwork"
	"ctfpilot-be/internal/websocket"
	"ctfpilot-be/pkg/events"
	pktNats "ctfpilot-be/pkg/nats"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultJobListLimit = 50

type IJobService interface {
	Create(ctx context.Context, req *dto.CreateJobRequest, files []*multipart.FileHeader) (*dto.JobSummaryResponse, error)
	List(ctx context.Context, status string, limit, offset int) (*dto.JobListResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.JobDetailResponse, error)
	Run(ctx context.Context, id uuid.UUID) (*dto.RunJobResponse, error)
	Commands(ctx context.Context, id uuid.UUID) (*dto.CommandListResponse, error)
	Artifacts(ctx context.Context, id uuid.UUID) (*dto.ArtifactListResponse, error)
	Files(ctx context.Context, id uuid.UUID) (*dto.JobFilesResponse, error)
	Terminal(ctx context.Context, id uuid.UUID, req *dto.TerminalCommandRequest) (*dto.TerminalCommandResponse, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status, event, errorMessage string) error
	AddTimelineEvent(ctx context.Context, id uuid.UUID, event string) error
}

type jobService struct {
	uowFactory     unitofwork.RepositoryFactory
	fileService    IFileService
	sandboxService ISandboxService
	eventPublisher *pktNats.Publisher
	hub            *websocket.Hub
	logger         logger.ILogger
}

func NewJobService(
	uowFactory unitofwork.RepositoryFactory,
	fileService IFileService,
	sandboxService ISandboxService,
	eventPublisher *pktNats.Publisher,
	hub *websocket.Hub,
	logger logger.ILogger,
) IJobService {
	return &jobService{
		uowFactory:     uowFactory,
		fileService:    fileService,
		sandboxService: sandboxService,
		eventPublisher: eventPublisher,
		hub:            hub,
		logger:         logger,
	}
}

func (s *jobService) Create(ctx context.Context, req *dto.CreateJobRequest, files []*multipart.FileHeader) (*dto.JobSummaryResponse, error) {
	if len(files) == 0 {
		return nil, serverutils.NewApiError(fiber.StatusBadRequest, "At least one file is required")
	}
	for _, file := range files {
		if err := s.fileService.ValidateUpload(file); err != nil {
			return nil, err
		}
	}

	flagFormat := req.FlagFormat
	if flagFormat == "" {
		flagFormat = entity.DefaultFlagFormat
	}

	job := entity.Job{
		Id:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		FlagFormat:  flagFormat,
		Status:      entity.JobStatusPending,
		CreatedAt:   time.Now().UTC(),
		Timeline: []entity.TimelineEvent{
			{Timestamp: time.Now().UTC(), Event: "Job created"},
		},
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}

	if err := uow.JobRepository().Create(ctx, &job); err != nil {
		_ = uow.Rollback()
		return nil, err
	}

	paths, err := s.fileService.SaveUploads(job.Id, files)
	if err != nil {
		_ = uow.Rollback()
		return nil, serverutils.NewApiError(fiber.StatusInternalServerError, fmt.Sprintf("Failed to save files: %v", err))
	}

	job.InputFiles = paths
	if err := uow.JobRepository().Update(ctx, &job); err != nil {
		_ = uow.Rollback()
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("job", "Job created", map[string]interface{}{
		"job_id": job.Id.String(),
		"files":  len(paths),
	})
	return toJobSummary(&job), nil
}

func (s *jobService) List(ctx context.Context, status string, limit, offset int) (*dto.JobListResponse, error) {
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	if offset < 0 {
		offset = 0
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	filters := []specification.Specification{}
	if status != "" {
		filters = append(filters, specification.ByStatus{Status: status})
	}

	total, err := uow.JobRepository().Count(ctx, filters...)
	if err != nil {
		return nil, err
	}

	specs := append(filters,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	jobs, err := uow.JobRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	summaries := make([]*dto.JobSummaryResponse, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, toJobSummary(job))
	}

	return &dto.JobListResponse{
		Jobs:   summaries,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

func (s *jobService) Show(ctx context.Context, id uuid.UUID) (*dto.JobDetailResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	job, err := s.findJob(ctx, uow, id)
	if err != nil {
		return nil, err
	}

	candidates, err := uow.FlagCandidateRepository().FindAll(ctx, specification.ByJobID{JobID: id})
	if err != nil {
		return nil, err
	}

	detail := &dto.JobDetailResponse{
		Id:               job.Id,
		Title:            job.Title,
		Description:      job.Description,
		FlagFormat:       job.FlagFormat,
		Status:           job.Status,
		CreatedAt:        job.CreatedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
		InputFiles:       job.InputFiles,
		CommandsExecuted: job.CommandsExecuted,
		ErrorMessage:     job.ErrorMessage,
		Timeline:         job.Timeline,
		FlagCandidates:   make([]dto.FlagCandidateResponse, 0, len(candidates)),
	}
	for _, c := range candidates {
		detail.FlagCandidates = append(detail.FlagCandidates, dto.FlagCandidateResponse{
			Id:         c.Id,
			Value:      c.Value,
			Confidence: c.Confidence,
			Source:     c.Source,
			EvidenceId: c.EvidenceId,
			Context:    c.Context,
		})
	}
	return detail, nil
}

func (s *jobService) Run(ctx context.Context, id uuid.UUID) (*dto.RunJobResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	job, err := s.findJob(ctx, uow, id)
	if err != nil {
		return nil, err
	}
	if !job.CanRun() {
		return nil, serverutils.NewApiError(
			fiber.StatusBadRequest,
			fmt.Sprintf("Job cannot be run in %s status", job.Status),
		)
	}

	job.Status = entity.JobStatusQueued
	job.ErrorMessage = ""
	job.Timeline = append(job.Timeline, entity.TimelineEvent{
		Timestamp: time.Now().UTC(),
		Event:     "Job queued for execution",
	})
	if err := uow.JobRepository().Update(ctx, job); err != nil {
		return nil, err
	}

	event := events.NewJobEvent(events.TypeJobQueued, id.String(), nil)
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("job", "Failed to enqueue analysis", map[string]interface{}{
			"job_id": id.String(),
			"error":  err.Error(),
		})
		return nil, serverutils.NewApiError(fiber.StatusInternalServerError, "Failed to queue job")
	}

	s.hub.BroadcastJobProgress(id.String(), entity.JobStatusQueued, 0, "Job queued for execution")

	return &dto.RunJobResponse{
		Message: "Job queued for execution",
		Status:  entity.JobStatusQueued,
	}, nil
}

func (s *jobService) Commands(ctx context.Context, id uuid.UUID) (*dto.CommandListResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	commands, err := uow.CommandRepository().FindAll(ctx,
		specification.ByJobID{JobID: id},
		specification.OrderByStarted{},
	)
	if err != nil {
		return nil, err
	}

	resp := &dto.CommandListResponse{Commands: make([]*dto.CommandResponse, 0, len(commands))}
	for _, cmd := range commands {
		resp.Commands = append(resp.Commands, &dto.CommandResponse{
			Id:              cmd.Id,
			Tool:            cmd.Tool,
			Arguments:       cmd.Arguments,
			StartedAt:       cmd.StartedAt,
			CompletedAt:     cmd.CompletedAt,
			ExitCode:        cmd.ExitCode,
			StdoutTruncated: cmd.StdoutTruncated,
			Stderr:          cmd.Stderr,
			OutputHash:      cmd.OutputHash,
		})
	}
	return resp, nil
}

func (s *jobService) Artifacts(ctx context.Context, id uuid.UUID) (*dto.ArtifactListResponse, error) {
	artifacts, err := s.fileService.ListArtifacts(id)
	if err != nil {
		return nil, err
	}
	return &dto.ArtifactListResponse{Artifacts: artifacts}, nil
}

func (s *jobService) Files(ctx context.Context, id uuid.UUID) (*dto.JobFilesResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.findJob(ctx, uow, id); err != nil {
		return nil, err
	}

	files, err := s.fileService.ListJobFiles(id)
	if err != nil {
		return nil, err
	}
	return &dto.JobFilesResponse{Files: files}, nil
}

func (s *jobService) Terminal(ctx context.Context, id uuid.UUID, req *dto.TerminalCommandRequest) (*dto.TerminalCommandResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.findJob(ctx, uow, id); err != nil {
		return nil, err
	}

	workingDir, err := s.fileService.WorkingDir(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	commandId := fmt.Sprintf("terminal_%d", start.Unix())
	result := s.sandboxService.Run(ctx, id, commandId, req.Tool, req.Arguments, workingDir)

	resp := &dto.TerminalCommandResponse{
		ExitCode:   result.ExitCode,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
		DurationMs: float64(time.Since(start)) / float64(time.Millisecond),
	}
	if result.Failed {
		resp.Error = result.Stderr
	}
	return resp, nil
}

// UpdateStatus moves the job to a new state, stamps started/completed times
// and appends a timeline event when one is given.
func (s *jobService) UpdateStatus(ctx context.Context, id uuid.UUID, status, event, errorMessage string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	job, err := uow.JobRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil || job == nil {
		return err
	}

	job.Status = status
	now := time.Now().UTC()

	if status == entity.JobStatusRunning && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status == entity.JobStatusCompleted || status == entity.JobStatusFailed {
		job.CompletedAt = &now
	}
	if errorMessage != "" {
		job.ErrorMessage = errorMessage
	}
	if event != "" {
		job.Timeline = append(job.Timeline, entity.TimelineEvent{Timestamp: now, Event: event})
	}

	return uow.JobRepository().Update(ctx, job)
}

func (s *jobService) AddTimelineEvent(ctx context.Context, id uuid.UUID, event string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	job, err := uow.JobRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil || job == nil {
		return err
	}

	job.Timeline = append(job.Timeline, entity.TimelineEvent{
		Timestamp: time.Now().UTC(),
		Event:     event,
	})
	return uow.JobRepository().Update(ctx, job)
}

func (s *jobService) findJob(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID) (*entity.Job, error) {
	job, err := uow.JobRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, serverutils.NewApiError(fiber.StatusNotFound, "Job not found")
	}
	return job, nil
}

func toJobSummary(job *entity.Job) *dto.JobSummaryResponse {
	return &dto.JobSummaryResponse{
		Id:               job.Id,
		Title:            job.Title,
		Status:           job.Status,
		CreatedAt:        job.CreatedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
		InputFiles:       job.InputFiles,
		CommandsExecuted: job.CommandsExecuted,
	}
}
