package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ctfpilot-be/internal/dto"
	"ctfpilot-be/internal/entity"
	"ctfpilot-be/internal/pkg/logger"
	"ctfpilot-be/internal/repository/specification"
	"ctfpilot-be/internal/repository/unitofwork"
	"ctfpilot-be/pkg/events"
	pktNats "ctfpilot-be/pkg/nats"

	"github.com/google/uuid"
)

const (
	analysisDurableName = "analysis-worker"
	stdoutTruncateLimit = 10000
)

type IAnalysisService interface {
	// Start subscribes to the work queue and processes queued jobs until the
	// connection closes.
	Start() error
	ProcessJob(ctx context.Context, jobId uuid.UUID) error
}

type analysisService struct {
	subscriber       *pktNats.Subscriber
	uowFactory       unitofwork.RepositoryFactory
	jobService       IJobService
	fileService      IFileService
	sandboxService   ISandboxService
	evidenceService  IEvidenceService
	reportService    IReportService
	publisherService IPublisherService
	logger           logger.ILogger
}

func NewAnalysisService(
	subscriber *pktNats.Subscriber,
	uowFactory unitofwork.RepositoryFactory,
	jobService IJobService,
	fileService IFileService,
	sandboxService ISandboxService,
	evidenceService IEvidenceService,
	reportService IReportService,
	publisherService IPublisherService,
	logger logger.ILogger,
) IAnalysisService {
	return &analysisService{
		subscriber:       subscriber,
		uowFactory:       uowFactory,
		jobService:       jobService,
		fileService:      fileService,
		sandboxService:   sandboxService,
		evidenceService:  evidenceService,
		reportService:    reportService,
		publisherService: publisherService,
		logger:           logger,
	}
}

func (s *analysisService) Start() error {
	subject := fmt.Sprintf("jobs.%s", events.TypeJobQueued)
	return s.subscriber.Subscribe(subject, analysisDurableName, func(ctx context.Context, event events.Event) error {
		raw, ok := event.Payload()["job_id"].(string)
		if !ok {
			s.logger.Error("analysis", "Queued event missing job_id", map[string]interface{}{
				"payload": event.Payload(),
			})
			return nil
		}
		jobId, err := uuid.Parse(raw)
		if err != nil {
			s.logger.Error("analysis", "Queued event has invalid job_id", map[string]interface{}{
				"job_id": raw,
			})
			return nil
		}
		return s.ProcessJob(ctx, jobId)
	})
}

func (s *analysisService) ProcessJob(ctx context.Context, jobId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	job, err := uow.JobRepository().FindOne(ctx, specification.ByID{ID: jobId})
	if err != nil {
		return err
	}
	if job == nil {
		s.logger.Warn("analysis", "Job vanished before analysis", map[string]interface{}{
			"job_id": jobId.String(),
		})
		return nil
	}

	if err := s.runAnalysis(ctx, uow, job); err != nil {
		failErr := s.jobService.UpdateStatus(ctx, jobId,
			entity.JobStatusFailed,
			fmt.Sprintf("Analysis failed: %v", err),
			err.Error(),
		)
		if failErr != nil {
			s.logger.Error("analysis", "Failed to mark job failed", map[string]interface{}{
				"job_id": jobId.String(),
				"error":  failErr.Error(),
			})
		}
		s.streamComplete(ctx, jobId, entity.JobStatusFailed, nil, err.Error())
		// The failure is recorded on the job, do not redeliver.
		return nil
	}
	return nil
}

func (s *analysisService) runAnalysis(ctx context.Context, uow unitofwork.UnitOfWork, job *entity.Job) error {
	jobId := job.Id

	if err := s.jobService.UpdateStatus(ctx, jobId, entity.JobStatusRunning, "Analysis started", ""); err != nil {
		return err
	}
	s.streamProgress(ctx, jobId, entity.JobStatusRunning, 5, "Analysis started")

	// A rerun replaces the previous attempt's results.
	if err := uow.CommandRepository().DeleteByJobId(ctx, jobId); err != nil {
		return err
	}
	if err := uow.FlagCandidateRepository().DeleteByJobId(ctx, jobId); err != nil {
		return err
	}

	playbook := SelectPlaybook(job.InputFiles)
	if err := s.jobService.AddTimelineEvent(ctx, jobId, fmt.Sprintf("Selected playbook: %s", playbook.Name)); err != nil {
		return err
	}
	s.streamLog(ctx, jobId, fmt.Sprintf("Selected playbook: %s", playbook.Name), "info")

	workingDir, err := s.fileService.WorkingDir(jobId)
	if err != nil {
		return err
	}

	results := make([]CommandResult, 0, len(playbook.Steps))
	commands := make([]*entity.Command, 0, len(playbook.Steps))

	for i, step := range playbook.Steps {
		args := expandPlaceholders(step.Arguments, workingDir)
		commandId := fmt.Sprintf("cmd_%03d", i)

		progress := 10 + (80*i)/len(playbook.Steps)
		s.streamProgress(ctx, jobId, entity.JobStatusRunning, progress, fmt.Sprintf("Running %s", step.Tool))

		result := s.sandboxService.Run(ctx, jobId, commandId, step.Tool, args, workingDir)
		results = append(results, result)

		s.streamLog(ctx, jobId, fmt.Sprintf("%s exited with code %d", step.Tool, result.ExitCode), logLevelFor(result))

		exitCode := result.ExitCode
		completedAt := result.CompletedAt
		commands = append(commands, &entity.Command{
			Id:              result.CommandID,
			JobId:           jobId,
			Tool:            result.Tool,
			Arguments:       result.Arguments,
			StartedAt:       result.StartedAt,
			CompletedAt:     &completedAt,
			ExitCode:        &exitCode,
			Stdout:          result.Stdout,
			Stderr:          result.Stderr,
			StdoutTruncated: truncate(result.Stdout, stdoutTruncateLimit),
			OutputHash:      result.OutputHash,
		})
	}

	if err := uow.CommandRepository().CreateBulk(ctx, commands); err != nil {
		return err
	}
	if err := s.setCommandsExecuted(ctx, uow, jobId, len(commands)); err != nil {
		return err
	}
	if err := s.jobService.AddTimelineEvent(ctx, jobId, fmt.Sprintf("Executed %d commands", len(results))); err != nil {
		return err
	}

	candidates := s.evidenceService.ExtractFlags(jobId, results, job.FlagFormat)
	if len(candidates) > 0 {
		stored := make([]*entity.FlagCandidate, 0, len(candidates))
		for i := range candidates {
			stored = append(stored, &candidates[i])
		}
		if err := uow.FlagCandidateRepository().CreateBulk(ctx, stored); err != nil {
			return err
		}
	}
	if err := s.jobService.AddTimelineEvent(ctx, jobId, fmt.Sprintf("Found %d flag candidates", len(candidates))); err != nil {
		return err
	}

	if err := s.evidenceService.SaveEvidence(jobId, results, candidates); err != nil {
		s.logger.Warn("analysis", "Failed to write evidence files", map[string]interface{}{
			"job_id": jobId.String(),
			"error":  err.Error(),
		})
	}

	if err := s.jobService.AddTimelineEvent(ctx, jobId, "Generating writeup..."); err != nil {
		return err
	}
	if err := s.reportService.Generate(jobId, job.Title, job.Description, playbook.Name, results, candidates); err != nil {
		s.logger.Warn("analysis", "Failed to write report", map[string]interface{}{
			"job_id": jobId.String(),
			"error":  err.Error(),
		})
	} else if err := s.jobService.AddTimelineEvent(ctx, jobId, "Writeup generated"); err != nil {
		return err
	}

	if err := s.jobService.UpdateStatus(ctx, jobId, entity.JobStatusCompleted, "Analysis completed successfully", ""); err != nil {
		return err
	}
	s.streamComplete(ctx, jobId, entity.JobStatusCompleted, candidates, "")

	s.logger.Info("analysis", "Job analysis finished", map[string]interface{}{
		"job_id":     jobId.String(),
		"commands":   len(results),
		"candidates": len(candidates),
	})
	return nil
}

func (s *analysisService) setCommandsExecuted(ctx context.Context, uow unitofwork.UnitOfWork, jobId uuid.UUID, count int) error {
	job, err := uow.JobRepository().FindOne(ctx, specification.ByID{ID: jobId})
	if err != nil || job == nil {
		return err
	}
	job.CommandsExecuted = count
	return uow.JobRepository().Update(ctx, job)
}

func (s *analysisService) streamProgress(ctx context.Context, jobId uuid.UUID, status string, progress int, message string) {
	s.stream(ctx, dto.JobStreamMessage{
		JobId:    jobId.String(),
		Kind:     dto.StreamKindProgress,
		Status:   status,
		Progress: progress,
		Message:  message,
	})
}

func (s *analysisService) streamLog(ctx context.Context, jobId uuid.UUID, entry, level string) {
	s.stream(ctx, dto.JobStreamMessage{
		JobId: jobId.String(),
		Kind:  dto.StreamKindLog,
		Entry: entry,
		Level: level,
	})
}

func (s *analysisService) streamComplete(ctx context.Context, jobId uuid.UUID, status string, candidates []entity.FlagCandidate, errorMessage string) {
	flags := make([]map[string]interface{}, 0, len(candidates))
	for _, c := range candidates {
		flags = append(flags, map[string]interface{}{
			"value":      c.Value,
			"confidence": c.Confidence,
			"source":     c.Source,
		})
	}
	s.stream(ctx, dto.JobStreamMessage{
		JobId:          jobId.String(),
		Kind:           dto.StreamKindComplete,
		Status:         status,
		FlagCandidates: flags,
		ErrorMessage:   errorMessage,
	})
}

func (s *analysisService) stream(ctx context.Context, msg dto.JobStreamMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Warn("analysis", "Failed to publish stream message", map[string]interface{}{
			"job_id": msg.JobId,
			"kind":   msg.Kind,
			"error":  err.Error(),
		})
	}
}

func logLevelFor(result CommandResult) string {
	if result.Failed || result.ExitCode != 0 {
		return "warning"
	}
	return "info"
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
