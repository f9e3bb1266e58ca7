package service

import (
	"sync"

	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/dto"
)

type IConfigService interface {
	Show() *dto.ConfigResponse
	Update(req *dto.ConfigUpdateRequest) *dto.ConfigResponse
}

// configService exposes a small set of tunables. Updates are runtime only
// and are lost on restart.
type configService struct {
	cfg     *config.Config
	sandbox ISandboxService
	mu      sync.Mutex
}

func NewConfigService(cfg *config.Config, sandbox ISandboxService) IConfigService {
	return &configService{
		cfg:     cfg,
		sandbox: sandbox,
	}
}

func (s *configService) Show() *dto.ConfigResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *configService) Update(req *dto.ConfigUpdateRequest) *dto.ConfigResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.MaxUploadSizeMB > 0 {
		s.cfg.Upload.MaxSizeMB = req.MaxUploadSizeMB
	}
	if req.SandboxTimeoutSeconds > 0 {
		s.cfg.Sandbox.TimeoutSec = req.SandboxTimeoutSeconds
	}
	return s.snapshot()
}

func (s *configService) snapshot() *dto.ConfigResponse {
	return &dto.ConfigResponse{
		MaxUploadSizeMB:       s.cfg.Upload.MaxSizeMB,
		SandboxTimeoutSeconds: s.cfg.Sandbox.TimeoutSec,
		AllowedExtensions:     s.cfg.Upload.AllowedExtensionsList(),
		AllowedTools:          s.sandbox.AllowedTools(),
	}
}
