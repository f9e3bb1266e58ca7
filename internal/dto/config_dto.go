package dto

type ConfigResponse struct {
	MaxUploadSizeMB       int      `json:"max_upload_size_mb"`
	SandboxTimeoutSeconds int      `json:"sandbox_timeout_seconds"`
	AllowedExtensions     []string `json:"allowed_extensions"`
	AllowedTools          []string `json:"allowed_tools"`
}

type ConfigUpdateRequest struct {
	MaxUploadSizeMB       int `json:"max_upload_size_mb" validate:"omitempty,min=1,max=1024"`
	SandboxTimeoutSeconds int `json:"sandbox_timeout_seconds" validate:"omitempty,min=1,max=600"`
}
