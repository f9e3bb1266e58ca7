package dto

import "time"

type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionInfoResponse struct {
	Authenticated bool       `json:"authenticated"`
	Mode          string     `json:"mode,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}
