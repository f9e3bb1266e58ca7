package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Upload   UploadConfig
	Sandbox  SandboxConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	DataDir            string
	RateLimitAPI       int
	RateLimitUploads   int
	EnableTLS          bool
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	AdminPassword     string
	AdminPasswordHash string
	JWTSecret         string
	SessionTimeoutSec int
	RequireAuth       bool
}

type UploadConfig struct {
	MaxSizeMB         int
	AllowedExtensions string
}

type SandboxConfig struct {
	Image       string
	TimeoutSec  int
	MemoryLimit string
	CPULimit    float64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:8000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			DataDir:            getEnv("DATA_DIR", "./data"),
			RateLimitAPI:       getEnvAsInt("RATE_LIMIT_API", 100),
			RateLimitUploads:   getEnvAsInt("RATE_LIMIT_UPLOADS", 10),
			EnableTLS:          getEnvAsBool("ENABLE_TLS", false),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			AdminPassword:     getEnv("ADMIN_PASSWORD", "changeme"),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			JWTSecret:         getEnv("JWT_SECRET", ""),
			SessionTimeoutSec: getEnvAsInt("SESSION_TIMEOUT_SECONDS", 3600),
			RequireAuth:       getEnvAsBool("REQUIRE_AUTH", true),
		},
		Upload: UploadConfig{
			MaxSizeMB:         getEnvAsInt("MAX_UPLOAD_SIZE_MB", 200),
			AllowedExtensions: getEnv("ALLOWED_EXTENSIONS", defaultAllowedExtensions),
		},
		Sandbox: SandboxConfig{
			Image:       getEnv("SANDBOX_IMAGE", "ctfpilot-sandbox:latest"),
			TimeoutSec:  getEnvAsInt("SANDBOX_TIMEOUT_SECONDS", 60),
			MemoryLimit: getEnv("SANDBOX_MEMORY_LIMIT", "512m"),
			CPULimit:    getEnvAsFloat("SANDBOX_CPU_LIMIT", 1.0),
		},
	}
}

const defaultAllowedExtensions = ".txt,.py,.c,.cpp,.h,.java,.js,.json,.xml,.html,.css,.md,.pdf,.png,.jpg,.jpeg,.gif,.zip,.tar,.gz,.pcap,.pcapng,.elf,.exe,.dll,.so,.bin"

// AllowedExtensionsList splits the comma-joined extension setting.
func (u UploadConfig) AllowedExtensionsList() []string {
	parts := strings.Split(u.AllowedExtensions, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// MaxSizeBytes converts the upload cap to bytes.
func (u UploadConfig) MaxSizeBytes() int64 {
	return int64(u.MaxSizeMB) * 1024 * 1024
}

// RunsDir is where per-job working directories live.
func (a AppConfig) RunsDir() string {
	return a.DataDir + "/runs"
}

// UploadsDir is where raw uploaded files are stored before extraction.
func (a AppConfig) UploadsDir() string {
	return a.DataDir + "/uploads"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
