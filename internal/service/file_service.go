package service

import (
	"archive/zip"
	"crypto/sha256"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/dto"
	"ctfpilot-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// artifactHashLimit caps the size of files we hash when listing artifacts.
const artifactHashLimit = 10 * 1024 * 1024

var dangerousFilenamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\./`),       // Path traversal
	regexp.MustCompile(`\.\.\\`),      // Windows path traversal
	regexp.MustCompile(`^/`),          // Absolute paths
	regexp.MustCompile(`^[A-Za-z]:`),  // Windows absolute paths
	regexp.MustCompile(`[\x00-\x1f]`), // Control characters
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w\-.]`)

type IFileService interface {
	SanitizeFilename(name string) (string, error)
	ValidateUpload(file *multipart.FileHeader) error
	SaveUploads(jobID uuid.UUID, files []*multipart.FileHeader) ([]string, error)
	JobDir(jobID uuid.UUID) string
	ReportPath(jobID uuid.UUID) string
	WorkingDir(jobID uuid.UUID) (string, error)
	ListArtifacts(jobID uuid.UUID) ([]dto.ArtifactInfo, error)
	ListJobFiles(jobID uuid.UUID) ([]string, error)
}

type fileService struct {
	cfg *config.Config
}

func NewFileService(cfg *config.Config) IFileService {
	return &fileService{cfg: cfg}
}

// SanitizeFilename strips path components and problematic characters so an
// uploaded name can never escape the job directory.
func (s *fileService) SanitizeFilename(name string) (string, error) {
	if name == "" {
		return "", serverutils.NewApiError(fiber.StatusBadRequest, "Filename is required")
	}

	for _, pattern := range dangerousFilenamePatterns {
		if pattern.MatchString(name) {
			return "", serverutils.NewApiError(fiber.StatusBadRequest, fmt.Sprintf("Dangerous pattern in filename: %s", name))
		}
	}

	base := filepath.Base(name)
	safe := unsafeFilenameChars.ReplaceAllString(base, "_")

	// Prevent hidden files
	safe = strings.TrimLeft(safe, ".")

	if safe == "" {
		return "", serverutils.NewApiError(fiber.StatusBadRequest, "Invalid filename")
	}

	if len(safe) > 200 {
		ext := filepath.Ext(safe)
		stem := strings.TrimSuffix(safe, ext)
		if len(stem) > 190 {
			stem = stem[:190]
		}
		safe = stem + ext
	}

	return safe, nil
}

func (s *fileService) ValidateUpload(file *multipart.FileHeader) error {
	safe, err := s.SanitizeFilename(file.Filename)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(safe))
	allowed := false
	for _, e := range s.cfg.Upload.AllowedExtensionsList() {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return serverutils.NewApiError(fiber.StatusBadRequest, fmt.Sprintf("File type not allowed: %s", ext))
	}

	if file.Size > s.cfg.Upload.MaxSizeBytes() {
		return serverutils.NewApiError(fiber.StatusBadRequest,
			fmt.Sprintf("File too large. Maximum size: %dMB", s.cfg.Upload.MaxSizeMB))
	}

	return nil
}

// SaveUploads writes validated files into <runs>/<job>/input and expands
// any zip archives into <runs>/<job>/extracted. Returns the stored names.
func (s *fileService) SaveUploads(jobID uuid.UUID, files []*multipart.FileHeader) ([]string, error) {
	inputDir := filepath.Join(s.JobDir(jobID), "input")
	if err := os.MkdirAll(inputDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create input dir: %w", err)
	}

	saved := make([]string, 0, len(files))

	for _, file := range files {
		safe, err := s.SanitizeFilename(file.Filename)
		if err != nil {
			return nil, err
		}

		if err := s.writeUpload(file, filepath.Join(inputDir, safe)); err != nil {
			return nil, err
		}
		saved = append(saved, safe)

		if strings.HasSuffix(safe, ".zip") {
			if err := s.safeExtractZip(filepath.Join(inputDir, safe), filepath.Join(s.JobDir(jobID), "extracted")); err != nil {
				return nil, err
			}
		}
	}

	return saved, nil
}

func (s *fileService) writeUpload(file *multipart.FileHeader, target string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// safeExtractZip expands an archive while rejecting zip-slip paths and
// entries larger than the upload cap.
func (s *fileService) safeExtractZip(zipPath, dest string) error {
	if err := os.MkdirAll(dest, 0o700); err != nil {
		return err
	}

	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return err
	}

	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "Corrupt zip archive")
	}
	defer reader.Close()

	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}

		safe, err := s.SanitizeFilename(filepath.Base(member.Name))
		if err != nil {
			continue
		}

		target := filepath.Join(destAbs, safe)
		if !strings.HasPrefix(target, destAbs+string(os.PathSeparator)) {
			return serverutils.NewApiError(fiber.StatusBadRequest,
				fmt.Sprintf("Path traversal detected in zip: %s", member.Name))
		}

		if member.UncompressedSize64 > uint64(s.cfg.Upload.MaxSizeBytes()) {
			return serverutils.NewApiError(fiber.StatusBadRequest,
				fmt.Sprintf("Extracted file too large: %s", member.Name))
		}

		if err := s.extractMember(member, target); err != nil {
			return err
		}
	}

	return nil
}

func (s *fileService) extractMember(member *zip.File, target string) error {
	src, err := member.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip entry: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create extracted file: %w", err)
	}
	defer dst.Close()

	// LimitReader backs up the declared-size check against lying headers.
	if _, err := io.Copy(dst, io.LimitReader(src, s.cfg.Upload.MaxSizeBytes()+1)); err != nil {
		return fmt.Errorf("failed to extract file: %w", err)
	}

	return nil
}

func (s *fileService) JobDir(jobID uuid.UUID) string {
	return filepath.Join(s.cfg.App.RunsDir(), jobID.String())
}

func (s *fileService) ReportPath(jobID uuid.UUID) string {
	return filepath.Join(s.JobDir(jobID), "report.md")
}

// WorkingDir prefers the extracted directory when the archive expansion
// produced files, falling back to the raw input directory.
func (s *fileService) WorkingDir(jobID uuid.UUID) (string, error) {
	extractedDir := filepath.Join(s.JobDir(jobID), "extracted")
	if entries, err := os.ReadDir(extractedDir); err == nil && len(entries) > 0 {
		return extractedDir, nil
	}

	inputDir := filepath.Join(s.JobDir(jobID), "input")
	if _, err := os.Stat(inputDir); err != nil {
		return "", serverutils.NewApiError(fiber.StatusBadRequest, "No files found for this job")
	}

	return inputDir, nil
}

func (s *fileService) ListArtifacts(jobID uuid.UUID) ([]dto.ArtifactInfo, error) {
	jobDir := s.JobDir(jobID)
	artifacts := make([]dto.ArtifactInfo, 0)

	if _, err := os.Stat(jobDir); os.IsNotExist(err) {
		return artifacts, nil
	}

	err := filepath.Walk(jobDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		rel, err := filepath.Rel(jobDir, path)
		if err != nil {
			return err
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		var hash string
		if info.Size() < artifactHashLimit {
			if content, err := os.ReadFile(path); err == nil {
				hash = fmt.Sprintf("sha256:%x", sha256.Sum256(content))
			}
		}

		artifacts = append(artifacts, dto.ArtifactInfo{
			Path: rel,
			Size: info.Size(),
			Type: mimeType,
			Hash: hash,
		})
		return nil
	})

	return artifacts, err
}

// ListJobFiles reports the workspace contents: input files by bare name,
// extracted files prefixed with extracted/.
func (s *fileService) ListJobFiles(jobID uuid.UUID) ([]string, error) {
	files := make([]string, 0)

	inputDir := filepath.Join(s.JobDir(jobID), "input")
	if entries, err := os.ReadDir(inputDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				files = append(files, entry.Name())
			}
		}
	}

	extractedDir := filepath.Join(s.JobDir(jobID), "extracted")
	if _, err := os.Stat(extractedDir); err == nil {
		err := filepath.Walk(extractedDir, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}
			rel, err := filepath.Rel(extractedDir, path)
			if err != nil {
				return err
			}
			files = append(files, "extracted/"+filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}
