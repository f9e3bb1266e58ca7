package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// allowedTools is the allowlist of analysis tools that may run inside the
// sandbox container. Anything not listed here is rejected before exec.
var allowedTools = []string{
	// Binary analysis
	"strings", "file", "readelf", "objdump", "nm", "size", "ldd", "checksec",
	// Hex/Binary viewing
	"xxd", "hexdump", "od",
	// Encoding/Decoding
	"base64", "base32", "openssl",
	// Image/Media forensics
	"exiftool", "identify", "convert", "steghide", "zsteg", "stegseek",
	"foremost", "binwalk",
	// PDF analysis
	"pdfinfo", "pdftotext", "pdfimages", "pdftk",
	// Network analysis
	"tshark", "tcpdump", "ssldump",
	// Archive handling
	"unzip", "zipinfo", "tar", "gzip", "gunzip", "bzip2", "xz", "7z",
	"unrar", "cabextract",
	// Text processing
	"head", "tail", "cat", "wc", "grep", "egrep", "awk", "gawk", "sed",
	"cut", "sort", "uniq", "tr", "rev",
	// File system
	"find", "ls", "stat",
	// Hashing
	"sha256sum", "sha1sum", "md5sum", "sha512sum", "cksum",
	// Python for scripting
	"python3",
	// Crypto analysis
	"john", "hashcat", "hash-identifier", "name-that-hash", "nth", "fcrackzip",
	// Memory/Disk forensics
	"volatility", "volatility3", "bulk_extractor", "photorec", "testdisk",
	// Reverse engineering
	"radare2", "r2", "rabin2", "rasm2", "rafind2", "rahash2", "r2pipe",
	// Decompiler
	"retdec-decompiler", "retdec-fileinfo", "retdec-unpacker",
	// ROP/Exploit tools
	"ropper", "ROPgadget", "one_gadget", "patchelf",
	// Debugging
	"gdb", "ltrace", "strace", "objcopy",
	// QR/Barcode
	"zbarimg", "zxing",
	// Image analysis
	"pngcheck", "pngcrush", "optipng",
	// Audio analysis
	"sox", "ffmpeg", "ffprobe",
	// Misc utilities
	"jq", "yq", "xmllint", "nc", "ncat", "dd", "split",
}

var allowedToolSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(allowedTools))
	for _, t := range allowedTools {
		set[t] = struct{}{}
	}
	return set
}()

// CommandResult holds the outcome of a single sandboxed command.
type CommandResult struct {
	CommandID   string
	Tool        string
	Arguments   []string
	ExitCode    int
	Stdout      string
	Stderr      string
	OutputHash  string
	Failed      bool
	StartedAt   time.Time
	CompletedAt time.Time
}

// CommandRunner executes a single tool invocation against a job workspace.
type CommandRunner interface {
	Run(ctx context.Context, jobId uuid.UUID, commandId string, tool string, arguments []string, workingDir string) CommandResult
}

type ISandboxService interface {
	CommandRunner
	IsToolAllowed(tool string) bool
	AllowedTools() []string
	RunPlaybook(ctx context.Context, jobId uuid.UUID, workingDir string, playbook Playbook) []CommandResult
}

type sandboxService struct {
	cfg    *config.Config
	logger logger.ILogger
}

func NewSandboxService(cfg *config.Config, logger logger.ILogger) ISandboxService {
	return &sandboxService{
		cfg:    cfg,
		logger: logger,
	}
}

func (s *sandboxService) AllowedTools() []string {
	out := make([]string, len(allowedTools))
	copy(out, allowedTools)
	return out
}

func (s *sandboxService) IsToolAllowed(tool string) bool {
	// Only the command name counts, not any path prefix.
	_, ok := allowedToolSet[filepath.Base(tool)]
	return ok
}

func (s *sandboxService) Run(ctx context.Context, jobId uuid.UUID, commandId string, tool string, arguments []string, workingDir string) CommandResult {
	result := CommandResult{
		CommandID: commandId,
		Tool:      tool,
		Arguments: arguments,
		StartedAt: time.Now().UTC(),
	}

	if !s.IsToolAllowed(tool) {
		result.ExitCode = 1
		result.Stderr = fmt.Sprintf("Tool not allowed: %s", tool)
		result.Failed = true
		result.CompletedAt = time.Now().UTC()
		return result
	}

	safeArgs := sanitizeArguments(arguments)
	result.Arguments = safeArgs

	timeout := time.Duration(s.cfg.Sandbox.TimeoutSec) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dockerArgs := []string{
		"run", "--rm",
		"--network", "none",
		"--read-only",
		"--user", "1000:1000",
		"--security-opt", "no-new-privileges",
		"--cap-drop", "ALL",
		"--memory", s.cfg.Sandbox.MemoryLimit,
		"--cpus", fmt.Sprintf("%g", s.cfg.Sandbox.CPULimit),
		"-v", fmt.Sprintf("%s:/workspace:ro", workingDir),
		"-w", "/workspace",
		s.cfg.Sandbox.Image,
		tool,
	}
	dockerArgs = append(dockerArgs, safeArgs...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, "docker", dockerArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result.CompletedAt = time.Now().UTC()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		result.ExitCode = 124
		result.Stderr = fmt.Sprintf("Command timed out after %ds", s.cfg.Sandbox.TimeoutSec)
		result.Failed = true
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = 1
			result.Stderr = fmt.Sprintf("Sandbox error: %v", err)
			result.Failed = true
		}
	default:
		result.ExitCode = 0
		sum := sha256.Sum256(stdout.Bytes())
		result.OutputHash = fmt.Sprintf("sha256:%x", sum)
	}

	s.logger.Debug("sandbox", "Command finished", map[string]interface{}{
		"job_id":     jobId.String(),
		"command_id": commandId,
		"tool":       tool,
		"exit_code":  result.ExitCode,
	})
	return result
}

func (s *sandboxService) RunPlaybook(ctx context.Context, jobId uuid.UUID, workingDir string, playbook Playbook) []CommandResult {
	results := make([]CommandResult, 0, len(playbook.Steps))

	for _, step := range playbook.Steps {
		args := expandPlaceholders(step.Arguments, workingDir)
		commandId := fmt.Sprintf("cmd_%03d", len(results))
		results = append(results, s.Run(ctx, jobId, commandId, step.Tool, args, workingDir))
	}
	return results
}

// expandPlaceholders replaces "{files}" with the names of the files in the
// working directory and drops any other unresolved placeholder.
func expandPlaceholders(arguments []string, workingDir string) []string {
	processed := make([]string, 0, len(arguments))
	for _, arg := range arguments {
		switch {
		case arg == "{files}":
			entries, err := os.ReadDir(workingDir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if !e.IsDir() {
					processed = append(processed, e.Name())
				}
			}
		case strings.HasPrefix(arg, "{") && strings.HasSuffix(arg, "}"):
			continue
		default:
			processed = append(processed, arg)
		}
	}
	return processed
}

// sanitizeArguments strips shell metacharacters. Options keep alphanumerics
// plus -_=. and filenames are reduced to their base name with -_. allowed.
func sanitizeArguments(arguments []string) []string {
	safeArgs := make([]string, 0, len(arguments))

	for _, arg := range arguments {
		var safe string
		if strings.HasPrefix(arg, "-") {
			safe = keepChars(arg, "-_=.")
		} else {
			safe = keepChars(filepath.Base(arg), "-_.")
		}
		if safe != "" {
			safeArgs = append(safeArgs, safe)
		}
	}
	return safeArgs
}

func keepChars(s string, extra string) string {
	var b strings.Builder
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || strings.ContainsRune(extra, c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}
