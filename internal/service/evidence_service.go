package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/entity"

	"github.com/google/uuid"
)

var defaultFlagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`CTF\{[^}]+\}`),
	regexp.MustCompile(`FLAG\{[^}]+\}`),
	regexp.MustCompile(`flag\{[^}]+\}`),
	regexp.MustCompile(`ctf\{[^}]+\}`),
}

var (
	flagStructure = regexp.MustCompile(`^[A-Z]+\{[a-zA-Z0-9_-]+\}$`)
	innerValue    = regexp.MustCompile(`\{([^}]+)\}`)
)

// highConfidenceTools produce decoded or plain-text output, so a flag found
// there is more trustworthy than one pulled out of raw bytes.
var highConfidenceTools = map[string]struct{}{
	"strings":   {},
	"base64":    {},
	"pdftotext": {},
}

type IEvidenceService interface {
	ExtractFlags(jobId uuid.UUID, results []CommandResult, customPattern string) []entity.FlagCandidate
	SaveEvidence(jobId uuid.UUID, results []CommandResult, candidates []entity.FlagCandidate) error
	BuildEvidencePack(jobId uuid.UUID, results []CommandResult, candidates []entity.FlagCandidate) map[string]interface{}
}

type evidenceService struct {
	cfg *config.Config
}

func NewEvidenceService(cfg *config.Config) IEvidenceService {
	return &evidenceService{cfg: cfg}
}

func (s *evidenceService) ExtractFlags(jobId uuid.UUID, results []CommandResult, customPattern string) []entity.FlagCandidate {
	candidates := []entity.FlagCandidate{}
	seen := map[string]struct{}{}

	patterns := []*regexp.Regexp{}
	if customPattern != "" {
		if p, err := regexp.Compile("(?i)" + customPattern); err == nil {
			patterns = append(patterns, p)
		}
	}
	patterns = append(patterns, defaultFlagPatterns...)

	for _, result := range results {
		for _, pattern := range patterns {
			for _, match := range pattern.FindAllString(result.Stdout, -1) {
				if _, dup := seen[match]; dup {
					continue
				}
				seen[match] = struct{}{}

				candidates = append(candidates, entity.FlagCandidate{
					Id:         uuid.New(),
					JobId:      jobId,
					Value:      match,
					Confidence: calculateConfidence(match, result.Tool, result.Stdout),
					Source:     result.Tool + " output",
					EvidenceId: result.CommandID,
					Context:    extractContext(result.Stdout, match, 2),
				})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates
}

func calculateConfidence(match string, tool string, output string) float64 {
	confidence := 0.5

	if _, ok := highConfidenceTools[tool]; ok {
		confidence += 0.2
	}
	if flagStructure.MatchString(match) {
		confidence += 0.2
	}

	if inner := innerValue.FindStringSubmatch(match); inner != nil {
		switch n := len(inner[1]); {
		case n < 5:
			confidence -= 0.2
		case n > 100:
			confidence -= 0.3
		}
	}

	// Penalize matches buried in random-looking binary noise.
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, match) {
			continue
		}
		readable := 0
		for _, c := range line {
			if unicode.IsLetter(c) || unicode.IsDigit(c) || unicode.IsSpace(c) {
				readable++
			}
		}
		total := len([]rune(line))
		if total == 0 {
			total = 1
		}
		if float64(readable)/float64(total) < 0.5 {
			confidence -= 0.2
		}
		break
	}

	if confidence < 0.1 {
		return 0.1
	}
	if confidence > 1.0 {
		return 1.0
	}
	return confidence
}

func extractContext(output string, match string, contextLines int) string {
	lines := strings.Split(output, "\n")

	for i, line := range lines {
		if !strings.Contains(line, match) {
			continue
		}
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := i + contextLines + 1
		if end > len(lines) {
			end = len(lines)
		}
		context := strings.Join(lines[start:end], "\n")
		if len(context) > 500 {
			context = context[:500] + "..."
		}
		return context
	}
	return ""
}

func (s *evidenceService) SaveEvidence(jobId uuid.UUID, results []CommandResult, candidates []entity.FlagCandidate) error {
	jobDir := filepath.Join(s.cfg.App.RunsDir(), jobId.String())
	if err := os.MkdirAll(filepath.Join(jobDir, "output"), 0o700); err != nil {
		return err
	}

	evidence, err := json.MarshalIndent(map[string]interface{}{
		"commands":       results,
		"total_commands": len(results),
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(jobDir, "evidence.json"), evidence, 0o600); err != nil {
		return err
	}

	flags, err := json.MarshalIndent(map[string]interface{}{
		"candidates":       candidates,
		"total_candidates": len(candidates),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(jobDir, "flags.json"), flags, 0o600)
}

func (s *evidenceService) BuildEvidencePack(jobId uuid.UUID, results []CommandResult, candidates []entity.FlagCandidate) map[string]interface{} {
	truncated := make([]map[string]interface{}, 0, len(results))
	commandIds := make([]string, 0, len(results))

	for _, cmd := range results {
		stdout := cmd.Stdout
		if len(stdout) > 2000 {
			stdout = stdout[:2000]
		}
		stderr := cmd.Stderr
		if len(stderr) > 500 {
			stderr = stderr[:500]
		}
		truncated = append(truncated, map[string]interface{}{
			"command_id":     cmd.CommandID,
			"tool":           cmd.Tool,
			"arguments":      cmd.Arguments,
			"exit_code":      cmd.ExitCode,
			"stdout_preview": stdout,
			"stderr_preview": stderr,
		})
		commandIds = append(commandIds, cmd.CommandID)
	}

	return map[string]interface{}{
		"commands":    truncated,
		"candidates":  candidates,
		"command_ids": commandIds,
	}
}
