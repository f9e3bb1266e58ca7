package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/entity"

	"github.com/google/uuid"
)

const reportPreviewLimit = 2000

type IReportService interface {
	// Generate renders the analysis writeup to report.md in the job directory.
	Generate(jobId uuid.UUID, title, description, playbookName string, results []CommandResult, candidates []entity.FlagCandidate) error
}

type reportService struct {
	cfg *config.Config
}

func NewReportService(cfg *config.Config) IReportService {
	return &reportService{cfg: cfg}
}

func (s *reportService) Generate(jobId uuid.UUID, title, description, playbookName string, results []CommandResult, candidates []entity.FlagCandidate) error {
	jobDir := filepath.Join(s.cfg.App.RunsDir(), jobId.String())
	if err := os.MkdirAll(jobDir, 0o700); err != nil {
		return err
	}
	report := renderReport(title, description, playbookName, results, candidates)
	return os.WriteFile(filepath.Join(jobDir, "report.md"), []byte(report), 0o600)
}

// renderReport builds the writeup purely from recorded evidence. Every claim
// in the document cites a command id that actually ran.
func renderReport(title, description, playbookName string, results []CommandResult, candidates []entity.FlagCandidate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Writeup: %s\n\n", title)

	b.WriteString("## Overview\n\n")
	if strings.TrimSpace(description) != "" {
		b.WriteString(strings.TrimSpace(description))
		b.WriteString("\n\n")
	} else {
		b.WriteString("No challenge description provided.\n\n")
	}
	fmt.Fprintf(&b, "Playbook: `%s`. Commands executed: %d.\n\n", playbookName, len(results))

	b.WriteString("## Analysis Steps\n\n")
	if len(results) == 0 {
		b.WriteString("No commands were executed.\n\n")
	}
	for _, cmd := range results {
		fmt.Fprintf(&b, "### %s: %s\n\n", cmd.CommandID, cmd.Tool)
		fmt.Fprintf(&b, "```\n$ %s %s\n```\n\n", cmd.Tool, strings.Join(cmd.Arguments, " "))
		fmt.Fprintf(&b, "Exit code: %d\n\n", cmd.ExitCode)
		if preview := previewOutput(cmd.Stdout); preview != "" {
			fmt.Fprintf(&b, "Output (truncated):\n\n```\n%s\n```\n\n", preview)
		} else {
			b.WriteString("No output.\n\n")
		}
		if cmd.Stderr != "" {
			fmt.Fprintf(&b, "Stderr:\n\n```\n%s\n```\n\n", previewOutput(cmd.Stderr))
		}
	}

	b.WriteString("## Flag Candidates\n\n")
	if len(candidates) == 0 {
		b.WriteString("No flag candidates were found. Review the command outputs above for leads.\n\n")
	} else {
		for i, c := range candidates {
			fmt.Fprintf(&b, "%d. **%s**\n", i+1, c.Value)
			fmt.Fprintf(&b, "   - Confidence: %.2f\n", c.Confidence)
			fmt.Fprintf(&b, "   - Source: %s\n", c.Source)
			fmt.Fprintf(&b, "   - Evidence: %s\n", c.EvidenceId)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Reproduction Steps\n\n")
	if len(results) == 0 {
		b.WriteString("No steps to reproduce.\n")
	} else {
		for i, cmd := range results {
			fmt.Fprintf(&b, "%d. `%s %s` (%s)\n", i+1, cmd.Tool, strings.Join(cmd.Arguments, " "), cmd.CommandID)
		}
	}

	return b.String()
}

func previewOutput(output string) string {
	output = strings.TrimRight(output, "\n")
	if len(output) > reportPreviewLimit {
		return output[:reportPreviewLimit] + "\n... (truncated)"
	}
	return output
}
