package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReportService(t *testing.T) (IReportService, *config.Config) {
	t.Helper()
	cfg := config.Load()
	cfg.App.DataDir = t.TempDir()
	return NewReportService(cfg), cfg
}

func reportFixtures(jobId uuid.UUID) ([]CommandResult, []entity.FlagCandidate) {
	now := time.Now()
	results := []CommandResult{
		{
			CommandID:   "cmd_000",
			Tool:        "file",
			Arguments:   []string{"challenge.bin"},
			ExitCode:    0,
			Stdout:      "challenge.bin: ELF 64-bit LSB executable",
			StartedAt:   now,
			CompletedAt: now,
		},
		{
			CommandID:   "cmd_001",
			Tool:        "strings",
			Arguments:   []string{"-n", "8", "challenge.bin"},
			ExitCode:    1,
			Stdout:      "",
			Stderr:      "strings: challenge.bin: no such file",
			StartedAt:   now,
			CompletedAt: now,
		},
	}
	candidates := []entity.FlagCandidate{
		{
			Id:         uuid.New(),
			JobId:      jobId,
			Value:      "CTF{report_builder}",
			Confidence: 0.9,
			Source:     "strings output",
			EvidenceId: "cmd_001",
		},
	}
	return results, candidates
}

func TestGenerateWritesReportFile(t *testing.T) {
	svc, cfg := testReportService(t)
	jobId := uuid.New()
	results, candidates := reportFixtures(jobId)

	err := svc.Generate(jobId, "Reversing 101", "Find the flag in the binary.", "binary", results, candidates)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(cfg.App.RunsDir(), jobId.String(), "report.md"))
	require.NoError(t, err)
	report := string(raw)

	assert.Contains(t, report, "# Writeup: Reversing 101")
	assert.Contains(t, report, "Find the flag in the binary.")
	assert.Contains(t, report, "Playbook: `binary`. Commands executed: 2.")
	assert.Contains(t, report, "### cmd_000: file")
	assert.Contains(t, report, "$ strings -n 8 challenge.bin")
	assert.Contains(t, report, "Exit code: 1")
	assert.Contains(t, report, "strings: challenge.bin: no such file")
	assert.Contains(t, report, "**CTF{report_builder}**")
	assert.Contains(t, report, "Confidence: 0.90")
	assert.Contains(t, report, "Evidence: cmd_001")
	assert.Contains(t, report, "## Reproduction Steps")
}

func TestRenderReportWithoutResults(t *testing.T) {
	report := renderReport("Empty", "", "default", nil, nil)

	assert.Contains(t, report, "No challenge description provided.")
	assert.Contains(t, report, "No commands were executed.")
	assert.Contains(t, report, "No flag candidates were found.")
	assert.Contains(t, report, "No steps to reproduce.")
}

func TestRenderReportTruncatesLongOutput(t *testing.T) {
	jobId := uuid.New()
	results, _ := reportFixtures(jobId)
	results[0].Stdout = strings.Repeat("A", reportPreviewLimit+100)

	report := renderReport("Big", "", "default", results, nil)

	assert.Contains(t, report, "... (truncated)")
	assert.NotContains(t, report, strings.Repeat("A", reportPreviewLimit+1))
}
