package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ctfpilot-be/internal/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvidenceService(t *testing.T) IEvidenceService {
	t.Helper()
	cfg := config.Load()
	cfg.App.DataDir = t.TempDir()
	return NewEvidenceService(cfg)
}

func TestExtractFlagsFindsDefaultFormats(t *testing.T) {
	svc := testEvidenceService(t)
	jobID := uuid.New()

	results := []CommandResult{
		{CommandID: "cmd_000", Tool: "strings", Stdout: "junk\nCTF{hello_world}\nmore junk"},
		{CommandID: "cmd_001", Tool: "cat", Stdout: "flag{lowercase_too}"},
	}

	candidates := svc.ExtractFlags(jobID, results, "")
	require.Len(t, candidates, 2)

	values := []string{candidates[0].Value, candidates[1].Value}
	assert.Contains(t, values, "CTF{hello_world}")
	assert.Contains(t, values, "flag{lowercase_too}")

	for _, c := range candidates {
		assert.Equal(t, jobID, c.JobId)
		assert.NotEqual(t, uuid.Nil, c.Id)
	}
}

func TestExtractFlagsDeduplicatesAcrossCommands(t *testing.T) {
	svc := testEvidenceService(t)

	results := []CommandResult{
		{CommandID: "cmd_000", Tool: "strings", Stdout: "CTF{same_flag}"},
		{CommandID: "cmd_001", Tool: "cat", Stdout: "CTF{same_flag}"},
	}

	candidates := svc.ExtractFlags(uuid.New(), results, "")
	require.Len(t, candidates, 1)
	assert.Equal(t, "cmd_000", candidates[0].EvidenceId)
}

func TestExtractFlagsCustomPattern(t *testing.T) {
	svc := testEvidenceService(t)

	results := []CommandResult{
		{CommandID: "cmd_000", Tool: "strings", Stdout: "picoCTF{custom_format_here}"},
	}

	candidates := svc.ExtractFlags(uuid.New(), results, `picoCTF\{[^}]+\}`)
	require.Len(t, candidates, 1)
	assert.Equal(t, "picoCTF{custom_format_here}", candidates[0].Value)
	assert.Equal(t, "strings output", candidates[0].Source)
}

func TestExtractFlagsInvalidCustomPatternIsIgnored(t *testing.T) {
	svc := testEvidenceService(t)

	results := []CommandResult{
		{CommandID: "cmd_000", Tool: "strings", Stdout: "CTF{still_found}"},
	}

	candidates := svc.ExtractFlags(uuid.New(), results, `([unclosed`)
	require.Len(t, candidates, 1)
	assert.Equal(t, "CTF{still_found}", candidates[0].Value)
}

func TestExtractFlagsSortedByConfidence(t *testing.T) {
	svc := testEvidenceService(t)

	results := []CommandResult{
		// Short inner value drags confidence down.
		{CommandID: "cmd_000", Tool: "xxd", Stdout: "CTF{ab}"},
		// Trusted tool and flag-like structure raise it.
		{CommandID: "cmd_001", Tool: "strings", Stdout: "CTF{a_well_formed_flag}"},
	}

	candidates := svc.ExtractFlags(uuid.New(), results, "")
	require.Len(t, candidates, 2)
	assert.Equal(t, "CTF{a_well_formed_flag}", candidates[0].Value)
	assert.Greater(t, candidates[0].Confidence, candidates[1].Confidence)
}

func TestCalculateConfidenceHeuristics(t *testing.T) {
	// Base 0.5, +0.2 trusted tool, +0.2 flag structure.
	c := calculateConfidence("CTF{good_flag_here}", "strings", "CTF{good_flag_here}")
	assert.InDelta(t, 0.9, c, 1e-9)

	// Untrusted tool, structure bonus only.
	c = calculateConfidence("CTF{good_flag_here}", "xxd", "CTF{good_flag_here}")
	assert.InDelta(t, 0.7, c, 1e-9)

	// Short inner value: 0.5 + 0.2 + 0.2 - 0.2.
	c = calculateConfidence("CTF{ab}", "strings", "CTF{ab}")
	assert.InDelta(t, 0.7, c, 1e-9)

	// Very long inner value loses 0.3.
	long := "CTF{" + strings.Repeat("a", 101) + "}"
	c = calculateConfidence(long, "strings", long)
	assert.InDelta(t, 0.6, c, 1e-9)

	// Binary noise around the match loses 0.2.
	noisy := "\x01\x02##$$%%^^&&**((CTF{noise}))**&&^^%%$$##\x03\x04"
	c = calculateConfidence("CTF{noise}", "xxd", noisy)
	assert.InDelta(t, 0.5, c, 1e-9)

	// Clamped to the [0.1, 1.0] range.
	c = calculateConfidence("ctf{x}", "xxd", "###ctf{x}###")
	assert.GreaterOrEqual(t, c, 0.1)
}

func TestExtractContextWindow(t *testing.T) {
	output := "line1\nline2\nline3 CTF{flag}\nline4\nline5\nline6"

	context := extractContext(output, "CTF{flag}", 2)
	assert.Equal(t, "line1\nline2\nline3 CTF{flag}\nline4\nline5", context)

	assert.Equal(t, "", extractContext(output, "absent", 2))
}

func TestExtractContextTruncatesLongLines(t *testing.T) {
	line := strings.Repeat("x", 600) + " CTF{flag} " + strings.Repeat("y", 600)

	context := extractContext(line, "CTF{flag}", 2)
	assert.True(t, strings.HasSuffix(context, "..."))
	assert.LessOrEqual(t, len(context), 503)
}

func TestSaveEvidenceWritesFiles(t *testing.T) {
	svc := testEvidenceService(t)
	cfg := svc.(*evidenceService).cfg
	jobID := uuid.New()

	results := []CommandResult{
		{CommandID: "cmd_000", Tool: "strings", Stdout: "CTF{persisted}"},
	}
	candidates := svc.ExtractFlags(jobID, results, "")

	require.NoError(t, svc.SaveEvidence(jobID, results, candidates))

	jobDir := filepath.Join(cfg.App.RunsDir(), jobID.String())

	raw, err := os.ReadFile(filepath.Join(jobDir, "flags.json"))
	require.NoError(t, err)
	var flags map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &flags))
	assert.EqualValues(t, 1, flags["total_candidates"])

	raw, err = os.ReadFile(filepath.Join(jobDir, "evidence.json"))
	require.NoError(t, err)
	var evidence map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &evidence))
	assert.EqualValues(t, 1, evidence["total_commands"])
}

func TestBuildEvidencePackTruncatesOutput(t *testing.T) {
	svc := testEvidenceService(t)
	jobID := uuid.New()

	results := []CommandResult{
		{
			CommandID: "cmd_000",
			Tool:      "strings",
			Stdout:    strings.Repeat("a", 5000),
			Stderr:    strings.Repeat("b", 1000),
		},
	}

	pack := svc.BuildEvidencePack(jobID, results, nil)
	commands := pack["commands"].([]map[string]interface{})
	require.Len(t, commands, 1)
	assert.Len(t, commands[0]["stdout_preview"], 2000)
	assert.Len(t, commands[0]["stderr_preview"], 500)
	assert.Equal(t, []string{"cmd_000"}, pack["command_ids"])
}
