package detector

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreFor(t *testing.T, scores []CategoryScore, category string) CategoryScore {
	t.Helper()
	for _, s := range scores {
		if s.Category == category {
			return s
		}
	}
	t.Fatalf("category %q missing from scores", category)
	return CategoryScore{}
}

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestAnalyzeContentCoversEveryCategory(t *testing.T) {
	scores := AnalyzeContent("some unrelated text", []string{"a.dat"})

	assert.Len(t, scores, len(Categories))
	for i, s := range scores {
		assert.Equal(t, Categories[i], s.Category)
		assert.GreaterOrEqual(t, s.Score, 0.0)
	}
}

func TestNoSignalForcesMiscFallback(t *testing.T) {
	scores := AnalyzeContent("lorem ipsum dolor sit amet", []string{"mystery.dat"})
	result := BestGuess(scores)

	assert.Equal(t, "misc", result.Category)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Empty(t, result.DetectedKeywords)
}

func TestWordBoundaryPreventsSubstringMatches(t *testing.T) {
	// "property" contains "rop", "xorshift" contains "xor"; neither is a
	// standalone word so neither may count.
	scores := AnalyzeContent("property xorshift", nil)

	assert.Equal(t, 0.0, scoreFor(t, scores, "pwn").Score)
	assert.Equal(t, 0.0, scoreFor(t, scores, "crypto").Score)

	// The standalone word does count.
	scores = AnalyzeContent("a rop chain", nil)
	assert.Greater(t, scoreFor(t, scores, "pwn").Score, 0.0)
}

func TestDistinctKeywordBonusTiers(t *testing.T) {
	// pwn weight is 1.2. Three distinct keywords, one occurrence each:
	// raw 3*1.2 = 3.6, bonus *1.2 = 4.32.
	scores := AnalyzeContent("buffer overflow stack", nil)
	assert.Equal(t, 4.32, scoreFor(t, scores, "pwn").Score)

	// Five distinct keywords: raw 5*1.2 = 6.0, bonus *1.3 = 7.8. If the
	// tiers compounded it would be 9.36.
	scores = AnalyzeContent("buffer overflow stack canary rop", nil)
	assert.Equal(t, 7.8, scoreFor(t, scores, "pwn").Score)
}

func TestOccurrencesCountKeywordsOnlyOnceInList(t *testing.T) {
	scores := AnalyzeContent("rop rop rop rop", nil)
	pwn := scoreFor(t, scores, "pwn")

	// Four occurrences raise the score but the keyword list holds it once.
	assert.Equal(t, 4*1.2, pwn.Score)
	assert.Equal(t, []string{"rop"}, pwn.Keywords)
}

func TestConfidenceGapMonotonicAndClamped(t *testing.T) {
	mk := func(top, second float64) float64 {
		scores := []CategoryScore{
			{Category: "pwn", Score: top},
			{Category: "web", Score: second},
			{Category: "crypto"}, {Category: "rev"},
			{Category: "forensics"}, {Category: "misc"},
		}
		return BestGuess(scores).Confidence
	}

	narrow := mk(2.0, 1.8)
	wide := mk(2.0, 0.2)
	assert.Greater(t, wide, narrow)

	// Huge score and gap still clamp at 0.95.
	assert.Equal(t, 0.95, mk(500, 0))
	assert.LessOrEqual(t, mk(2.0, 0), 0.95)
}

func TestContentCapTruncatesLargeFiles(t *testing.T) {
	content := strings.Repeat("a", maxContentChars) + " sql injection xss cookie"

	scan, err := ScanFiles(context.Background(), []InputFile{
		MemFile{FileName: "dump.txt", Content: []byte(content)},
	}, "")

	require.NoError(t, err)
	// Capped content plus the separator newline.
	assert.Len(t, scan.Text, maxContentChars+1)
	assert.NotContains(t, scan.Text, "sql")
}

func TestContentCapAppliesPerArchiveEntry(t *testing.T) {
	oversized := strings.Repeat("x", maxContentChars) + " rsa cipher oracle"
	raw := buildZip(t, map[string][]byte{
		"notes/big.txt":   []byte(oversized),
		"notes/small.txt": []byte("buffer overflow rop"),
	})

	scan, err := ScanFiles(context.Background(), []InputFile{
		MemFile{FileName: "bundle.zip", Content: raw},
	}, "")

	require.NoError(t, err)
	assert.NotContains(t, scan.Text, "rsa")
	assert.Contains(t, scan.Text, "buffer overflow")
}

func TestKeywordListCapsAtTenSignals(t *testing.T) {
	text := "rsa aes cipher ciphertext plaintext encrypt decrypt xor base64 modulus exponent md5"
	scores := AnalyzeContent(text, []string{"secret.pem", "secret.key"})

	crypto := scoreFor(t, scores, "crypto")
	// 12 keywords plus 2 extension tokens matched; the list shows the
	// first ten in table order.
	assert.Equal(t, []string{
		"rsa", "aes", "cipher", "ciphertext", "plaintext",
		"encrypt", "decrypt", "xor", "base64", "modulus",
	}, crypto.Keywords)
}

func TestZipExpansionScoresInnerContent(t *testing.T) {
	archive := buildZip(t, map[string][]byte{
		"solve/exploit.py": []byte("import pwntools\npwntools.remote\npwntools"),
		"solve/chall.dat":  {0x7f, 0x45, 0x4c, 0x46},
	})

	d := New()
	result, err := d.DetectFromFiles(context.Background(), []InputFile{
		MemFile{FileName: "handout.zip", Content: archive},
	}, "")
	require.NoError(t, err)
	require.NotNil(t, result)

	pwn := scoreFor(t, result.Scores, "pwn")
	// Three pwntools occurrences at weight 1.2; .py is not a configured
	// extension for any category, so no extension bonus applies.
	assert.Equal(t, 3.6, pwn.Score)
	assert.NotContains(t, pwn.Keywords, "file:.py")
	for _, s := range result.Scores {
		assert.NotContains(t, s.Keywords, "file:.py")
	}
}

func TestCorruptArchiveContributesOuterNameOnly(t *testing.T) {
	d := New()
	result, err := d.DetectFromFiles(context.Background(), []InputFile{
		MemFile{FileName: "broken.zip", Content: []byte("not a zip at all")},
		MemFile{FileName: "notes.txt", Content: []byte("xor cipher rsa")},
	}, "")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "crypto", result.Category)
}

type failingFile struct{ name string }

func (f failingFile) Name() string { return f.name }
func (f failingFile) Open() (io.ReadCloser, error) { return nil, errors.New("read denied") }

func TestUnreadableFileIsIsolated(t *testing.T) {
	d := New()
	result, err := d.DetectFromFiles(context.Background(), []InputFile{
		failingFile{name: "secret.txt"},
		MemFile{FileName: "writeup.md", Content: []byte("sql injection xss cookie")},
	}, "")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "web", result.Category)
}

func TestZeroFilesYieldsNoResult(t *testing.T) {
	d := New()
	result, err := d.DetectFromFiles(context.Background(), nil, "even with a description")

	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Nil(t, d.LastResult())
}

func TestScenarioPwnHandout(t *testing.T) {
	d := New()
	result, err := d.DetectFromFiles(context.Background(), []InputFile{
		MemFile{FileName: "challenge.elf", Content: []byte{0x7f, 0x45}},
		MemFile{FileName: "notes.txt", Content: []byte("buffer overflow stack canary rop gadget shellcode")},
	}, "")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "pwn", result.Category)
	assert.GreaterOrEqual(t, result.Confidence, 0.5)
	for _, want := range []string{"buffer", "overflow", "canary"} {
		assert.Contains(t, result.DetectedKeywords, want)
	}
	assert.Contains(t, result.DetectedKeywords, "file:.elf")

	assert.False(t, d.IsDetecting())
	assert.Equal(t, result, d.LastResult())
}

func TestDescriptionSeedsTextContent(t *testing.T) {
	d := New()
	result, err := d.DetectFromFiles(context.Background(), []InputFile{
		MemFile{FileName: "chall.dat", Content: []byte{0x00}},
	}, "this challenge uses rsa with a small modulus")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "crypto", result.Category)
}
