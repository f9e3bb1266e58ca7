package detector

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

const (
	// Per-file (and per-archive-entry) cap on content fed into scoring.
	maxContentChars = 10000

	// Display cap for matched keywords per category.
	maxKeywordDisplay = 10

	// Extension hits weigh heavier than a single keyword occurrence.
	extensionHitScore = 5.0

	defaultConfidence = 0.5
	maxConfidence     = 0.95
)

// InputFile is a named, openable blob: an upload, a disk file, or an
// in-memory fixture in tests.
type InputFile interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// CategoryScore is the per-category outcome of one scoring pass.
type CategoryScore struct {
	Category string   `json:"category"`
	Score    float64  `json:"score"`
	Keywords []string `json:"keywords"`
}

// DetectionResult is the final best-guess for a set of uploaded files.
type DetectionResult struct {
	Category         string          `json:"category"`
	Confidence       float64         `json:"confidence"`
	DetectedKeywords []string        `json:"detected_keywords"`
	Scores           []CategoryScore `json:"scores"`
}

// FileReport records the per-item outcome of the scan phase. A non-nil Err
// means the file or archive entry was skipped, not that detection failed.
type FileReport struct {
	Name string
	Err  error
}

// ScanResult aggregates everything the file-scan phase gathered before
// scoring: concatenated text content, every observed file name (archive
// entries included) and the per-item reports.
type ScanResult struct {
	Text      string
	FileNames []string
	Reports   []FileReport
}

// AnalyzeContent scores text and file names against every category pattern.
// It returns exactly one CategoryScore per category, in fixed category order;
// callers sort by score themselves.
func AnalyzeContent(text string, fileNames []string) []CategoryScore {
	lowered := strings.ToLower(text)

	scores := make([]CategoryScore, 0, len(Categories))
	for _, category := range Categories {
		pattern := categoryPatterns[category]

		var score float64
		var matched []string
		seen := make(map[string]bool)

		for _, keyword := range pattern.Keywords {
			re := wordBoundaryPattern(keyword)
			count := len(re.FindAllStringIndex(lowered, -1))
			if count == 0 {
				continue
			}
			score += float64(count) * pattern.Weight
			if !seen[keyword] {
				seen[keyword] = true
				matched = append(matched, keyword)
			}
		}

		for _, name := range fileNames {
			lowerName := strings.ToLower(name)
			for _, ext := range pattern.Extensions {
				if !strings.HasSuffix(lowerName, ext) {
					continue
				}
				score += extensionHitScore * pattern.Weight
				token := "file:" + ext
				if !seen[token] {
					seen[token] = true
					matched = append(matched, token)
				}
			}
		}

		// Distinct-match bonus. The 1.3 tier replaces the 1.2 one, it does
		// not compound.
		multiplier := 1.0
		if len(matched) >= 3 {
			multiplier = 1.2
		}
		if len(matched) >= 5 {
			multiplier = 1.3
		}
		score *= multiplier

		if len(matched) > maxKeywordDisplay {
			matched = matched[:maxKeywordDisplay]
		}

		scores = append(scores, CategoryScore{
			Category: category,
			Score:    round2(score),
			Keywords: matched,
		})
	}

	return scores
}

var (
	patternMu    sync.Mutex
	patternCache = make(map[string]*regexp.Regexp)
)

func wordBoundaryPattern(keyword string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[keyword]; ok {
		return re
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(keyword)) + `\b`)
	patternCache[keyword] = re
	return re
}

// BestGuess sorts a scoring pass descending and derives category plus
// confidence. A zero top score forces the fallback category at the default
// confidence.
func BestGuess(scores []CategoryScore) *DetectionResult {
	sorted := make([]CategoryScore, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	top := sorted[0]
	second := sorted[1]

	if top.Score == 0 {
		return &DetectionResult{
			Category:         FallbackCategory,
			Confidence:       defaultConfidence,
			DetectedKeywords: []string{},
			Scores:           sorted,
		}
	}

	relativeGap := (top.Score - second.Score) / top.Score
	confidence := defaultConfidence + relativeGap*0.5 + math.Min(top.Score/50, 0.3)
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	return &DetectionResult{
		Category:         top.Category,
		Confidence:       round2(confidence),
		DetectedKeywords: top.Keywords,
		Scores:           sorted,
	}
}

// ScanFiles runs the asynchronous half of detection: it collects file names
// and text-like content, expanding zip archives one level deep. Failures are
// isolated per file and per archive entry; the scan always runs to
// completion over the remaining items.
func ScanFiles(ctx context.Context, files []InputFile, description string) (*ScanResult, error) {
	res := &ScanResult{}
	var text strings.Builder

	if description != "" {
		text.WriteString(description)
		text.WriteString("\n")
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := file.Name()
		res.FileNames = append(res.FileNames, name)
		ext := strings.ToLower(filepath.Ext(name))

		switch {
		case archiveExtensions[ext]:
			if err := scanArchive(file, res, &text); err != nil {
				// Archive contributes only its outer name.
				res.Reports = append(res.Reports, FileReport{Name: name, Err: err})
			}
		case textExtensions[ext]:
			if err := appendContent(file, &text); err != nil {
				res.Reports = append(res.Reports, FileReport{Name: name, Err: err})
			} else {
				res.Reports = append(res.Reports, FileReport{Name: name})
			}
		default:
			res.Reports = append(res.Reports, FileReport{Name: name})
		}
	}

	res.Text = text.String()
	return res, nil
}

func scanArchive(file InputFile, res *ScanResult, text *strings.Builder) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return err
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return err
	}

	for _, entry := range zr.File {
		if strings.HasSuffix(entry.Name, "/") {
			continue
		}
		res.FileNames = append(res.FileNames, entry.Name)

		entryExt := strings.ToLower(filepath.Ext(entry.Name))
		if !textExtensions[entryExt] {
			res.Reports = append(res.Reports, FileReport{Name: entry.Name})
			continue
		}

		er, err := entry.Open()
		if err != nil {
			res.Reports = append(res.Reports, FileReport{Name: entry.Name, Err: err})
			continue
		}
		content, err := io.ReadAll(io.LimitReader(er, maxContentChars))
		er.Close()
		if err != nil {
			res.Reports = append(res.Reports, FileReport{Name: entry.Name, Err: err})
			continue
		}
		text.Write(content)
		text.WriteString("\n")
		res.Reports = append(res.Reports, FileReport{Name: entry.Name})
	}

	return nil
}

func appendContent(file InputFile, text *strings.Builder) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, maxContentChars))
	if err != nil {
		return err
	}
	text.Write(content)
	text.WriteString("\n")
	return nil
}

// Detector is the caller-facing entry point. It exposes an in-progress flag
// covering the whole scan+score duration and the last computed result;
// concurrent calls race benignly, last write wins.
type Detector struct {
	mu        sync.Mutex
	detecting bool
	last      *DetectionResult
}

func New() *Detector {
	return &Detector{}
}

// DetectFromFiles scans the given files plus an optional description and
// returns the best-guess category. Zero files yields a nil result without a
// scoring pass.
func (d *Detector) DetectFromFiles(ctx context.Context, files []InputFile, description string) (*DetectionResult, error) {
	if len(files) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	d.detecting = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.detecting = false
		d.mu.Unlock()
	}()

	scan, err := ScanFiles(ctx, files, description)
	if err != nil {
		return nil, err
	}
	for _, report := range scan.Reports {
		if report.Err != nil {
			log.Printf("detector: skipped %s: %v", report.Name, report.Err)
		}
	}

	result := BestGuess(AnalyzeContent(scan.Text, scan.FileNames))

	d.mu.Lock()
	d.last = result
	d.mu.Unlock()

	return result, nil
}

// IsDetecting reports whether a detection call is currently in flight.
func (d *Detector) IsDetecting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detecting
}

// LastResult returns the most recently computed result, nil before the first
// completed call.
func (d *Detector) LastResult() *DetectionResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
