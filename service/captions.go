package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// timestampLine matches WebVTT/SRT style cue timing fragments.
var timestampLine = regexp.MustCompile(`^\s*(\d+:)?\d{2}:\d{2}[.,]\d{3}`)

// ParseCaptionDocument strips cue markers and timestamps from a caption
// document and returns the plain transcript text. Input without any
// recognizable cue structure is returned unchanged rather than rejected.
func ParseCaptionDocument(raw string) string {
	if !strings.Contains(raw, "-->") && !strings.HasPrefix(strings.TrimSpace(raw), "WEBVTT") {
		return raw
	}
	return strings.TrimSpace(strings.Join(CaptionCueLines(raw), " "))
}

// CaptionCueLines returns the cue text lines of a caption document with the
// header, timing lines, and blanks removed, preserving line structure for
// speaker-label scanning.
func CaptionCueLines(raw string) []string {
	var lines []string
	for i, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if i == 0 && strings.HasPrefix(trimmed, "WEBVTT") {
			continue
		}
		if strings.Contains(trimmed, "-->") {
			continue
		}
		if timestampLine.MatchString(trimmed) {
			continue
		}
		lines = append(lines, trimmed)
	}
	return lines
}

// EstimateSpeakerCount applies a tiered sentence-count heuristic. This is a
// coarse placeholder, not diarization: the tiers and the cap of 3 are load
// bearing for callers that branch on the result.
func EstimateSpeakerCount(plainText string) int {
	sentences := 0
	for _, fragment := range strings.FieldsFunc(plainText, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(fragment) != "" {
			sentences++
		}
	}

	switch {
	case sentences < 3:
		return 1
	case sentences < 10:
		return minInt(2, (sentences+4)/5)
	default:
		return minInt(3, (sentences+14)/15)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// CaptionStore fetches caption documents. Failures are tolerated by the
// pipeline: a missing caption degrades the subtitles step, never fails it.
type CaptionStore interface {
	FetchCaptionDocument(ctx context.Context, url string) (string, error)
}

type HTTPCaptionStore struct {
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewHTTPCaptionStore(logger *logrus.Logger) *HTTPCaptionStore {
	return &HTTPCaptionStore{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (s *HTTPCaptionStore) FetchCaptionDocument(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch caption document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption store returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read caption document: %w", err)
	}
	return string(body), nil
}
