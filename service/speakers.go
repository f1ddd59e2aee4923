package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ajgcsol/videopipeline/models"
	"github.com/google/uuid"
)

// SpeakerRegistry derives a de-duplicated, stably-ordered speaker list from
// labeled transcript lines and tracks renames and screenshots for a session.
type SpeakerRegistry struct {
	mu       sync.Mutex
	speakers []*models.Speaker
	byLabel  map[string]*models.Speaker
}

func NewSpeakerRegistry() *SpeakerRegistry {
	return &SpeakerRegistry{
		byLabel: make(map[string]*models.Speaker),
	}
}

// DeriveSpeakers scans lines of the form "<label>: <text>" and emits one
// speaker per unique label in first-seen order.
func (r *SpeakerRegistry) DeriveSpeakers(plainText string) []models.Speaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range strings.Split(plainText, "\n") {
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		label := strings.TrimSpace(line[:idx])
		text := strings.TrimSpace(line[idx+1:])
		if label == "" || text == "" {
			continue
		}

		speaker, ok := r.byLabel[label]
		if !ok {
			speaker = &models.Speaker{
				ID:            uuid.New().String(),
				OriginalLabel: label,
				Name:          label,
				Confidence:    models.DefaultSpeakerConfidence,
			}
			r.byLabel[label] = speaker
			r.speakers = append(r.speakers, speaker)
		}
		speaker.SegmentCount++
	}

	return r.snapshotLocked()
}

// Rename updates the display name only; the original label is immutable.
func (r *SpeakerRegistry) Rename(originalLabel, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	speaker, ok := r.byLabel[originalLabel]
	if !ok {
		return fmt.Errorf("unknown speaker label: %s", originalLabel)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("speaker name cannot be empty")
	}
	speaker.Name = name
	return nil
}

// AttachScreenshot stores a captured still frame on one speaker.
func (r *SpeakerRegistry) AttachScreenshot(originalLabel string, image []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	speaker, ok := r.byLabel[originalLabel]
	if !ok {
		return fmt.Errorf("unknown speaker label: %s", originalLabel)
	}
	if len(image) == 0 {
		return fmt.Errorf("screenshot payload is empty")
	}
	speaker.Screenshot = image
	return nil
}

// Speakers returns a copy of the current list in first-seen order.
func (r *SpeakerRegistry) Speakers() []models.Speaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Reset discards all derived speakers; used when a session restarts.
func (r *SpeakerRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speakers = nil
	r.byLabel = make(map[string]*models.Speaker)
}

func (r *SpeakerRegistry) snapshotLocked() []models.Speaker {
	out := make([]models.Speaker, 0, len(r.speakers))
	for _, s := range r.speakers {
		out = append(out, *s)
	}
	return out
}
