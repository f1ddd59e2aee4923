package models

import "github.com/google/uuid"

// DefaultSpeakerConfidence is a placeholder value: no acoustic confidence
// signal is computed by the sentence heuristic.
const DefaultSpeakerConfidence = 0.85

// Speaker is one diarization label found in a transcript.
type Speaker struct {
	ID            string  `json:"id"`
	OriginalLabel string  `json:"original_label"`
	Name          string  `json:"name"`
	SegmentCount  int     `json:"segment_count"`
	Confidence    float64 `json:"confidence"`
	Screenshot    []byte  `json:"screenshot,omitempty"`
}

// SpeakerRecord is the persisted form of a confirmed speaker.
type SpeakerRecord struct {
	Base
	VideoID       uuid.UUID `gorm:"type:uuid;not null;index" json:"video_id"`
	OriginalLabel string    `gorm:"type:varchar(255);not null" json:"original_label"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	SegmentCount  int       `gorm:"not null" json:"segment_count"`
	Confidence    float64   `gorm:"type:float" json:"confidence"`
	Screenshot    []byte    `gorm:"type:bytea" json:"-"`

	Video Video `gorm:"foreignKey:VideoID" json:"-"`
}

func (SpeakerRecord) TableName() string {
	return "video_speakers"
}

// TranscriptData is derived once per caption reference and never mutated.
type TranscriptData struct {
	PlainText    string `json:"plain_text"`
	SpeakerCount int    `json:"speaker_count"`
	SourceURL    string `json:"source_url"`
}
