package models

import "time"

// StepKey identifies one pipeline step.
type StepKey string

const (
	StepUpload                StepKey = "upload"
	StepProcessing            StepKey = "processing"
	StepSubtitles             StepKey = "subtitles"
	StepDatabase              StepKey = "database"
	StepSpeakerIdentification StepKey = "speaker_identification"
	StepCompletion            StepKey = "completion"
)

// StepStatus is the lifecycle state of a single step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusProcessing StepStatus = "processing"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusError      StepStatus = "error"
)

// PipelineStep tracks one stage of an upload session.
type PipelineStep struct {
	Key         StepKey    `json:"key"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	Progress    int        `json:"progress"`
	Detail      string     `json:"detail,omitempty"`
	StartedAt   time.Time  `json:"started_at,omitempty"`
}

// SessionState is the global state of one pipeline session.
type SessionState string

const (
	SessionStateIdle     SessionState = "idle"
	SessionStateRunning  SessionState = "running"
	SessionStateFinished SessionState = "finished"
)

// PipelineResult is handed to the completion callback once every step is done.
type PipelineResult struct {
	RecordID       string       `json:"record_id"`
	AssetID        string       `json:"asset_id"`
	PlaybackID     string       `json:"playback_id"`
	UploadID       string       `json:"upload_id"`
	Thumbnails     ThumbnailSet `json:"thumbnails"`
	CaptionVTTURL  string       `json:"caption_vtt_url,omitempty"`
	CaptionSRTURL  string       `json:"caption_srt_url,omitempty"`
	ElapsedSeconds float64      `json:"elapsed_seconds"`
}
