package models

import (
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Video statuses mirror what the caller sees on the dashboard.
const (
	VideoStatusProcessing = "processing"
	VideoStatusPublished  = "published"
)

type Video struct {
	Base
	Title            string         `gorm:"not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	Category         string         `gorm:"type:varchar(100);index" json:"category"`
	Tags             pq.StringArray `gorm:"type:text[]" json:"tags"`
	Visibility       string         `gorm:"type:varchar(50);default:'private'" json:"visibility"`
	OriginalFilename string         `gorm:"not null" json:"original_filename"`
	SizeBytes        int64          `gorm:"not null" json:"size_bytes"`
	Status           string         `gorm:"type:varchar(50);not null;index;default:'processing'" json:"status"`
	UploadID         string         `gorm:"type:varchar(255);index" json:"upload_id"`
	AssetID          string         `gorm:"type:varchar(255);uniqueIndex" json:"asset_id"`
	PlaybackID       string         `gorm:"type:varchar(255)" json:"playback_id"`
	MinioBucket      string         `json:"minio_bucket"`
	MinioObjectName  string         `json:"minio_object_name"`
	Thumbnails       datatypes.JSON `gorm:"type:jsonb" json:"thumbnails"`
	CaptionVTTURL    string         `gorm:"type:text" json:"caption_vtt_url"`
	CaptionSRTURL    string         `gorm:"type:text" json:"caption_srt_url"`
	Metadata         datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
}

func (Video) TableName() string {
	return "videos"
}
