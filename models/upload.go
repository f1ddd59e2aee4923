package models

// UploadedPart records one completed multipart part.
type UploadedPart struct {
	PartNumber     int    `json:"part_number"` // 1-based, contiguous
	PartIdentifier string `json:"part_identifier"`
}

// MultipartUploadPlan describes a chunked upload in flight.
type MultipartUploadPlan struct {
	UploadID   string         `json:"upload_id"`
	ObjectKey  string         `json:"object_key"`
	PartSize   int64          `json:"part_size"`
	TotalParts int            `json:"total_parts"`
	Parts      []UploadedPart `json:"parts"`
}

// UploadResult is what the transport hands back to the orchestrator.
type UploadResult struct {
	UploadID  string `json:"upload_id"`
	ObjectKey string `json:"object_key"`
	Multipart bool   `json:"multipart"`
	SizeBytes int64  `json:"size_bytes"`
}

// VideoMetadata carries the caller-supplied fields for a new video.
type VideoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Visibility  string   `json:"visibility"`
	Filename    string   `json:"filename"`
	SizeBytes   int64    `json:"size_bytes"`
}
