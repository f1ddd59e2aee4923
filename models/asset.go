package models

// AssetStatus is the remote transcoder's view of an asset.
type AssetStatus string

const (
	AssetStatusUploading  AssetStatus = "uploading"
	AssetStatusProcessing AssetStatus = "processing"
	AssetStatusReady      AssetStatus = "ready"
	AssetStatusErrored    AssetStatus = "errored"
)

// IsTerminal reports whether no further status transition can occur.
func (s AssetStatus) IsTerminal() bool {
	return s == AssetStatusReady || s == AssetStatusErrored
}

// ThumbnailSet carries the still frames generated by the transcoder.
type ThumbnailSet struct {
	Small     string   `json:"small,omitempty"`
	Medium    string   `json:"medium,omitempty"`
	Large     string   `json:"large,omitempty"`
	Timestamp []string `json:"timestamped,omitempty"`
}

// IsEmpty reports whether no thumbnail variant has been produced yet.
func (t ThumbnailSet) IsEmpty() bool {
	return t.Small == "" && t.Medium == "" && t.Large == "" && len(t.Timestamp) == 0
}

// CaptionRefs holds the caption document locations for a ready asset.
type CaptionRefs struct {
	VTTURL string `json:"vtt_url,omitempty"`
	SRTURL string `json:"srt_url,omitempty"`
}

// RemoteAssetStatus is one polled snapshot of a transcoding job.
type RemoteAssetStatus struct {
	AssetID      string       `json:"asset_id"`
	PlaybackID   string       `json:"playback_id"`
	StreamURL    string       `json:"stream_url,omitempty"`
	Status       AssetStatus  `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Thumbnails   ThumbnailSet `json:"thumbnails"`
	Captions     CaptionRefs  `json:"captions"`
}
