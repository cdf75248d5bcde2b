package assembly

import "time"

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Request is an ordered sequence of remote clip URLs. The order is the final
// playback order and is preserved end-to-end.
type Request struct {
	VideoURLs []string `json:"video_urls"`
}

// LocalAsset is a downloaded clip. A LocalAsset is only constructed after the
// file has been verified to exist with size > 0; the pipeline never feeds an
// unverified path to the concatenation engine.
type LocalAsset struct {
	URL   string
	Path  string
	Size  int64
	Index int // position in the request, zero-based
}

// Result is the structured outcome of one assembly attempt. There is no
// partial success: either the combined output exists and is non-empty, or
// Error carries a single human-readable description of the first failure.
type Result struct {
	Success     bool
	BatchID     string
	OutputPath  string
	DownloadRef string
	ClipCount   int
	Error       string
}

// Batch is the persisted record of one assembly attempt.
type Batch struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	ClipCount   int       `json:"clip_count"`
	OutputPath  string    `json:"output_path,omitempty"`
	DownloadRef string    `json:"download_ref,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
