package api

import (
	"time"

	"github.com/clipforge/clipforge-server/internal/assembly"
)

type AssembleRequest struct {
	VideoURLs []string `json:"video_urls"`
}

// AssembleResponse mirrors assembly.Result. A failed batch still answers
// HTTP 200; Success and Error carry the outcome.
type AssembleResponse struct {
	Success           bool   `json:"success"`
	BatchID           string `json:"batch_id,omitempty"`
	CombinedVideoPath string `json:"combined_video_path,omitempty"`
	DownloadURL       string `json:"download_url,omitempty"`
	VideoCount        int    `json:"video_count,omitempty"`
	Error             string `json:"error,omitempty"`
}

type AddAudioRequest struct {
	VideoPath  string `json:"video_path"`
	AudioPath  string `json:"audio_path"`
	OutputPath string `json:"output_path,omitempty"`
}

type AddAudioResponse struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

type BatchResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ClipCount   int    `json:"clip_count"`
	OutputPath  string `json:"output_path,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type BatchesResponse struct {
	Batches []BatchResponse `json:"batches"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	FFmpegOK bool   `json:"ffmpeg_ok"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func BatchToResponse(b *assembly.Batch) BatchResponse {
	return BatchResponse{
		ID:          b.ID,
		Status:      b.Status,
		ClipCount:   b.ClipCount,
		OutputPath:  b.OutputPath,
		DownloadURL: b.DownloadRef,
		Error:       b.Error,
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   b.UpdatedAt.Format(time.RFC3339),
	}
}

func ResultToResponse(res assembly.Result) AssembleResponse {
	return AssembleResponse{
		Success:           res.Success,
		BatchID:           res.BatchID,
		CombinedVideoPath: res.OutputPath,
		DownloadURL:       res.DownloadRef,
		VideoCount:        res.ClipCount,
		Error:             res.Error,
	}
}
