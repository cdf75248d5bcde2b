package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge-server/internal/assembly"
	"github.com/clipforge/clipforge-server/internal/config"
)

const (
	defaultBatchListLimit = 50
	maxBatchListLimit     = 500
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/download/{filename}", downloadHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Post("/api/combine-videos", combineVideosHandler(cfg))
		r.Post("/api/add-audio", addAudioHandler(cfg))
		r.Get("/api/batches", listBatchesHandler(cfg))
		r.Get("/api/batches/{id}", getBatchHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  config.Version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			FFmpegOK: cfg.FFmpegOK,
		})
	}
}

// combineVideosHandler answers 400 only for malformed requests. A batch that
// was accepted and then failed still answers 200 with success=false, so the
// caller always gets the structured result.
func combineVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AssembleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if len(req.VideoURLs) == 0 {
			WriteError(w, http.StatusBadRequest, "video_urls is required", "BAD_REQUEST")
			return
		}
		for i, u := range req.VideoURLs {
			if strings.TrimSpace(u) == "" {
				WriteError(w, http.StatusBadRequest,
					"video_urls["+strconv.Itoa(i)+"] is empty", "BAD_REQUEST")
				return
			}
		}

		result := cfg.Assembler.Assemble(r.Context(), assembly.Request{VideoURLs: req.VideoURLs})
		WriteJSON(w, http.StatusOK, ResultToResponse(result))
	}
}

func addAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddAudioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.VideoPath == "" || req.AudioPath == "" {
			WriteError(w, http.StatusBadRequest, "video_path and audio_path are required", "BAD_REQUEST")
			return
		}

		outputPath, err := cfg.Muxer.AddAudio(r.Context(), req.VideoPath, req.AudioPath, req.OutputPath)
		if err != nil {
			WriteJSON(w, http.StatusOK, AddAudioResponse{Error: err.Error()})
			return
		}

		WriteJSON(w, http.StatusOK, AddAudioResponse{Success: true, OutputPath: outputPath})
	}
}

func listBatchesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultBatchListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if limit > maxBatchListLimit {
			limit = maxBatchListLimit
		}

		batches, err := cfg.Repository.ListBatches(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list batches", "INTERNAL_ERROR")
			return
		}

		resp := BatchesResponse{Batches: make([]BatchResponse, len(batches))}
		for i, b := range batches {
			resp.Batches[i] = BatchToResponse(b)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getBatchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "batch id required", "BAD_REQUEST")
			return
		}

		batch, err := cfg.Repository.GetBatch(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if batch == nil {
			WriteError(w, http.StatusNotFound, "batch not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, BatchToResponse(batch))
	}
}

func downloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		if err := cfg.Delivery.ServeOutput(w, r, filename); err != nil {
			cfg.Logger.Error("download error", "error", err, "filename", filename)
		}
	}
}
