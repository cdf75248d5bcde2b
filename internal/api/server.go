package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipforge/clipforge-server/internal/assembly"
)

// Assembler runs one combine-videos batch to completion.
type Assembler interface {
	Assemble(ctx context.Context, req assembly.Request) assembly.Result
}

// Muxer merges an audio track into a local video file.
type Muxer interface {
	AddAudio(ctx context.Context, videoPath, audioPath, outputPath string) (string, error)
}

// DeliveryService streams a finished output file by name.
type DeliveryService interface {
	ServeOutput(w http.ResponseWriter, r *http.Request, filename string) error
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Assembler  Assembler
	Muxer      Muxer
	Delivery   DeliveryService
	Repository assembly.Repository
	Logger     *slog.Logger
	StartTime  time.Time
	FFmpegOK   bool
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Port),
			Handler:     router,
			ReadTimeout: 15 * time.Second,
			// WriteTimeout stays 0: combine batches and large downloads can
			// legitimately hold a response open for minutes.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
