package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clipforge/clipforge-server/internal/api"
	"github.com/clipforge/clipforge-server/internal/assembly"
	"github.com/clipforge/clipforge-server/internal/config"
	"github.com/clipforge/clipforge-server/internal/db"
	"github.com/clipforge/clipforge-server/internal/delivery"
	"github.com/clipforge/clipforge-server/internal/fetch"
	"github.com/clipforge/clipforge-server/internal/ffmpeg"
	"github.com/clipforge/clipforge-server/internal/logging"
	"github.com/clipforge/clipforge-server/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	// A local .env is a convenience for development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.DownloadsDir(), cfg.OutputDir(), cfg.ScratchDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipforge server", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := assembly.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}
	logger.Info("auth token ready", "token", logging.SanitizeToken(authToken))

	engine := ffmpeg.NewTool(ffmpeg.Config{
		FFmpegPath:    cfg.FFmpegPath(),
		ConcatTimeout: cfg.ConcatTimeout(),
		MuxTimeout:    cfg.MuxTimeout(),
		Logger:        logging.WithComponent(logger, "ffmpeg"),
	})

	ffmpegOK := true
	if err := engine.Probe(); err != nil {
		ffmpegOK = false
		logger.Warn("ffmpeg not found, batches will fail until it is installed",
			"path", cfg.FFmpegPath(), "error", err)
	}

	workspaces := workspace.NewManager(workspace.Config{
		DownloadsRoot: cfg.DownloadsDir(),
		OutputRoot:    cfg.OutputDir(),
		ScratchRoot:   cfg.ScratchDir(),
	}, logger)

	fetcher := fetch.NewHTTPFetcher(cfg.FetchTimeout(), logging.WithComponent(logger, "fetch"))

	pipeline := assembly.NewPipeline(workspaces, fetcher, engine, repo, logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Assembler:  pipeline,
		Muxer:      engine,
		Delivery:   delivery.NewServer(cfg.OutputDir(), logger),
		Repository: repo,
		Logger:     logger,
		StartTime:  startTime,
		FFmpegOK:   ffmpegOK,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(repo assembly.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
