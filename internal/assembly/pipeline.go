// Package assembly orchestrates one batch: fetch every clip, verify it,
// stream-copy concatenate, and record the outcome. A batch either produces a
// combined output file or a single error describing the first failure; there
// is no partial delivery.
package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/clipforge/clipforge-server/internal/fetch"
	"github.com/clipforge/clipforge-server/internal/ffmpeg"
	"github.com/clipforge/clipforge-server/internal/logging"
	"github.com/clipforge/clipforge-server/internal/workspace"
)

const concatListName = "concat_list.txt"

type Pipeline struct {
	workspaces *workspace.Manager
	fetcher    fetch.Fetcher
	engine     ffmpeg.Engine
	repo       Repository
	logger     *slog.Logger
}

func NewPipeline(workspaces *workspace.Manager, fetcher fetch.Fetcher, engine ffmpeg.Engine, repo Repository, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		workspaces: workspaces,
		fetcher:    fetcher,
		engine:     engine,
		repo:       repo,
		logger:     logger,
	}
}

// Assemble runs one batch to completion. Failures never panic and never leak
// a partial output path: the Result either carries a verified combined file
// or an error message. Downloaded clips are kept on disk either way; only the
// batch scratch directory is removed.
func (p *Pipeline) Assemble(ctx context.Context, req Request) Result {
	if len(req.VideoURLs) == 0 {
		return Result{Error: "no video URLs provided"}
	}

	ws, err := p.workspaces.Open()
	if err != nil {
		return Result{Error: fmt.Sprintf("cannot open batch workspace: %v", err)}
	}
	defer p.workspaces.Close(ws)

	logger := p.logger
	if logger != nil {
		logger = logging.WithBatchID(logger, ws.ID)
		logger.Info("assembly started", "clip_count", len(req.VideoURLs))
	}

	now := time.Now().UTC()
	if err := p.repo.CreateBatch(ctx, &Batch{
		ID:        ws.ID,
		Status:    StatusRunning,
		ClipCount: len(req.VideoURLs),
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return Result{BatchID: ws.ID, Error: fmt.Sprintf("cannot record batch: %v", err)}
	}

	assets, err := p.fetchAll(ctx, ws, req.VideoURLs, logger)
	if err != nil {
		return p.fail(ctx, ws.ID, len(req.VideoURLs), err.Error(), logger)
	}

	paths := make([]string, len(assets))
	for i, a := range assets {
		paths[i] = a.Path
	}

	outputName := "combined_" + ws.ID + ".mp4"
	outputPath := filepath.Join(ws.OutputDir, outputName)
	listFile := filepath.Join(ws.ScratchDir, concatListName)

	if err := p.engine.Concatenate(ctx, paths, listFile, outputPath); err != nil {
		// The tool overwrites in place, so a failed run can leave a partial
		// output in the shared root where it would be downloadable.
		if rmErr := os.Remove(outputPath); rmErr != nil && !os.IsNotExist(rmErr) && logger != nil {
			logger.Warn("cannot remove partial output", "path", outputPath, "error", rmErr)
		}
		return p.fail(ctx, ws.ID, len(assets),
			fmt.Sprintf("cannot concatenate %d clips: %v", len(assets), err), logger)
	}

	downloadRef := "/download/" + outputName
	if err := p.repo.UpdateBatchResult(ctx, ws.ID, StatusSucceeded, outputPath, downloadRef, ""); err != nil && logger != nil {
		logger.Warn("cannot record batch success", "error", err)
	}

	if logger != nil {
		logger.Info("assembly succeeded", "output_path", outputPath)
	}
	return Result{
		Success:     true,
		BatchID:     ws.ID,
		OutputPath:  outputPath,
		DownloadRef: downloadRef,
		ClipCount:   len(assets),
	}
}

// fetchAll downloads every clip in request order, stopping at the first
// failure so later URLs are never attempted once the batch is doomed. Each
// downloaded file is verified to exist with size > 0 before it counts.
func (p *Pipeline) fetchAll(ctx context.Context, ws *workspace.Batch, urls []string, logger *slog.Logger) ([]LocalAsset, error) {
	assets := make([]LocalAsset, 0, len(urls))
	for i, url := range urls {
		name := fmt.Sprintf("clip_%03d.mp4", i+1)
		dest := filepath.Join(ws.DownloadsDir, name)

		if err := p.fetcher.Fetch(ctx, url, dest); err != nil {
			return nil, fmt.Errorf("cannot download clip %d of %d: %w", i+1, len(urls), err)
		}

		info, err := os.Stat(dest)
		if err != nil {
			return nil, fmt.Errorf("downloaded clip %d is missing: %s", i+1, dest)
		}
		if info.Size() == 0 {
			return nil, fmt.Errorf("downloaded clip %d is empty: %s", i+1, dest)
		}

		if logger != nil {
			logger.Debug("clip downloaded", "index", i+1, "path", dest, "bytes", info.Size())
		}
		assets = append(assets, LocalAsset{URL: url, Path: dest, Size: info.Size(), Index: i})
	}
	return assets, nil
}

func (p *Pipeline) fail(ctx context.Context, batchID string, clipCount int, msg string, logger *slog.Logger) Result {
	if logger != nil {
		logger.Error("assembly failed", "error", msg)
	}
	if err := p.repo.UpdateBatchResult(ctx, batchID, StatusFailed, "", "", msg); err != nil && logger != nil {
		logger.Warn("cannot record batch failure", "error", err)
	}
	return Result{BatchID: batchID, ClipCount: clipCount, Error: msg}
}
