// Package workspace allocates isolated per-batch directory trees for assembly
// runs and cleans up their transient artifacts. Downloaded clips and finished
// outputs are durable; only the scratch directory is removed on Close.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// batchIDLen is the number of hex characters kept from the generated UUID.
// Collisions are handled by the Mkdir check in Open, not by ID length.
const batchIDLen = 8

const openRetries = 5

// Batch is one assembly attempt's directory tree. It is owned by exactly one
// request execution and never shared.
type Batch struct {
	ID           string
	DownloadsDir string
	OutputDir    string
	ScratchDir   string
	CreatedAt    time.Time
}

// Config holds the root directories under which batches are allocated.
type Config struct {
	DownloadsRoot string
	OutputRoot    string
	ScratchRoot   string
}

// Manager creates and disposes of batch workspaces.
type Manager struct {
	cfg    Config
	logger *slog.Logger
}

func NewManager(cfg Config, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// Open allocates a fresh batch with a unique identifier and its directory
// tree, creating any missing parents. The per-batch downloads and scratch
// directories are created with os.Mkdir so an ID collision surfaces as an
// error instead of two batches sharing a tree.
func (m *Manager) Open() (*Batch, error) {
	for _, root := range []string{m.cfg.DownloadsRoot, m.cfg.OutputRoot, m.cfg.ScratchRoot} {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("cannot create workspace root %s: %w", root, err)
		}
	}

	var lastErr error
	for i := 0; i < openRetries; i++ {
		id := newBatchID()
		downloads := filepath.Join(m.cfg.DownloadsRoot, "batch_"+id)
		scratch := filepath.Join(m.cfg.ScratchRoot, "batch_"+id)

		if err := os.Mkdir(downloads, 0755); err != nil {
			lastErr = err
			continue
		}
		if err := os.Mkdir(scratch, 0755); err != nil {
			os.Remove(downloads)
			lastErr = err
			continue
		}

		b := &Batch{
			ID:           id,
			DownloadsDir: downloads,
			OutputDir:    m.cfg.OutputRoot,
			ScratchDir:   scratch,
			CreatedAt:    time.Now(),
		}
		if m.logger != nil {
			m.logger.Info("batch workspace opened",
				"batch_id", b.ID,
				"downloads_dir", b.DownloadsDir,
				"scratch_dir", b.ScratchDir,
			)
		}
		return b, nil
	}

	return nil, fmt.Errorf("cannot allocate batch workspace: %w", lastErr)
}

// Close removes the batch's scratch directory. Downloaded clips and outputs
// are kept; they are the durable product of the run and may be inspected or
// re-served later. Cleanup failures are logged, never escalated: they must
// not mask the pipeline outcome.
func (m *Manager) Close(b *Batch) {
	if b == nil {
		return
	}
	if err := os.RemoveAll(b.ScratchDir); err != nil {
		if m.logger != nil {
			m.logger.Warn("scratch cleanup failed",
				"batch_id", b.ID,
				"scratch_dir", b.ScratchDir,
				"error", err,
			)
		}
		return
	}
	if m.logger != nil {
		m.logger.Debug("scratch cleaned", "batch_id", b.ID)
	}
}

func newBatchID() string {
	id := uuid.New().String()
	// Strip hyphens before truncating so all characters are hex.
	clean := make([]byte, 0, batchIDLen)
	for i := 0; i < len(id) && len(clean) < batchIDLen; i++ {
		if id[i] != '-' {
			clean = append(clean, id[i])
		}
	}
	return string(clean)
}
