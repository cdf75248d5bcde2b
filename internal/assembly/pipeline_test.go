package assembly

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clipforge/clipforge-server/internal/db"
	"github.com/clipforge/clipforge-server/internal/workspace"
)

type fakeFetcher struct {
	calls   []string
	failAt  int    // 1-based call index that fails; 0 means never
	payload string // file body written on success; empty string writes an empty file
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, destPath string) error {
	f.calls = append(f.calls, url)
	if f.failAt != 0 && len(f.calls) == f.failAt {
		return fmt.Errorf("fetch %s: HTTP 404", url)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte(f.payload), 0644)
}

type fakeEngine struct {
	concatPaths   []string
	listFile      string
	outputPath    string
	concatErr     error
	partialOutput bool // write a truncated output before failing
}

func (e *fakeEngine) Concatenate(ctx context.Context, paths []string, listFile, outputPath string) error {
	e.concatPaths = paths
	e.listFile = listFile
	e.outputPath = outputPath
	if e.concatErr != nil {
		if e.partialOutput {
			if err := os.WriteFile(outputPath, []byte("trunc"), 0644); err != nil {
				return err
			}
		}
		return e.concatErr
	}
	return os.WriteFile(outputPath, []byte("combined"), 0644)
}

func (e *fakeEngine) AddAudio(ctx context.Context, videoPath, audioPath, outputPath string) (string, error) {
	return outputPath, nil
}

type testEnv struct {
	pipeline    *Pipeline
	repo        *SQLiteRepository
	fetcher     *fakeFetcher
	engine      *fakeEngine
	downloads   string
	outputs     string
	scratchRoot string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tmpDir := t.TempDir()

	database, err := db.New(filepath.Join(tmpDir, "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	env := &testEnv{
		repo:        NewRepository(database.Conn()),
		fetcher:     &fakeFetcher{payload: "clip data"},
		engine:      &fakeEngine{},
		downloads:   filepath.Join(tmpDir, "downloads"),
		outputs:     filepath.Join(tmpDir, "outputs"),
		scratchRoot: filepath.Join(tmpDir, "tmp"),
	}

	workspaces := workspace.NewManager(workspace.Config{
		DownloadsRoot: env.downloads,
		OutputRoot:    env.outputs,
		ScratchRoot:   env.scratchRoot,
	}, nil)

	env.pipeline = NewPipeline(workspaces, env.fetcher, env.engine, env.repo, nil)
	return env
}

func TestAssemble_Success(t *testing.T) {
	env := newTestEnv(t)
	urls := []string{
		"http://cdn.example/a.mp4",
		"http://cdn.example/b.mp4",
		"http://cdn.example/c.mp4",
	}

	result := env.pipeline.Assemble(context.Background(), Request{VideoURLs: urls})

	if !result.Success {
		t.Fatalf("Assemble() failed: %s", result.Error)
	}
	if result.ClipCount != 3 {
		t.Errorf("ClipCount = %d, want 3", result.ClipCount)
	}
	if result.BatchID == "" {
		t.Error("BatchID is empty")
	}

	wantName := "combined_" + result.BatchID + ".mp4"
	if filepath.Base(result.OutputPath) != wantName {
		t.Errorf("output name = %s, want %s", filepath.Base(result.OutputPath), wantName)
	}
	if result.DownloadRef != "/download/"+wantName {
		t.Errorf("DownloadRef = %s, want /download/%s", result.DownloadRef, wantName)
	}
	if _, err := os.Stat(result.OutputPath); err != nil {
		t.Errorf("output file missing: %v", err)
	}

	// Clips must be fed to the engine in request order.
	for i, p := range env.engine.concatPaths {
		want := fmt.Sprintf("clip_%03d.mp4", i+1)
		if filepath.Base(p) != want {
			t.Errorf("concat input %d = %s, want %s", i, filepath.Base(p), want)
		}
	}

	batch, err := env.repo.GetBatch(context.Background(), result.BatchID)
	if err != nil || batch == nil {
		t.Fatalf("GetBatch() = %v, %v", batch, err)
	}
	if batch.Status != StatusSucceeded {
		t.Errorf("batch status = %s, want %s", batch.Status, StatusSucceeded)
	}
	if batch.DownloadRef != result.DownloadRef {
		t.Errorf("batch download_ref = %s, want %s", batch.DownloadRef, result.DownloadRef)
	}
}

func TestAssemble_FailFast(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.failAt = 2
	urls := []string{
		"http://cdn.example/a.mp4",
		"http://cdn.example/b.mp4",
		"http://cdn.example/c.mp4",
	}

	result := env.pipeline.Assemble(context.Background(), Request{VideoURLs: urls})

	if result.Success {
		t.Fatal("Assemble() succeeded, want failure")
	}
	if len(env.fetcher.calls) != 2 {
		t.Errorf("fetch attempts = %d, want 2 (third URL must not be attempted)", len(env.fetcher.calls))
	}
	if !strings.Contains(result.Error, "clip 2 of 3") {
		t.Errorf("error %q does not identify the failing clip", result.Error)
	}
	if result.OutputPath != "" {
		t.Errorf("OutputPath = %s, want empty on failure", result.OutputPath)
	}

	batch, err := env.repo.GetBatch(context.Background(), result.BatchID)
	if err != nil || batch == nil {
		t.Fatalf("GetBatch() = %v, %v", batch, err)
	}
	if batch.Status != StatusFailed {
		t.Errorf("batch status = %s, want %s", batch.Status, StatusFailed)
	}
	if batch.Error == "" {
		t.Error("batch error is empty")
	}
}

func TestAssemble_EngineFailureKeepsClips(t *testing.T) {
	env := newTestEnv(t)
	env.engine.concatErr = errors.New("ffmpeg exited 1: codec mismatch")
	urls := []string{"http://cdn.example/a.mp4", "http://cdn.example/b.mp4"}

	result := env.pipeline.Assemble(context.Background(), Request{VideoURLs: urls})

	if result.Success {
		t.Fatal("Assemble() succeeded, want failure")
	}
	if !strings.Contains(result.Error, "codec mismatch") {
		t.Errorf("error %q does not carry the tool diagnostic", result.Error)
	}

	// Downloaded clips survive a failed concat for inspection.
	clipDir := filepath.Join(env.downloads, "batch_"+result.BatchID)
	entries, err := os.ReadDir(clipDir)
	if err != nil {
		t.Fatalf("ReadDir(%s) error = %v", clipDir, err)
	}
	if len(entries) != 2 {
		t.Errorf("surviving clips = %d, want 2", len(entries))
	}
}

func TestAssemble_PartialOutputRemovedOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.engine.concatErr = errors.New("ffmpeg exited 1: truncated input")
	env.engine.partialOutput = true

	result := env.pipeline.Assemble(context.Background(),
		Request{VideoURLs: []string{"http://cdn.example/a.mp4", "http://cdn.example/b.mp4"}})

	if result.Success {
		t.Fatal("Assemble() succeeded, want failure")
	}

	// A failed batch must not leave a fetchable file in the outputs root.
	partial := filepath.Join(env.outputs, "combined_"+result.BatchID+".mp4")
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Errorf("partial output %s still exists after failed concat", partial)
	}
}

func TestAssemble_ScratchCleanedBothWays(t *testing.T) {
	for name, concatErr := range map[string]error{
		"success": nil,
		"failure": errors.New("ffmpeg exited 1: boom"),
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			env.engine.concatErr = concatErr

			result := env.pipeline.Assemble(context.Background(),
				Request{VideoURLs: []string{"http://cdn.example/a.mp4"}})

			scratch := filepath.Join(env.scratchRoot, "batch_"+result.BatchID)
			if _, err := os.Stat(scratch); !os.IsNotExist(err) {
				t.Errorf("scratch dir %s still exists", scratch)
			}
		})
	}
}

func TestAssemble_EmptyRequest(t *testing.T) {
	env := newTestEnv(t)

	result := env.pipeline.Assemble(context.Background(), Request{})

	if result.Success {
		t.Fatal("Assemble() succeeded, want failure")
	}
	if result.Error != "no video URLs provided" {
		t.Errorf("error = %q, want 'no video URLs provided'", result.Error)
	}
	if len(env.fetcher.calls) != 0 {
		t.Errorf("fetch attempts = %d, want 0", len(env.fetcher.calls))
	}
}

func TestAssemble_EmptyDownloadRejected(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.payload = ""

	result := env.pipeline.Assemble(context.Background(),
		Request{VideoURLs: []string{"http://cdn.example/a.mp4"}})

	if result.Success {
		t.Fatal("Assemble() succeeded, want failure")
	}
	if !strings.Contains(result.Error, "is empty") {
		t.Errorf("error = %q, want empty-download diagnostic", result.Error)
	}
}

func TestAssemble_FreshBatchPerCall(t *testing.T) {
	env := newTestEnv(t)
	req := Request{VideoURLs: []string{"http://cdn.example/a.mp4"}}

	first := env.pipeline.Assemble(context.Background(), req)
	second := env.pipeline.Assemble(context.Background(), req)

	if first.BatchID == second.BatchID {
		t.Errorf("both runs got batch ID %s, want distinct IDs", first.BatchID)
	}
	if !first.Success || !second.Success {
		t.Errorf("runs failed: %q / %q", first.Error, second.Error)
	}
}
