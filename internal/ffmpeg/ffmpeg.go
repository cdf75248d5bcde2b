// Package ffmpeg invokes the external ffmpeg binary for stream-copy
// concatenation and audio muxing. It never re-encodes: inputs are assumed to
// share a compatible codec/container profile, and a codec mismatch surfaces
// as the tool's own failure.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// ToolError reports a failed ffmpeg invocation: a non-zero exit or a binary
// that could not be started at all (ExitCode -1).
type ToolError struct {
	ExitCode   int
	StderrTail string
}

func (e *ToolError) Error() string {
	if e.ExitCode == -1 {
		return fmt.Sprintf("ffmpeg failed to run: %s", e.StderrTail)
	}
	return fmt.Sprintf("ffmpeg exited %d: %s", e.ExitCode, e.StderrTail)
}

// PostConditionError reports an invocation where the tool claimed success but
// the expected output is missing or empty. Kept distinct from ToolError for
// diagnosability.
type PostConditionError struct {
	Path   string
	Reason string
}

func (e *PostConditionError) Error() string {
	return fmt.Sprintf("ffmpeg reported success but output %s %s", e.Path, e.Reason)
}

// Engine is the narrow contract the assembly pipeline depends on, so the
// orchestrator can be tested with a fake that never spawns a process.
type Engine interface {
	// Concatenate stream-copies the given local files, in order, into
	// outputPath. listFile is where the concat manifest is written; the
	// caller owns its lifecycle (it lives in batch scratch space).
	Concatenate(ctx context.Context, paths []string, listFile, outputPath string) error

	// AddAudio muxes the video track of videoPath with the audio track of
	// audioPath, trimming to the shorter stream and copying the video codec
	// unmodified. It returns the resolved output path (derived from the
	// video path when outputPath is empty).
	AddAudio(ctx context.Context, videoPath, audioPath, outputPath string) (string, error)
}

// Config holds the tool's configuration.
type Config struct {
	FFmpegPath    string        // path to ffmpeg binary; empty = PATH lookup
	ConcatTimeout time.Duration // timeout for a concat invocation
	MuxTimeout    time.Duration // timeout for an audio mux invocation
	Logger        *slog.Logger
}

// Tool is the production Engine. The binary is resolved at invocation time,
// not construction time: a missing ffmpeg must fail the batch that needs it,
// not the whole process.
type Tool struct {
	cfg Config
}

func NewTool(cfg Config) *Tool {
	return &Tool{cfg: cfg}
}

// Probe checks whether the configured ffmpeg binary can be found. Used at
// startup to warn early; a failed probe does not disable assembly.
func (t *Tool) Probe() error {
	_, err := exec.LookPath(t.binary())
	return err
}

func (t *Tool) binary() string {
	if t.cfg.FFmpegPath != "" {
		return t.cfg.FFmpegPath
	}
	return "ffmpeg"
}

func (t *Tool) Concatenate(ctx context.Context, paths []string, listFile, outputPath string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no input files to concatenate")
	}

	if err := WriteConcatList(paths, listFile); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("cannot create output dir: %w", err)
	}

	err := t.run(ctx, t.cfg.ConcatTimeout,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outputPath,
	)
	if err != nil {
		return err
	}

	return verifyOutput(outputPath)
}

func (t *Tool) AddAudio(ctx context.Context, videoPath, audioPath, outputPath string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("input video does not exist: %s", videoPath)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("input audio does not exist: %s", audioPath)
	}

	outputPath = DeriveOutputPath(videoPath, outputPath)

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("cannot create output dir: %w", err)
		}
	}

	err := t.run(ctx, t.cfg.MuxTimeout,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-shortest",
		outputPath,
	)
	if err != nil {
		return "", err
	}

	if err := verifyOutput(outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// WriteConcatList writes a concat-demuxer manifest: one "file '<path>'" line
// per input, in order. Paths are made absolute so the tool's own working
// directory cannot change what gets concatenated.
func WriteConcatList(paths []string, listFile string) error {
	var b strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("cannot resolve %s: %w", p, err)
		}
		// The concat demuxer ends a quoted path at the next single quote;
		// a quote inside the path must be written as '\''.
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(listFile, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("cannot write concat list %s: %w", listFile, err)
	}
	return nil
}

// DeriveOutputPath resolves the mux output path. An empty outputPath becomes
// "<video-base>_with_audio<video-ext>" next to the video; a supplied path
// without an extension inherits the video's extension.
func DeriveOutputPath(videoPath, outputPath string) string {
	videoExt := filepath.Ext(videoPath)
	if strings.TrimSpace(outputPath) == "" {
		base := strings.TrimSuffix(filepath.Base(videoPath), videoExt)
		return filepath.Join(filepath.Dir(videoPath), base+"_with_audio"+videoExt)
	}
	if filepath.Ext(outputPath) == "" {
		return outputPath + videoExt
	}
	return outputPath
}

// run is the core subprocess execution helper.
func (t *Tool) run(ctx context.Context, timeout time.Duration, args ...string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, t.binary(), args...)

	// Capture stderr with bounded buffer; ffmpeg writes all diagnostics there.
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	if t.cfg.Logger != nil {
		t.cfg.Logger.Info("executing ffmpeg", "args", args)
	}

	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		if t.cfg.Logger != nil {
			t.cfg.Logger.Info("ffmpeg succeeded", "duration_ms", elapsed.Milliseconds())
		}
		return nil
	}

	exitCode := -1
	tail := stderrBuf.String()
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if tail == "" {
		// The process never started (binary missing, context expired before
		// launch); the Go error is the only diagnostic available.
		tail = err.Error()
	}

	// A killed process leaves ordinary-looking stderr; name the deadline so
	// a timeout is not mistaken for a genuine tool error.
	if ctxErr := ctx.Err(); ctxErr != nil && !strings.Contains(tail, ctxErr.Error()) {
		if tail != "" {
			tail += "; "
		}
		tail += ctxErr.Error()
	}

	if t.cfg.Logger != nil {
		t.cfg.Logger.Warn("ffmpeg failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(tail, 512),
		)
	}

	return &ToolError{ExitCode: exitCode, StderrTail: tail}
}

func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &PostConditionError{Path: path, Reason: "was not created"}
	}
	if info.Size() == 0 {
		return &PostConditionError{Path: path, Reason: "is empty"}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
