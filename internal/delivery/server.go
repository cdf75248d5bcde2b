// Package delivery serves finished batch outputs over HTTP by filename. Only
// files directly inside the configured outputs root are reachable; the
// filename is validated before any filesystem access.
package delivery

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type Server struct {
	outputRoot string
	logger     *slog.Logger
}

func NewServer(outputRoot string, logger *slog.Logger) *Server {
	return &Server{outputRoot: outputRoot, logger: logger}
}

// ValidFilename reports whether name is a plain filename with no path
// component. Anything that could escape the outputs root is rejected before
// it reaches the filesystem.
func ValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	return filepath.Base(name) == name
}

// ServeOutput streams the named output file with byte-range support, so a
// browser can scrub the combined video without downloading it whole. Unknown
// and invalid names both answer 404; the response never reveals the output
// root layout.
func (s *Server) ServeOutput(w http.ResponseWriter, r *http.Request, filename string) error {
	if !ValidFilename(filename) {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}

	file, err := os.Open(filepath.Join(s.outputRoot, filename))
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("cannot open output: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat output: %w", err)
	}
	if stat.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}

	size := stat.Size()
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	parsedRange, err := ParseRange(r.Header.Get("Range"), size)

	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	// A malformed Range header degrades to a full response.
	if parsedRange == nil || err == ErrInvalidRange {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", parsedRange.ContentLength()))
	w.Header().Set("Content-Range", parsedRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(parsedRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("cannot seek output: %w", err)
	}

	io.CopyN(w, file, parsedRange.ContentLength())
	return nil
}
