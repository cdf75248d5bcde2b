package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake video bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "clip_001.mp4")
	f := NewHTTPFetcher(5*time.Second, nil)

	if err := f.Fetch(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("destination file missing: %v", err)
	}
	if string(data) != "fake video bytes" {
		t.Errorf("file content = %q", data)
	}
}

func TestFetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such clip", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "clip_001.mp4")
	f := NewHTTPFetcher(5*time.Second, nil)

	err := f.Fetch(context.Background(), srv.URL, dest)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T, want *fetch.Error", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", fe.StatusCode)
	}
	if !strings.Contains(err.Error(), srv.URL) {
		t.Errorf("error %q should mention the URL", err.Error())
	}
}

func TestFetch_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "clip_001.mp4")
	f := NewHTTPFetcher(5*time.Second, nil)

	err := f.Fetch(context.Background(), srv.URL, dest)
	if err == nil {
		t.Fatal("expected error for empty body")
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Errorf("error %q should mention emptiness", err.Error())
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "clip_001.mp4")
	f := NewHTTPFetcher(50*time.Millisecond, nil)

	if err := f.Fetch(context.Background(), srv.URL, dest); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestFetch_BadURL(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "clip_001.mp4")
	f := NewHTTPFetcher(time.Second, nil)

	if err := f.Fetch(context.Background(), "http://127.0.0.1:0/clip.mp4", dest); err == nil {
		t.Fatal("expected error for unreachable host")
	}
}

func TestError_Format(t *testing.T) {
	e := &Error{URL: "http://example.com/a.mp4", StatusCode: 503, Reason: "unavailable"}
	got := e.Error()
	for _, want := range []string{"http://example.com/a.mp4", "503", "unavailable"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
}
