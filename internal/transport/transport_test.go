package transport_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photosync/internal/assets"
	"photosync/internal/config"
	"photosync/internal/transport"
)

func testAsset(t *testing.T) *assets.Asset {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	lat := 52.52
	return &assets.Asset{
		ID:         1,
		ClientKey:  "11111111-2222-4333-8444-555555555555",
		Filename:   "photo.jpg",
		MimeType:   "image/jpeg",
		CapturedAt: time.Unix(1700000000, 0),
		Latitude:   &lat,
		URI:        path,
		Category:   "Site",
	}
}

func transportFor(t *testing.T, url string, timeoutMs int) *transport.HTTPTransport {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = url
	cfg.API.Token = "secret-token"
	if timeoutMs > 0 {
		cfg.API.UploadTimeoutMs = timeoutMs
	}
	return transport.NewHTTPTransport(&cfg)
}

func TestUploadPostsMultipartForm(t *testing.T) {
	var gotIdempotency, gotAuth, gotFilename, gotClientKey string
	var gotFile []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/assets/upload" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotIdempotency = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotFilename = r.FormValue("filename")
		gotClientKey = r.FormValue("clientKey")
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			defer file.Close()
			buf := make([]byte, 32)
			n, _ := file.Read(buf)
			gotFile = buf[:n]
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","serverId":"srv-789"}`))
	}))
	t.Cleanup(srv.Close)

	tr := transportFor(t, srv.URL+"/api", 0)
	result, err := tr.Upload(context.Background(), testAsset(t))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if result.ServerID != "srv-789" {
		t.Fatalf("server id = %q", result.ServerID)
	}
	if gotIdempotency != "11111111-2222-4333-8444-555555555555" {
		t.Fatalf("idempotency key = %q", gotIdempotency)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotFilename != "photo.jpg" || gotClientKey == "" {
		t.Fatalf("form fields: filename=%q clientKey=%q", gotFilename, gotClientKey)
	}
	if string(gotFile) != "jpeg-bytes" {
		t.Fatalf("file payload = %q", gotFile)
	}
}

func TestUploadRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","serverId":""}`))
	}))
	t.Cleanup(srv.Close)

	tr := transportFor(t, srv.URL, 0)
	if _, err := tr.Upload(context.Background(), testAsset(t)); err == nil {
		t.Fatal("expected error for non-ok server status")
	}
}

func TestUploadRejectsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	tr := transportFor(t, srv.URL, 0)
	if _, err := tr.Upload(context.Background(), testAsset(t)); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestUploadTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	tr := transportFor(t, srv.URL, 50)
	start := time.Now()
	_, err := tr.Upload(context.Background(), testAsset(t))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestUploadRequiresLocalFile(t *testing.T) {
	tr := transportFor(t, "https://api.test.invalid", 0)
	asset := testAsset(t)
	asset.URI = ""
	if _, err := tr.Upload(context.Background(), asset); !errors.Is(err, transport.ErrNoLocalFile) {
		t.Fatalf("expected ErrNoLocalFile, got %v", err)
	}
}
