package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"photosync/internal/assets"
	"photosync/internal/config"
)

const userAgent = "photosync/0.1.0"

// UploadResult carries the server-assigned identifier for a delivered asset.
type UploadResult struct {
	ServerID string
}

// Transport performs one upload attempt for one asset.
type Transport interface {
	Upload(ctx context.Context, asset *assets.Asset) (UploadResult, error)
}

// ErrNoLocalFile indicates the asset record has no readable local payload.
var ErrNoLocalFile = errors.New("asset has no local file")

type serverResponse struct {
	ServerID string `json:"serverId"`
	Status   string `json:"status"`
}

// HTTPTransport uploads assets as multipart form posts to the backend API.
// Each call is bound by the configured upload timeout; a timeout surfaces as
// an ordinary error and flows through the standard retry path.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPTransport builds a transport from configuration.
func NewHTTPTransport(cfg *config.Config) *HTTPTransport {
	timeout := time.Duration(cfg.API.UploadTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(cfg.API.BaseURL, "/"),
		token:   cfg.API.Token,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Upload posts one asset to the backend. The client idempotency key rides
// along so the server can recognize a retried upload of the same item.
func (t *HTTPTransport) Upload(ctx context.Context, asset *assets.Asset) (UploadResult, error) {
	if asset == nil {
		return UploadResult{}, errors.New("asset is nil")
	}
	if strings.TrimSpace(asset.URI) == "" {
		return UploadResult{}, ErrNoLocalFile
	}

	file, err := os.Open(asset.URI)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open asset file: %w", err)
	}
	defer file.Close()

	body, contentType, err := buildForm(asset, file)
	if err != nil {
		return UploadResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/assets/upload", body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", asset.ClientKey)
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("send upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return UploadResult{}, fmt.Errorf("upload failed: %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed serverResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	if parsed.Status != "ok" || strings.TrimSpace(parsed.ServerID) == "" {
		return UploadResult{}, fmt.Errorf("server rejected upload: status=%q", parsed.Status)
	}

	return UploadResult{ServerID: parsed.ServerID}, nil
}

func buildForm(asset *assets.Asset, file io.Reader) (io.Reader, string, error) {
	var buf strings.Builder
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", asset.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy asset payload: %w", err)
	}

	fields := map[string]string{
		"filename":  asset.Filename,
		"mimeType":  asset.MimeType,
		"timestamp": strconv.FormatInt(asset.CapturedAt.UnixMilli(), 10),
		"clientKey": asset.ClientKey,
	}
	if asset.Latitude != nil {
		fields["latitude"] = strconv.FormatFloat(*asset.Latitude, 'f', -1, 64)
	}
	if asset.Longitude != nil {
		fields["longitude"] = strconv.FormatFloat(*asset.Longitude, 'f', -1, 64)
	}
	if asset.Category != "" {
		fields["category"] = asset.Category
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize form: %w", err)
	}
	return strings.NewReader(buf.String()), writer.FormDataContentType(), nil
}
