package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tbourn/go-chat-rooms/internal/domain"
)

// ErrRejected is returned when the generator refuses the source for good.
// Retrying such a job is pointless.
var ErrRejected = errors.New("thumbnail: source rejected")

// Generator derives a thumbnail from a stored upload and returns the blob
// key of the thumbnail.
type Generator interface {
	Generate(ctx context.Context, f domain.FileUpload) (string, error)
}

// HTTPGenerator calls an external thumbnail service:
//
//	POST <URL> {"source": "<blob key>", "kind": "IMAGE|VIDEO"}
//	200 {"key": "<thumbnail blob key>"}
//
// 4xx answers are permanent failures; everything else is retried by the
// queue.
type HTTPGenerator struct {
	URL    string
	Client *http.Client
}

// NewHTTPGenerator returns a generator posting to url.
func NewHTTPGenerator(url string) *HTTPGenerator {
	return &HTTPGenerator{URL: url, Client: &http.Client{Timeout: 60 * time.Second}}
}

type generateRequest struct {
	Source string          `json:"source"`
	Kind   domain.FileKind `json:"kind"`
}

type generateResponse struct {
	Key string `json:"key"`
}

// Generate implements Generator.
func (g *HTTPGenerator) Generate(ctx context.Context, f domain.FileUpload) (string, error) {
	body, err := json.Marshal(generateRequest{Source: f.BlobKey, Kind: f.Kind})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("thumbnail: call generator: %w", err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("thumbnail: read response: %w", err)
	}

	switch {
	case res.StatusCode >= 400 && res.StatusCode < 500:
		return "", fmt.Errorf("%w: status %d", ErrRejected, res.StatusCode)
	case res.StatusCode != http.StatusOK:
		return "", fmt.Errorf("thumbnail: generator status %d", res.StatusCode)
	}
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("thumbnail: decode response: %w", err)
	}
	if out.Key == "" {
		return "", fmt.Errorf("%w: empty key", ErrRejected)
	}
	return out.Key, nil
}
