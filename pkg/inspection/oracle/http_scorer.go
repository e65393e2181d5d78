package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
)

// HTTPScorer asks a remote model server for a defect probability. The
// server receives the raw image as the request body and answers
// {"probability": 0.93}.
type HTTPScorer struct {
	URL    string
	Client *http.Client
}

type scoreResponse struct {
	Probability *float64 `json:"probability"`
}

// NewHTTPScorer uses http.DefaultClient when client is nil; the adapter's
// timeout bounds every call.
func NewHTTPScorer(url string, client *http.Client) *HTTPScorer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPScorer{URL: url, Client: client}
}

func (s *HTTPScorer) Score(ctx context.Context, image []byte) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(image))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mimetype.Detect(image).String())
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out scoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Probability == nil {
		return 0, fmt.Errorf("response has no probability")
	}
	return *out.Probability, nil
}
