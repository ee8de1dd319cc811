// Package collector holds the source adapters that fetch raw storm signals
// and normalize them into domain events. Each upstream feed sits behind the
// same one-method contract, so sources are swappable and independently
// testable against fixture servers; adding a feed means implementing
// Collector and registering it with the engine.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/couchcryptid/storm-dol-service/internal/domain"
)

// Collector fetches the normalized events of one source for a geographic and
// temporal window. Implementations bound their own network calls with the
// configured timeout and must never block past it. A returned error is a
// soft failure: the engine proceeds without the source and degrades
// confidence instead of failing the request.
type Collector interface {
	Source() domain.Source
	FetchEvents(ctx context.Context, bbox domain.BoundingBox, window domain.TimeWindow) ([]domain.WeatherEvent, error)
}

// newHTTPClient builds the per-collector HTTP client. The client-level
// timeout is the hard ceiling even when the request context is longer-lived.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// getJSON issues a GET with the request context and decodes a 200 response
// body into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
