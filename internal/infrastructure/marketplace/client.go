// Package marketplace contains the platform connector adapters. Each
// connector implements the domain MarketplaceConnector port for one
// platform, translating between the platform's wire shapes and the
// internal record representation.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "github.com/storesync/backend/internal/domain/sync"
)

// maxResponseSize is the maximum allowed response size from a platform API (10MB)
const maxResponseSize = 10 * 1024 * 1024

const defaultTimeout = 30 * time.Second

// httpClient is the shared transport all connectors use
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultTimeout,
	}
}

// doJSON performs an HTTP request with an optional JSON body and decodes the
// response. Any transport failure or 4xx/5xx status is surfaced as a single
// MarketplaceError attributed to the given platform and operation.
func doJSON(ctx context.Context, client *http.Client, platform domain.StoreType, op, method, url string, headers http.Header, body any) ([]byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, nil, domain.NewMarketplaceError(platform, op, 0, "failed to encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, domain.NewMarketplaceError(platform, op, 0, "failed to create request", err)
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, domain.NewMarketplaceError(platform, op, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, domain.NewMarketplaceError(platform, op, 0, "failed to read response", err)
	}

	if resp.StatusCode >= 400 {
		return nil, nil, domain.NewMarketplaceError(platform, op, resp.StatusCode, truncateMessage(respBody), nil)
	}

	return respBody, resp.Header, nil
}

// truncateMessage keeps upstream error bodies readable in logs
func truncateMessage(body []byte) string {
	const limit = 256
	s := string(body)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

// decodeRecords unmarshals a JSON response and extracts an array of objects
// under the given key, tolerating absent or differently-shaped payloads.
func decodeRecords(body []byte, key string) []domain.PlatformRecord {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	records := make([]domain.PlatformRecord, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			records = append(records, domain.PlatformRecord(m))
		}
	}
	return records
}

// decodeRecord unmarshals a JSON response and extracts a single object
// under the given key, or the whole payload when key is empty.
func decodeRecord(body []byte, key string) domain.PlatformRecord {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	if key == "" {
		return domain.PlatformRecord(payload)
	}
	if m, ok := payload[key].(map[string]any); ok {
		return domain.PlatformRecord(m)
	}
	return nil
}

// extractID pulls a record id out of a platform payload, stringifying
// numeric ids the way JSON decoding produces them.
func extractID(record domain.PlatformRecord, key string) string {
	v, ok := record[key]
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprintf("%v", id)
	}
}
