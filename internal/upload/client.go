package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meltforce/ironlog/internal/ingest"
)

// Response is the server's answer to an import.
type Response struct {
	Import ingest.Result `json:"import"`
	Resync struct {
		PersonalRecords []json.RawMessage `json:"personal_records"`
		Achievements    []json.RawMessage `json:"achievements"`
	} `json:"resync"`
}

// Client sends exports to an ironlog server over HTTP.
type Client struct {
	serverURL  string
	token      string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the ironlog server. token, when
// set, is sent as a bearer token.
func NewClient(serverURL, token string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		token:     token,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		backoff: time.Second,
	}
}

// SendExport POSTs an export to the server's import endpoint for format.
// Transport failures and 5xx responses are retried up to 3 times with
// exponential backoff; 4xx responses fail at once.
func (c *Client) SendExport(ctx context.Context, format string, data []byte) (*Response, error) {
	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff << uint(attempt-1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.serverURL+"/api/v1/import/"+format, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "text/csv")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			var out Response
			if err := json.Unmarshal(body, &out); err != nil {
				return nil, fmt.Errorf("decoding import response: %w", err)
			}
			return &out, nil
		case resp.StatusCode < 500:
			return nil, fmt.Errorf("import rejected (status %d): %s", resp.StatusCode, body)
		}
		lastErr = fmt.Errorf("import failed (status %d): %s", resp.StatusCode, body)
	}

	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}
