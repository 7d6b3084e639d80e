package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meltforce/ironlog/internal/models"
)

// HTTPClient implements DataSource by calling the ironlog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale or with a
// bearer token).
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. token,
// when set, is sent as a bearer token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) History(ctx context.Context) ([]models.WorkoutSession, error) {
	var sessions []models.WorkoutSession
	if err := c.get(ctx, "/api/v1/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) PersonalRecords(ctx context.Context) ([]models.PersonalRecord, error) {
	var prs []models.PersonalRecord
	if err := c.get(ctx, "/api/v1/records", nil, &prs); err != nil {
		return nil, err
	}
	return prs, nil
}

// UnlockedAchievements reads the catalog view of the server and keeps the
// unlocked entries.
func (c *HTTPClient) UnlockedAchievements(ctx context.Context) ([]models.UserAchievement, error) {
	var states []achievementState
	if err := c.get(ctx, "/api/v1/achievements", nil, &states); err != nil {
		return nil, err
	}
	out := []models.UserAchievement{}
	for _, st := range states {
		if !st.Unlocked || st.UnlockedAt == nil {
			continue
		}
		out = append(out, models.UserAchievement{AchievementID: st.ID, UnlockedAt: *st.UnlockedAt})
	}
	return out, nil
}

func (c *HTTPClient) CurrentWorkout(ctx context.Context) (*models.ActiveWorkout, error) {
	var resp struct {
		Workout *models.ActiveWorkout `json:"workout"`
	}
	if err := c.get(ctx, "/api/v1/workout", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Workout, nil
}
