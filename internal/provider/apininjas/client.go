package apininjas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.api-ninjas.com"
	defaultTimeout = 10 * time.Second
)

type Exercise struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Muscle       string `json:"muscle"`
	Equipment    string `json:"equipment"`
	Difficulty   string `json:"difficulty"`
	Instructions string `json:"instructions"`
}

type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// SearchExercises returns the exercises API Ninjas lists for a muscle group.
// An empty result is not an error.
func (c *Client) SearchExercises(ctx context.Context, muscle string) ([]Exercise, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("missing API Ninjas key (set API_NINJAS_KEY)")
	}
	muscle = strings.ToLower(strings.TrimSpace(muscle))
	if muscle == "" {
		return nil, fmt.Errorf("muscle is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	reqURL := fmt.Sprintf("%s/v1/exercises?muscle=%s", baseURL, url.QueryEscape(muscle))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create API Ninjas request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute API Ninjas request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read API Ninjas response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API Ninjas request failed with status %d", resp.StatusCode)
	}

	var out []Exercise
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode API Ninjas response: %w", err)
	}
	for i := range out {
		out[i].Name = strings.TrimSpace(out[i].Name)
		out[i].Instructions = strings.TrimSpace(out[i].Instructions)
	}
	return out, nil
}
