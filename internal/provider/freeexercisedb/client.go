package freeexercisedb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultDatasetURL   = "https://raw.githubusercontent.com/yuhonas/free-exercise-db/main/dist/exercises.json"
	DefaultImageBaseURL = "https://raw.githubusercontent.com/yuhonas/free-exercise-db/main/exercises"
	defaultTimeout      = 20 * time.Second
	userAgent           = "flex-cli/1.0 (+https://github.com/flexfitness/flex-cli)"
)

// ErrUnexpectedPayload is returned when the dataset is valid JSON but not a
// JSON array.
var ErrUnexpectedPayload = errors.New("unexpected payload when fetching exercise dataset")

// SourceID holds the upstream "id", which is usually a string but is accepted
// as a number too.
type SourceID string

func (id *SourceID) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*id = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*id = SourceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("exercise id must be a string or number: %w", err)
	}
	// A zero id is treated like a missing one.
	if n.String() == "0" {
		*id = ""
		return nil
	}
	*id = SourceID(n.String())
	return nil
}

type Exercise struct {
	ID               SourceID `json:"id"`
	Name             string   `json:"name"`
	Force            string   `json:"force"`
	Level            string   `json:"level"`
	Mechanic         string   `json:"mechanic"`
	Equipment        string   `json:"equipment"`
	Category         string   `json:"category"`
	PrimaryMuscles   []string `json:"primaryMuscles"`
	SecondaryMuscles []string `json:"secondaryMuscles"`
	Instructions     []string `json:"instructions"`
	Images           []string `json:"images"`
}

type Client struct {
	DatasetURL   string
	ImageBaseURL string
	HTTPClient   *http.Client
	// Timeout bounds each request independently. Zero means 20s.
	Timeout time.Duration
}

// FetchExercises downloads the whole dataset. Any transport failure, non-2xx
// status or non-array payload is returned as an error; nothing is retried.
func (c *Client) FetchExercises(ctx context.Context) ([]Exercise, error) {
	datasetURL := strings.TrimSpace(c.DatasetURL)
	if datasetURL == "" {
		datasetURL = DefaultDatasetURL
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, datasetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create exercise dataset request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute exercise dataset request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read exercise dataset response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("exercise dataset request failed with status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode exercise dataset: invalid JSON")
	}
	if !gjson.ParseBytes(body).IsArray() {
		return nil, ErrUnexpectedPayload
	}

	var out []Exercise
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode exercise dataset: %w", err)
	}
	return out, nil
}

// DownloadFile streams url into dest. The body goes to a temporary file first
// so a failed transfer never leaves a truncated image behind.
func (c *Client) DownloadFile(ctx context.Context, url, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create image request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("execute image request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("image request failed with status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("create temporary image file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("move image into place: %w", err)
	}
	return nil
}

// BuildImageURLs derives the main and secondary image URLs from the dataset's
// path convention: {base}/{equipment-slug}/{Name_With_Underscores}/{file}.
// Missing slots are returned as "".
func (c *Client) BuildImageURLs(images []string, equipment, name string) (string, string) {
	if len(images) == 0 {
		return "", ""
	}
	base := strings.TrimRight(strings.TrimSpace(c.ImageBaseURL), "/")
	if base == "" {
		base = DefaultImageBaseURL
	}
	slug := strings.ReplaceAll(strings.ToLower(equipment), " ", "-")
	if equipment == "" {
		slug = "other"
	}
	exerciseName := strings.ReplaceAll(name, " ", "_")
	build := func(file string) string {
		return fmt.Sprintf("%s/%s/%s/%s", base, slug, exerciseName, file)
	}

	primary := build(images[0])
	second := ""
	if len(images) > 1 {
		second = build(images[1])
	}
	return primary, second
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.timeout()}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}
