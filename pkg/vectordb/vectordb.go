package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseSizeBytes = 4 << 20

// Point is a single similarity-search hit.
type Point struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Index is the similarity-search contract the retrieval engine depends on.
type Index interface {
	SimilaritySearch(ctx context.Context, vector []float64, limit int, filters map[string]any) ([]Point, error)
}

type Config struct {
	URL        string        `split_words:"true" required:"true"`
	APIKey     string        `envconfig:"API_KEY" split_words:"true"`
	Collection string        `split_words:"true" default:"catalog"`
	Timeout    time.Duration `split_words:"true" default:"10s"`
}

// Client talks to a Qdrant-compatible vector index over REST.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("vectordb url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid vectordb url: %w", err)
	}

	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = "catalog"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		collection: collection,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type searchRequest struct {
	Vector      []float64      `json:"vector"`
	Limit       int            `json:"limit"`
	WithPayload bool           `json:"with_payload"`
	Filter      map[string]any `json:"filter,omitempty"`
}

type searchHit struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type searchResponse struct {
	Result []searchHit `json:"result"`
	Status any         `json:"status"`
}

func (c *Client) SimilaritySearch(ctx context.Context, vector []float64, limit int, filters map[string]any) ([]Point, error) {
	if len(vector) == 0 {
		return nil, errors.New("vectordb: empty query vector")
	}
	if limit <= 0 {
		limit = 10
	}

	body, err := json.Marshal(searchRequest{
		Vector:      vector,
		Limit:       limit,
		WithPayload: true,
		Filter:      filters,
	})
	if err != nil {
		return nil, fmt.Errorf("vectordb: marshal search request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vectordb: build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vectordb: execute search: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("vectordb: read search response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("vectordb: http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("vectordb: decode search response: %w", err)
	}

	points := make([]Point, 0, len(parsed.Result))
	for _, hit := range parsed.Result {
		points = append(points, Point{
			ID:      decodePointID(hit.ID),
			Score:   hit.Score,
			Payload: hit.Payload,
		})
	}
	return points, nil
}

// Qdrant point ids may be integers or UUID strings.
func decodePointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return fmt.Sprintf("%d", n)
	}
	return strings.Trim(string(raw), `"`)
}
