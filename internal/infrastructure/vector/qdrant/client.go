package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/resilience"
)

const (
	sparseVectorName = "text"
	upsertBatchSize  = 64
)

// Client talks to one qdrant collection over the REST API.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) SetResilience(executor *resilience.Executor) {
	c.executor = executor
}

func (c *Client) Collection() string {
	return c.collection
}

type point struct {
	ID      string         `json:"id"`
	Vector  any            `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type scoredPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// RecreateDense drops the collection and creates it for unnamed dense vectors of the given size.
func (c *Client) RecreateDense(ctx context.Context, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("qdrant recreate %s: invalid vector size %d", c.collection, vectorSize)
	}
	return c.recreate(ctx, map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
}

// RecreateSparse drops the collection and creates it for the named sparse vector.
func (c *Client) RecreateSparse(ctx context.Context) error {
	return c.recreate(ctx, map[string]any{
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	})
}

func (c *Client) recreate(ctx context.Context, schema map[string]any) error {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	if err := c.do(ctx, "delete_collection", http.MethodDelete, url, nil, nil, http.StatusNotFound); err != nil {
		return err
	}
	return c.do(ctx, "create_collection", http.MethodPut, url, schema, nil)
}

func (c *Client) upsert(ctx context.Context, points []point) error {
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := c.do(ctx, "upsert", http.MethodPut, url, map[string]any{"points": points[start:end]}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) searchDense(ctx context.Context, vector []float32, limit int) ([]domain.Document, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.do(ctx, "search", http.MethodPost, url, reqBody, &resp); err != nil {
		return nil, err
	}
	return pointsToDocuments(resp.Result), nil
}

func (c *Client) searchSparse(ctx context.Context, vector sparseVector, limit int) ([]domain.Document, error) {
	if len(vector.Indices) == 0 {
		return []domain.Document{}, nil
	}
	reqBody := map[string]any{
		"query":        vector,
		"using":        sparseVectorName,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)
	if err := c.do(ctx, "query", http.MethodPost, url, reqBody, &resp); err != nil {
		return nil, err
	}
	return pointsToDocuments(resp.Result.Points), nil
}

// do sends one request through the resilience executor. Statuses listed in
// tolerated are treated as success.
func (c *Client) do(ctx context.Context, operation, method, url string, payload any, out any, tolerated ...int) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
	}

	err := resilience.Run(ctx, c.executor, "qdrant."+operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		for _, code := range tolerated {
			if resp.StatusCode == code {
				return nil
			}
		}
		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("qdrant", operation, resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, resilience.ClassifyHTTPError)
	return resilience.WrapTemporary("qdrant "+operation, err)
}

func documentPayload(doc domain.Document) map[string]any {
	payload := map[string]any{"content": doc.Content}
	if len(doc.Metadata) > 0 {
		meta := make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		payload["metadata"] = meta
	}
	return payload
}

func pointsToDocuments(points []scoredPoint) []domain.Document {
	out := make([]domain.Document, 0, len(points))
	for _, p := range points {
		content := getStringPayload(p.Payload, "content")
		if content == "" {
			continue
		}
		var meta map[string]string
		if raw, ok := p.Payload["metadata"].(map[string]any); ok && len(raw) > 0 {
			meta = make(map[string]string, len(raw))
			for k := range raw {
				meta[k] = getStringPayload(raw, k)
			}
		}
		out = append(out, domain.NewDocument(content, meta))
	}
	return out
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
