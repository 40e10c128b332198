package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"coursenerd/internal/citation"
	"coursenerd/internal/logging"
)

const (
	// DefaultTimeout bounds a single request to the service.
	DefaultTimeout = 60 * time.Second

	// minQueryLength is the shortest query the service accepts.
	minQueryLength = 3

	maxResponseBytes = 4 << 20
)

// Client talks to a LightRAG-compatible knowledge base server.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	validate *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAPIKey sets the service API key.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// New creates a knowledge base client for the given server base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: DefaultTimeout},
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Query runs a retrieval query. The result's Status field carries the
// outcome classification; Query itself never returns an error.
func (c *Client) Query(ctx context.Context, params QueryParams) *QueryResult {
	trimmed := strings.TrimSpace(params.Query)
	if utf8.RuneCountInString(trimmed) < minQueryLength {
		return &QueryResult{
			Status: StatusBadRequest,
			Detail: fmt.Sprintf("query must be at least %d characters", minQueryLength),
		}
	}
	params.Query = trimmed
	if params.Mode == "" {
		params.Mode = "mix"
	}
	params.IncludeReferences = true

	if err := c.validate.Struct(params); err != nil {
		return &QueryResult{Status: StatusBadRequest, Detail: err.Error()}
	}

	timer := logging.StartTimer(logging.CategoryRetrieval, "kb query")
	defer timer.StopWithThreshold(10 * time.Second)

	body, status, err := c.post(ctx, "/query", params)
	if err != nil {
		return &QueryResult{Status: classifyTransportError(err), Detail: err.Error()}
	}

	switch {
	case status == http.StatusOK:
		// fall through to parse
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		logging.RetrievalWarn("kb rejected query: HTTP %d", status)
		return &QueryResult{Status: StatusBadRequest, Detail: extractDetail(body)}
	case status >= 500:
		logging.RetrievalError("kb server error: HTTP %d", status)
		return &QueryResult{Status: StatusServerError, Detail: fmt.Sprintf("HTTP %d: %s", status, extractDetail(body))}
	default:
		return &QueryResult{Status: StatusServerError, Detail: fmt.Sprintf("unexpected HTTP %d", status)}
	}

	var parsed struct {
		Response   string                  `json:"response"`
		References []citation.RawReference `json:"references"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &QueryResult{Status: StatusServerError, Detail: fmt.Sprintf("malformed response: %v", err)}
	}

	result := &QueryResult{
		Status:     StatusSuccess,
		Answer:     parsed.Response,
		References: parsed.References,
		Citations:  citation.ParseAll(parsed.References),
	}
	logging.RetrievalDebug("kb query ok: %d chars, %d citations", len(result.Answer), len(result.Citations))
	return result
}

// InsertText ingests a single document into the knowledge base.
func (c *Client) InsertText(ctx context.Context, text, description string) (*InsertResponse, error) {
	payload := map[string]string{"text": text}
	if description != "" {
		payload["description"] = description
	}

	body, status, err := c.post(ctx, "/documents/text", payload)
	if err != nil {
		return nil, fmt.Errorf("insert text: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("insert text: HTTP %d: %s", status, extractDetail(body))
	}

	var resp InsertResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("insert text: parse response: %w", err)
	}
	logging.Retrieval("ingested document, track_id=%s", resp.TrackID)
	return &resp, nil
}

// InsertTexts ingests a batch of documents in one request.
func (c *Client) InsertTexts(ctx context.Context, texts []string) (*InsertResponse, error) {
	if len(texts) == 0 {
		return nil, errors.New("insert texts: empty batch")
	}

	body, status, err := c.post(ctx, "/documents/texts", map[string][]string{"texts": texts})
	if err != nil {
		return nil, fmt.Errorf("insert texts: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("insert texts: HTTP %d: %s", status, extractDetail(body))
	}

	var resp InsertResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("insert texts: parse response: %w", err)
	}
	return &resp, nil
}

// PipelineStatus reports the state of the ingestion pipeline.
func (c *Client) PipelineStatus(ctx context.Context) (*PipelineStatus, error) {
	body, status, err := c.get(ctx, "/documents/pipeline_status")
	if err != nil {
		return nil, fmt.Errorf("pipeline status: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("pipeline status: HTTP %d", status)
	}

	var ps PipelineStatus
	if err := json.Unmarshal(body, &ps); err != nil {
		return nil, fmt.Errorf("pipeline status: parse response: %w", err)
	}
	return &ps, nil
}

// HealthCheck reports whether the service is reachable. It tries the
// health endpoint first and falls back to the pipeline status endpoint
// for older server builds. Never returns an error.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if _, status, err := c.get(ctx, "/health"); err == nil && status == http.StatusOK {
		return true
	}
	_, status, err := c.get(ctx, "/documents/pipeline_status")
	return err == nil && status == http.StatusOK
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return nil, 0, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// endpoint builds the request URL, adding the API key as a query
// parameter when configured. The service reads the key from the
// api_key_header_value parameter.
func (c *Client) endpoint(path string) string {
	u := c.baseURL + path
	if c.apiKey != "" {
		u += "?api_key_header_value=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// classifyTransportError separates deadline expiry from an unreachable
// service so callers can surface the right advice.
func classifyTransportError(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}
	return StatusConnectionError
}

// extractDetail pulls the FastAPI-style detail field out of an error
// body, falling back to the raw body text.
func extractDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			return s
		}
		return string(payload.Detail)
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 500 {
		detail = detail[:500]
	}
	return detail
}
