// Package backend is the HTTP client of the platform API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

const defaultTimeout = 15 * time.Second

// Observer receives per-call metrics. status is 0 when no response arrived.
type Observer interface {
	BackendCall(op string, status int, elapsed time.Duration)
}

// Config captures the settings of the platform API client.
type Config struct {
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Observer     Observer
}

// Client implements ports.Backend over HTTP.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	observer Observer
	log      zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.ServiceToken,
		http:     hc,
		observer: cfg.Observer,
		log:      log,
	}
}

type bearerKey struct{}

// WithBearer attaches the caller's token to ctx. Calls made with ctx use it
// instead of the service token.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func (c *Client) bearer(ctx context.Context) string {
	if tok, ok := ctx.Value(bearerKey{}).(string); ok && tok != "" {
		return tok
	}
	return c.token
}

// envelope is the common response shape {success, message, error, data}.
type envelope struct {
	Success       *bool           `json:"success"`
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	Error         string          `json:"error"`
	CorrelationID string          `json:"correlation_id"`
	ShipmentID    json.RawMessage `json:"shipment_id"`
	Data          json.RawMessage `json:"data"`

	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func (e *envelope) hasData() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

func (e *envelope) decodeData(v any) error {
	if !e.hasData() {
		return fmt.Errorf("decode response: missing data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do issues one request. A non-2xx answer, or success=false, becomes a
// *domain.BackendError whose message is message, then error, then the
// status text.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (*envelope, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.bearer(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, start)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading body: %w", op, err)
	}

	env := &envelope{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if jerr := json.Unmarshal(raw, env); jerr != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("%s: decode response: %w", op, jerr)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (env.Success != nil && !*env.Success) {
		msg := firstNonEmpty(env.Message, env.Error, http.StatusText(resp.StatusCode))
		c.log.Warn().Str("op", op).Int("status", resp.StatusCode).Str("message", msg).Msg("backend call failed")
		return nil, &domain.BackendError{Status: resp.StatusCode, Message: msg}
	}

	c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("backend call")
	return env, nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.BackendCall(op, status, time.Since(start))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Ping checks the platform API is reachable. Any answer below 500 counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("ping: creating request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return &domain.BackendError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}
