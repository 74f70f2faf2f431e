package sse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

// HTTPStreamer opens the upstream stream at BaseURL+Path with
// ?business_id=&event_types=. Its client must not carry a timeout: the
// stream is long-lived and ends only with ctx.
type HTTPStreamer struct {
	BaseURL string
	Path    string
	Token   string
	Client  *http.Client
}

func (s *HTTPStreamer) Stream(ctx context.Context, businessID uint, kinds []domain.EventKind) (io.ReadCloser, error) {
	q := url.Values{}
	if businessID > 0 {
		q.Set("business_id", strconv.FormatUint(uint64(businessID), 10))
	}
	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = k.Short()
		}
		q.Set("event_types", strings.Join(names, ","))
	}
	u := strings.TrimRight(s.BaseURL, "/") + s.Path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	hc := s.Client
	if hc == nil {
		hc = &http.Client{}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &domain.BackendError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return resp.Body, nil
}
