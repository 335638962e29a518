package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/caremarket/backend/pkg/errors"
)

// Transport sends one query to one mirror
type Transport interface {
	Query(ctx context.Context, endpoint, query string) ([]entities.DirectoryElement, error)
}

// HTTPTransport talks to Overpass interpreter endpoints over HTTP
type HTTPTransport struct {
	httpClient *http.Client
	userAgent  string
}

type response struct {
	Elements []entities.DirectoryElement `json:"elements"`
	Remark   string                      `json:"remark,omitempty"`
}

// NewHTTPTransport creates a transport with the given per-request timeout
func NewHTTPTransport(timeout time.Duration, userAgent string) *HTTPTransport {
	return &HTTPTransport{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// Query posts the query form-encoded and decodes the element list.
// 429 and 504 come back as RATE_LIMITED; other failures as TRANSIENT; a cancelled ctx is returned as is.
func (t *HTTPTransport) Query(ctx context.Context, endpoint, query string) ([]entities.DirectoryElement, error) {
	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewTransientError(fmt.Sprintf("request to %s failed", endpoint), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusGatewayTimeout:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, apperrors.NewRateLimitedError(fmt.Sprintf("%s returned status %d", endpoint, resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, apperrors.NewTransientError(fmt.Sprintf("%s returned status %d", endpoint, resp.StatusCode), nil)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewTransientError(fmt.Sprintf("decode response from %s", endpoint), err)
	}

	// The server reports query timeouts and memory exhaustion in a 200 body with partial data
	if strings.Contains(out.Remark, "runtime error") {
		return nil, apperrors.NewRateLimitedError(fmt.Sprintf("%s aborted the query", endpoint), errors.New(out.Remark))
	}

	return out.Elements, nil
}
