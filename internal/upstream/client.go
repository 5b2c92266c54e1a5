// Package upstream is the HTTP client used to reach external collaborators
// (chat backend, speech backend). Calls are single-shot; nothing is retried.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"ai-care-assistant-service/internal/apperr"
	"ai-care-assistant-service/internal/observability/logging"
	"ai-care-assistant-service/internal/observability/metrics"
)

// maxErrorBody bounds how much of a failed response is read for its detail.
const maxErrorBody = 4 << 10

// NewHTTPClient builds an http.Client with the given timeout. When
// socksAddr is set every connection is dialed through that SOCKS5 proxy.
func NewHTTPClient(timeout time.Duration, socksAddr string) (*http.Client, error) {
	if socksAddr == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer %s: %w", socksAddr, err)
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

// Client calls one collaborator rooted at a base URL.
type Client struct {
	service string
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates a Client. service names the collaborator in errors, logs and
// metrics.
func New(service, baseURL string, httpClient *http.Client, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Client{
		service: service,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		metrics: m,
		log:     logging.WithComponent("upstream").With().Str("service", service).Logger(),
	}
}

// Service returns the collaborator name.
func (c *Client) Service() string {
	return c.service
}

// PostJSON sends in as JSON to path and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", c.service, err)
	}

	resp, err := c.Post(ctx, path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperr.UpstreamError{Service: c.service, StatusCode: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}

// Post sends body to path. A non-2xx status is returned as an
// *apperr.UpstreamError and the response is closed; on success the caller
// owns the response body.
func (c *Client) Post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.service, err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		uerr := apperr.Upstream(c.service, err)
		c.metrics.RecordUpstream(c.service, uerr, time.Since(start).Seconds())
		c.log.Error().Err(err).Str("path", path).Msg("Upstream request failed")
		return nil, uerr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		uerr := &apperr.UpstreamError{
			Service:    c.service,
			StatusCode: resp.StatusCode,
			Message:    errorDetail(resp.Body),
		}
		c.metrics.RecordUpstream(c.service, uerr, time.Since(start).Seconds())
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("detail", uerr.Message).
			Msg("Upstream returned error status")
		return nil, uerr
	}

	c.metrics.RecordUpstream(c.service, nil, time.Since(start).Seconds())
	c.log.Debug().
		Int("status", resp.StatusCode).
		Str("path", path).
		Dur("latency", time.Since(start)).
		Msg("Upstream request completed")
	return resp, nil
}

// errorDetail extracts a message from an error body of the form
// {"detail": ...} or {"error": ...}, falling back to the raw text.
func errorDetail(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if s, ok := body.Detail.(string); ok && s != "" {
			return s
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
