package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"ai-care-assistant-service/internal/apperr"
	"ai-care-assistant-service/internal/observability/metrics"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return New("chat-backend", srv.URL+"/", srv.Client(), m), m
}

func TestPostJSON_Success(t *testing.T) {
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/text" {
			t.Errorf("expected /api/chat/text, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"message":"hi"}` {
			t.Errorf("unexpected body %s", body)
		}
		w.Write([]byte(`{"response":"hello"}`))
	})

	var out struct {
		Response string `json:"response"`
	}
	err := c.PostJSON(context.Background(), "/api/chat/text", map[string]string{"message": "hi"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response != "hello" {
		t.Errorf("expected hello, got %q", out.Response)
	}
	if v := testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("chat-backend", "success")); v != 1 {
		t.Errorf("expected 1 success, got %v", v)
	}
}

func TestPostJSON_ErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"detail", http.StatusBadGateway, `{"detail":"model offline"}`, "model offline"},
		{"error field", http.StatusInternalServerError, `{"error":"boom"}`, "boom"},
		{"plain text", http.StatusServiceUnavailable, "down for maintenance\n", "down for maintenance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := c.PostJSON(context.Background(), "/x", struct{}{}, nil)
			var uerr *apperr.UpstreamError
			if !errors.As(err, &uerr) {
				t.Fatalf("expected UpstreamError, got %v", err)
			}
			if uerr.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, uerr.StatusCode)
			}
			if uerr.Message != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, uerr.Message)
			}
			if !errors.Is(err, apperr.ErrUpstream) {
				t.Error("expected errors.Is ErrUpstream")
			}
			if v := testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("chat-backend", "error")); v != 1 {
				t.Errorf("expected 1 error, got %v", v)
			}
		})
	}
}

func TestPostJSON_InvalidBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	var out map[string]any
	err := c.PostJSON(context.Background(), "/x", struct{}{}, &out)
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestPost_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New("speech-backend", url, &http.Client{Timeout: time.Second}, metrics.NewMetrics(prometheus.NewRegistry()))
	_, err := c.Post(context.Background(), "/x", "text/plain", nil)

	var uerr *apperr.UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if uerr.StatusCode != 0 {
		t.Errorf("expected status 0 for transport failure, got %d", uerr.StatusCode)
	}
}

func TestPost_ContextCancelled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Post(ctx, "/x", "text/plain", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewHTTPClient(t *testing.T) {
	c, err := NewHTTPClient(5*time.Second, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", c.Timeout)
	}

	c, err = NewHTTPClient(time.Second, "127.0.0.1:1080")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.Transport.(*http.Transport); !ok {
		t.Errorf("expected custom transport, got %T", c.Transport)
	}
}
