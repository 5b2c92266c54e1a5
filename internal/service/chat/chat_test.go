package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"ai-care-assistant-service/internal/apperr"
	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/observability/metrics"
	"ai-care-assistant-service/internal/upstream"
)

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func TestBackendProvider_ForwardsAndMaps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/text" {
			t.Errorf("expected /api/chat/text, got %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["message"] != "hello" || body["sessionId"] != "s1" {
			t.Errorf("unexpected body %v", body)
		}
		if hist, ok := body["conversationHistory"].([]any); !ok || len(hist) != 0 {
			t.Errorf("expected empty conversationHistory array, got %v", body["conversationHistory"])
		}
		w.Write([]byte(`{"response":"hi there","suggestions":["a","b"],"session_id":"s1","model_used":"agent"}`))
	}))
	defer srv.Close()

	p := NewBackendProvider(upstream.New("chat-backend", srv.URL, srv.Client(), testMetrics()))
	resp, err := p.Complete(context.Background(), models.ChatRequest{Message: "hello", SessionID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &models.ChatResponse{Response: "hi there", Suggestions: []string{"a", "b"}, SessionID: "s1", ModelUsed: "agent"}
	if !reflect.DeepEqual(resp, want) {
		t.Errorf("expected %+v, got %+v", want, resp)
	}
}

func TestBackendProvider_MissingSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"ok","session_id":"s1"}`))
	}))
	defer srv.Close()

	p := NewBackendProvider(upstream.New("chat-backend", srv.URL, srv.Client(), testMetrics()))
	resp, err := p.Complete(context.Background(), models.ChatRequest{Message: "m", SessionID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Suggestions == nil || len(resp.Suggestions) != 0 {
		t.Errorf("expected empty suggestions, got %v", resp.Suggestions)
	}
}

type failingProvider struct{ err error }

func (f failingProvider) Name() string { return "failing" }

func (f failingProvider) Complete(context.Context, models.ChatRequest) (*models.ChatResponse, error) {
	return nil, f.err
}

type staticProvider struct{ resp models.ChatResponse }

func (s staticProvider) Name() string { return "static" }

func (s staticProvider) Complete(context.Context, models.ChatRequest) (*models.ChatResponse, error) {
	r := s.resp
	return &r, nil
}

func TestService_FallbackOnUpstreamFailure(t *testing.T) {
	cause := &apperr.UpstreamError{Service: "chat-backend", StatusCode: 502, Message: "secret internal detail"}
	svc := NewService(failingProvider{err: cause})

	resp, err := svc.Reply(context.Background(), models.ChatRequest{Message: "m", SessionID: "s"})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
	if resp.Response != FallbackMessage {
		t.Errorf("expected fallback message, got %q", resp.Response)
	}
	if !reflect.DeepEqual(resp.Suggestions, []string{"Try again", "Browse FAQs", "Contact support"}) {
		t.Errorf("unexpected suggestions %v", resp.Suggestions)
	}
	if strings.Contains(resp.Error, "secret internal detail") {
		t.Error("expected upstream detail not to leak into the response")
	}
}

func TestService_FillsSessionID(t *testing.T) {
	svc := NewService(staticProvider{resp: models.ChatResponse{Response: "ok"}})

	resp, err := svc.Reply(context.Background(), models.ChatRequest{Message: "m", SessionID: "s-9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.SessionID != "s-9" {
		t.Errorf("expected s-9, got %q", resp.SessionID)
	}
}

func TestFallback_IsFreshCopy(t *testing.T) {
	a := Fallback()
	a.Suggestions[0] = "mutated"
	if Fallback().Suggestions[0] != "Try again" {
		t.Error("expected fallback suggestions to be unaffected")
	}
}

func TestSuggester(t *testing.T) {
	s, err := NewSuggester()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		message  string
		reply    string
		expected string // first suggestion
	}{
		{"testing where", "Where can I get a test?", "", "What types of tests exist?"},
		{"testing default", "I want a test", "", "Where can I get tested?"},
		{"prep", "Tell me about PrEP", "", "How to get PrEP?"},
		{"pep from reply", "What should I do after exposure?", "Take PEP quickly.", "Where to get PEP?"},
		{"family", "I am pregnant", "", "Prevention during pregnancy?"},
		{"reply cue", "Hmm", "Please see a doctor.", "How to find a specialist?"},
		{"question cue", "Why?", "Because.", "Tell me more"},
		{"question default", "Is it?", "Yes.", "Tell me more"},
		{"fallback", "ok", "sure", "Tell me more"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Suggest(tt.message, tt.reply)
			if len(got) == 0 {
				t.Fatal("expected suggestions")
			}
			if got[0] != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got[0])
			}
		})
	}
}

func TestRecentHistory(t *testing.T) {
	history := []models.ChatTurn{
		{Role: "user", Content: "1"},
		{Role: "assistant", Content: "2"},
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: ""},
		{Role: "user", Content: "3"},
		{Role: "assistant", Content: "4"},
		{Role: "user", Content: "5"},
	}

	got := recentHistory(history)
	var contents []string
	for _, turn := range got {
		contents = append(contents, turn.Content)
	}
	if want := []string{"2", "3", "4", "5"}; !reflect.DeepEqual(contents, want) {
		t.Errorf("expected %v, got %v", want, contents)
	}
}

type fakeKB map[string][]models.FAQItem

func (f fakeKB) Search(query, _ string) []models.FAQItem {
	return f[query]
}

func TestRelatedEntries_RanksByKeywordHits(t *testing.T) {
	a := models.FAQItem{ID: "a"}
	b := models.FAQItem{ID: "b"}
	c := models.FAQItem{ID: "c"}
	d := models.FAQItem{ID: "d"}
	kb := fakeKB{
		"prep":  {a, b},
		"cost":  {b, c},
		"daily": {b, d},
	}

	got := relatedEntries(kb, "Does PrEP cost much? Is it daily, and is PrEP safe?", "en")
	var ids []string
	for _, it := range got {
		ids = append(ids, it.ID)
	}
	if want := []string{"b", "a", "c"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

func newOpenAITestServer(t *testing.T, handler func(body map[string]any) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		status, resp := handler(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const completionJSON = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "PrEP is a daily pill."}}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestOpenAIProvider_Complete(t *testing.T) {
	var captured map[string]any
	srv := newOpenAITestServer(t, func(body map[string]any) (int, string) {
		captured = body
		return http.StatusOK, completionJSON
	})

	kb := fakeKB{"prep": {{ID: "4", Question: "What is PrEP?", Answer: "A prevention pill."}}}
	s, _ := NewSuggester()
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: srv.URL, HTTPClient: srv.Client()}, kb, s, testMetrics())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := p.Complete(context.Background(), models.ChatRequest{
		Message:   "what is prep",
		SessionID: "s1",
		ConversationHistory: []models.ChatTurn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Response != "PrEP is a daily pill." {
		t.Errorf("unexpected response %q", resp.Response)
	}
	if resp.ModelUsed != "gpt-4o-mini" || resp.SessionID != "s1" {
		t.Errorf("unexpected metadata %+v", resp)
	}
	if len(resp.Suggestions) == 0 {
		t.Error("expected suggestions")
	}

	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("expected system + 2 history + user messages, got %d", len(msgs))
	}
	last, _ := msgs[3].(map[string]any)
	if content, _ := last["content"].(string); !strings.Contains(content, "CONTEXT:") || !strings.Contains(content, "A prevention pill.") {
		t.Errorf("expected grounded prompt, got %q", content)
	}
}

func TestOpenAIProvider_Errors(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIConfig{}, nil, nil, nil); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}

	srv := newOpenAITestServer(t, func(map[string]any) (int, string) {
		return http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`
	})
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: srv.URL, HTTPClient: srv.Client()}, nil, nil, testMetrics())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Complete(context.Background(), models.ChatRequest{Message: "m", SessionID: "s"}); !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
}
