package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ai-care-assistant-service/internal/app"
	"ai-care-assistant-service/internal/observability"
	"ai-care-assistant-service/internal/observability/metrics"
	"ai-care-assistant-service/internal/schema"
	"ai-care-assistant-service/internal/service/chat"
	"ai-care-assistant-service/internal/service/conversation"
	"ai-care-assistant-service/internal/service/faq"
	"ai-care-assistant-service/internal/service/session"
	"ai-care-assistant-service/internal/service/speech"
	"ai-care-assistant-service/internal/service/token"
)

// Dependencies are the collaborators behind the HTTP API.
type Dependencies struct {
	App           *app.Application
	FAQ           *faq.Store
	Chat          *chat.Service
	Transcriber   speech.Transcriber
	Synthesizer   speech.Synthesizer
	Tokens        *token.Issuer
	Sessions      *session.Generator
	Conversations *conversation.Hub
	Validator     *schema.Validator
	Metrics       *metrics.Metrics
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(deps Dependencies) http.Handler {
	if deps.Validator == nil {
		deps.Validator = schema.New()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	h := &handlers{deps: deps}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMiddleware(deps.Metrics))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if deps.App != nil && !deps.App.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Post("/session", h.createSession)
	r.Get("/token", h.issueToken)

	r.Route("/chat", func(r chi.Router) {
		r.Post("/text", h.chatText)
		r.Post("/voice/transcribe", h.transcribe)
		r.Post("/voice/synthesize", h.synthesize)
	})

	r.Route("/faq", func(r chi.Router) {
		r.Get("/", h.listFAQ)
		r.Get("/categories", h.faqCategories)
		r.Get("/search", h.searchFAQ)
	})

	r.Route("/conversations/{id}", func(r chi.Router) {
		r.Post("/segments", h.ingestSegment)
		r.Get("/messages", h.conversationMessages)
		r.Get("/ws", h.streamConversation)
		r.Delete("/", h.endConversation)
	})

	return r
}
