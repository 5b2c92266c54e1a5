package chat

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"ai-care-assistant-service/internal/apperr"
	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/observability/logging"
	"ai-care-assistant-service/internal/observability/metrics"
)

const (
	openAIService = "openai"

	// historyWindow is how many prior turns are sent with each request.
	historyWindow = 4
	// contextItems is how many FAQ entries ground a reply.
	contextItems = 3
	// minKeywordLen skips short words when looking up FAQ context.
	minKeywordLen = 4

	maxReplyTokens = 300
)

const systemPrompt = `You are a supportive health information assistant.
Answer questions about HIV prevention, testing, treatment and living with HIV.
Keep answers short: one or two sentences of practical, actionable information.
Use a warm, non-judgmental tone.
Reply in the language the user writes in.
Base your answer on the CONTEXT section when one is given. If it does not cover
the question, say so politely and suggest talking to a healthcare provider.`

// KnowledgeBase supplies reference entries for grounding replies.
type KnowledgeBase interface {
	Search(query, locale string) []models.FAQItem
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAIProvider answers with an OpenAI chat completion grounded on FAQ
// entries related to the message.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	kb        KnowledgeBase
	suggester *Suggester
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewOpenAIProvider creates the provider. kb may be nil.
func NewOpenAIProvider(cfg OpenAIConfig, kb KnowledgeBase, suggester *Suggester, m *metrics.Metrics) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, apperr.Configuration("OPENAI_API_KEY", "Missing OpenAI API key")
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAIProvider{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		kb:        kb,
		suggester: suggester,
		metrics:   m,
		log:       logging.WithComponent("chat-openai"),
	}, nil
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return openAIService }

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemPrompt)}
	for _, turn := range recentHistory(req.ConversationHistory) {
		switch models.Role(turn.Role) {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(p.prompt(req)))

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               openai.ChatModel(p.model),
		MaxCompletionTokens: openai.Int(maxReplyTokens),
	})
	if err != nil {
		uerr := apperr.Upstream(openAIService, err)
		p.metrics.RecordUpstream(openAIService, uerr, time.Since(start).Seconds())
		return nil, uerr
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		uerr := &apperr.UpstreamError{Service: openAIService, Message: "empty completion"}
		p.metrics.RecordUpstream(openAIService, uerr, time.Since(start).Seconds())
		return nil, uerr
	}
	p.metrics.RecordUpstream(openAIService, nil, time.Since(start).Seconds())

	reply := resp.Choices[0].Message.Content
	p.log.Debug().
		Str("sessionId", req.SessionID).
		Str("model", resp.Model).
		Int64("totalTokens", resp.Usage.TotalTokens).
		Msg("Chat completion received")

	suggestions := []string{}
	if p.suggester != nil {
		suggestions = p.suggester.Suggest(req.Message, reply)
	}
	return &models.ChatResponse{
		Response:    reply,
		Suggestions: suggestions,
		SessionID:   req.SessionID,
		ModelUsed:   resp.Model,
	}, nil
}

// prompt wraps the message with related FAQ entries when any are found.
func (p *OpenAIProvider) prompt(req models.ChatRequest) string {
	if p.kb == nil {
		return req.Message
	}
	related := relatedEntries(p.kb, req.Message, req.Locale)
	if len(related) == 0 {
		return req.Message
	}

	var b strings.Builder
	b.WriteString("CONTEXT:\n")
	for i, it := range related {
		fmt.Fprintf(&b, "(Doc %d) Q: %s\nA: %s\n\n", i+1, it.Question, it.Answer)
	}
	b.WriteString("QUERY: ")
	b.WriteString(req.Message)
	return b.String()
}

// recentHistory keeps the last historyWindow user/assistant turns that
// carry content.
func recentHistory(history []models.ChatTurn) []models.ChatTurn {
	var kept []models.ChatTurn
	for _, turn := range history {
		if models.Role(turn.Role).Valid() && turn.Content != "" {
			kept = append(kept, turn)
		}
	}
	if len(kept) > historyWindow {
		kept = kept[len(kept)-historyWindow:]
	}
	return kept
}

// relatedEntries ranks FAQ entries by how many distinct message keywords
// they contain and returns the top contextItems.
func relatedEntries(kb KnowledgeBase, message, locale string) []models.FAQItem {
	type hit struct {
		item  models.FAQItem
		score int
		order int
	}
	hits := make(map[string]*hit)
	seen := make(map[string]bool)

	for _, word := range strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(word) < minKeywordLen || seen[word] {
			continue
		}
		seen[word] = true
		for _, it := range kb.Search(word, locale) {
			h, ok := hits[it.ID]
			if !ok {
				h = &hit{item: it, order: len(hits)}
				hits[it.ID] = h
			}
			h.score++
		}
	}

	ranked := make([]*hit, 0, len(hits))
	for _, h := range hits {
		ranked = append(ranked, h)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].order < ranked[j].order
	})

	if len(ranked) > contextItems {
		ranked = ranked[:contextItems]
	}
	out := make([]models.FAQItem, len(ranked))
	for i, h := range ranked {
		out[i] = h.item
	}
	return out
}
