package chat

import (
	"context"

	"github.com/rs/zerolog"

	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/observability/logging"
)

// FallbackMessage is shown when the chat collaborator cannot answer.
const FallbackMessage = "I apologize, but I'm experiencing technical difficulties. Please try again in a moment."

// FallbackSuggestions accompany FallbackMessage.
var FallbackSuggestions = []string{"Try again", "Browse FAQs", "Contact support"}

// Fallback returns the user-safe response for a failed chat request.
func Fallback() *models.ChatResponse {
	return &models.ChatResponse{
		Response:    FallbackMessage,
		Suggestions: append([]string(nil), FallbackSuggestions...),
		Error:       "chat service unavailable",
	}
}

// Service answers chat messages through a Provider.
type Service struct {
	provider Provider
	log      zerolog.Logger
}

// NewService creates a Service.
func NewService(p Provider) *Service {
	return &Service{
		provider: p,
		log:      logging.WithComponent("chat").With().Str("provider", p.Name()).Logger(),
	}
}

// Reply answers req. On failure it returns the fallback response together
// with the error; the error detail is logged, never put in the response.
func (s *Service) Reply(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	resp, err := s.provider.Complete(ctx, req)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("sessionId", req.SessionID).
			Msg("Chat request failed, returning fallback")
		return Fallback(), err
	}
	if resp.SessionID == "" {
		resp.SessionID = req.SessionID
	}
	return resp, nil
}
