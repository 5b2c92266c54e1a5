// Package chat answers text chat messages through a configurable
// collaborator and shapes the client-facing response.
package chat

import (
	"context"

	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/upstream"
)

// Provider produces an assistant reply for a chat request.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

// backendRequest is the body forwarded to the chat backend.
type backendRequest struct {
	Message             string            `json:"message"`
	SessionID           string            `json:"sessionId"`
	ConversationHistory []models.ChatTurn `json:"conversationHistory"`
}

// backendResponse is the chat backend's reply; field names are snake_case.
type backendResponse struct {
	Response    string   `json:"response"`
	Suggestions []string `json:"suggestions"`
	SessionID   string   `json:"session_id"`
	ModelUsed   string   `json:"model_used"`
}

const backendChatPath = "/api/chat/text"

// BackendProvider forwards the request to the chat backend unchanged.
type BackendProvider struct {
	client *upstream.Client
}

// NewBackendProvider creates a provider over an upstream client.
func NewBackendProvider(client *upstream.Client) *BackendProvider {
	return &BackendProvider{client: client}
}

// Name implements Provider.
func (p *BackendProvider) Name() string { return "backend" }

// Complete implements Provider.
func (p *BackendProvider) Complete(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	history := req.ConversationHistory
	if history == nil {
		history = []models.ChatTurn{}
	}

	var out backendResponse
	if err := p.client.PostJSON(ctx, backendChatPath, backendRequest{
		Message:             req.Message,
		SessionID:           req.SessionID,
		ConversationHistory: history,
	}, &out); err != nil {
		return nil, err
	}

	suggestions := out.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return &models.ChatResponse{
		Response:    out.Response,
		Suggestions: suggestions,
		SessionID:   out.SessionID,
		ModelUsed:   out.ModelUsed,
	}, nil
}
