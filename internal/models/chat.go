package models

// ChatTurn is one prior exchange passed along as conversation history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat/text.
type ChatRequest struct {
	Message             string     `json:"message" validate:"required"`
	SessionID           string     `json:"sessionId" validate:"required"`
	ConversationHistory []ChatTurn `json:"conversationHistory,omitempty"`
	// Locale selects the FAQ language used to ground replies. Optional.
	Locale string `json:"locale,omitempty"`
}

// ChatResponse is returned by the chat endpoint on success and, with Error
// set, as the fallback body when the chat collaborator fails.
type ChatResponse struct {
	Response    string   `json:"response"`
	Suggestions []string `json:"suggestions"`
	SessionID   string   `json:"sessionId,omitempty"`
	ModelUsed   string   `json:"modelUsed,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// SynthesizeRequest is the body of POST /chat/voice/synthesize.
type SynthesizeRequest struct {
	Text      string `json:"text" validate:"required"`
	SessionID string `json:"sessionId" validate:"required"`
}

// TranscribeRequest is the multipart form of POST /chat/voice/transcribe.
type TranscribeRequest struct {
	Audio     []byte `json:"audio" validate:"gt=0"`
	SessionID string `json:"sessionId" validate:"required"`
}
