// Package models defines the data structures shared across the service.
package models

// Role identifies which side of the conversation produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// TranscriptSegment is one transcription event for an utterance. The same
// SegmentID arrives repeatedly while the utterance is refined; the last
// arrival carries IsFinal = true.
type TranscriptSegment struct {
	ParticipantID string `json:"participantId"`
	Text          string `json:"text"`
	IsFinal       bool   `json:"isFinal"`
	SegmentID     string `json:"segmentId" validate:"required"`
	// Role is an optional explicit tag from the room collaborator. When set
	// it takes precedence over the participant naming convention.
	Role Role `json:"role,omitempty"`
}

// DisplayMessage is the reconciled, render-ready view of one segment.
type DisplayMessage struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	IsFinal   bool   `json:"isFinal"`
}

// TranscriptPartial represents an interim/partial transcript result as
// published on the partial transcript topic.
type TranscriptPartial struct {
	EventType     string `json:"eventType"`
	InteractionID string `json:"interactionId"`
	TenantID      string `json:"tenantId"`
	Timestamp     int64  `json:"timestamp"`
	SegmentID     string `json:"segmentId"`
	ParticipantID string `json:"participantId,omitempty"`
	Role          Role   `json:"role,omitempty"`
	Text          string `json:"text"`
}

// TranscriptFinal represents a final transcript result with confidence score.
type TranscriptFinal struct {
	EventType     string  `json:"eventType"`
	InteractionID string  `json:"interactionId"`
	TenantID      string  `json:"tenantId"`
	Timestamp     int64   `json:"timestamp"`
	SegmentID     string  `json:"segmentId"`
	ParticipantID string  `json:"participantId,omitempty"`
	Role          Role    `json:"role,omitempty"`
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	AudioOffsetMs int64   `json:"audioOffsetMs"`
}

// Transcript event types carried in the eventType field.
const (
	EventTypePartial = "interaction.transcript.partial"
	EventTypeFinal   = "interaction.transcript.final"
)

// MessageUpserted is published whenever a conversation's display message is
// created or changed.
type MessageUpserted struct {
	EventType      string         `json:"eventType"`
	ConversationID string         `json:"conversationId"`
	Position       int            `json:"position"`
	Created        bool           `json:"created"`
	Message        DisplayMessage `json:"message"`
	Timestamp      int64          `json:"timestamp"`
}

// EventTypeMessageUpserted is the eventType of MessageUpserted.
const EventTypeMessageUpserted = "conversation.message.upserted"

// Stream frame types sent on a conversation websocket.
const (
	FrameSnapshot = "snapshot"
	FrameUpsert   = "upsert"
)

// StreamFrame is one websocket message: a full snapshot on connect, then
// one upsert per reconciled change. An upsert with Created set appends at
// Position; otherwise it replaces the message at Position.
type StreamFrame struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversationId"`
	Messages       []DisplayMessage `json:"messages,omitempty"`
	Position       int              `json:"position"`
	Created        bool             `json:"created,omitempty"`
	Message        *DisplayMessage  `json:"message,omitempty"`
}
