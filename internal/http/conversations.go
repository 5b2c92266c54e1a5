package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/service/conversation"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ingestResponse struct {
	Outcome  string                 `json:"outcome"`
	Position int                    `json:"position"`
	State    string                 `json:"state,omitempty"`
	Message  *models.DisplayMessage `json:"message,omitempty"`
}

type messagesResponse struct {
	ConversationID string                  `json:"conversationId"`
	Messages       []models.DisplayMessage `json:"messages"`
}

func writeHubError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrConversationEnded):
		writeError(w, http.StatusConflict, "Conversation ended")
	case errors.Is(err, conversation.ErrHubClosed):
		writeError(w, http.StatusServiceUnavailable, "Service shutting down")
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *handlers) ingestSegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var seg models.TranscriptSegment
	if err := h.deps.Validator.Decode(r.Body, &seg); err != nil {
		writeAppError(w, err, "Invalid request")
		return
	}

	res, err := h.deps.Conversations.Ingest(r.Context(), id, seg)
	if err != nil {
		writeHubError(w, err)
		return
	}

	body := ingestResponse{Outcome: res.Outcome.String(), Position: res.Position}
	if res.Position >= 0 {
		msg := res.Message
		body.Message = &msg
		body.State = res.State.String()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handlers) conversationMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msgs, found, err := h.deps.Conversations.Messages(r.Context(), id)
	if err != nil {
		writeHubError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{ConversationID: id, Messages: msgs})
}

func (h *handlers) endConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := h.deps.Conversations.End(r.Context(), id)
	if err != nil {
		writeHubError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamConversation sends the conversation snapshot, then one frame per
// reconciled change until the conversation ends or the client leaves.
func (h *handlers) streamConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l := requestLogger(r).With().Str("conversationId", id).Logger()

	sub, err := h.deps.Conversations.Subscribe(r.Context(), id)
	if err != nil {
		writeHubError(w, err)
		return
	}
	defer h.deps.Conversations.Unsubscribe(sub)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reads only to notice the client going away and to handle pongs.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	l.Debug().Int("messages", len(sub.Snapshot)).Msg("Stream client connected")

	snapshot := models.StreamFrame{
		Type:           models.FrameSnapshot,
		ConversationID: id,
		Messages:       sub.Snapshot,
	}
	if err := writeFrame(conn, snapshot); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			l.Debug().Msg("Stream client disconnected")
			return

		case u, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "conversation closed"),
					time.Now().Add(writeWait))
				return
			}
			msg := u.Message
			frame := models.StreamFrame{
				Type:           models.FrameUpsert,
				ConversationID: u.ConversationID,
				Position:       u.Position,
				Created:        u.Created,
				Message:        &msg,
			}
			if err := writeFrame(conn, frame); err != nil {
				l.Debug().Err(err).Msg("Stream write failed")
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, frame models.StreamFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}
