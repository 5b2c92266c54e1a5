package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"ai-care-assistant-service/internal/apperr"
	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/service/session"
	"ai-care-assistant-service/internal/service/speech"
)

const (
	defaultRoom    = "default-room"
	maxUploadBytes = 32 << 20
)

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}

type transcribeResponse struct {
	Transcription string `json:"transcription"`
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.deps.Sessions.Next()
	if err != nil {
		l := requestLogger(r)
		l.Error().Err(err).Msg("Failed to create session")
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id})
}

func (h *handlers) issueToken(w http.ResponseWriter, r *http.Request) {
	l := requestLogger(r)

	room := r.URL.Query().Get("room")
	if room == "" {
		room = defaultRoom
	}
	participant := r.URL.Query().Get("username")
	if participant == "" {
		name, err := session.ParticipantName()
		if err != nil {
			h.deps.Metrics.RecordToken("error")
			l.Error().Err(err).Msg("Failed to generate participant name")
			writeError(w, http.StatusInternalServerError, "Failed to generate token")
			return
		}
		participant = name
	}

	tok, err := h.deps.Tokens.Issue(room, participant)
	switch {
	case errors.Is(err, apperr.ErrConfiguration):
		h.deps.Metrics.RecordToken("unconfigured")
		l.Error().Err(err).Msg("Room token requested without server credentials")
		writeError(w, http.StatusInternalServerError, "Server configuration error: Missing LiveKit credentials")
		return
	case err != nil:
		h.deps.Metrics.RecordToken("error")
		l.Error().Err(err).Msg("Failed to generate token")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.deps.Metrics.RecordToken("issued")
	l.Info().
		Str("room", room).
		Str("participant", participant).
		Msg("Room token issued")
	writeJSON(w, http.StatusOK, tok)
}

func (h *handlers) chatText(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := h.deps.Validator.Decode(r.Body, &req); err != nil {
		writeAppError(w, err, "Invalid request")
		return
	}

	resp, err := h.deps.Chat.Reply(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) transcribe(w http.ResponseWriter, r *http.Request) {
	l := requestLogger(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Audio file is required")
		return
	}

	req := models.TranscribeRequest{SessionID: r.FormValue("sessionId")}
	audio := speech.Audio{}
	if file, header, err := r.FormFile("audio"); err == nil {
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			l.Error().Err(err).Msg("Failed to read uploaded audio")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		req.Audio = data
		audio.Filename = header.Filename
		audio.ContentType = header.Header.Get("Content-Type")
	}
	if err := h.deps.Validator.Validate(&req); err != nil {
		writeAppError(w, err, "Internal server error")
		return
	}
	audio.Data = req.Audio

	text, err := h.deps.Transcriber.Transcribe(r.Context(), audio, req.SessionID)
	if err != nil {
		l.Error().Err(err).Str("sessionId", req.SessionID).Msg("Error transcribing audio")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Transcription: text})
}

func (h *handlers) synthesize(w http.ResponseWriter, r *http.Request) {
	var req models.SynthesizeRequest
	if err := h.deps.Validator.Decode(r.Body, &req); err != nil {
		writeAppError(w, err, "Internal server error")
		return
	}

	audio, err := h.deps.Synthesizer.Synthesize(r.Context(), req.Text, req.SessionID)
	if err != nil {
		l := requestLogger(r)
		l.Error().Err(err).Str("sessionId", req.SessionID).Msg("Error synthesizing speech")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
