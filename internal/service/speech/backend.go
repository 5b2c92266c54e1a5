package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"

	"ai-care-assistant-service/internal/apperr"
	"ai-care-assistant-service/internal/upstream"
)

const (
	transcribePath = "/api/chat/voice/transcribe"
	synthesizePath = "/api/chat/voice/synthesize"

	// maxAudioResponse bounds synthesized audio read from the backend.
	maxAudioResponse = 32 << 20
)

// Backend forwards voice requests to the speech backend without altering
// their payloads.
type Backend struct {
	client *upstream.Client
}

// NewBackend creates a Backend over an upstream client.
func NewBackend(client *upstream.Client) *Backend {
	return &Backend{client: client}
}

// Transcribe implements Transcriber.
func (b *Backend) Transcribe(ctx context.Context, audio Audio, sessionID string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := audio.Filename
	if filename == "" {
		filename = "recording"
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := mw.WriteField("sessionId", sessionID); err != nil {
		return "", fmt.Errorf("write session field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	resp, err := b.client.Post(ctx, transcribePath, mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Transcription string `json:"transcription"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &apperr.UpstreamError{Service: b.client.Service(), StatusCode: resp.StatusCode, Message: "invalid transcription body", Err: err}
	}
	return out.Transcription, nil
}

// Synthesize implements Synthesizer.
func (b *Backend) Synthesize(ctx context.Context, text, sessionID string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"text": text, "sessionId": sessionID})
	if err != nil {
		return nil, fmt.Errorf("encode synthesize request: %w", err)
	}

	resp, err := b.client.Post(ctx, synthesizePath, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioResponse))
	if err != nil {
		return nil, apperr.Upstream(b.client.Service(), fmt.Errorf("read synthesized audio: %w", err))
	}
	return audio, nil
}
