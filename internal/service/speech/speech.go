// Package speech defines the speech collaborators behind the voice chat
// endpoints and the backend passthrough implementation.
package speech

import (
	"context"
)

// Audio is an uploaded recording.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Transcriber turns a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio, sessionID string) (string, error)
}

// Synthesizer turns text into MPEG audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, sessionID string) ([]byte, error)
}
