// Package session generates opaque conversation session identifiers.
package session

import (
	"fmt"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 13
)

// Generator produces ids of the form session_<unix-ms>_<random>.
//
// Ids are unique in practice. They are not credentials and carry no
// session state.
type Generator struct {
	now func() time.Time
}

// New creates a Generator using the wall clock.
func New() *Generator {
	return &Generator{now: time.Now}
}

// NewWithClock creates a Generator with an injected clock.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Next returns a fresh session id.
func (g *Generator) Next() (string, error) {
	suffix, err := nanoid.Generate(idAlphabet, idLength)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return fmt.Sprintf("session_%d_%s", g.now().UnixMilli(), suffix), nil
}

// ParticipantName returns a default room participant name, user-<random>.
func ParticipantName() (string, error) {
	suffix, err := nanoid.Generate(idAlphabet, 6)
	if err != nil {
		return "", fmt.Errorf("generate participant name: %w", err)
	}
	return "user-" + suffix, nil
}
