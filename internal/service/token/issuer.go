// Package token issues signed access tokens for the real-time audio room.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	nanoid "github.com/matoous/go-nanoid/v2"

	"ai-care-assistant-service/internal/apperr"
)

// DefaultTTL is the validity window of issued tokens.
const DefaultTTL = time.Hour

// Config holds the server-held room credentials.
type Config struct {
	APIKey    string
	APISecret string
	URL       string // room server URL handed back to clients
	TTL       time.Duration
}

// VideoGrant is the room permission set carried in the token.
type VideoGrant struct {
	Room           string `json:"room,omitempty"`
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
}

// Claims follows the room server's access token layout: the API key is the
// issuer and the participant identity is the subject.
type Claims struct {
	jwt.RegisteredClaims
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
}

// RoomToken is the issued credential.
type RoomToken struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"-"`
}

// Issuer signs room tokens.
type Issuer struct {
	cfg Config
	now func() time.Time
}

// NewIssuer creates an Issuer. Missing credentials are reported per call so
// the rest of the service can run without them.
func NewIssuer(cfg Config) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Issuer{cfg: cfg, now: time.Now}
}

// Configured reports whether both credentials are present.
func (i *Issuer) Configured() bool {
	return i.cfg.APIKey != "" && i.cfg.APISecret != ""
}

// Issue returns a token granting participant join, publish, subscribe and
// publish-data rights on room.
func (i *Issuer) Issue(room, participant string) (*RoomToken, error) {
	if !i.Configured() {
		return nil, apperr.Configuration("LIVEKIT_API_KEY/LIVEKIT_API_SECRET", "Missing LiveKit credentials")
	}

	tokenID, err := nanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate token ID: %w", err)
	}

	now := i.now()
	exp := now.Add(i.cfg.TTL)
	yes := true
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.APIKey,
			Subject:   participant,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        tokenID,
		},
		Name: participant,
		Video: &VideoGrant{
			Room:           room,
			RoomJoin:       true,
			CanPublish:     &yes,
			CanSubscribe:   &yes,
			CanPublishData: &yes,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.APISecret))
	if err != nil {
		return nil, fmt.Errorf("sign room token: %w", err)
	}

	return &RoomToken{Token: signed, URL: i.cfg.URL, ExpiresAt: exp}, nil
}
