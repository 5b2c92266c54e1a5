package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/observability/logging"
	"ai-care-assistant-service/internal/service/transcript"
)

// Ingester accepts transcript segments for a conversation.
type Ingester interface {
	Ingest(ctx context.Context, conversationID string, seg models.TranscriptSegment) (transcript.Result, error)
}

// SegmentIDs generates per-conversation segment ids.
type SegmentIDs struct {
	counter uint64
}

// Next returns the next id for a conversation.
func (g *SegmentIDs) Next(conversationID string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-seg-%d", conversationID, n)
}

// SimulatedUtterance is one scripted turn: progressive partials, then the
// final text.
type SimulatedUtterance struct {
	ParticipantID string
	Partials      []string
	Final         string
}

// DemoUtterances is a short scripted exchange.
var DemoUtterances = []SimulatedUtterance{
	{
		ParticipantID: "patient-demo",
		Partials:      []string{"I think", "I think I was", "I think I was exposed"},
		Final:         "I think I was exposed to HIV last weekend",
	},
	{
		ParticipantID: "assistant-agent",
		Partials:      []string{"I'm glad", "I'm glad you reached out."},
		Final:         "I'm glad you reached out. PEP can prevent infection if started within 72 hours.",
	},
	{
		ParticipantID: "patient-demo",
		Partials:      []string{"Where", "Where can I", "Where can I get it"},
		Final:         "Where can I get PEP today?",
	},
	{
		ParticipantID: "assistant-agent",
		Partials:      []string{"An emergency room", "An emergency room or sexual health clinic"},
		Final:         "An emergency room or sexual health clinic can start PEP right away.",
	},
}

// MockSource replays simulated utterances into a conversation, standing in
// for the real-time room during local development.
type MockSource struct {
	ingester       Ingester
	conversationID string
	utterances     []SimulatedUtterance
	interval       time.Duration
	loop           bool
	ids            SegmentIDs
	log            zerolog.Logger
}

// NewMockSource creates a source for one conversation. interval is the
// delay between consecutive events.
func NewMockSource(ingester Ingester, conversationID string, utterances []SimulatedUtterance, interval time.Duration, loop bool) *MockSource {
	if len(utterances) == 0 {
		utterances = DemoUtterances
	}
	return &MockSource{
		ingester:       ingester,
		conversationID: conversationID,
		utterances:     utterances,
		interval:       interval,
		loop:           loop,
		log:            logging.WithConversation(conversationID).With().Str("component", "mock-source").Logger(),
	}
}

// Run emits events until the script ends (or, when looping, until ctx is
// cancelled). The conversation ending stops the source.
func (m *MockSource) Run(ctx context.Context) error {
	m.log.Info().Int("utterances", len(m.utterances)).Msg("Mock transcript source started")
	for {
		for _, u := range m.utterances {
			if err := m.play(ctx, u); err != nil {
				if ctx.Err() != nil || errors.Is(err, ErrConversationEnded) || errors.Is(err, ErrHubClosed) {
					m.log.Info().Err(err).Msg("Mock transcript source stopped")
					return nil
				}
				return err
			}
		}
		if !m.loop {
			return nil
		}
	}
}

func (m *MockSource) play(ctx context.Context, u SimulatedUtterance) error {
	segID := m.ids.Next(m.conversationID)

	emit := func(text string, final bool) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.interval):
		}
		_, err := m.ingester.Ingest(ctx, m.conversationID, models.TranscriptSegment{
			ParticipantID: u.ParticipantID,
			Text:          text,
			IsFinal:       final,
			SegmentID:     segID,
		})
		return err
	}

	for _, p := range u.Partials {
		if err := emit(p, false); err != nil {
			return err
		}
	}
	return emit(u.Final, true)
}
