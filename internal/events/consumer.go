package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/observability/logging"
	"ai-care-assistant-service/internal/observability/metrics"
)

// SegmentHandler receives each decoded transcript segment together with
// the conversation (interaction) it belongs to.
type SegmentHandler func(ctx context.Context, conversationID string, seg models.TranscriptSegment)

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topics  []string
	GroupID string
	Metrics *metrics.Metrics
}

// Consumer reads transcript events from the partial and final topics.
type Consumer struct {
	reader  *kafka.Reader
	handle  SegmentHandler
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewConsumer creates a consumer group reader over the transcript topics.
func NewConsumer(cfg ConsumerConfig, handle SegmentHandler) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer requires at least one broker")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("kafka consumer requires at least one topic")
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})

	l := logging.WithComponent("kafka-consumer")
	l.Info().
		Strs("brokers", cfg.Brokers).
		Strs("topics", cfg.Topics).
		Str("groupId", cfg.GroupID).
		Msg("Kafka consumer initialized")

	return &Consumer{reader: reader, handle: handle, metrics: m, log: l}, nil
}

// Run reads until ctx is cancelled. Read errors are logged and retried
// after a short pause; undecodable messages are skipped.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).Msg("Kafka read error")
			c.metrics.RecordKafkaConsumeError("", "read")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	c.metrics.RecordKafkaConsume(msg.Topic)

	conversationID, seg, err := DecodeSegment(msg.Value)
	if err != nil {
		c.log.Warn().
			Err(err).
			Str("topic", msg.Topic).
			Int64("offset", msg.Offset).
			Msg("Skipping undecodable transcript event")
		c.metrics.RecordKafkaConsumeError(msg.Topic, "decode")
		return
	}

	c.handle(ctx, conversationID, seg)
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// transcriptEvent is the union of the partial and final transcript payloads.
type transcriptEvent struct {
	EventType     string      `json:"eventType"`
	InteractionID string      `json:"interactionId"`
	SegmentID     string      `json:"segmentId"`
	ParticipantID string      `json:"participantId"`
	Role          models.Role `json:"role"`
	Text          string      `json:"text"`
	IsFinal       *bool       `json:"isFinal"`
}

// DecodeSegment converts a transcript topic payload into a segment. The
// final flag comes from an explicit isFinal field when present, otherwise
// from the event type.
func DecodeSegment(value []byte) (string, models.TranscriptSegment, error) {
	var ev transcriptEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return "", models.TranscriptSegment{}, fmt.Errorf("decode transcript event: %w", err)
	}
	if ev.InteractionID == "" {
		return "", models.TranscriptSegment{}, errors.New("transcript event has no interactionId")
	}

	isFinal := ev.EventType == models.EventTypeFinal
	if ev.IsFinal != nil {
		isFinal = *ev.IsFinal
	}

	return ev.InteractionID, models.TranscriptSegment{
		ParticipantID: ev.ParticipantID,
		Text:          ev.Text,
		IsFinal:       isFinal,
		SegmentID:     ev.SegmentID,
		Role:          ev.Role,
	}, nil
}
