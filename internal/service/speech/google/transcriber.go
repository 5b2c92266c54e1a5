// Package google provides a Google Cloud Speech-to-Text transcriber.
package google

import (
	"context"
	"strings"
	"time"

	gspeech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"

	"ai-care-assistant-service/internal/apperr"
	"ai-care-assistant-service/internal/observability/logging"
	"ai-care-assistant-service/internal/observability/metrics"
	"ai-care-assistant-service/internal/service/speech"
)

const serviceName = "google-stt"

// Config holds recognition settings.
type Config struct {
	LanguageCode  string
	SampleRateHz  int
	AudioEncoding string
}

// DefaultConfig matches browser MediaRecorder uploads.
func DefaultConfig() Config {
	return Config{
		LanguageCode:  "en-US",
		SampleRateHz:  16000,
		AudioEncoding: "WEBM_OPUS",
	}
}

// recognizer is the subset of the Speech client used here.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	Close() error
}

type clientRecognizer struct {
	c *gspeech.Client
}

func (r clientRecognizer) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return r.c.Recognize(ctx, req)
}

func (r clientRecognizer) Close() error {
	return r.c.Close()
}

// Transcriber implements speech.Transcriber with synchronous recognition.
type Transcriber struct {
	rec     recognizer
	cfg     Config
	metrics *metrics.Metrics
	log     zerolog.Logger
}

var _ speech.Transcriber = (*Transcriber)(nil)

// New creates a Transcriber.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config, m *metrics.Metrics) (*Transcriber, error) {
	c, err := gspeech.NewClient(ctx)
	if err != nil {
		return nil, apperr.Configuration("GOOGLE_APPLICATION_CREDENTIALS", "speech client: "+err.Error())
	}
	return newTranscriber(clientRecognizer{c: c}, cfg, m), nil
}

func newTranscriber(rec recognizer, cfg Config, m *metrics.Metrics) *Transcriber {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Transcriber{
		rec:     rec,
		cfg:     cfg,
		metrics: m,
		log:     logging.WithComponent("google-stt"),
	}
}

// Transcribe implements speech.Transcriber. Results are joined in order
// using each result's top alternative.
func (t *Transcriber) Transcribe(ctx context.Context, audio speech.Audio, sessionID string) (string, error) {
	start := time.Now()
	resp, err := t.rec.Recognize(ctx, t.request(audio.Data))
	if err != nil {
		uerr := apperr.Upstream(serviceName, err)
		t.metrics.RecordUpstream(serviceName, uerr, time.Since(start).Seconds())
		return "", uerr
	}
	t.metrics.RecordUpstream(serviceName, nil, time.Since(start).Seconds())

	text := joinResults(resp.GetResults())
	t.log.Debug().
		Str("sessionId", sessionID).
		Int("results", len(resp.GetResults())).
		Int("chars", len(text)).
		Msg("Audio transcribed")
	return text, nil
}

// Close releases the underlying client.
func (t *Transcriber) Close() error {
	return t.rec.Close()
}

func (t *Transcriber) request(audio []byte) *speechpb.RecognizeRequest {
	return &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(t.cfg.AudioEncoding),
			SampleRateHertz:            int32(t.cfg.SampleRateHz),
			LanguageCode:               t.cfg.LanguageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}
}

func joinResults(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		if s := strings.TrimSpace(r.GetAlternatives()[0].GetTranscript()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// parseAudioEncoding maps an encoding name to the API enum, falling back to
// LINEAR16.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[name]; ok && v != int32(speechpb.RecognitionConfig_ENCODING_UNSPECIFIED) {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_LINEAR16
}
