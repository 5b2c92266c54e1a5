// Command audioclient uploads a WAV recording to the voice transcription
// endpoint and, optionally, asks the chat endpoint about the result.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/observability/logging"
)

func main() {
	audioFile := pflag.String("audio", "", "path to WAV file (16-bit PCM), required")
	server := pflag.String("server", "http://localhost:8080", "care assistant service base URL")
	ask := pflag.Bool("chat", false, "send the transcription to the chat endpoint")
	timeout := pflag.Duration("timeout", 60*time.Second, "overall request timeout")
	pflag.Parse()

	logCfg := logging.DefaultConfig()
	logCfg.Format = "console"
	logCfg.Service = "audioclient"
	logging.Init(logCfg)

	if *audioFile == "" {
		log.Fatal().Msg("--audio is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, strings.TrimRight(*server, "/"), *audioFile, *ask); err != nil {
		log.Fatal().Err(err).Msg("Audio client failed")
	}
}

func run(ctx context.Context, server, path string, ask bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}

	format, err := readWAVHeader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	log.Info().
		Uint16("channels", format.Channels).
		Uint32("sampleRate", format.SampleRate).
		Uint16("bitsPerSample", format.BitsPerSample).
		Msg("WAV file")
	if format.SampleRate != 16000 {
		log.Warn().Uint32("sampleRate", format.SampleRate).Msg("Sample rate differs from the 16000 Hz default")
	}

	var sess struct {
		SessionID string `json:"sessionId"`
	}
	if err := postJSON(ctx, server+"/session", nil, &sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	log.Info().Str("sessionId", sess.SessionID).Msg("Session created")

	transcription, err := transcribe(ctx, server, sess.SessionID, filepath.Base(path), data)
	if err != nil {
		return err
	}
	log.Info().Str("transcription", transcription).Msg("Transcription received")

	if !ask {
		return nil
	}

	var reply models.ChatResponse
	err = postJSON(ctx, server+"/chat/text", models.ChatRequest{Message: transcription, SessionID: sess.SessionID}, &reply)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	log.Info().
		Str("response", reply.Response).
		Strs("suggestions", reply.Suggestions).
		Msg("Chat reply")
	return nil
}

func transcribe(ctx context.Context, server, sessionID, filename string, audio []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("sessionId", sessionID); err != nil {
		return "", err
	}
	fw, err := w.CreateFormFile("audio", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/chat/voice/transcribe", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		Transcription string `json:"transcription"`
	}
	if err := do(req, &out); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return out.Transcription, nil
}

func postJSON(ctx context.Context, url string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req, out)
}

func do(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&e)
		return fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
