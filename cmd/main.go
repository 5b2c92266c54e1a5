package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	grpcapi "ai-care-assistant-service/internal/api/grpc"
	"ai-care-assistant-service/internal/app"
	"ai-care-assistant-service/internal/config"
	"ai-care-assistant-service/internal/events"
	httpapi "ai-care-assistant-service/internal/http"
	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/observability"
	"ai-care-assistant-service/internal/observability/logging"
	"ai-care-assistant-service/internal/observability/metrics"
	"ai-care-assistant-service/internal/schema"
	"ai-care-assistant-service/internal/service/chat"
	"ai-care-assistant-service/internal/service/conversation"
	"ai-care-assistant-service/internal/service/faq"
	"ai-care-assistant-service/internal/service/session"
	"ai-care-assistant-service/internal/service/speech"
	googlestt "ai-care-assistant-service/internal/service/speech/google"
	"ai-care-assistant-service/internal/service/token"
	"ai-care-assistant-service/internal/upstream"
)

const shutdownTimeout = 15 * time.Second

type flags struct {
	envFile          string
	mockConversation string
	mockInterval     time.Duration
}

func main() {
	var f flags
	pflag.StringVar(&f.envFile, "env", ".env", "optional .env file loaded before reading the environment")
	pflag.StringVar(&f.mockConversation, "mock-conversation", "demo", "conversation id fed by the mock transcript source")
	pflag.DurationVar(&f.mockInterval, "mock-interval", 400*time.Millisecond, "delay between mock transcript events")
	pflag.Parse()

	if err := config.LoadEnvFile(f.envFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", f.envFile, err)
		os.Exit(1)
	}
	cfg := config.Load()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Observability.LogLevel
	logCfg.Format = cfg.Observability.LogFormat
	if cfg.Service.Env == "dev" {
		logCfg.Format = "console"
	}
	logging.Init(logCfg)

	if err := run(cfg, f); err != nil {
		log.Fatal().Err(err).Msg("AI care assistant service failed")
	}
}

func run(cfg *config.Configuration, f flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg)
	m := metrics.DefaultMetrics

	store, err := loadFAQ(cfg.FAQ)
	if err != nil {
		return err
	}

	httpClient, err := upstream.NewHTTPClient(cfg.Backend.Timeout, cfg.Backend.SocksProxy)
	if err != nil {
		return err
	}
	backend := upstream.New("backend", cfg.Backend.URL, httpClient, m)

	chatService, err := newChatService(cfg.Chat, store, backend, httpClient, m)
	if err != nil {
		return err
	}

	transcriber, closeTranscriber, err := newTranscriber(ctx, cfg.Speech, backend, m)
	if err != nil {
		return err
	}
	defer closeTranscriber()

	publisher := events.New(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.Kafka.TopicMessages,
		Principal: cfg.Kafka.Principal,
		Metrics:   m,
	})
	defer publisher.Close()

	hub := conversation.NewHub(conversation.Options{
		UserAliases: cfg.Transcript.UserAliases,
		LockFinals:  cfg.Transcript.LockFinals,
		Publisher:   publisher,
		Metrics:     m,
	})
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	var sources sync.WaitGroup
	if err := startTranscriptSource(ctx, &sources, cfg, f, hub, m); err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.Dependencies{
		App:           application,
		FAQ:           store,
		Chat:          chatService,
		Transcriber:   transcriber,
		Synthesizer:   speech.NewBackend(backend),
		Tokens:        token.NewIssuer(token.Config{APIKey: cfg.LiveKit.APIKey, APISecret: cfg.LiveKit.APISecret, URL: cfg.LiveKit.URL, TTL: cfg.LiveKit.TokenTTL}),
		Sessions:      session.New(),
		Conversations: hub,
		Validator:     schema.New(),
		Metrics:       m,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcServer := grpcapi.New()
	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc :%s: %w", cfg.Service.GRPCPort, err)
	}

	obs := observability.NewServer(cfg.Observability.MetricsAddr, application.Ready)
	obs.Start()

	serveErr := make(chan error, 2)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Starting HTTP API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	if err := application.Start(); err != nil {
		return err
	}
	grpcServer.SetServing(true)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case runErr = <-serveErr:
		log.Error().Err(runErr).Msg("Server failed, shutting down")
	}

	application.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stop()
	// Stopping the hub closes every websocket stream.
	stopHub()
	<-hub.Done()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP API server shutdown error")
	}
	grpcServer.Stop(shutdownCtx)
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown error")
	}
	sources.Wait()

	log.Info().Msg("AI care assistant service stopped")
	return runErr
}

func loadFAQ(cfg config.FAQConfig) (*faq.Store, error) {
	if cfg.DataPath != "" {
		log.Info().Str("path", cfg.DataPath).Msg("Loading FAQ dataset from file")
		return faq.LoadFile(cfg.DataPath, cfg.DefaultLocale)
	}
	return faq.LoadEmbedded(cfg.DefaultLocale)
}

func newChatService(cfg config.ChatConfig, store *faq.Store, backend *upstream.Client, httpClient *http.Client, m *metrics.Metrics) (*chat.Service, error) {
	switch cfg.Provider {
	case "openai":
		suggester, err := chat.NewSuggester()
		if err != nil {
			return nil, err
		}
		p, err := chat.NewOpenAIProvider(chat.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.OpenAIModel,
			BaseURL:    cfg.OpenAIBaseURL,
			HTTPClient: httpClient,
		}, store, suggester, m)
		if err != nil {
			return nil, err
		}
		return chat.NewService(p), nil
	case "backend", "":
		return chat.NewService(chat.NewBackendProvider(backend)), nil
	default:
		return nil, fmt.Errorf("unknown CHAT_PROVIDER %q", cfg.Provider)
	}
}

func newTranscriber(ctx context.Context, cfg config.SpeechConfig, backend *upstream.Client, m *metrics.Metrics) (speech.Transcriber, func(), error) {
	switch cfg.Provider {
	case "google":
		t, err := googlestt.New(ctx, googlestt.Config{
			LanguageCode:  cfg.LanguageCode,
			SampleRateHz:  cfg.SampleRateHz,
			AudioEncoding: cfg.AudioEncoding,
		}, m)
		if err != nil {
			return nil, nil, err
		}
		return t, func() { _ = t.Close() }, nil
	case "backend", "":
		return speech.NewBackend(backend), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STT_PROVIDER %q", cfg.Provider)
	}
}

func startTranscriptSource(ctx context.Context, wg *sync.WaitGroup, cfg *config.Configuration, f flags, hub *conversation.Hub, m *metrics.Metrics) error {
	l := logging.WithComponent("transcript-source")

	switch cfg.Transcript.Source {
	case "kafka":
		consumer, err := events.NewConsumer(events.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topics:  []string{cfg.Kafka.TopicPartial, cfg.Kafka.TopicFinal},
			GroupID: cfg.Kafka.GroupID,
			Metrics: m,
		}, func(ctx context.Context, conversationID string, seg models.TranscriptSegment) {
			if _, err := hub.Ingest(ctx, conversationID, seg); err != nil {
				if errors.Is(err, conversation.ErrConversationEnded) {
					l.Debug().Str("conversationId", conversationID).Msg("Segment for ended conversation ignored")
					return
				}
				l.Warn().Err(err).Str("conversationId", conversationID).Msg("Failed to ingest segment")
			}
		})
		if err != nil {
			return err
		}
		runSource(ctx, wg, "kafka", consumer, l)

	case "mock":
		src := conversation.NewMockSource(hub, f.mockConversation, conversation.DemoUtterances, f.mockInterval, true)
		runSource(ctx, wg, "mock", src, l)

	case "none", "":
		l.Info().Msg("No transcript source; segments arrive over HTTP only")

	default:
		return fmt.Errorf("unknown TRANSCRIPT_SOURCE %q", cfg.Transcript.Source)
	}
	return nil
}

type transcriptSource interface {
	Run(ctx context.Context) error
}

// runSource runs src until ctx is cancelled, closing it afterwards when it
// is an io.Closer.
func runSource(ctx context.Context, wg *sync.WaitGroup, name string, src transcriptSource, l zerolog.Logger) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if c, ok := src.(io.Closer); ok {
			defer func() {
				if err := c.Close(); err != nil {
					l.Warn().Err(err).Str("source", name).Msg("Failed to close transcript source")
				}
			}()
		}
		if err := src.Run(ctx); err != nil {
			l.Error().Err(err).Str("source", name).Msg("Transcript source failed")
		}
	}()
}
