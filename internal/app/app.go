package app

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-care-assistant-service/internal/config"
	"ai-care-assistant-service/internal/observability/logging"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	ready atomic.Bool
}

// New constructs a new Application from the provided configuration. The
// global logger must already be initialised.
func New(cfg *config.Configuration) *Application {
	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}

	a.Logger.Info().
		Str("environment", cfg.Service.Env).
		Str("chatProvider", cfg.Chat.Provider).
		Str("sttProvider", cfg.Speech.Provider).
		Str("transcriptSource", cfg.Transcript.Source).
		Msg("AI care assistant application created")
	return a
}

// Start marks the application ready to serve traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("AI care assistant service starting")

	return nil
}

// Ready reports whether Start has run and Shutdown has not.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Uptime is the time since Start, or zero before it.
func (a *Application) Uptime() time.Duration {
	if !a.Ready() {
		return 0
	}
	return time.Since(a.StartupTime)
}

// Shutdown flips readiness off so probes drain traffic before the servers
// stop.
func (a *Application) Shutdown() {
	a.ready.Store(false)

	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("AI care assistant service shutting down")
}
