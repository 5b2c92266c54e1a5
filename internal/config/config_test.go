package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

var allEnvVars = []string{
	"SERVICE_PRINCIPAL", "HTTP_PORT", "GRPC_PORT", "ENV",
	"BACKEND_URL", "BACKEND_TIMEOUT", "UPSTREAM_SOCKS_PROXY",
	"CHAT_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"STT_PROVIDER", "STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ", "STT_AUDIO_ENCODING",
	"LIVEKIT_API_KEY", "LIVEKIT_API_SECRET", "LIVEKIT_URL", "ROOM_TOKEN_TTL",
	"FAQ_DEFAULT_LOCALE", "FAQ_DATA_PATH",
	"TRANSCRIPT_SOURCE", "TRANSCRIPT_USER_ALIASES", "TRANSCRIPT_LOCK_FINALS",
	"SCROLL_THRESHOLD", "SCROLL_SETTLE_DELAY",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_PARTIAL", "KAFKA_TOPIC_FINAL",
	"KAFKA_TOPIC_MESSAGES", "KAFKA_GROUP_ID", "KAFKA_PRINCIPAL",
	"LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR",
}

func clearEnv() {
	for _, v := range allEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "svc-care-assistant" {
		t.Errorf("expected default principal 'svc-care-assistant', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default http port '8080', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default grpc port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Backend.URL != "http://localhost:8000" {
		t.Errorf("expected default backend url, got %s", cfg.Backend.URL)
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("expected default backend timeout 30s, got %v", cfg.Backend.Timeout)
	}
	if cfg.Chat.Provider != "backend" {
		t.Errorf("expected default chat provider 'backend', got %s", cfg.Chat.Provider)
	}
	if cfg.Speech.Provider != "backend" {
		t.Errorf("expected default STT provider 'backend', got %s", cfg.Speech.Provider)
	}
	if cfg.LiveKit.TokenTTL != time.Hour {
		t.Errorf("expected default token ttl 1h, got %v", cfg.LiveKit.TokenTTL)
	}
	if cfg.LiveKit.APIKey != "" || cfg.LiveKit.APISecret != "" {
		t.Error("expected no LiveKit credentials by default")
	}
	if cfg.FAQ.DefaultLocale != "en" {
		t.Errorf("expected default locale 'en', got %s", cfg.FAQ.DefaultLocale)
	}
	if cfg.Transcript.Source != "none" {
		t.Errorf("expected default transcript source 'none', got %s", cfg.Transcript.Source)
	}
	if !reflect.DeepEqual(cfg.Transcript.UserAliases, []string{"patient", "user"}) {
		t.Errorf("expected default aliases [patient user], got %v", cfg.Transcript.UserAliases)
	}
	if cfg.Transcript.LockFinals {
		t.Error("expected finals to be unlocked by default")
	}
	if cfg.Scroll.Threshold != 100 {
		t.Errorf("expected default scroll threshold 100, got %v", cfg.Scroll.Threshold)
	}
	if cfg.Scroll.SettleDelay != 50*time.Millisecond {
		t.Errorf("expected default settle delay 50ms, got %v", cfg.Scroll.SettleDelay)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Kafka.TopicPartial != "interaction.transcript.partial" {
		t.Errorf("expected default partial topic, got %s", cfg.Kafka.TopicPartial)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	os.Setenv("BACKEND_URL", "http://backend:9000/")
	os.Setenv("BACKEND_TIMEOUT", "5s")
	os.Setenv("CHAT_PROVIDER", "openai")
	os.Setenv("LIVEKIT_API_KEY", "key")
	os.Setenv("LIVEKIT_API_SECRET", "secret")
	os.Setenv("ROOM_TOKEN_TTL", "30m")
	os.Setenv("TRANSCRIPT_USER_ALIASES", "caller, , guest")
	os.Setenv("TRANSCRIPT_LOCK_FINALS", "true")
	os.Setenv("SCROLL_THRESHOLD", "2")
	os.Setenv("KAFKA_ENABLED", "1")
	os.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	defer clearEnv()

	cfg := Load()

	if cfg.Backend.URL != "http://backend:9000" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Backend.URL)
	}
	if cfg.Backend.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Backend.Timeout)
	}
	if cfg.Chat.Provider != "openai" {
		t.Errorf("expected chat provider 'openai', got %s", cfg.Chat.Provider)
	}
	if cfg.LiveKit.APIKey != "key" || cfg.LiveKit.APISecret != "secret" {
		t.Error("expected LiveKit credentials to be loaded")
	}
	if cfg.LiveKit.TokenTTL != 30*time.Minute {
		t.Errorf("expected token ttl 30m, got %v", cfg.LiveKit.TokenTTL)
	}
	if !reflect.DeepEqual(cfg.Transcript.UserAliases, []string{"caller", "guest"}) {
		t.Errorf("expected aliases [caller guest], got %v", cfg.Transcript.UserAliases)
	}
	if !cfg.Transcript.LockFinals {
		t.Error("expected finals to be locked")
	}
	if cfg.Scroll.Threshold != 2 {
		t.Errorf("expected scroll threshold 2, got %v", cfg.Scroll.Threshold)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"k1:9092", "k2:9092"}) {
		t.Errorf("expected two brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv()
	os.Setenv("BACKEND_TIMEOUT", "soon")
	os.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("ROOM_TOKEN_TTL", "forever")
	os.Setenv("SCROLL_THRESHOLD", "far")
	os.Setenv("TRANSCRIPT_LOCK_FINALS", "maybe")
	defer clearEnv()

	cfg := Load()

	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("expected default timeout on invalid input, got %v", cfg.Backend.Timeout)
	}
	if cfg.Speech.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.Speech.SampleRateHz)
	}
	if cfg.LiveKit.TokenTTL != time.Hour {
		t.Errorf("expected default ttl on invalid input, got %v", cfg.LiveKit.TokenTTL)
	}
	if cfg.Scroll.Threshold != 100 {
		t.Errorf("expected default threshold on invalid input, got %v", cfg.Scroll.Threshold)
	}
	if cfg.Transcript.LockFinals {
		t.Error("expected default lock-finals on invalid input")
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv()

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv()
	defer clearEnv()

	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("expected missing env file to be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LIVEKIT_URL=wss://rooms.example\nHTTP_PORT=9999\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	os.Setenv("HTTP_PORT", "7000")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := Load()
	if cfg.LiveKit.URL != "wss://rooms.example" {
		t.Errorf("expected LIVEKIT_URL from env file, got %s", cfg.LiveKit.URL)
	}
	if cfg.Service.HTTPPort != "7000" {
		t.Errorf("expected existing env to win over env file, got %s", cfg.Service.HTTPPort)
	}
}
