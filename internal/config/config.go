// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	Backend       BackendConfig
	Chat          ChatConfig
	Speech        SpeechConfig
	LiveKit       LiveKitConfig
	FAQ           FAQConfig
	Transcript    TranscriptConfig
	Scroll        ScrollConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
	GRPCPort  string
	Env       string
}

// BackendConfig points at the external chat/speech backend.
type BackendConfig struct {
	URL        string
	Timeout    time.Duration
	SocksProxy string // optional host:port of a SOCKS5 proxy for outbound calls
}

// ChatConfig selects the chat collaborator.
type ChatConfig struct {
	Provider      string // backend, openai
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

// SpeechConfig selects the speech-to-text collaborator.
type SpeechConfig struct {
	Provider      string // backend, google
	LanguageCode  string
	SampleRateHz  int
	AudioEncoding string
}

// LiveKitConfig holds the server-held room credentials.
type LiveKitConfig struct {
	APIKey    string
	APISecret string
	URL       string
	TokenTTL  time.Duration
}

// FAQConfig controls the FAQ dataset.
type FAQConfig struct {
	DefaultLocale string
	DataPath      string // optional YAML file replacing the embedded dataset
}

// TranscriptConfig controls transcript ingestion and reconciliation.
type TranscriptConfig struct {
	Source      string // none, kafka, mock
	UserAliases []string
	LockFinals  bool
}

// ScrollConfig controls the auto-scroll controller defaults.
type ScrollConfig struct {
	Threshold   float64
	SettleDelay time.Duration
}

// KafkaConfig holds transcript topic settings.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicPartial  string
	TopicFinal    string
	TopicMessages string
	GroupID       string
	Principal     string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// LoadEnvFile loads variables from path into the process environment
// without overriding values that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Load reads the configuration from the environment.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-care-assistant")

	return &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
			Env:       envOrDefault("ENV", "prod"),
		},
		Backend: BackendConfig{
			URL:        strings.TrimRight(envOrDefault("BACKEND_URL", "http://localhost:8000"), "/"),
			Timeout:    envOrDefaultDuration("BACKEND_TIMEOUT", 30*time.Second),
			SocksProxy: os.Getenv("UPSTREAM_SOCKS_PROXY"),
		},
		Chat: ChatConfig{
			Provider:      envOrDefault("CHAT_PROVIDER", "backend"),
			OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:   envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Speech: SpeechConfig{
			Provider:      envOrDefault("STT_PROVIDER", "backend"),
			LanguageCode:  envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:  envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			AudioEncoding: envOrDefault("STT_AUDIO_ENCODING", "WEBM_OPUS"),
		},
		LiveKit: LiveKitConfig{
			APIKey:    os.Getenv("LIVEKIT_API_KEY"),
			APISecret: os.Getenv("LIVEKIT_API_SECRET"),
			URL:       os.Getenv("LIVEKIT_URL"),
			TokenTTL:  envOrDefaultDuration("ROOM_TOKEN_TTL", time.Hour),
		},
		FAQ: FAQConfig{
			DefaultLocale: envOrDefault("FAQ_DEFAULT_LOCALE", "en"),
			DataPath:      os.Getenv("FAQ_DATA_PATH"),
		},
		Transcript: TranscriptConfig{
			Source:      envOrDefault("TRANSCRIPT_SOURCE", "none"),
			UserAliases: envOrDefaultList("TRANSCRIPT_USER_ALIASES", []string{"patient", "user"}),
			LockFinals:  envOrDefaultBool("TRANSCRIPT_LOCK_FINALS", false),
		},
		Scroll: ScrollConfig{
			Threshold:   envOrDefaultFloat("SCROLL_THRESHOLD", 100),
			SettleDelay: envOrDefaultDuration("SCROLL_SETTLE_DELAY", 50*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", nil),
			TopicPartial:  envOrDefault("KAFKA_TOPIC_PARTIAL", "interaction.transcript.partial"),
			TopicFinal:    envOrDefault("KAFKA_TOPIC_FINAL", "interaction.transcript.final"),
			TopicMessages: envOrDefault("KAFKA_TOPIC_MESSAGES", "conversation.message"),
			GroupID:       envOrDefault("KAFKA_GROUP_ID", "care-assistant"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultList splits a comma-separated value, dropping empty entries.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
