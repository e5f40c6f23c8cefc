package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the audio tutor service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogLevel         string
	LogConsole       bool

	DatabaseURL string
	RedisURL    string

	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	EmbeddingDim     int

	GeminiAPIKey         string
	GeminiModel          string
	GeminiAnalysisModel  string
	GeminiEmbeddingModel string
	ModelTimeout         time.Duration
	ModelRetryMax        int

	ElevenLabsAPIKey    string
	ElevenLabsWSBaseURL string
	ElevenLabsTTSModel  string
	ElevenLabsSTTModel  string

	AudioSpoolDir   string
	SampleRate      int
	FrameBytes      int
	SilenceTimeout  time.Duration
	STTReconnectMax int
	RepromptMax     int
	StopKeyword     string
	MemoryTTL       time.Duration
	RetrievalK      int
	DefaultLanguage string
}

// Load reads environment variables and applies safe defaults. A local .env
// file is honored when present, matching how the provider SDKs are used in
// development.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "audiotutor"),
		LogLevel:             envOrDefault("APP_LOG_LEVEL", "info"),
		DatabaseURL:          envTrimmed("DATABASE_URL"),
		RedisURL:             envTrimmed("REDIS_URL"),
		QdrantURL:            envTrimmed("QDRANT_URL"),
		QdrantAPIKey:         envTrimmed("QDRANT_API_KEY"),
		QdrantCollection:     envOrDefault("QDRANT_COLLECTION", "tutor_transcripts"),
		GeminiAPIKey:         envTrimmed("GEMINI_API_KEY"),
		GeminiModel:          envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiAnalysisModel:  envOrDefault("GEMINI_ANALYSIS_MODEL", "gemini-2.5-pro"),
		GeminiEmbeddingModel: envOrDefault("GEMINI_EMBEDDING_MODEL", "gemini-embedding-001"),
		ElevenLabsAPIKey:     envTrimmed("ELEVENLABS_API_KEY"),
		ElevenLabsWSBaseURL:  envOrDefault("ELEVENLABS_WS_BASE_URL", "wss://api.elevenlabs.io"),
		ElevenLabsTTSModel:   envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_flash_v2_5"),
		ElevenLabsSTTModel:   envOrDefault("ELEVENLABS_STT_MODEL_ID", "scribe_v2_realtime"),
		StopKeyword:          envOrDefault("APP_STOP_KEYWORD", "stop"),
		DefaultLanguage:      envOrDefault("APP_DEFAULT_LANGUAGE", "English"),
		AudioSpoolDir:        envTrimmed("APP_AUDIO_SPOOL_DIR"),
		SampleRate:           16000,
		FrameBytes:           3200,
		EmbeddingDim:         3072,
		ModelTimeout:         20 * time.Second,
		ModelRetryMax:        2,
		SilenceTimeout:       8 * time.Second,
		STTReconnectMax:      2,
		RepromptMax:          3,
		MemoryTTL:            24 * time.Hour,
		RetrievalK:           5,
		ShutdownTimeout:      15 * time.Second,
		LogConsole:           true,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SilenceTimeout, err = durationFromEnv("APP_SILENCE_TIMEOUT", cfg.SilenceTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ModelTimeout, err = durationFromEnv("APP_MODEL_TIMEOUT", cfg.ModelTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryTTL, err = durationFromEnv("APP_MEMORY_TTL", cfg.MemoryTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.ModelRetryMax, err = intFromEnv("APP_MODEL_RETRY_MAX", cfg.ModelRetryMax)
	if err != nil {
		return Config{}, err
	}
	cfg.STTReconnectMax, err = intFromEnv("APP_STT_RECONNECT_MAX", cfg.STTReconnectMax)
	if err != nil {
		return Config{}, err
	}
	cfg.RepromptMax, err = intFromEnv("APP_REPROMPT_MAX", cfg.RepromptMax)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalK, err = intFromEnv("APP_RETRIEVAL_K", cfg.RetrievalK)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDim, err = intFromEnv("APP_EMBEDDING_DIM", cfg.EmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.SampleRate, err = intFromEnv("APP_SAMPLE_RATE", cfg.SampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameBytes, err = intFromEnv("APP_FRAME_BYTES", cfg.FrameBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.LogConsole, err = boolFromEnv("APP_LOG_CONSOLE", cfg.LogConsole)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.StopKeyword) == "" {
		return Config{}, fmt.Errorf("APP_STOP_KEYWORD must not be empty")
	}
	if cfg.SilenceTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_SILENCE_TIMEOUT must be at least 1s")
	}
	if cfg.ModelRetryMax < 0 {
		return Config{}, fmt.Errorf("APP_MODEL_RETRY_MAX must be >= 0")
	}
	if cfg.STTReconnectMax < 0 {
		return Config{}, fmt.Errorf("APP_STT_RECONNECT_MAX must be >= 0")
	}
	if cfg.RetrievalK <= 0 {
		return Config{}, fmt.Errorf("APP_RETRIEVAL_K must be positive")
	}
	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("APP_EMBEDDING_DIM must be positive")
	}
	if cfg.SampleRate <= 0 || cfg.FrameBytes <= 0 {
		return Config{}, fmt.Errorf("APP_SAMPLE_RATE and APP_FRAME_BYTES must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
