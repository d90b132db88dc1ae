package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment-driven settings.
type Config struct {
	Environment string
	HTTPPort    string
	DBPath      string
	CallsDir    string

	WorkerCount int
	QueueSize   int

	TranscribeURL string
	DiarizeURL    string
	UseStubs      bool

	RetryAttempts uint64
	RetryDelay    time.Duration

	MaxAudioBytes   int64
	MaxAudioSeconds float64

	EnableWatcher bool
}

// Load reads configuration from environment and optional .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Environment: getenv("ENVIRONMENT", "local"),
		HTTPPort:    getenv("PORT", "8080"),
		DBPath:      getenv("DB_PATH", "./calls.db"),
		CallsDir:    getenv("CALLS_DIR", "./calls"),

		WorkerCount: clampInt(getenvInt("WORKER_COUNT", 4), 1, 64),
		QueueSize:   clampInt(getenvInt("QUEUE_SIZE", 64), 8, 1024),

		TranscribeURL: getenv("TRANSCRIBE_URL", ""),
		DiarizeURL:    getenv("DIARIZE_URL", ""),
		UseStubs:      getenvBool("USE_STUB_SERVICES", false),

		RetryAttempts: 3,
		RetryDelay:    getenvDuration("RETRY_DELAY", 60*time.Second),

		MaxAudioBytes:   getenvInt64("MAX_AUDIO_BYTES", 100<<20),
		MaxAudioSeconds: float64(getenvInt("MAX_AUDIO_SECONDS", 3600)),

		EnableWatcher: getenvBool("ENABLE_WATCHER", false),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
