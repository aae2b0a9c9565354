package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type LogConfig struct {
	Level    string
	Format   string
	Output   string
	FilePath string
}

type LLMConfig struct {
	BaseURL       string
	APIKey        string
	DefaultModel  string
	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

type ExtractionConfig struct {
	MaxChars        int
	MinUsefulChars  int
	FetchTimeout    time.Duration
	RenderProxyURL  string
	BatchConcurrent int
}

type SearchConfig struct {
	ResultLimit int
	Timeout     time.Duration
}

type ImageConfig struct {
	ProbeConcurrent int
	ProbeTimeout    time.Duration
	MaxRedirects    int
	ProbeCacheTTL   time.Duration
	SearchCacheTTL  time.Duration
}

type ToolLoopConfig struct {
	MaxRounds           int
	MinQueryLength      int
	MinInformativeWords int
}

type Config struct {
	Port        string
	Environment string

	RedisURL string

	Log        LogConfig
	LLM        LLMConfig
	Extraction ExtractionConfig
	Search     SearchConfig
	Images     ImageConfig
	ToolLoop   ToolLoopConfig
}

func LoadConfig() *Config {
	// .env is optional outside local development
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Format:   getEnv("LOG_FORMAT", "json"),
			Output:   getEnv("LOG_OUTPUT", "stdout"),
			FilePath: getEnv("LOG_FILE", "logs/gateway.log"),
		},
		LLM: LLMConfig{
			BaseURL:       getEnv("LLM_BASE_URL", "http://localhost:11434/v1"),
			APIKey:        os.Getenv("LLM_API_KEY"),
			DefaultModel:  getEnv("LLM_MODEL", "gpt-4o-mini"),
			Timeout:       getDuration("LLM_TIMEOUT_SECONDS", 120),
			MaxRetries:    getInt("LLM_MAX_RETRIES", 3),
			RetryInterval: getDuration("LLM_RETRY_INTERVAL_SECONDS", 2),
		},
		Extraction: ExtractionConfig{
			MaxChars:        getInt("EXTRACTION_MAX_CHARS", 9000),
			MinUsefulChars:  getInt("EXTRACTION_MIN_USEFUL_CHARS", 240),
			FetchTimeout:    getDuration("EXTRACTION_TIMEOUT_SECONDS", 20),
			RenderProxyURL:  getEnv("RENDER_PROXY_URL", "https://r.jina.ai/"),
			BatchConcurrent: getInt("EXTRACTION_CONCURRENCY", 3),
		},
		Search: SearchConfig{
			ResultLimit: getInt("SEARCH_RESULT_LIMIT", 6),
			Timeout:     getDuration("SEARCH_TIMEOUT_SECONDS", 12),
		},
		Images: ImageConfig{
			ProbeConcurrent: getInt("IMAGE_PROBE_CONCURRENCY", 4),
			ProbeTimeout:    getDuration("IMAGE_PROBE_TIMEOUT_SECONDS", 8),
			MaxRedirects:    getInt("IMAGE_PROBE_MAX_REDIRECTS", 4),
			ProbeCacheTTL:   getDuration("IMAGE_PROBE_CACHE_TTL_SECONDS", 1800),
			SearchCacheTTL:  getDuration("IMAGE_SEARCH_CACHE_TTL_SECONDS", 900),
		},
		ToolLoop: ToolLoopConfig{
			MaxRounds:           getInt("TOOL_LOOP_MAX_ROUNDS", 3),
			MinQueryLength:      getInt("TOOL_QUERY_MIN_LENGTH", 10),
			MinInformativeWords: getInt("TOOL_QUERY_MIN_WORDS", 2),
		},
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Error parsing %s: %v", key, err)
	}
	return parsed
}

func getDuration(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getInt(key, fallbackSeconds)) * time.Second
}
