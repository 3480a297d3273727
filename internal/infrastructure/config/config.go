// Package config loads process configuration from environment variables.
// This is ambient infrastructure; it carries no domain logic.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything the pipeline construction needs that isn't
// itself domain content (frameworks, prompts).
type Config struct {
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	SearchAPIKey  string
	SearchBaseURL string

	StoreRootDir string

	RefinementMaxIterations int
	ResearchStageTimeout    time.Duration
	LLMCallTimeout          time.Duration
	ResearchConcurrency     int

	LogLevel  string
	LogFormat string
}

// Load reads Config from the environment, applying defaults for anything
// unset.
func Load() Config {
	return Config{
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		SearchAPIKey:  getEnv("SEARCH_API_KEY", ""),
		SearchBaseURL: getEnv("SEARCH_BASE_URL", ""),

		StoreRootDir: getEnv("STORE_ROOT_DIR", "./data/projects"),

		RefinementMaxIterations: clamp(getEnvInt("REFINEMENT_MAX_ITERATIONS", 3), 1, 5),
		ResearchStageTimeout:    getEnvDuration("RESEARCH_STAGE_TIMEOUT", 60*time.Second),
		LLMCallTimeout:          getEnvDuration("LLM_CALL_TIMEOUT", 30*time.Second),
		ResearchConcurrency:     clamp(getEnvInt("RESEARCH_CONCURRENCY", 2), 1, 2),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
