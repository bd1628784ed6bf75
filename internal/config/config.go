package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Addr string

	MinPlayers         int
	QuestionCount      int
	QuestionTimeSec    int
	GenerateTimeoutSec int

	AIAPIURL string
	AIAPIKey string
	AIModel  string

	LogLevel string
	LogDev   bool
}

// Load reads configuration from the environment. Everything has a workable
// default except the provider credentials, which the caller decides how to
// treat when absent.
func Load() *Config {
	cfg := &Config{
		Addr:               ":8080",
		MinPlayers:         2,
		QuestionCount:      5,
		QuestionTimeSec:    15,
		GenerateTimeoutSec: 120,
		AIAPIURL:           "https://api.openai.com/v1/chat/completions",
		AIModel:            "gpt-4o-mini",
		LogLevel:           "info",
	}

	if v := strings.TrimSpace(os.Getenv("ADDR")); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("MIN_PLAYERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MinPlayers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("QUESTION_COUNT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QuestionCount = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("QUESTION_TIME_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QuestionTimeSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GENERATE_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GenerateTimeoutSec = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("AI_API_URL")); v != "" {
		cfg.AIAPIURL = v
	}
	cfg.AIAPIKey = strings.TrimSpace(os.Getenv("AI_API_KEY"))
	if v := strings.TrimSpace(os.Getenv("AI_MODEL")); v != "" {
		cfg.AIModel = v
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_DEV")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogDev = b
		}
	}

	return cfg
}
