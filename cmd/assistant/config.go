package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zeeshanml/math-assistant/internal/agent"
	"github.com/zeeshanml/math-assistant/internal/assistant"
	"github.com/zeeshanml/math-assistant/internal/llm"
)

const (
	defaultPort       = "8501"
	defaultSessionTTL = time.Hour
	defaultConfigFile = "assistant.yaml"
	defaultWikiLang   = "en"
)

// AppConfig holds all configuration, loaded from the environment and
// assistant.yaml.
type AppConfig struct {
	Port          string
	Provider      string
	Model         string
	BaseURL       string
	APIKey        string
	RedisAddr     string
	SessionTTL    time.Duration
	WikipediaLang string
	LogFile       string
	TraceFile     string

	File FileConfig
}

// FileConfig is the content of assistant.yaml.
type FileConfig struct {
	agent.Config       `yaml:",inline"`
	assistant.Settings `yaml:",inline"`

	Temperature *float32 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// LoadConfig loads configuration from a .env file, environment variables and
// the YAML file named by ASSISTANT_CONFIG (default assistant.yaml).
func LoadConfig() (*AppConfig, error) {
	// In release mode the environment is provided by the container runtime.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}

	cfg := &AppConfig{
		Port:          envOr("PORT", defaultPort),
		Provider:      strings.ToLower(envOr("LLM_PROVIDER", llm.ProviderGroq)),
		Model:         envOr("LLM_MODEL", llm.DefaultModel),
		BaseURL:       os.Getenv("LLM_BASE_URL"),
		APIKey:        os.Getenv("LLM_API_KEY"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		SessionTTL:    defaultSessionTTL,
		WikipediaLang: envOr("WIKIPEDIA_LANG", defaultWikiLang),
		LogFile:       os.Getenv("LOG_FILE"),
		TraceFile:     os.Getenv("TRACE_FILE"),
	}

	switch cfg.Provider {
	case llm.ProviderGroq, llm.ProviderOpenAI, llm.ProviderMistral, llm.ProviderGemini, llm.ProviderAnthropic:
	case llm.ProviderOllama:
		// Local models need no key; the placeholder lets sessions start ready.
		if cfg.APIKey == "" {
			cfg.APIKey = llm.ProviderOllama
		}
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.Provider)
	}

	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL %q: %w", raw, err)
		}
		cfg.SessionTTL = ttl
	}

	file, err := loadFileConfig(envOr("ASSISTANT_CONFIG", defaultConfigFile))
	if err != nil {
		return nil, err
	}
	cfg.File = file
	return cfg, nil
}

// loadFileConfig reads the YAML settings. A missing file yields the defaults.
func loadFileConfig(path string) (FileConfig, error) {
	fc := FileConfig{Config: agent.DefaultConfig()}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("WARNING: %s not found, using built-in defaults.", path)
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if fc.MaxSteps < 0 {
		return fc, fmt.Errorf("%s: max_steps must not be negative", path)
	}
	return fc, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
