// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrInvalidConfiguration is returned by Validate. It is fatal at startup.
var ErrInvalidConfiguration = errors.New("invalid configuration")

func init() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Println("[WARN] Failed to load .env file:", err)
	}
}

const (
	ProviderGemini       = "gemini"
	ProviderOpenAI       = "openai"
	ProviderG4F          = "g4f"
	ProviderPollinations = "pollinations"
)

type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	CommandPrefix         string   `env:"COMMAND_PREFIX" envDefault:".k"`
	WakeWord              string   `env:"WAKE_WORD" envDefault:"katu"`

	AI AIConfig

	Storage StorageConfig

	DashboardAddr string `env:"DASHBOARD_ADDR" envDefault:":5000"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
}

// AIConfig drives the conversational side of the bot.
type AIConfig struct {
	Enabled           bool    `env:"AI_ENABLED" envDefault:"true"`
	Provider          string  `env:"AI_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey      string  `env:"GEMINI_API_KEY"`
	OpenAIAPIKey      string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string  `env:"OPENAI_BASE_URL"`
	Model             string  `env:"AI_MODEL" envDefault:"gemini-2.5-flash"`
	Temperature       float64 `env:"AI_TEMPERATURE" envDefault:"0.85"`
	MaxOutputTokens   int     `env:"AI_MAX_OUTPUT_TOKENS" envDefault:"1200"`
	TopP              float64 `env:"AI_TOP_P" envDefault:"0.9"`
	TopK              float64 `env:"AI_TOP_K" envDefault:"40"`
	RequestsPerSecond float64 `env:"AI_REQUESTS_PER_SECOND" envDefault:"2"`

	Timeout time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`

	DuplicateWindow       time.Duration `env:"DUPLICATE_WINDOW" envDefault:"5m"`
	SimilarityThreshold   float64       `env:"SIMILARITY_THRESHOLD" envDefault:"0.6"`
	DuplicateMaxResponses int           `env:"DUPLICATE_MAX_RESPONSES" envDefault:"20"`

	HistoryMaxTurns      int           `env:"HISTORY_MAX_TURNS" envDefault:"30"`
	HistoryContextTurns  int           `env:"HISTORY_CONTEXT_TURNS" envDefault:"10"`
	HistoryRetention     time.Duration `env:"HISTORY_RETENTION" envDefault:"24h"`
	HistorySweepInterval time.Duration `env:"HISTORY_SWEEP_INTERVAL" envDefault:"1h"`

	RespondChance        float64       `env:"RESPOND_CHANCE" envDefault:"0.1"`
	RespondMinLength     int           `env:"RESPOND_MIN_LENGTH" envDefault:"10"`
	InflightReleaseDelay time.Duration `env:"INFLIGHT_RELEASE_DELAY" envDefault:"2s"`
	ChunkDelay           time.Duration `env:"CHUNK_DELAY" envDefault:"1s"`
}

// StorageConfig selects the counter backend.
type StorageConfig struct {
	Driver             string `env:"STORAGE_DRIVER"`
	Path               string `env:"STORAGE_PATH"`
	DatabaseURL        string `env:"DATABASE_URL"`
	MongoURI           string `env:"MONGODB_URI"`
	MongoDatabase      string `env:"MONGODB_DATABASE" envDefault:"katu"`
	CountRetentionDays int    `env:"COUNT_RETENTION_DAYS" envDefault:"0"`
}

// Load reads the environment into a Config without validating it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	return cfg, nil
}

// New loads and validates the configuration, exiting the process on failure.
func New() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	return cfg
}

// Validate checks everything the bot needs before the first request.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return invalid("DISCORD_TOKEN is not set")
	}
	if strings.TrimSpace(c.CommandPrefix) == "" {
		return invalid("COMMAND_PREFIX must not be empty")
	}
	return c.AI.Validate()
}

// Validate checks the AI settings. Nothing is required when AI is disabled.
func (a *AIConfig) Validate() error {
	if !a.Enabled {
		return nil
	}
	switch a.Provider {
	case ProviderGemini:
		if a.GeminiAPIKey == "" {
			return invalid("GEMINI_API_KEY is not set")
		}
	case ProviderOpenAI:
		if a.OpenAIAPIKey == "" {
			return invalid("OPENAI_API_KEY is not set")
		}
	case ProviderG4F, ProviderPollinations:
		// public endpoints, no credential
	default:
		return invalid(fmt.Sprintf("unsupported AI_PROVIDER %q", a.Provider))
	}
	if strings.TrimSpace(a.Model) == "" {
		return invalid("AI_MODEL is not set")
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		return invalid("AI_TEMPERATURE must be within [0, 2]")
	}
	if a.MaxOutputTokens <= 0 {
		return invalid("AI_MAX_OUTPUT_TOKENS must be positive")
	}
	if a.SimilarityThreshold <= 0 || a.SimilarityThreshold > 1 {
		return invalid("SIMILARITY_THRESHOLD must be within (0, 1]")
	}
	if a.DuplicateWindow <= 0 {
		return invalid("DUPLICATE_WINDOW must be positive")
	}
	if a.DuplicateMaxResponses <= 0 || a.HistoryMaxTurns <= 0 || a.HistoryContextTurns <= 0 {
		return invalid("window and history sizes must be positive")
	}
	if a.RespondChance < 0 || a.RespondChance > 1 {
		return invalid("RESPOND_CHANCE must be within [0, 1]")
	}
	return nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, reason)
}
