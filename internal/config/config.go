package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Core
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"INFO"`
	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`
	DatabaseURL   string `env:"DATABASE_URL" envDefault:"chat.db"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// Chat completion
	ChatProvider   string `env:"CHAT_PROVIDER" envDefault:"together"`
	TogetherAPIKey string `env:"TOGETHER_API_KEY"`
	TogetherAPIURL string `env:"TOGETHER_API_URL" envDefault:"https://api.together.xyz/v1/chat/completions"`
	TogetherModel  string `env:"TOGETHER_MODEL" envDefault:"moonshotai/kimi-k2-instruct"`
	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
	GeminiModel    string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash-latest"`

	// Web search
	SearchProvider   string `env:"SEARCH_PROVIDER" envDefault:"google"`
	GoogleAPIKey     string `env:"GOOGLE_API_KEY"`
	GoogleCSEID      string `env:"GOOGLE_CSE_ID"`
	SearchNumResults int    `env:"SEARCH_NUM_RESULTS" envDefault:"5"`

	// Vision
	HuggingFaceAPIKey string   `env:"HUGGINGFACE_API_KEY"`
	HuggingFaceAPIURL string   `env:"HUGGINGFACE_API_URL" envDefault:"https://api-inference.huggingface.co/models"`
	VisionEndpoints   []string `env:"VISION_ENDPOINTS" envSeparator:"," envDefault:"caption,classify,detect"`
	MaxUploadBytes    int64    `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// Timeouts
	ChatTimeout   time.Duration `env:"CHAT_TIMEOUT" envDefault:"30s"`
	SearchTimeout time.Duration `env:"SEARCH_TIMEOUT" envDefault:"15s"`
	VisionTimeout time.Duration `env:"VISION_TIMEOUT" envDefault:"30s"`
	UploadTimeout time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"30s"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" envDefault:"10s"`
	SaveDebounce  time.Duration `env:"SAVE_DEBOUNCE" envDefault:"1s"`

	// Conversations unused this long are flushed and dropped from memory.
	ConversationIdleTimeout time.Duration `env:"CONVERSATION_IDLE_TIMEOUT" envDefault:"30m"`

	// Empty disables prompt token counting.
	TokenEncoding string `env:"TOKEN_ENCODING"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ChatProvider {
	case ProviderTogether, ProviderGemini:
	default:
		return fmt.Errorf("unknown CHAT_PROVIDER %q", c.ChatProvider)
	}
	switch c.SearchProvider {
	case SearchGoogle, SearchDuckDuckGo:
	default:
		return fmt.Errorf("unknown SEARCH_PROVIDER %q", c.SearchProvider)
	}
	if c.SearchNumResults <= 0 {
		return fmt.Errorf("SEARCH_NUM_RESULTS must be positive, got %d", c.SearchNumResults)
	}
	if c.SearchTimeout < MinSearchTimeout {
		return fmt.Errorf("SEARCH_TIMEOUT must be at least %s", MinSearchTimeout)
	}
	return nil
}

// SendBudget bounds one chat turn: upload with retries, image analysis, two completions
// with a search between them, and the immediate save of a new session.
func (c *Config) SendBudget() time.Duration {
	return StoreWriteAttempts*c.UploadTimeout + c.VisionTimeout +
		2*c.ChatTimeout + c.SearchTimeout +
		StoreWriteAttempts*c.StoreTimeout
}

// WriteTimeout leaves room after SendBudget to write the failed turn back to the client.
func (c *Config) WriteTimeout() time.Duration {
	return c.SendBudget() + ResponseWriteSlack
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
