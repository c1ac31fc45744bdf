// Package config reads process settings from the environment and the
// application settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Env holds the process settings.
type Env struct {
	Port        string
	AppEnv      string
	AppConfig   string
	LangDir     string
	BotBackend  string
	ChatraToken string

	Session SessionEnv
	OpenAI  OpenAIEnv
	Otel    OtelEnv

	// Secrets overriding the YAML values when set.
	InbentaKey      string
	InbentaSecret   string
	HyperchatAppID  string
	HyperchatSecret string
}

type SessionEnv struct {
	Backend     string
	DatabaseURL string
	RedisAddr   string
	MongoURI    string
	MongoDB     string
	TTL         time.Duration
}

type OpenAIEnv struct {
	APIKey        string
	Model         string
	BaseURL       string
	MinConfidence float64
}

type OtelEnv struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Insecure    bool
	SampleRatio string
	Stdout      bool
}

const (
	BotBackendChatbot = "chatbot"
	BotBackendOpenAI  = "openai"
)

// Load reads the environment. Call godotenv.Load first to pick up a .env file.
func Load() (*Env, error) {
	env := &Env{
		Port:        getEnv("PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "development"),
		AppConfig:   getEnv("APP_CONFIG", "conf/app.yaml"),
		LangDir:     getEnv("LANG_DIR", ""),
		BotBackend:  strings.ToLower(getEnv("BOT_BACKEND", BotBackendChatbot)),
		ChatraToken: getEnv("CHATRA_API_TOKEN", ""),
		Session: SessionEnv{
			Backend:     strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
			MongoURI:    getEnv("MONGO_URI", ""),
			MongoDB:     getEnv("MONGO_DB", "connector"),
			TTL:         getEnvDuration("SESSION_TTL", 24*time.Hour),
		},
		OpenAI: OpenAIEnv{
			APIKey:        getEnv("OPENAI_API_KEY", ""),
			Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:       getEnv("OPENAI_BASE_URL", ""),
			MinConfidence: getEnvFloat("OPENAI_MIN_CONFIDENCE", 0.5),
		},
		Otel: OtelEnv{
			Enabled:     getEnvBool("OTEL_ENABLED", false),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "chatbot-api-connector"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: getEnv("OTEL_SAMPLE_RATIO", "1"),
			Stdout:      getEnvBool("OTEL_EXPORT_STDOUT", false),
		},
		InbentaKey:      getEnv("INBENTA_API_KEY", ""),
		InbentaSecret:   getEnv("INBENTA_API_SECRET", ""),
		HyperchatAppID:  getEnv("HYPERCHAT_APP_ID", ""),
		HyperchatSecret: getEnv("HYPERCHAT_SECRET", ""),
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return env, nil
}

func (e *Env) Validate() error {
	if e.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch e.Session.Backend {
	case "memory":
	case "postgres":
		if e.Session.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres session backend")
		}
	case "redis":
		if e.Session.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis session backend")
		}
	case "mongo":
		if e.Session.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo session backend")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", e.Session.Backend)
	}
	switch e.BotBackend {
	case BotBackendChatbot:
	case BotBackendOpenAI:
		if e.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai bot backend")
		}
		if e.Session.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the openai bot backend")
		}
	default:
		return fmt.Errorf("unknown BOT_BACKEND %q", e.BotBackend)
	}
	return nil
}

func (e *Env) IsProduction() bool { return e.AppEnv == "production" }

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("30m") and plain seconds ("1800").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
