package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
)

const (
	CredentialModePlain  = "plain"
	CredentialModeBcrypt = "bcrypt"

	BroadcastMemory = "memory"
	BroadcastRedis  = "redis"
	BroadcastNATS   = "nats"
	BroadcastKafka  = "kafka"

	// BroadcastWebSocket solo aplica al cliente: recibe eventos de GET /events/ws.
	BroadcastWebSocket = "websocket"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"1"`
	// DBConnectRetries reintenta el primer ping mientras Postgres arranca.
	DBConnectRetries int `env:"DB_CONNECT_RETRIES" envDefault:"5"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	CredentialMode     string  `env:"CREDENTIAL_MODE" envDefault:"plain"`
	PasswordMinEntropy float64 `env:"PASSWORD_MIN_ENTROPY" envDefault:"0"`

	BroadcastBackend string   `env:"BROADCAST_BACKEND" envDefault:"memory"`
	BroadcastTopic   string   `env:"BROADCAST_TOPIC" envDefault:"chattersphere.chats"`
	NATSURL          string   `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`

	ResetRateWindowMinutes int `env:"RESET_RATE_WINDOW_MINUTES" envDefault:"10"`
	ResetRateMax           int `env:"RESET_RATE_MAX" envDefault:"3"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
}

// ClientConfig agrupa la configuración del cliente de terminal.
type ClientConfig struct {
	APIBaseURL       string   `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	PollIntervalMS   int      `env:"POLL_INTERVAL_MS" envDefault:"1000"`
	AutoReply        bool     `env:"AUTO_REPLY" envDefault:"true"`
	BroadcastBackend string   `env:"BROADCAST_BACKEND" envDefault:"websocket"`
	BroadcastTopic   string   `env:"BROADCAST_TOPIC" envDefault:"chattersphere.chats"`
	NATSURL          string   `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	RedisAddr        string   `env:"REDIS_ADDR"`
	RedisPassword    string   `env:"REDIS_PASSWORD"`
	RedisDB          int      `env:"REDIS_DB" envDefault:"0"`
	LLMAPIKey        string   `env:"LLM_API_KEY"`
	LLMBaseURL       string   `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel         string   `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.CredentialMode = strings.ToLower(strings.TrimSpace(cfg.CredentialMode))
	switch cfg.CredentialMode {
	case CredentialModePlain, CredentialModeBcrypt:
	default:
		return nil, fmt.Errorf("unsupported CREDENTIAL_MODE %q", cfg.CredentialMode)
	}
	backend, err := normalizeBackend(cfg.BroadcastBackend, false)
	if err != nil {
		return nil, err
	}
	cfg.BroadcastBackend = backend
	if backend == BroadcastRedis && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("BROADCAST_BACKEND=redis requires REDIS_ADDR")
	}
	if backend == BroadcastKafka && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("BROADCAST_BACKEND=kafka requires KAFKA_BROKERS")
	}
	return &cfg, nil
}

// LoadClientConfig carga la configuración del cliente.
func LoadClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	backend, err := normalizeBackend(cfg.BroadcastBackend, true)
	if err != nil {
		return nil, err
	}
	cfg.BroadcastBackend = backend
	if backend == BroadcastRedis && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("BROADCAST_BACKEND=redis requires REDIS_ADDR")
	}
	if backend == BroadcastKafka && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("BROADCAST_BACKEND=kafka requires KAFKA_BROKERS")
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = 1000
	}
	return &cfg, nil
}

func normalizeBackend(raw string, client bool) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	switch backend {
	case "", BroadcastMemory:
		return BroadcastMemory, nil
	case BroadcastRedis, BroadcastNATS, BroadcastKafka:
		return backend, nil
	case BroadcastWebSocket, "ws":
		if client {
			return BroadcastWebSocket, nil
		}
		return "", fmt.Errorf("BROADCAST_BACKEND %q is only valid for the client", raw)
	default:
		return "", fmt.Errorf("unsupported BROADCAST_BACKEND %q", raw)
	}
}
