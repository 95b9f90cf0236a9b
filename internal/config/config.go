package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config is the full process configuration. Every process (poller, worker,
// sender) loads the same struct; secrets come from the environment only and
// are never written to disk.
type Config struct {
	Telegram TelegramConfig `koanf:"telegram"`
	Dict     DictConfig     `koanf:"dict"`
	Postgres PostgresConfig `koanf:"postgres"`
	RabbitMQ RabbitMQConfig `koanf:"rabbitmq"`
	Worker   WorkerConfig   `koanf:"worker"`
	Admin    AdminConfig    `koanf:"admin"`
}

// TelegramConfig configures the Bot API client.
type TelegramConfig struct {
	Token       string `koanf:"token" validate:"required"`
	PollTimeout int    `koanf:"poll_timeout" validate:"gte=0,lte=50"` // getUpdates long-poll seconds
}

// DictConfig configures the Yandex Dictionary lookup used for word admission.
type DictConfig struct {
	Token string `koanf:"token" validate:"required"`
	Lang  string `koanf:"lang"`
}

// PostgresConfig configures the shared database.
type PostgresConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"gt=0"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password" validate:"required"`
	Database string `koanf:"database" validate:"required"`
}

// DSN returns a pgx-compatible connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Database)
}

// RabbitMQConfig configures the broker connection.
type RabbitMQConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"gt=0"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password" validate:"required"`
}

// URL returns the AMQP connection URL.
func (r RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.User, r.Password, r.Host, r.Port)
}

// WorkerConfig sets consumer counts for the worker and sender processes.
type WorkerConfig struct {
	WorkerConcurrency int `koanf:"worker_concurrency" validate:"gt=0"`
	SenderConcurrency int `koanf:"sender_concurrency" validate:"gt=0"`
}

// AdminConfig carries the admin-surface seed credentials and session key.
// The HTTP admin panel is a separate service; the values are loaded here so
// one .env serves every process.
type AdminConfig struct {
	SessionKey string `koanf:"session_key"`
	Email      string `koanf:"email"`
	Password   string `koanf:"password"`
}

// envKeys maps environment variable names to koanf paths. The variable names
// are fixed by the deployment (.env shared with the admin service), so the
// mapping is explicit rather than prefix-derived.
var envKeys = map[string]string{
	"BOT_TOKEN_TG":          "telegram.token",
	"TG_POLL_TIMEOUT":       "telegram.poll_timeout",
	"YANDEX_DICT_TOKEN":     "dict.token",
	"YANDEX_DICT_LANG":      "dict.lang",
	"POSTGRES_HOST":         "postgres.host",
	"POSTGRES_PORT":         "postgres.port",
	"POSTGRES_USER":         "postgres.user",
	"POSTGRES_PASSWORD":     "postgres.password",
	"POSTGRES_DB":           "postgres.database",
	"RABBITMQ_DEFAULT_HOST": "rabbitmq.host",
	"RABBITMQ_DEFAULT_PORT": "rabbitmq.port",
	"RABBITMQ_DEFAULT_USER": "rabbitmq.user",
	"RABBITMQ_DEFAULT_PASS": "rabbitmq.password",
	"WORKER_CONCURRENCY":    "worker.worker_concurrency",
	"SENDER_CONCURRENCY":    "worker.sender_concurrency",
	"SESSION_KEY":           "admin.session_key",
	"EMAIL":                 "admin.email",
	"PASSWORD":              "admin.password",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the configuration defaults applied under the environment.
func Default() Config {
	return Config{
		Telegram: TelegramConfig{PollTimeout: 20},
		Dict:     DictConfig{Lang: "ru-ru"},
		Postgres: PostgresConfig{Host: "localhost", Port: 5432},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672},
		Worker:   WorkerConfig{WorkerConcurrency: 1, SenderConcurrency: 1},
	}
}

// Load builds the configuration from defaults overlaid with the environment
// and validates the result.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s] // unknown variables map to "" and are skipped
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
