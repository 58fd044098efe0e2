package config

import (
	"fmt"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	TelegramToken string
	DBDSN         string
	Environment   string
	StoreDriver   string
	RedisAddr     string
	SessionTTL    time.Duration
	MetricsAddr   string
	SweepInterval time.Duration
	Timezone      string
	MigrationsDir string // пусто = встроенные миграции

	location *time.Location
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(os.Getenv)
}

// FromEnv читает конфигурацию через getenv, чтобы её можно было тестировать
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		TelegramToken: getenv("TELEGRAM_TOKEN"),
		DBDSN:         getenv("DB_DSN"),
		Environment:   getenv("ENV"),
		StoreDriver:   getenv("STORE_DRIVER"),
		RedisAddr:     getenv("REDIS_ADDR"),
		MetricsAddr:   getenv("METRICS_ADDR"),
		Timezone:      getenv("TIMEZONE"),
		MigrationsDir: getenv("MIGRATIONS_DIR"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = StorePostgres
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/Paris"
	}

	var err error
	if cfg.SessionTTL, err = duration(getenv, "SESSION_TTL", 720*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = duration(getenv, "COMPLETION_SWEEP_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	// Проверяем обязательные поля
	switch cfg.StoreDriver {
	case StorePostgres:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required but not set")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.StoreDriver)
	}

	if cfg.location, err = time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}

	return cfg, nil
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}

	d, err := cast.ToDurationE(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// Location часовой пояс школы, в нём считается "сегодня"
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// RequireTelegram проверяет токен перед запуском бота
func (c *Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required but not set")
	}
	return nil
}
