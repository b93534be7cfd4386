// Package config loads server and tool settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	DBDriver        string
	DBDSN           string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	OpTimeout       time.Duration
	ShutdownTimeout time.Duration

	RedisAddr      string
	IdempotencyTTL time.Duration

	AMQPURL      string
	AMQPExchange string

	AdminUser     string
	AdminPassword string

	LogLevel  zerolog.Level
	LogFormat string
}

var supportedDrivers = map[string]bool{
	"sqlite":   true,
	"mysql":    true,
	"postgres": true,
	"pgx":      true,
}

// Load reads an optional .env file from the working directory, then the
// process environment. Variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	var p parser
	cfg := Config{
		HTTPAddr: getenv("LENDING_HTTP_ADDR", ":8080"),
		GRPCAddr: getenv("LENDING_GRPC_ADDR", ":50051"),

		DBDriver:        getenv("LENDING_DB_DRIVER", "sqlite"),
		DBDSN:           getenv("LENDING_DB_DSN", "library.db"),
		DBMaxOpenConns:  p.getInt("LENDING_DB_MAX_OPEN_CONNS", 50),
		DBMaxIdleConns:  p.getInt("LENDING_DB_MAX_IDLE_CONNS", 25),
		DBConnLifetime:  p.getDuration("LENDING_DB_CONN_LIFETIME", 5*time.Minute),
		OpTimeout:       p.getDuration("LENDING_OP_TIMEOUT", 5*time.Second),
		ShutdownTimeout: p.getDuration("LENDING_SHUTDOWN_TIMEOUT", 5*time.Second),

		RedisAddr:      getenv("LENDING_REDIS_ADDR", ""),
		IdempotencyTTL: p.getDuration("LENDING_IDEMPOTENCY_TTL", 24*time.Hour),

		AMQPURL:      getenv("LENDING_AMQP_URL", ""),
		AMQPExchange: getenv("LENDING_AMQP_EXCHANGE", "lending.events"),

		AdminUser:     getenv("LENDING_ADMIN_USER", ""),
		AdminPassword: getenv("LENDING_ADMIN_PASSWORD", ""),

		LogFormat: getenv("LENDING_LOG_FORMAT", "console"),
	}

	level, err := zerolog.ParseLevel(getenv("LENDING_LOG_LEVEL", "info"))
	if err != nil {
		p.fail("LENDING_LOG_LEVEL", err)
	}
	cfg.LogLevel = level

	if !supportedDrivers[cfg.DBDriver] {
		p.fail("LENDING_DB_DRIVER", fmt.Errorf("unsupported driver %q", cfg.DBDriver))
	}
	if cfg.AdminUser != "" && cfg.AdminPassword == "" {
		p.fail("LENDING_ADMIN_PASSWORD", errors.New("required when LENDING_ADMIN_USER is set"))
	}

	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, nil
}

// AuthEnabled reports whether transports should require credentials.
func (c Config) AuthEnabled() bool {
	return c.AdminUser != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parser keeps the first error so Load can report it after reading everything.
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config %s: %w", key, err)
	}
}

func (p *parser) getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}
