package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Booking   BookingConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port int
	// AdminToken gates the /admin routes. Empty disables them.
	AdminToken string
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers            []string
	NotificationsTopic string
	GroupID            string
}

// BookingConfig carries the booking policy values. The defaults match the
// cinema's standing rules; deployments override them via environment.
type BookingConfig struct {
	HoldTimeout    time.Duration
	SweepInterval  time.Duration
	SweepBatch     int
	CancelCutoff   time.Duration
	RefundRate     float64
	DefaultBalance float64
}

// RateLimitConfig bounds draft creation per user.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresPort, err := envInt("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	redisDB, err := envInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	holdTimeout, err := envDuration("BOOKING_HOLD_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sweepInterval, err := envDuration("BOOKING_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sweepBatch, err := envInt("BOOKING_SWEEP_BATCH", 100)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cancelCutoff, err := envDuration("BOOKING_CANCEL_CUTOFF", 20*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refundRate, err := envFloat("BOOKING_REFUND_RATE", 0.8)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defaultBalance, err := envFloat("BOOKING_DEFAULT_BALANCE", 1500)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rlLimit, err := envInt("RATE_LIMIT_CREATE_DRAFT", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rlWindow, err := envDuration("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Config{
		Server: ServerConfig{
			Host:       envStr("SERVER_HOST", "localhost"),
			Port:       serverPort,
			AdminToken: os.Getenv("ADMIN_TOKEN"),
		},
		Postgres: PostgresConfig{
			User:     postgresUser,
			Password: postgresPassword,
			Name:     postgresDB,
			Host:     envStr("POSTGRES_HOST", "localhost"),
			Port:     postgresPort,
			SSLMode:  envStr("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     envStr("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:            strings.Split(envStr("KAFKA_BROKERS", "localhost:9092"), ","),
			NotificationsTopic: envStr("KAFKA_NOTIFICATIONS_TOPIC", "booking-notifications"),
			GroupID:            envStr("KAFKA_GROUP_ID", "cineseat-notifier"),
		},
		Booking: BookingConfig{
			HoldTimeout:    holdTimeout,
			SweepInterval:  sweepInterval,
			SweepBatch:     sweepBatch,
			CancelCutoff:   cancelCutoff,
			RefundRate:     refundRate,
			DefaultBalance: defaultBalance,
		},
		RateLimit: RateLimitConfig{
			Limit:  rlLimit,
			Window: rlWindow,
		},
	}, nil
}

// DSN builds the pgx connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
