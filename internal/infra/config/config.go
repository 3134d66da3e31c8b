package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"

	BrokerLog      = "log"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                     string
	HTTPAddr                string
	StorageDriver           string
	MongoURI                string
	MongoDB                 string
	PostgresDSN             string
	RedisAddr               string
	LockTTL                 time.Duration
	EventBroker             string
	KafkaBrokers            []string
	KafkaTopicPrefix        string
	RabbitMQURL             string
	OutboxPollInterval      time.Duration
	RetryBackoff            []time.Duration
	IdempotencyTTL          time.Duration
	DefaultCurrency         string
	CalendarFetchTimeout    time.Duration
	CalendarSyncSchedule    string
	CalendarSyncConcurrency int
	CalendarCancelMissing   bool
}

// LoadDotEnv seeds the environment from the given files. Missing files are ignored;
// variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                  getEnv("APP_ENV", "dev"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		StorageDriver:        strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
		MongoURI:             os.Getenv("MONGO_URI"),
		MongoDB:              getEnv("MONGO_DB", "rentdesk"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		EventBroker:          strings.ToLower(getEnv("EVENT_BROKER", BrokerLog)),
		KafkaTopicPrefix:     getEnv("KAFKA_TOPIC_PREFIX", ""),
		RabbitMQURL:          os.Getenv("RABBITMQ_URL"),
		DefaultCurrency:      strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
		CalendarSyncSchedule: strings.TrimSpace(os.Getenv("CALENDAR_SYNC_SCHEDULE")),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.LockTTL, err = parseDurationEnv("LOCK_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.CalendarFetchTimeout, err = parseDurationEnv("CALENDAR_FETCH_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CalendarSyncConcurrency, err = parseIntEnv("CALENDAR_SYNC_CONCURRENCY", 4); err != nil {
		return Config{}, err
	}
	if cfg.CalendarCancelMissing, err = parseBoolEnv("CALENDAR_CANCEL_MISSING", false); err != nil {
		return Config{}, err
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORAGE_DRIVER=mongo")
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for STORAGE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.EventBroker {
	case BrokerLog:
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for EVENT_BROKER=kafka")
		}
	case BrokerRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required for EVENT_BROKER=rabbitmq")
		}
	default:
		return fmt.Errorf("unknown EVENT_BROKER %q", c.EventBroker)
	}
	if c.CalendarSyncConcurrency < 1 {
		return fmt.Errorf("CALENDAR_SYNC_CONCURRENCY must be positive")
	}
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
