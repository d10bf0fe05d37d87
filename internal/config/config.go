package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Task transports understood by TaskTransport.
const (
	TaskTransportLocal = "local"
	TaskTransportAMQP  = "amqp"
)

// Config holds API and worker configuration loaded from the environment.
type Config struct {
	AppName   string
	LogLevel  string
	LogFormat string
	HTTPPort  string

	WorkerHTTPPort string

	DatabaseURL string
	RedisURL    string

	RabbitURL       string
	PushQueue       string
	DeadLetterQueue string
	TaskQueue       string
	PrefetchCount   int
	WorkerCount     int
	MaxDeliveries   int

	TaskTransport string
	TaskWorkers   int
	TaskBuffer    int

	AnalyticsID       string
	AnalyticsEndpoint string

	FCMProjectID       string
	FCMBaseURL         string
	FCMCredentialsFile string
	ProviderTimeout    time.Duration

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	TokenSuppressTTL    time.Duration
}

// Load reads the environment (and an optional .env file) without
// validating; callers pick ValidateAPI or ValidateConsumer.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppName:   getEnv("APP_NAME", "tba-api"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		HTTPPort:  getEnv("HTTP_PORT", "8080"),

		WorkerHTTPPort: getEnv("WORKER_HTTP_PORT", "8082"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		RabbitURL:       getEnv("RABBITMQ_URL", ""),
		PushQueue:       getEnv("PUSH_QUEUE", "push.queue"),
		DeadLetterQueue: getEnv("PUSH_DLQ", "failed.queue"),
		TaskQueue:       getEnv("TASK_QUEUE", "tasks.queue"),
		PrefetchCount:   getEnvAsInt("PUSH_PREFETCH", 100),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 5),
		MaxDeliveries:   getEnvAsInt("PUSH_MAX_DELIVERIES", 2),

		TaskTransport: getEnv("TASK_TRANSPORT", TaskTransportLocal),
		TaskWorkers:   getEnvAsInt("TASK_WORKERS", 2),
		TaskBuffer:    getEnvAsInt("TASK_BUFFER", 1024),

		AnalyticsID:       getEnv("GOOGLE_ANALYTICS_ID", ""),
		AnalyticsEndpoint: getEnv("ANALYTICS_ENDPOINT", "http://www.google-analytics.com/collect"),

		FCMProjectID:       getEnv("FCM_PROJECT_ID", getEnv("GOOGLE_CLOUD_PROJECT", "")),
		FCMBaseURL:         getEnv("FCM_BASE_URL", "https://fcm.googleapis.com"),
		FCMCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		ProviderTimeout:    getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),

		RetryMaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 4),
		RetryInitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", time.Second),
		RetryMaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", 15*time.Second),
		TokenSuppressTTL:    getEnvAsDuration("TOKEN_SUPPRESS_TTL", 24*time.Hour),
	}
}

// ValidateAPI checks what the public API needs to boot.
func (c *Config) ValidateAPI() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.TaskTransport == TaskTransportAMQP && c.RabbitURL == "" {
		missing = append(missing, "RABBITMQ_URL")
	}
	if err := missingErr(missing); err != nil {
		return err
	}
	return c.validateTaskTransport()
}

// ValidateConsumer checks what the push worker needs to boot.
func (c *Config) ValidateConsumer() error {
	var missing []string
	if c.RabbitURL == "" {
		missing = append(missing, "RABBITMQ_URL")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.FCMProjectID == "" {
		missing = append(missing, "FCM_PROJECT_ID")
	}
	return missingErr(missing)
}

func (c *Config) validateTaskTransport() error {
	switch c.TaskTransport {
	case TaskTransportLocal, TaskTransportAMQP:
		return nil
	default:
		return fmt.Errorf("unsupported TASK_TRANSPORT %q", c.TaskTransport)
	}
}

func missingErr(missing []string) error {
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsInt(key string, def int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}
