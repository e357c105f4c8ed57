package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (idempotency store + rate limiter)
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// IdempotencyTTL is the dedup window for client request IDs.
	// A request_id reused after the window is treated as a new request.
	IdempotencyTTL time.Duration

	// SQS-backed queues (optional; in-memory queues used when unset)
	SQSRegion         string
	SQSEmailQueueURL  string
	SQSPushQueueURL   string
	SQSFailedQueueURL string

	// AWS channel providers
	AWSRegion    string
	SESFromEmail string
	SNSRegion    string

	// SNS topic for status-change fanout (optional)
	StatusTopicARN string

	// Retry policy
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RetryCircuitFloor time.Duration
	MaxRetries        int

	// Circuit breaker
	BreakerMaxFailures     int
	BreakerRecoveryTimeout time.Duration

	// Workers
	WorkerPollInterval time.Duration
	SendTimeout        time.Duration

	// Rate limiting (requests per minute per caller)
	RateLimit int
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "herald",
		DBPassword: "",
		DBName:     "herald",
		DBSSLMode:  "disable",

		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		IdempotencyTTL: 24 * time.Hour,

		AWSRegion:    "us-east-1",
		SESFromEmail: "noreply@herald.local",

		RetryBaseDelay:    1 * time.Second,
		RetryMaxDelay:     5 * time.Minute,
		RetryCircuitFloor: 30 * time.Second,
		MaxRetries:        3,

		BreakerMaxFailures:     5,
		BreakerRecoveryTimeout: 30 * time.Second,

		WorkerPollInterval: 1 * time.Second,
		SendTimeout:        10 * time.Second,

		RateLimit: 100,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Database config
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	if ttl := os.Getenv("IDEMPOTENCY_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = d
	}

	// AWS config
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	if from := os.Getenv("SES_FROM_EMAIL"); from != "" {
		cfg.SESFromEmail = from
	}

	if region := os.Getenv("SQS_REGION"); region != "" {
		cfg.SQSRegion = region
	} else {
		cfg.SQSRegion = cfg.AWSRegion
	}

	if url := os.Getenv("SQS_EMAIL_QUEUE_URL"); url != "" {
		cfg.SQSEmailQueueURL = url
	}

	if url := os.Getenv("SQS_PUSH_QUEUE_URL"); url != "" {
		cfg.SQSPushQueueURL = url
	}

	if url := os.Getenv("SQS_FAILED_QUEUE_URL"); url != "" {
		cfg.SQSFailedQueueURL = url
	}

	if region := os.Getenv("SNS_REGION"); region != "" {
		cfg.SNSRegion = region
	} else {
		cfg.SNSRegion = cfg.AWSRegion
	}

	if arn := os.Getenv("STATUS_TOPIC_ARN"); arn != "" {
		cfg.StatusTopicARN = arn
	}

	// Retry policy
	if base := os.Getenv("RETRY_BASE_DELAY"); base != "" {
		d, err := time.ParseDuration(base)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRY_BASE_DELAY: %w", err)
		}
		cfg.RetryBaseDelay = d
	}

	if maxDelay := os.Getenv("RETRY_MAX_DELAY"); maxDelay != "" {
		d, err := time.ParseDuration(maxDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRY_MAX_DELAY: %w", err)
		}
		cfg.RetryMaxDelay = d
	}

	if floor := os.Getenv("RETRY_CIRCUIT_FLOOR"); floor != "" {
		d, err := time.ParseDuration(floor)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRY_CIRCUIT_FLOOR: %w", err)
		}
		cfg.RetryCircuitFloor = d
	}

	if maxRetries := os.Getenv("MAX_RETRIES"); maxRetries != "" {
		n, err := strconv.Atoi(maxRetries)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_RETRIES: %w", err)
		}
		cfg.MaxRetries = n
	}

	// Circuit breaker
	if failures := os.Getenv("BREAKER_MAX_FAILURES"); failures != "" {
		n, err := strconv.Atoi(failures)
		if err != nil {
			return nil, fmt.Errorf("invalid BREAKER_MAX_FAILURES: %w", err)
		}
		cfg.BreakerMaxFailures = n
	}

	if timeout := os.Getenv("BREAKER_RECOVERY_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid BREAKER_RECOVERY_TIMEOUT: %w", err)
		}
		cfg.BreakerRecoveryTimeout = d
	}

	// Workers
	if poll := os.Getenv("WORKER_POLL_INTERVAL"); poll != "" {
		d, err := time.ParseDuration(poll)
		if err != nil {
			return nil, fmt.Errorf("invalid WORKER_POLL_INTERVAL: %w", err)
		}
		cfg.WorkerPollInterval = d
	}

	if timeout := os.Getenv("SEND_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SEND_TIMEOUT: %w", err)
		}
		cfg.SendTimeout = d
	}

	if limit := os.Getenv("RATE_LIMIT"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = n
	}

	return cfg, nil
}
