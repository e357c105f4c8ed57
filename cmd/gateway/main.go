package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/herald-notify/herald/internal/api"
	"github.com/herald-notify/herald/internal/circuitbreaker"
	"github.com/herald-notify/herald/internal/config"
	"github.com/herald-notify/herald/internal/db"
	"github.com/herald-notify/herald/internal/events"
	"github.com/herald-notify/herald/internal/metrics"
	"github.com/herald-notify/herald/internal/observ"
	"github.com/herald-notify/herald/internal/queue"
	"github.com/herald-notify/herald/internal/redis"
	"github.com/herald-notify/herald/internal/retry"
	"github.com/herald-notify/herald/internal/sqs"
	"github.com/herald-notify/herald/internal/status"
	"github.com/herald-notify/herald/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting herald gateway",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	// Initialize database connection
	ctx := context.Background()
	dbConfig := db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	database, err := db.New(ctx, dbConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	logger.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("database", cfg.DBName),
	)

	repo := db.NewRepository(database, logger)

	// Redis is mandatory: intake without the idempotency guard would
	// silently drop the duplicate-suppression guarantee.
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	guard := redis.NewGuard(redisClient, logger, cfg.IdempotencyTTL)
	rateLimiter := redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
		Limit:  cfg.RateLimit,
		Window: 1 * time.Minute,
	})

	// Status-change fanout (optional)
	var notifier status.Notifier
	if cfg.StatusTopicARN != "" {
		publisher, err := events.NewPublisher(ctx, cfg.StatusTopicARN, cfg.SNSRegion, logger)
		if err != nil {
			logger.Warn("status topic unavailable, fanout disabled", zap.Error(err))
		} else {
			notifier = publisher
		}
	}

	statuses := status.NewManager(repo, notifier, logger)

	// Delivery queues: SQS when URLs are configured, in-memory otherwise.
	emailQueue, err := buildQueue(ctx, queue.QueueEmail, cfg.SQSEmailQueueURL, cfg.SQSRegion, logger)
	if err != nil {
		return err
	}
	pushQueue, err := buildQueue(ctx, queue.QueuePush, cfg.SQSPushQueueURL, cfg.SQSRegion, logger)
	if err != nil {
		return err
	}
	failedQueue, err := buildQueue(ctx, queue.QueueFailed, cfg.SQSFailedQueueURL, cfg.SQSRegion, logger)
	if err != nil {
		return err
	}

	queues := map[string]queue.Queue{
		queue.QueueEmail:  emailQueue,
		queue.QueuePush:   pushQueue,
		queue.QueueFailed: failedQueue,
	}

	// One breaker per downstream channel
	smtpBreaker := circuitbreaker.New(breakerConfig("smtp", cfg), logger)
	fcmBreaker := circuitbreaker.New(breakerConfig("fcm", cfg), logger)
	breakers := map[string]*circuitbreaker.CircuitBreaker{
		smtpBreaker.Channel(): smtpBreaker,
		fcmBreaker.Channel():  fcmBreaker,
	}

	// Channel senders, breaker-gated
	var emailSender worker.Sender
	sesSender, err := worker.NewSESSender(ctx, worker.SESConfig{
		Region:    cfg.AWSRegion,
		FromEmail: cfg.SESFromEmail,
	}, repo, logger)
	if err != nil {
		logger.Warn("SES sender unavailable, email falls back to log sender", zap.Error(err))
		emailSender = worker.NewLogSender(logger)
	} else {
		emailSender = sesSender
	}

	var pushSender worker.Sender
	snsSender, err := worker.NewSNSSender(ctx, worker.SNSConfig{
		Region: cfg.SNSRegion,
	}, repo, logger)
	if err != nil {
		logger.Warn("SNS sender unavailable, push falls back to log sender", zap.Error(err))
		pushSender = worker.NewLogSender(logger)
	} else {
		pushSender = snsSender
	}

	protectedEmail := circuitbreaker.NewProtectedSender(emailSender, smtpBreaker, logger)
	protectedPush := circuitbreaker.NewProtectedSender(pushSender, fcmBreaker, logger)

	policy := retry.NewPolicy(cfg.RetryBaseDelay, cfg.RetryMaxDelay, cfg.RetryCircuitFloor, cfg.MaxRetries)

	workerCfg := worker.Config{
		PollInterval: cfg.WorkerPollInterval,
		SendTimeout:  cfg.SendTimeout,
	}
	emailWorker := worker.New(queue.QueueEmail, emailQueue, failedQueue, repo, statuses, policy, protectedEmail, workerCfg, logger)
	pushWorker := worker.New(queue.QueuePush, pushQueue, failedQueue, repo, statuses, policy, protectedPush, workerCfg, logger)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go emailWorker.Start(workerCtx)
	go pushWorker.Start(workerCtx)
	go publishGauges(workerCtx, queues, breakers)

	logger.Info("delivery workers started",
		zap.Duration("poll_interval", cfg.WorkerPollInterval),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	// Setup router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// Custom logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	handler := api.NewHandler(logger, repo, statuses, guard, queues, breakers)

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.UserKeyFunc))

		r.Post("/notifications", handler.CreateNotification)
		r.Get("/notifications", handler.ListNotifications)
		r.Get("/notifications/{id}", handler.GetNotification)
		r.Post("/notifications/{id}/events", handler.ReportStatus)

		// Dead letter operator routes
		r.Get("/dlq", handler.ListDeadLetterQueue)
		r.Get("/dlq/{id}", handler.GetDeadLetterItem)
		r.Post("/dlq/{id}/retry", handler.RetryDeadLetterItem)
		r.Post("/dlq/{id}/discard", handler.DiscardDeadLetterItem)

		// Circuit breaker operator routes
		r.Get("/breakers", handler.ListBreakers)
		r.Post("/breakers/{channel}/reset", handler.ResetBreaker)
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Stop pulling new work before draining HTTP
		workerCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}

func buildQueue(ctx context.Context, name, sqsURL, region string, logger *zap.Logger) (queue.Queue, error) {
	if sqsURL == "" {
		logger.Info("using in-memory queue", zap.String("queue", name))
		return queue.NewMemoryQueue(name, logger), nil
	}
	q, err := sqs.New(ctx, sqs.Config{Region: region, QueueURL: sqsURL}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sqs queue %s: %w", name, err)
	}
	return q, nil
}

func breakerConfig(channel string, cfg *config.Config) circuitbreaker.Config {
	bc := circuitbreaker.DefaultConfig(channel)
	bc.MaxFailures = cfg.BreakerMaxFailures
	bc.RecoveryTimeout = cfg.BreakerRecoveryTimeout
	return bc
}

// publishGauges refreshes the queue depth and breaker state gauges.
func publishGauges(ctx context.Context, queues map[string]queue.Queue, breakers map[string]*circuitbreaker.CircuitBreaker) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, q := range queues {
				if mq, ok := q.(*queue.MemoryQueue); ok {
					metrics.SetQueueDepth(name, mq.Depth())
				}
			}
			for channel, cb := range breakers {
				metrics.SetBreakerState(channel, int(cb.GetState()))
			}
		}
	}
}
