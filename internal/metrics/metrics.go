package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	notificationsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_notifications_accepted_total",
			Help: "Total notifications accepted at intake by type",
		},
		[]string{"type"},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_status_transitions_total",
			Help: "Status transitions applied, by from and to status",
		},
		[]string{"from", "to"},
	)

	retriesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_retries_scheduled_total",
			Help: "Retries scheduled by queue",
		},
		[]string{"queue"},
	)

	deadLetters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_dead_letters_total",
			Help: "Notifications moved to the dead letter table",
		},
		[]string{"type"},
	)

	breakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_breaker_rejections_total",
			Help: "Sends rejected fast by an open circuit breaker",
		},
		[]string{"channel"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "herald_breaker_state",
			Help: "Breaker state per channel: 0 closed, 1 open, 2 half_open",
		},
		[]string{"channel"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "herald_queue_depth",
			Help: "Messages waiting in a logical queue",
		},
		[]string{"queue"},
	)

	idempotencyReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_idempotency_replays_total",
			Help: "Intake requests answered from the idempotency window",
		},
	)

	rateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
	)

	deliveryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_delivery_latency_seconds",
			Help:    "Time spent in a provider send call",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"type"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordNotificationAccepted records an intake acceptance
func RecordNotificationAccepted(notifType string) {
	notificationsAccepted.WithLabelValues(notifType).Inc()
}

// RecordStatusTransition records an applied status transition
func RecordStatusTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordRetryScheduled records a scheduled redelivery
func RecordRetryScheduled(queue string) {
	retriesScheduled.WithLabelValues(queue).Inc()
}

// RecordDeadLetter records a notification exhausting its retries
func RecordDeadLetter(notifType string) {
	deadLetters.WithLabelValues(notifType).Inc()
}

// RecordBreakerRejection records a fail-fast from an open breaker
func RecordBreakerRejection(channel string) {
	breakerRejections.WithLabelValues(channel).Inc()
}

// SetBreakerState publishes the current breaker state for a channel
func SetBreakerState(channel string, state int) {
	breakerState.WithLabelValues(channel).Set(float64(state))
}

// SetQueueDepth publishes the waiting-message count for a queue
func SetQueueDepth(queue string, depth int) {
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordIdempotencyReplay records a duplicate request served from the window
func RecordIdempotencyReplay() {
	idempotencyReplays.Inc()
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection() {
	rateLimitRejections.Inc()
}

// RecordDeliveryLatency records provider send time
func RecordDeliveryLatency(notifType string, latency time.Duration) {
	deliveryLatency.WithLabelValues(notifType).Observe(latency.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
