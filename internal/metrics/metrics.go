package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout outcomes.
const (
	OutcomeSuccess                  = "success"
	OutcomeValidationError          = "validation_error"
	OutcomeAuthenticationError      = "authentication_error"
	OutcomeProviderUnavailable      = "provider_unavailable"
	OutcomeProviderRejected         = "provider_rejected"
	OutcomeConfigurationError       = "configuration_error"
	OutcomeStorageError             = "storage_error"
	OutcomeStorageErrorAfterPayment = "storage_error_after_payment"
	OutcomeDuplicate                = "duplicate"
)

var (
	CheckoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_total",
			Help: "Checkout attempts by payment method and outcome",
		},
		[]string{"method", "outcome"},
	)

	IntentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intent_total",
			Help: "Payment intents requested from the provider by outcome",
		},
		[]string{"outcome"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_provider_duration_ms",
			Help:    "Latency of payment provider calls in ms",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 15000},
		},
		[]string{"operation"},
	)

	WebhookTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_total",
			Help: "Payment webhook deliveries by event and result",
		},
		[]string{"event", "result"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 5000},
		},
		[]string{"method", "path"},
	)
)

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveMs records the elapsed time in milliseconds on h.
func (t *Timer) ObserveMs(h prometheus.Observer) {
	h.Observe(float64(t.Duration().Milliseconds()))
}

func Handler() http.Handler {
	return promhttp.Handler()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so ids in paths do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := StartTimer()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		timer.ObserveMs(httpDuration.WithLabelValues(r.Method, path))
	})
}
