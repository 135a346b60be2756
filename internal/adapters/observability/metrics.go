package observability

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bizdash", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bizdash", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	Generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bizdash", Name: "generations_total", Help: "Resolved mock generations."},
		[]string{"kind", "outcome"}, // kind: initial|regenerate, outcome: applied|dropped
	)
	GenerationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bizdash", Name: "generation_duration_seconds",
			Help:    "Time from start to resolve of a mock generation.",
			Buckets: []float64{0.1, 0.25, 0.5, 0.8, 1, 1.5, 2, 3, 5},
		},
		[]string{"kind"},
	)
	GenerationsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "bizdash", Name: "generations_inflight", Help: "Pending mock generations."},
	)
	ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bizdash", Name: "validation_failures_total", Help: "Rejected form fields."},
		[]string{"field", "code"},
	)
	StoreEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bizdash", Name: "session_store_events_total", Help: "Session store hits/misses/sets/dels."},
		[]string{"store", "event"}, // event: hit|miss|set|del
	)
)

// Serve exposes reg on METRICS_ADDR in the background and returns the server so
// the caller can shut it down; nil when no address is set.
func Serve(addr string, reg *prometheus.Registry) *http.Server {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, Generations, GenerationLatency,
		GenerationsInflight, ValidationFailures, StoreEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveGeneration(kind string, applied bool, dur time.Duration) {
	outcome := "applied"
	if !applied {
		outcome = "dropped"
	}
	Generations.WithLabelValues(kind, outcome).Inc()
	GenerationLatency.WithLabelValues(kind).Observe(dur.Seconds())
}

func ObserveValidation(field, code string) {
	ValidationFailures.WithLabelValues(field, code).Inc()
}

func ObserveStore(store, event string) { // event: hit|miss|set|del
	StoreEvents.WithLabelValues(store, event).Inc()
}
