package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeops_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lifeops_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	remoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeops_remote_requests_total",
		Help: "Total number of requests sent to the remote suite.",
	}, []string{"service", "status"})

	remoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lifeops_remote_request_duration_seconds",
		Help:    "Histogram of remote suite request latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})

	syncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeops_sync_runs_total",
		Help: "Total number of store sync passes by outcome.",
	}, []string{"store", "result"})
)

// Middleware records per-route request counts and latencies.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			statusCode := strconv.Itoa(ww.Status())
			httpRequestsTotal.WithLabelValues(r.Method, route).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route, statusCode).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRemoteRequest matches the remote client's observer hook. Status 0
// is a transport failure before any response arrived.
func ObserveRemoteRequest(service string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	remoteRequestsTotal.WithLabelValues(service, label).Inc()
	remoteRequestDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// CountSyncRun records one sync pass outcome for a store.
func CountSyncRun(store string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	syncRunsTotal.WithLabelValues(store, result).Inc()
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
