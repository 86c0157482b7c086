package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service owns a private Prometheus registry. All methods are safe on a nil receiver.
type Service struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	analysisTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	chatTotal        *prometheus.CounterVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
}

// New registers the collectors.
func New() *Service {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "elifhoca_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "elifhoca_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	analysisTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "elifhoca_analyses_total",
		Help: "Finished analyses by outcome",
	}, []string{"outcome"})

	analysisDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "elifhoca_analysis_duration_seconds",
		Help:    "Duration of report analyses including the model call",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	chatTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "elifhoca_chat_turns_total",
		Help: "Coaching chat turns by outcome",
	}, []string{"outcome"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elifhoca_cache_hits_total",
		Help: "Analysis cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elifhoca_cache_misses_total",
		Help: "Analysis cache misses",
	})

	registry.MustRegister(
		requestDuration, requestTotal, analysisTotal, analysisDuration, chatTotal, cacheHits, cacheMisses,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return &Service{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		analysisTotal:    analysisTotal,
		analysisDuration: analysisDuration,
		chatTotal:        chatTotal,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Service) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the private registry.
func (m *Service) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records one served request.
func (m *Service) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	s := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, s).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, s).Inc()
}

// ObserveAnalysis records a finished analysis. outcome is "ok" or an error kind.
func (m *Service) ObserveAnalysis(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.analysisTotal.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(duration.Seconds())
}

// ObserveChat records a chat turn. outcome is "ok" or "error".
func (m *Service) ObserveChat(outcome string) {
	if m == nil {
		return
	}
	m.chatTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts an analysis cache hit or miss.
func (m *Service) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// Middleware records request metrics labelled by the matched chi route pattern.
func (m *Service) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.ObserveHTTPRequest(r.Method, route, status, time.Since(start))
	})
}
