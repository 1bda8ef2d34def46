// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const phaseNone = "none"

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "couchplay_http_request_duration_seconds",
		Help:    "Status API latency by route and status class",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"method", "route", "class"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "couchplay_http_requests_in_flight",
		Help: "Status API requests being served",
	})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "couchplay_http_response_size_bytes",
		Help:    "Status API response sizes by route",
		Buckets: prometheus.ExponentialBuckets(64, 4, 7),
	}, []string{"route"})

	httpRequestsByPhase = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "couchplay_http_requests_total",
		Help: "Status API requests by route, status class and the session phase at request time",
	}, []string{"route", "class", "phase"})
)

// Metrics records request metrics labelled by chi route pattern. phase reports the
// current session phase; nil labels every request "none".
func Metrics(phase func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := routeLabel(r)
			class := statusClass(statusOf(ww))
			httpRequestDuration.WithLabelValues(r.Method, route, class).Observe(time.Since(start).Seconds())
			if n := ww.BytesWritten(); n > 0 {
				httpResponseSize.WithLabelValues(route).Observe(float64(n))
			}
			httpRequestsByPhase.WithLabelValues(route, class, phaseLabel(phase)).Inc()
		})
	}
}

func phaseLabel(phase func() string) string {
	if phase == nil {
		return phaseNone
	}
	if p := phase(); p != "" {
		return p
	}
	return phaseNone
}

// routeLabel prefers the chi route pattern so unmatched paths stay low cardinality.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// statusOf treats a handler that never wrote a header as 200.
func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
