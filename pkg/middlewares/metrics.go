package middlewares

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// MetricsMw counts requests by method and status code
type MetricsMw struct {
	requests *prometheus.CounterVec
	next     http.Handler
}

func NewMetricsMw(requests *prometheus.CounterVec) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewMetrics(requests, next)
	}
}

func NewMetrics(requests *prometheus.CounterVec, next http.Handler) *MetricsMw {
	return &MetricsMw{requests: requests, next: next}
}

func (mw *MetricsMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	sr := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}
	mw.next.ServeHTTP(sr, r)

	mw.requests.WithLabelValues(r.Method, strconv.Itoa(sr.status)).Inc()
}
