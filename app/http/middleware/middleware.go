// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package middleware provides the HTTP instrumentation shared by every
// mounted API: request metrics and structured access logs.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	metricsOnce     sync.Once
)

// requestMetrics lazily registers the HTTP metrics, tolerating duplicate
// registration when several servers share a process in tests.
func requestMetrics() (*prometheus.HistogramVec, *prometheus.CounterVec) {
	metricsOnce.Do(func() {
		requestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "costplane",
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
			},
			[]string{"code", "method"},
		)
		requestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costplane",
				Name:      "http_requests_total",
				Help:      "Count of HTTP requests processed, by method and status code.",
			},
			[]string{"code", "method"},
		)
		for _, c := range []prometheus.Collector{requestDuration, requestsTotal} {
			if err := prometheus.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
	return requestDuration, requestsTotal
}

// PromHTTPMiddleware instruments requests with Prometheus metrics.
func PromHTTPMiddleware(next http.Handler) http.Handler {
	duration, counter := requestMetrics()
	return promhttp.InstrumentHandlerDuration(
		duration,
		promhttp.InstrumentHandlerCounter(counter, next),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddlewareWrapper emits one structured access log per request.
// Probe and scrape endpoints log at trace to keep the stream readable.
func LoggingMiddlewareWrapper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		level := zerolog.DebugLevel
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			level = zerolog.TraceLevel
		}
		log.Ctx(r.Context()).WithLevel(level).
			Str("method", r.Method).
			Str("route", r.URL.Path).
			Int("statusCode", recorder.status).
			Str("status", http.StatusText(recorder.status)).
			Dur("duration", time.Since(started)).
			Str("client", r.RemoteAddr).
			Msg("HTTP request")
	})
}
