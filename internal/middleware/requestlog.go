// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/safehtml-demo/wall/internal/log"
)

// An Entry describes a request. RequestLog writes one when the request
// starts and another, with Status and Latency filled in, when it ends.
type Entry struct {
	Severity    log.Severity
	Method      string
	Path        string
	TraceID     string
	RequestType string // "request start" or "request end"
	Status      int
	Latency     time.Duration
	IsRobot     bool
}

// Logger is the interface used to write request logs.
type Logger interface {
	Log(Entry)
}

// LocalLogger is a Logger that writes through the internal log package.
type LocalLogger struct{}

// Log implements the Logger interface via our internal log package.
func (LocalLogger) Log(e Entry) {
	ctx := log.NewContextWithTraceID(context.Background(), e.TraceID)
	var msg strings.Builder
	if e.Status != 0 {
		fmt.Fprintf(&msg, "%d ", e.Status)
	}
	fmt.Fprintf(&msg, "%s %s %s", e.Method, e.Path, e.RequestType)
	if e.Latency > 0 {
		fmt.Fprintf(&msg, " in %s", e.Latency)
	}
	switch e.Severity {
	case log.SeverityDebug:
		log.Debug(ctx, msg.String())
	case log.SeverityWarning:
		log.Warning(ctx, msg.String())
	case log.SeverityError:
		log.Error(ctx, msg.String())
	default:
		log.Info(ctx, msg.String())
	}
}

// traceHeader carries a caller-chosen request ID. When it is missing the
// CSP nonce doubles as one.
const traceHeader = "X-Request-Id"

// RequestLog returns a middleware that logs each incoming requests using the
// given logger. Handlers see the trace ID on the request context, so their
// own log lines can be matched to the request.
func RequestLog(lg Logger) Middleware {
	return func(h http.Handler) http.Handler {
		return &handler{delegate: h, logger: lg}
	}
}

type handler struct {
	delegate http.Handler
	logger   Logger
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	traceID := r.Header.Get(traceHeader)
	if traceID == "" {
		traceID, _ = GetNonce(r.Context())
	}
	severity := log.SeverityInfo
	if r.Method == http.MethodGet && (r.URL.Path == "/healthz" || strings.HasSuffix(r.URL.Path, "/wall.json")) {
		// Health checks and polls are too frequent to log at info.
		severity = log.SeverityDebug
	}
	h.logger.Log(Entry{
		Severity:    severity,
		Method:      r.Method,
		Path:        r.URL.Path,
		TraceID:     traceID,
		RequestType: "request start",
	})
	w2 := &responseWriter{ResponseWriter: w}
	h.delegate.ServeHTTP(w2, r.WithContext(log.NewContextWithTraceID(r.Context(), traceID)))
	s := severity
	if w2.status == http.StatusServiceUnavailable || w2.status == http.StatusTooManyRequests {
		// load shedding is a warning, not an error
		s = log.SeverityWarning
	} else if w2.status >= 500 {
		s = log.SeverityError
	}
	h.logger.Log(Entry{
		Severity:    s,
		Method:      r.Method,
		Path:        r.URL.Path,
		TraceID:     traceID,
		RequestType: "request end",
		Status:      translateStatus(w2.status),
		Latency:     time.Since(start),
		IsRobot:     isRobot(r.Header.Get("User-Agent")),
	})
}

var browserAgentPrefixes = []string{
	"MobileSafari/",
	"Mozilla/",
	"Opera/",
	"Safari/",
}

func isRobot(userAgent string) bool {
	if strings.Contains(strings.ToLower(userAgent), "bot/") || strings.Contains(userAgent, "robot") {
		return true
	}
	for _, b := range browserAgentPrefixes {
		if strings.HasPrefix(userAgent, b) {
			return false
		}
	}
	return true
}

type responseWriter struct {
	http.ResponseWriter

	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func translateStatus(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	return code
}
