// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ManuGH/couchplay/internal/log"
)

// AccessLog writes one structured line per request. Probe endpoints log at debug.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := statusOf(ww)

		logger := log.WithComponentFromContext(r.Context(), "http")
		level := zerolog.InfoLevel
		switch {
		case status >= 500:
			level = zerolog.ErrorLevel
		case status >= 400:
			level = zerolog.WarnLevel
		case !shouldTrace(r):
			level = zerolog.DebugLevel
		}
		ev := logger.WithLevel(level).
			Str(log.FieldEvent, "http.request").
			Str("method", r.Method).
			Str("route", routeLabel(r)).
			Int(log.FieldStatus, status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start))
		if traceID, _ := ExtractTraceContext(r); traceID != "" {
			ev = ev.Str("trace_id", traceID)
		}
		ev.Msg("request served")
	})
}
