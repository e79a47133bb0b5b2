package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"gitlab.com/nevasik7/alerting/logger"
)

type LoggingMiddleware struct {
	Log logger.Logger
}

func NewLogging(log logger.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{Log: log}
}

func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingRW{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r)

		fields := map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     lrw.status,
			"size":       lrw.size,
			"dur_ms":     time.Since(start).Milliseconds(),
			"ip":         r.RemoteAddr,
			"ua":         r.UserAgent(),
			"request_id": middleware.GetReqID(r.Context()),
		}

		// probes are polled constantly, keep them out of info
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			m.Log.WithFields(fields).Debug("http_request")
			return
		}
		if lrw.status >= http.StatusInternalServerError {
			m.Log.WithFields(fields).Warn("http_request")
			return
		}
		m.Log.WithFields(fields).Info("http_request")
	})
}

type loggingRW struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *loggingRW) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingRW) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}
