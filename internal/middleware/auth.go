package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"orbitspeed/internal/logger"
)

// TokenHeader carries the shared camera token.
const TokenHeader = "X-Camera-Token"

// IngestMiddleware requires the camera token on frame ingestion paths
// (/camera, /upload). An empty token disables the check.
func IngestMiddleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" || !isIngestPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get(TokenHeader)
		if got == "" {
			// websocket clients cannot always set headers
			got = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isIngestPath(path string) bool {
	return strings.HasPrefix(path, "/camera") || strings.HasPrefix(path, "/upload")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for websocket upgrades.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LoggingMiddleware logs every request with its status and duration, failed
// ones as warnings. Websocket upgrades are logged when the connection ends.
func LoggingMiddleware(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if r.Header.Get("Upgrade") != "" {
			// hijacked connections must see the original writer
			next.ServeHTTP(w, r)
			log.Info("%s %s -> websocket closed (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start).Round(time.Millisecond)
		if rec.status >= http.StatusBadRequest {
			log.Warning("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
			return
		}
		log.Info("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
	})
}
