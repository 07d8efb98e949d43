package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/corvid-labs/eventindex/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID returns middleware that assigns each request a unique ID,
// reusing the caller's X-Request-Id header if present, and attaches it to
// the request context via pkg/logger so downstream handlers' loggers carry
// it automatically.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = newRequestID()
			}
			w.Header().Set(requestIDHeader, id)
			ctx := logger.WithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRequestID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf[:])
}
