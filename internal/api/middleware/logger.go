package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger puts a request scoped logger into the context and logs one line per
// request. Health probes and docs assets are logged at debug level.
func Logger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := ctxzap.ToContext(r.Context(), reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Header().Set(middleware.RequestIDHeader, requestID)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Log(levelFor(r.URL.Path, ww.Status()), "handled HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

func levelFor(path string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case path == "/health", strings.HasPrefix(path, "/docs"):
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
