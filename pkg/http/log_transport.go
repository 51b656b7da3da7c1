package http

import (
	"net/http"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// context keys for attaching request metadata
type bodySizeContextKey struct{}

type logTransport struct {
	transport http.RoundTripper
}

// RoundTrip logs method, URL and payload size. Payloads themselves are not
// logged: answer submissions carry whole recordings.
func (t *logTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	}
	if size, ok := ctx.Value(bodySizeContextKey{}).(int); ok {
		fields = append(fields, zap.Int("payload_bytes", size))
	}

	ctxzap.Debug(ctx, "HTTP outbound request", fields...)

	resp, err := t.transport.RoundTrip(req)
	if err != nil {
		ctxzap.Debug(ctx, "HTTP outbound request failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	ctxzap.Debug(ctx, "HTTP outbound response",
		append(fields,
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
		)...,
	)

	return resp, nil
}

// WithRequestLogging wraps the HTTP transport with logging of method, URL and payload size.
func WithRequestLogging() HttpOpts {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &logTransport{
			transport: rt,
		}
	})
}
