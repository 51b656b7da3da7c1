package common

import (
	"fmt"

	"github.com/futig/interview-orchestrator/internal/config"
	pkgHTTP "github.com/futig/interview-orchestrator/pkg/http"
	"go.uber.org/zap"
)

const userAgent = "interview-orchestrator/1.0"

// NewBaseConnector builds the HTTP connector used to reach an external
// service. service names the peer in logs and in the User-Agent.
func NewBaseConnector(service string, cfg config.HTTPClientConfig, logger *zap.Logger) *pkgHTTP.Connector {
	return pkgHTTP.NewConnector(
		&pkgHTTP.ConnectorConfig{
			Logger:  logger.Named(service),
			BaseURL: cfg.Url,
		},
		pkgHTTP.WithRequestTimeout(cfg.RequestTimeout),
		pkgHTTP.WithConnClientTimeout(cfg.ConnTimeout),
		pkgHTTP.WithClientKeepAlive(cfg.KeepAlive),
		pkgHTTP.WithIdleConnTimeout(cfg.IdleConnTimeout),
		pkgHTTP.WithResponseHeaderTimeout(cfg.ResponseHeaderTimeout),
		pkgHTTP.WithRequestLogging(),
		pkgHTTP.WithAuthToken(cfg.Token),
		pkgHTTP.WithUserAgent(fmt.Sprintf("%s (%s)", userAgent, service)),
	)
}
