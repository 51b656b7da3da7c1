package http

import (
	"net"
	"net/http"
	"time"
)

type TransportFunc func(http.RoundTripper) http.RoundTripper

type HttpOpts func(*httpConfig)

type httpConfig struct {
	connClientTimeout     time.Duration
	requestTimeout        time.Duration
	clientKeepAlive       time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	idleConnTimeout       time.Duration
	maxIdleConnsPerHost   int
	transports            []TransportFunc
}

func defaultHTTPConfig() *httpConfig {
	return &httpConfig{
		connClientTimeout:     10 * time.Second,
		requestTimeout:        30 * time.Second,
		clientKeepAlive:       90 * time.Second,
		tlsHandshakeTimeout:   10 * time.Second,
		responseHeaderTimeout: 30 * time.Second,
		idleConnTimeout:       90 * time.Second,
		maxIdleConnsPerHost:   10,
	}
}

func WithConnClientTimeout(timeout time.Duration) HttpOpts {
	return func(c *httpConfig) {
		if timeout > 0 {
			c.connClientTimeout = timeout
		}
	}
}

// WithRequestTimeout bounds a whole exchange. Answer uploads can be large,
// so the connector for submissions should use a generous value.
func WithRequestTimeout(timeout time.Duration) HttpOpts {
	return func(c *httpConfig) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

func WithClientKeepAlive(keepAlive time.Duration) HttpOpts {
	return func(c *httpConfig) {
		if keepAlive > 0 {
			c.clientKeepAlive = keepAlive
		}
	}
}

func WithResponseHeaderTimeout(timeout time.Duration) HttpOpts {
	return func(c *httpConfig) {
		if timeout > 0 {
			c.responseHeaderTimeout = timeout
		}
	}
}

func WithIdleConnTimeout(timeout time.Duration) HttpOpts {
	return func(c *httpConfig) {
		if timeout > 0 {
			c.idleConnTimeout = timeout
		}
	}
}

func WithTransport(transport TransportFunc) HttpOpts {
	return func(c *httpConfig) {
		c.transports = append(c.transports, transport)
	}
}

func newClient(opts ...HttpOpts) *http.Client {
	cfg := defaultHTTPConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	dialer := net.Dialer{
		Timeout:   cfg.connClientTimeout,
		KeepAlive: cfg.clientKeepAlive,
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConnsPerHost:   cfg.maxIdleConnsPerHost,
		TLSHandshakeTimeout:   cfg.tlsHandshakeTimeout,
		ResponseHeaderTimeout: cfg.responseHeaderTimeout,
		IdleConnTimeout:       cfg.idleConnTimeout,
	}

	// First registered wrapper ends up innermost
	for _, wrap := range cfg.transports {
		transport = wrap(transport)
	}

	return &http.Client{
		Timeout:   cfg.requestTimeout,
		Transport: transport,
	}
}
