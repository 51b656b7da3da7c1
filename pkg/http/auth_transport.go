package http

import "net/http"

type headerTransport struct {
	header    string
	value     string
	transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.value == "" || req.Header.Get(t.header) != "" {
		return t.transport.RoundTrip(req)
	}

	reqCopy := req.Clone(req.Context())
	reqCopy.Header.Set(t.header, t.value)

	return t.transport.RoundTrip(reqCopy)
}

// WithAuthToken forwards a pre-issued bearer token. Obtaining or refreshing
// the token is the caller's business.
func WithAuthToken(token string) HttpOpts {
	value := ""
	if token != "" {
		value = "Bearer " + token
	}
	return withHeader("Authorization", value)
}

func WithUserAgent(agent string) HttpOpts {
	return withHeader("User-Agent", agent)
}

func withHeader(header, value string) HttpOpts {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &headerTransport{
			header:    header,
			value:     value,
			transport: rt,
		}
	})
}
