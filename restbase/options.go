package restbase

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout is used for the default transport when WithTimeout is not given.
const DefaultTimeout = 30 * time.Second

// Option configures a Connection.
type Option func(*connOptions)

// connOptions holds configuration options for the Connection.
type connOptions struct {
	name      string
	password  string
	version   string
	timeout   time.Duration
	transport Transport
	logger    zerolog.Logger
}

func defaultOptions() connOptions {
	return connOptions{
		version: "dev",
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
}

// WithBasicAuth sets the HTTP Basic credentials. Both values are required.
func WithBasicAuth(name, password string) Option {
	return func(o *connOptions) {
		o.name = name
		o.password = password
	}
}

// WithVersion sets the client version reported in the User-Agent header.
func WithVersion(version string) Option {
	return func(o *connOptions) {
		if version != "" {
			o.version = version
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
// It has no effect when WithTransport is also given.
func WithTimeout(timeout time.Duration) Option {
	return func(o *connOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithTransport replaces the HTTP transport. *http.Client satisfies Transport.
func WithTransport(transport Transport) Option {
	return func(o *connOptions) {
		o.transport = transport
	}
}

// WithHTTPClient is a convenience for WithTransport with a *http.Client.
func WithHTTPClient(client *http.Client) Option {
	return WithTransport(client)
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *connOptions) {
		o.logger = logger
	}
}
