package restbase

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Transport performs a single HTTP round trip. Connection pooling, TLS and
// redirects are its concern. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Data is a request payload. Values are coerced to strings and form encoded.
type Data map[string]any

// Response carries the metadata of a successful call.
type Response struct {
	StatusCode int
	Header     http.Header
	URL        string
}

// Location returns the Location header, which points at newly created resources.
func (r *Response) Location() string {
	if r == nil {
		return ""
	}
	return r.Header.Get("Location")
}

// Connection is a connection to the Mailman REST API. It is immutable after
// construction and may be shared by any number of resource proxies.
type Connection struct {
	baseURL   *url.URL
	name      string
	basicAuth string
	userAgent string
	transport Transport
	logger    zerolog.Logger
}

// NewConnection validates the configuration and creates a Connection.
func NewConnection(baseURL string, opts ...Option) (*Connection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", ErrInvalidConfig, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("%w: base URL must be absolute: %s", ErrInvalidConfig, baseURL)
	}

	if o.name != "" && o.password == "" {
		return nil, fmt.Errorf("%w: password is required when name is given", ErrInvalidConfig)
	}
	if o.name == "" && o.password != "" {
		return nil, fmt.Errorf("%w: name is required when password is given", ErrInvalidConfig)
	}

	conn := &Connection{
		baseURL:   parsed,
		name:      o.name,
		userAgent: "GNU Mailman REST client v" + o.version,
		transport: o.transport,
		logger:    o.logger,
	}
	if o.name != "" {
		conn.basicAuth = base64.StdEncoding.EncodeToString([]byte(o.name + ":" + o.password))
	}
	if conn.transport == nil {
		conn.transport = &http.Client{Timeout: o.timeout}
	}

	return conn, nil
}

// BaseURL returns the base URL, always ending in a slash.
func (c *Connection) BaseURL() string {
	return c.baseURL.String()
}

// Name returns the Basic Auth user name, or "" when no credentials are set.
func (c *Connection) Name() string {
	return c.name
}

// UserAgent returns the User-Agent header sent with every request.
func (c *Connection) UserAgent() string {
	return c.userAgent
}

// Logger returns the connection logger.
func (c *Connection) Logger() zerolog.Logger {
	return c.logger
}

// Resolve resolves path against the base URL. Absolute URLs are returned as is.
func (c *Connection) Resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid resource path %q: %w", path, err)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// Call makes a call to the REST API. When method is empty it defaults to GET,
// or POST if data is given. The decoded JSON body is nil for empty responses,
// otherwise a map[string]any, []any or scalar. Numbers decode as json.Number.
func (c *Connection) Call(ctx context.Context, path string, data Data, method string) (*Response, any, error) {
	meta, raw, err := c.CallRaw(ctx, path, data, method)
	if err != nil {
		return nil, nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return meta, nil, nil
	}

	var content any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&content); err != nil {
		return nil, nil, fmt.Errorf("failed to parse response from %s: %w", meta.URL, err)
	}

	return meta, content, nil
}

// CallRaw is Call without JSON decoding. The body is returned as read.
func (c *Connection) CallRaw(ctx context.Context, path string, data Data, method string) (*Response, []byte, error) {
	target, err := c.Resolve(path)
	if err != nil {
		return nil, nil, err
	}

	var body io.Reader
	if data != nil {
		body = strings.NewReader(EncodeForm(data).Encode())
	}
	if method == "" {
		method = http.MethodGet
		if data != nil {
			method = http.MethodPost
		}
	}
	method = strings.ToUpper(method)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if data != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.basicAuth != "" {
		req.Header.Set("Authorization", "Basic "+c.basicAuth)
	}

	start := time.Now()
	resp, err := c.transport.Do(req)
	if err != nil {
		return nil, nil, &ConnectionError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &ConnectionError{URL: target, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Mailman API call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &HTTPError{
			URL:        target,
			Method:     method,
			StatusCode: resp.StatusCode,
			Body:       raw,
			Header:     resp.Header.Clone(),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		URL:        target,
	}, raw, nil
}

// CallObject is Call for endpoints that answer with a JSON object.
func (c *Connection) CallObject(ctx context.Context, path string, data Data, method string) (*Response, map[string]any, error) {
	resp, content, err := c.Call(ctx, path, data, method)
	if err != nil {
		return nil, nil, err
	}
	if content == nil {
		return resp, nil, nil
	}
	obj, ok := content.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: expected JSON object from %s, got %T", ErrUnexpectedBody, resp.URL, content)
	}
	return resp, obj, nil
}
