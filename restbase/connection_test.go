package restbase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnection(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		opts    []Option
		wantURL string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "appends trailing slash",
			baseURL: "http://localhost:8001/3.1",
			wantURL: "http://localhost:8001/3.1/",
		},
		{
			name:    "keeps trailing slash",
			baseURL: "http://localhost:8001/3.1/",
			wantURL: "http://localhost:8001/3.1/",
		},
		{
			name:    "with credentials",
			baseURL: "http://localhost:8001/3.1/",
			opts:    []Option{WithBasicAuth("restadmin", "restpass")},
			wantURL: "http://localhost:8001/3.1/",
		},
		{
			name:    "missing URL",
			baseURL: "",
			wantErr: true,
			errMsg:  "base URL is required",
		},
		{
			name:    "relative URL",
			baseURL: "/3.1/",
			wantErr: true,
			errMsg:  "must be absolute",
		},
		{
			name:    "name without password",
			baseURL: "http://localhost:8001/3.1/",
			opts:    []Option{WithBasicAuth("restadmin", "")},
			wantErr: true,
			errMsg:  "password is required",
		},
		{
			name:    "password without name",
			baseURL: "http://localhost:8001/3.1/",
			opts:    []Option{WithBasicAuth("", "restpass")},
			wantErr: true,
			errMsg:  "name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := NewConnection(tt.baseURL, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, conn.BaseURL())
		})
	}
}

func TestConnectionUserAgent(t *testing.T) {
	conn, err := NewConnection("http://localhost:8001/3.1/")
	require.NoError(t, err)
	assert.Equal(t, "GNU Mailman REST client vdev", conn.UserAgent())

	conn, err = NewConnection("http://localhost:8001/3.1/", WithVersion("3.3.2"))
	require.NoError(t, err)
	assert.Equal(t, "GNU Mailman REST client v3.3.2", conn.UserAgent())
}

func TestConnectionCall(t *testing.T) {
	var got *http.Request
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		switch r.URL.Path {
		case "/3.1/system/versions":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"api_version":     "3.1",
				"mailman_version": "GNU Mailman 3.3.9",
			})
		case "/3.1/domains":
			w.Header().Set("Location", "http://localhost/3.1/domains/example.com")
			w.WriteHeader(http.StatusCreated)
		case "/3.1/lists/missing@example.com":
			http.Error(w, "404 Not Found", http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	conn, err := NewConnection(server.URL+"/3.1", WithBasicAuth("restadmin", "restpass"), WithVersion("1.0"))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("GET decodes JSON", func(t *testing.T) {
		resp, content, err := conn.Call(ctx, "system/versions", nil, "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, http.MethodGet, got.Method)
		assert.Equal(t, "GNU Mailman REST client v1.0", got.Header.Get("User-Agent"))

		user, pass, ok := got.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "restadmin", user)
		assert.Equal(t, "restpass", pass)

		obj, ok := content.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "3.1", obj["api_version"])
	})

	t.Run("data defaults to POST with form body", func(t *testing.T) {
		resp, content, err := conn.Call(ctx, "domains", Data{"mail_host": "example.com", "alias_domain": nil}, "")
		require.NoError(t, err)
		assert.Nil(t, content)
		assert.Equal(t, http.MethodPost, got.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))
		assert.Equal(t, "mail_host=example.com", gotBody)
		assert.Equal(t, "http://localhost/3.1/domains/example.com", resp.Location())
	})

	t.Run("method is upper cased", func(t *testing.T) {
		_, _, err := conn.Call(ctx, "lists/test@example.com", nil, "delete")
		require.NoError(t, err)
		assert.Equal(t, http.MethodDelete, got.Method)
	})

	t.Run("absolute URL overrides base", func(t *testing.T) {
		_, _, err := conn.Call(ctx, server.URL+"/other", nil, "")
		require.NoError(t, err)
		assert.Equal(t, "/other", got.URL.Path)
	})

	t.Run("non-2xx is an HTTPError", func(t *testing.T) {
		_, _, err := conn.Call(ctx, "lists/missing@example.com", nil, "")
		require.Error(t, err)

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
		assert.True(t, httpErr.IsNotFound())
		assert.True(t, IsNotFound(err))
		assert.Contains(t, string(httpErr.Body), "404 Not Found")
	})
}

func TestConnectionCallUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	conn, err := NewConnection(url, WithTimeout(time.Second))
	require.NoError(t, err)

	_, _, err = conn.Call(context.Background(), "system", nil, "")
	require.Error(t, err)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	var httpErr *HTTPError
	assert.False(t, errors.As(err, &httpErr))
}

func TestConnectionCallCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	conn, err := NewConnection(server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = conn.Call(ctx, "system", nil, "")
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, context.Canceled)
}

type stubTransport struct {
	requests []*http.Request
	status   int
	body     string
}

func (s *stubTransport) Do(req *http.Request) (*http.Response, error) {
	s.requests = append(s.requests, req)
	return &http.Response{
		StatusCode: s.status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Request:    req,
	}, nil
}

func TestConnectionCustomTransport(t *testing.T) {
	stub := &stubTransport{status: http.StatusOK, body: `{"x": 1}`}
	conn, err := NewConnection("http://mailman.test/3.1/", WithTransport(stub))
	require.NoError(t, err)

	_, obj, err := conn.CallObject(context.Background(), "lists", nil, "")
	require.NoError(t, err)
	require.Len(t, stub.requests, 1)
	assert.Equal(t, "http://mailman.test/3.1/lists", stub.requests[0].URL.String())
	assert.Equal(t, json.Number("1"), obj["x"])
	assert.Empty(t, stub.requests[0].Header.Get("Authorization"))
}

func TestCallObjectRejectsArrays(t *testing.T) {
	stub := &stubTransport{status: http.StatusOK, body: `[1, 2]`}
	conn, err := NewConnection("http://mailman.test/3.1/", WithTransport(stub))
	require.NoError(t, err)

	_, _, err = conn.CallObject(context.Background(), "lists", nil, "")
	assert.ErrorIs(t, err, ErrUnexpectedBody)
}
