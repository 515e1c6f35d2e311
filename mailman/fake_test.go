package mailman

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/mailmanctl/restbase"
)

const apiPrefix = "/3.1/"

type fakeResponse struct {
	status   int
	location string
	body     any
}

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
}

// fakeMailman answers canned responses keyed by "METHOD path" (path relative
// to /3.1/) and records every request it sees.
type fakeMailman struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	routes   map[string]fakeResponse
	requests []recordedRequest
}

func newFakeMailman(t *testing.T) *fakeMailman {
	t.Helper()
	f := &fakeMailman{t: t, routes: map[string]fakeResponse{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeMailman) on(method, path string, resp fakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = resp
}

// link returns the absolute URL of path, as the server would put in self_link.
func (f *fakeMailman) link(path string) string {
	return f.server.URL + apiPrefix + path
}

func (f *fakeMailman) client() *Client {
	f.t.Helper()
	c, err := NewClient(f.server.URL+"/3.1", zerolog.Nop(), restbase.WithBasicAuth("restadmin", "restpass"))
	require.NoError(f.t, err)
	return c
}

func (f *fakeMailman) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeMailman) count(method, path string) int {
	n := 0
	for _, r := range f.recorded() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeMailman) last() recordedRequest {
	reqs := f.recorded()
	require.NotEmpty(f.t, reqs)
	return reqs[len(reqs)-1]
}

func (f *fakeMailman) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))
	path := strings.TrimPrefix(r.URL.Path, apiPrefix)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   path,
		Query:  r.URL.Query(),
		Form:   form,
	})
	resp, ok := f.routes[r.Method+" "+path]
	f.mu.Unlock()

	if !ok {
		http.Error(w, `{"title": "404 Not Found"}`, http.StatusNotFound)
		return
	}
	if resp.location != "" {
		w.Header().Set("Location", resp.location)
	}
	status := resp.status
	if status == 0 {
		status = http.StatusOK
	}
	if resp.body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp.body)
}

func collection(entries ...map[string]any) map[string]any {
	body := map[string]any{"start": 0, "total_size": len(entries)}
	if len(entries) > 0 {
		body["entries"] = entries
	}
	return body
}

// seedList registers test@example.com and returns the list body.
func (f *fakeMailman) seedList() map[string]any {
	list := map[string]any{
		"display_name":  "Test",
		"fqdn_listname": "test@example.com",
		"list_id":       "test.example.com",
		"list_name":     "test",
		"mail_host":     "example.com",
		"member_count":  2,
		"volume":        1,
		"self_link":     f.link("lists/test.example.com"),
	}
	f.on(http.MethodGet, "lists/test@example.com", fakeResponse{body: list})
	f.on(http.MethodGet, "lists/test.example.com", fakeResponse{body: list})
	return list
}

func (f *fakeMailman) memberEntry(id, address string) map[string]any {
	return map[string]any{
		"address":           address,
		"email":             address,
		"delivery_mode":     "regular",
		"display_name":      "",
		"list_id":           "test.example.com",
		"member_id":         id,
		"moderation_action": "defer",
		"role":              "member",
		"self_link":         f.link("members/" + id),
		"subscription_mode": "as_address",
		"user":              f.link("users/" + id),
	}
}
