package restbase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listRecord struct {
	FQDNListname string `json:"fqdn_listname"`
	MemberCount  int    `json:"member_count"`
}

var listProps = []string{"fqdn_listname", "member_count", "self_link"}

func newCountingServer(t *testing.T, body any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestResourceLoadsOnce(t *testing.T) {
	server, hits := newCountingServer(t, map[string]any{
		"fqdn_listname": "test@example.com",
		"member_count":  3,
	})
	conn, err := NewConnection(server.URL)
	require.NoError(t, err)
	ctx := context.Background()

	res := NewResource[listRecord](conn, "MailingList", server.URL+"/lists/test@example.com", listProps, nil)
	assert.False(t, res.Loaded())
	assert.Equal(t, int32(0), hits.Load())

	name, err := res.Get(ctx, "fqdn_listname")
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", name)

	count, err := res.Get(ctx, "member_count")
	require.NoError(t, err)
	assert.Equal(t, json.Number("3"), count)

	info, err := res.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, listRecord{FQDNListname: "test@example.com", MemberCount: 3}, info)

	assert.True(t, res.Loaded())
	assert.Equal(t, int32(1), hits.Load())
}

func TestResourceUnknownFieldSkipsNetwork(t *testing.T) {
	server, hits := newCountingServer(t, map[string]any{})
	conn, err := NewConnection(server.URL)
	require.NoError(t, err)

	res := NewResource[listRecord](conn, "MailingList", server.URL+"/lists/x", listProps, nil)
	_, err = res.Get(context.Background(), "nonsense")

	var fieldErr *UnknownFieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "MailingList", fieldErr.Resource)
	assert.Equal(t, "nonsense", fieldErr.Field)
	assert.Equal(t, int32(0), hits.Load())
	assert.False(t, res.Loaded())
}

func TestResourceDeclaredButAbsent(t *testing.T) {
	server, _ := newCountingServer(t, map[string]any{"fqdn_listname": "a@example.com"})
	conn, err := NewConnection(server.URL)
	require.NoError(t, err)

	res := NewResource[listRecord](conn, "MailingList", server.URL+"/lists/a", listProps, nil)
	v, err := res.Get(context.Background(), "self_link")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestResourceSeeded(t *testing.T) {
	server, hits := newCountingServer(t, map[string]any{})
	conn, err := NewConnection(server.URL)
	require.NoError(t, err)

	seed := map[string]any{"fqdn_listname": "seed@example.com", "member_count": json.Number("7")}
	res := NewResource[listRecord](conn, "MailingList", server.URL+"/lists/seed", listProps, seed)
	require.True(t, res.Loaded())

	cached, ok := res.Cached()
	require.True(t, ok)
	assert.Equal(t, 7, cached.MemberCount)

	raw, err := res.Raw(context.Background())
	require.NoError(t, err)
	raw["fqdn_listname"] = "changed"

	info, err := res.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "seed@example.com", info.FQDNListname)
	assert.Equal(t, int32(0), hits.Load())
}

func TestResourceLoadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	conn, err := NewConnection(server.URL)
	require.NoError(t, err)

	res := NewResource[listRecord](conn, "MailingList", server.URL+"/lists/gone", listProps, nil)
	_, err = res.Info(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, res.Loaded())
}
