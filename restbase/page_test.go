package restbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageItem struct {
	URL   string
	Email string
}

func pageItemFactory(_ *Connection, url string, entry map[string]any) pageItem {
	return pageItem{URL: url, Email: StringField(entry, "email")}
}

// newRosterServer serves total entries paginated by the count and page parameters.
func newRosterServer(t *testing.T, total int) (*httptest.Server, *[]string) {
	t.Helper()
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		q := r.URL.Query()
		count, _ := strconv.Atoi(q.Get("count"))
		page, _ := strconv.Atoi(q.Get("page"))

		body := map[string]any{"start": (page - 1) * count, "total_size": total}
		var entries []map[string]any
		for i := (page - 1) * count; i < min(page*count, total); i++ {
			entries = append(entries, map[string]any{
				"email":     fmt.Sprintf("user%d@example.com", i),
				"self_link": fmt.Sprintf("http://localhost/3.1/members/%d", i),
			})
		}
		if entries != nil {
			body["entries"] = entries
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server, &queries
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		name  string
		total int
		size  int
		want  int
	}{
		{name: "exact", total: 20, size: 10, want: 2},
		{name: "remainder", total: 21, size: 10, want: 3},
		{name: "empty", total: 0, size: 10, want: 0},
		{name: "single", total: 1, size: 50, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newRosterServer(t, tt.total)
			conn, err := NewConnection(server.URL)
			require.NoError(t, err)

			page := NewPage(conn, server.URL+"/members", tt.size, 1, pageItemFactory)
			got, err := page.PageCount(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageNavigation(t *testing.T) {
	server, queries := newRosterServer(t, 5)
	conn, err := NewConnection(server.URL)
	require.NoError(t, err)
	ctx := context.Background()

	first := NewPage(conn, server.URL+"/members", 2, 1, pageItemFactory)
	entries, err := first.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "user0@example.com", entries[0].Email)
	assert.Equal(t, "http://localhost/3.1/members/0", entries[0].URL)
	assert.False(t, first.HasPrevious())

	hasNext, err := first.HasNext(ctx)
	require.NoError(t, err)
	assert.True(t, hasNext)

	// cached within a page
	_, err = first.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, *queries, 1)

	last := first.Next().Next()
	assert.Equal(t, 3, last.Number())
	entries, err = last.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "user4@example.com", entries[0].Email)

	hasNext, err = last.HasNext(ctx)
	require.NoError(t, err)
	assert.False(t, hasNext)
	assert.True(t, last.HasPrevious())
	assert.Equal(t, 2, last.Previous().Number())
	assert.Equal(t, 1, first.Previous().Number())
}

func TestPageBeyondRange(t *testing.T) {
	server, _ := newRosterServer(t, 3)
	conn, err := NewConnection(server.URL)
	require.NoError(t, err)

	page := NewPage(conn, server.URL+"/members", 10, 5, pageItemFactory)
	entries, err := page.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPageMergesQuery(t *testing.T) {
	server, queries := newRosterServer(t, 1)
	conn, err := NewConnection(server.URL)
	require.NoError(t, err)

	page := NewPage(conn, server.URL+"/domains/example.com/lists?advertised=true", 25, 1, pageItemFactory)
	_, err = page.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, *queries, 1)
	assert.Equal(t, "advertised=true&count=25&page=1", (*queries)[0])
}

func TestPageInvalid(t *testing.T) {
	server, queries := newRosterServer(t, 1)
	conn, err := NewConnection(server.URL)
	require.NoError(t, err)

	for _, p := range []*Page[pageItem]{
		NewPage(conn, server.URL+"/members", 0, 1, pageItemFactory),
		NewPage(conn, server.URL+"/members", 10, 0, pageItemFactory),
	} {
		_, err := p.Entries(context.Background())
		assert.ErrorIs(t, err, ErrInvalidPage)
	}
	assert.Empty(t, *queries)
}

func TestCollect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"start": 0, "total_size": 0}`))
	}))
	defer server.Close()
	conn, err := NewConnection(server.URL)
	require.NoError(t, err)

	items, err := Collect(context.Background(), conn, "lists", pageItemFactory)
	require.NoError(t, err)
	assert.Empty(t, items)
}
