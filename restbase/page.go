package restbase

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ElementFactory builds a proxy for one collection entry. entry is the inline
// representation the server sent and should seed the proxy cache.
type ElementFactory[T any] func(conn *Connection, url string, entry map[string]any) T

// Page is one window of a paginated collection. Pages are 1-based. The
// response is fetched on first access and cached for this page only; Next and
// Previous return fresh, unfetched pages.
type Page[T any] struct {
	conn    *Connection
	url     string
	count   int
	page    int
	factory ElementFactory[T]

	fetched bool
	entries []T
	total   int
}

// NewPage creates page number page of collectionURL with count entries per page.
func NewPage[T any](conn *Connection, collectionURL string, count, page int, factory ElementFactory[T]) *Page[T] {
	return &Page[T]{
		conn:    conn,
		url:     collectionURL,
		count:   count,
		page:    page,
		factory: factory,
	}
}

// Number returns the 1-based page number.
func (p *Page[T]) Number() int { return p.page }

// Size returns the requested page size.
func (p *Page[T]) Size() int { return p.count }

// PageURL returns the collection URL with the count and page query
// parameters merged into any existing query.
func (p *Page[T]) PageURL() (string, error) {
	u, err := url.Parse(p.url)
	if err != nil {
		return "", fmt.Errorf("invalid collection url %q: %w", p.url, err)
	}
	q := u.Query()
	q.Set("count", strconv.Itoa(p.count))
	q.Set("page", strconv.Itoa(p.page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *Page[T]) fetch(ctx context.Context) error {
	if p.fetched {
		return nil
	}
	if p.count < 1 || p.page < 1 {
		return fmt.Errorf("%w: count=%d page=%d", ErrInvalidPage, p.count, p.page)
	}

	target, err := p.PageURL()
	if err != nil {
		return err
	}
	_, content, err := p.conn.Call(ctx, target, nil, "")
	if err != nil {
		return fmt.Errorf("failed to fetch page %d: %w", p.page, err)
	}
	env, err := ParseEnvelope(content)
	if err != nil {
		return err
	}

	entries := make([]T, 0, len(env.Entries))
	for _, entry := range env.Entries {
		entries = append(entries, p.factory(p.conn, StringField(entry, "self_link"), entry))
	}
	p.entries = entries
	p.total = env.TotalSize
	p.fetched = true
	return nil
}

// Entries returns the proxies on this page. A page past the end is empty.
func (p *Page[T]) Entries(ctx context.Context) ([]T, error) {
	if err := p.fetch(ctx); err != nil {
		return nil, err
	}
	return p.entries, nil
}

// Total returns the total number of entries in the collection.
func (p *Page[T]) Total(ctx context.Context) (int, error) {
	if err := p.fetch(ctx); err != nil {
		return 0, err
	}
	return p.total, nil
}

// PageCount returns ceil(total/count).
func (p *Page[T]) PageCount(ctx context.Context) (int, error) {
	total, err := p.Total(ctx)
	if err != nil {
		return 0, err
	}
	return (total + p.count - 1) / p.count, nil
}

// HasNext reports whether a later page exists.
func (p *Page[T]) HasNext(ctx context.Context) (bool, error) {
	pages, err := p.PageCount(ctx)
	if err != nil {
		return false, err
	}
	return p.page < pages, nil
}

// HasPrevious reports whether an earlier page exists.
func (p *Page[T]) HasPrevious() bool {
	return p.page > 1
}

// Next returns the following page. It is not fetched yet.
func (p *Page[T]) Next() *Page[T] {
	return NewPage(p.conn, p.url, p.count, p.page+1, p.factory)
}

// Previous returns the preceding page, or page 1 when already on the first.
func (p *Page[T]) Previous() *Page[T] {
	return NewPage(p.conn, p.url, p.count, max(p.page-1, 1), p.factory)
}

// Collect fetches a whole collection without pagination parameters and maps
// each entry through factory.
func Collect[T any](ctx context.Context, conn *Connection, collectionURL string, factory ElementFactory[T]) ([]T, error) {
	_, content, err := conn.Call(ctx, collectionURL, nil, "")
	if err != nil {
		return nil, err
	}
	env, err := ParseEnvelope(content)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(env.Entries))
	for _, entry := range env.Entries {
		out = append(out, factory(conn, StringField(entry, "self_link"), entry))
	}
	return out, nil
}
