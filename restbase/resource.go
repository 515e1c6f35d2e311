package restbase

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// state is either unloaded or loaded; nothing else.
type state interface {
	isState()
}

type unloaded struct{}

func (unloaded) isState() {}

type loaded struct {
	raw map[string]any
}

func (loaded) isState() {}

// Resource is a lazily loaded proxy for one remote JSON resource. The body is
// fetched on first access and then kept for the lifetime of the proxy; it is
// never refreshed. T is the typed record decoded from the body.
//
// A Resource is not safe for concurrent first access from several goroutines.
type Resource[T any] struct {
	conn       *Connection
	kind       string
	url        string
	properties []string
	state      state
}

// NewResource creates a proxy for url. properties lists the field names
// the resource type declares. A non-nil seed pre-populates the cache, so no
// fetch happens on first access.
func NewResource[T any](conn *Connection, kind, url string, properties []string, seed map[string]any) *Resource[T] {
	r := &Resource[T]{
		conn:       conn,
		kind:       kind,
		url:        url,
		properties: properties,
		state:      unloaded{},
	}
	if seed != nil {
		r.state = loaded{raw: seed}
	}
	return r
}

// URL returns the resource URL. It never changes.
func (r *Resource[T]) URL() string {
	return r.url
}

// Connection returns the shared connection.
func (r *Resource[T]) Connection() *Connection {
	return r.conn
}

// Kind returns the resource type name.
func (r *Resource[T]) Kind() string {
	return r.kind
}

// Properties returns the declared property names.
func (r *Resource[T]) Properties() []string {
	return slices.Clone(r.properties)
}

// Loaded reports whether the body is cached.
func (r *Resource[T]) Loaded() bool {
	_, ok := r.state.(loaded)
	return ok
}

func (r *Resource[T]) ensureLoaded(ctx context.Context) (map[string]any, error) {
	switch s := r.state.(type) {
	case loaded:
		return s.raw, nil
	case unloaded:
		r.conn.logger.Debug().Str("resource", r.kind).Str("url", r.url).Msg("Loading resource")
		_, content, err := r.conn.CallObject(ctx, r.url, nil, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", r.kind, err)
		}
		if content == nil {
			content = map[string]any{}
		}
		r.state = loaded{raw: content}
		return content, nil
	default:
		panic(fmt.Sprintf("restbase: unknown resource state %T", s))
	}
}

// Info returns the typed record, fetching the body on first use.
func (r *Resource[T]) Info(ctx context.Context) (T, error) {
	var info T
	raw, err := r.ensureLoaded(ctx)
	if err != nil {
		return info, err
	}
	if err := Decode(raw, &info); err != nil {
		return info, fmt.Errorf("failed to decode %s: %w", r.kind, err)
	}
	return info, nil
}

// Get returns a single declared property. Undeclared names fail with
// *UnknownFieldError without touching the network.
func (r *Resource[T]) Get(ctx context.Context, name string) (any, error) {
	if !slices.Contains(r.properties, name) {
		return nil, &UnknownFieldError{Resource: r.kind, Field: name}
	}
	raw, err := r.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return raw[name], nil
}

// Raw returns a copy of the whole cached body.
func (r *Resource[T]) Raw(ctx context.Context) (map[string]any, error) {
	raw, err := r.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return maps.Clone(raw), nil
}

// Cached returns the typed record if the body is already cached.
// It never fetches.
func (r *Resource[T]) Cached() (T, bool) {
	var info T
	s, ok := r.state.(loaded)
	if !ok {
		return info, false
	}
	if err := Decode(s.raw, &info); err != nil {
		return info, false
	}
	return info, true
}

// Peek returns a cached property without fetching.
func (r *Resource[T]) Peek(name string) (any, bool) {
	s, ok := r.state.(loaded)
	if !ok {
		return nil, false
	}
	v, ok := s.raw[name]
	return v, ok
}

// Decode converts a decoded JSON object into a typed record.
func Decode(raw map[string]any, out any) error {
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}
