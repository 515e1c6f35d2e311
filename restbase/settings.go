package restbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// ReadOnlyKeys are configuration keys the server computes. They are never
// sent back on Save.
var ReadOnlyKeys = []string{
	"bounces_address",
	"created_at",
	"digest_last_sent_at",
	"fqdn_listname",
	"http_etag",
	"host_name",
	"join_address",
	"last_post_at",
	"leave_address",
	"list_id",
	"list_name",
	"next_digest_number",
	"no_reply_address",
	"owner_address",
	"post_id",
	"posting_address",
	"request_address",
	"scheme",
	"volume",
	"web_host",
}

// IsReadOnly reports whether key is one of ReadOnlyKeys.
func IsReadOnly(key string) bool {
	return slices.Contains(ReadOnlyKeys, key)
}

// Settings is an ordered key/value view of a configuration resource. Values
// are loaded once, changed in memory with Set and written back with Save.
//
// Settings is not safe for concurrent mutation; callers that share one must
// serialize access themselves.
type Settings struct {
	conn   *Connection
	url    string
	keys   []string
	values map[string]any
}

// NewSettings creates an unloaded settings view of url.
func NewSettings(conn *Connection, url string) *Settings {
	return &Settings{conn: conn, url: url}
}

// URL returns the configuration resource URL.
func (s *Settings) URL() string {
	return s.url
}

func (s *Settings) ensureLoaded(ctx context.Context) error {
	if s.values != nil {
		return nil
	}
	s.conn.logger.Debug().Str("url", s.url).Msg("Loading settings")
	_, raw, err := s.conn.CallRaw(ctx, s.url, nil, "")
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	keys, values, err := decodeOrdered(raw)
	if err != nil {
		return fmt.Errorf("failed to parse settings from %s: %w", s.url, err)
	}
	s.keys = keys
	s.values = values
	return nil
}

// decodeOrdered decodes a JSON object keeping the key order of the document.
func decodeOrdered(raw []byte) ([]string, map[string]any, error) {
	values := make(map[string]any)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, values, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("%w: expected JSON object", ErrUnexpectedBody)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("%w: object key is %T", ErrUnexpectedBody, tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = value
	}
	return keys, values, nil
}

// Keys returns the keys in the order the server sent them, followed by any
// keys added with Set.
func (s *Settings) Keys(ctx context.Context) ([]string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(s.keys), nil
}

// Get returns the value for key and whether it is present.
func (s *Settings) Get(ctx context.Context, key string) (any, bool, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, false, err
	}
	v, ok := s.values[key]
	return v, ok, nil
}

// Set changes a value in memory. Read-only keys are accepted here but are
// dropped by Save.
func (s *Settings) Set(ctx context.Context, key string, value any) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
	return nil
}

// Len returns the number of keys.
func (s *Settings) Len(ctx context.Context) (int, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	return len(s.keys), nil
}

// All returns a copy of the cached values.
func (s *Settings) All(ctx context.Context) (map[string]any, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return maps.Clone(s.values), nil
}

// Payload returns what Save would send: every cached key except ReadOnlyKeys.
func (s *Settings) Payload(ctx context.Context) (Data, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	data := make(Data, len(s.values))
	for _, key := range s.keys {
		if IsReadOnly(key) {
			continue
		}
		data[key] = s.values[key]
	}
	return data, nil
}

// Save PATCHes every writable key to the server. The cache is not refreshed
// from the response.
func (s *Settings) Save(ctx context.Context) (*Response, error) {
	data, err := s.Payload(ctx)
	if err != nil {
		return nil, err
	}
	resp, _, err := s.conn.Call(ctx, s.url, data, "PATCH")
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	s.conn.logger.Debug().Str("url", s.url).Int("keys", len(data)).Msg("Saved settings")
	return resp, nil
}
