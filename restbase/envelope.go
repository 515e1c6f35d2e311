package restbase

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wrapper the REST API puts around every collection.
type Envelope struct {
	Entries   []map[string]any
	TotalSize int
	Start     int
}

// ParseEnvelope reads a collection body. A missing "entries" key is an
// empty collection, not an error.
func ParseEnvelope(content any) (Envelope, error) {
	var env Envelope
	if content == nil {
		return env, nil
	}
	obj, ok := content.(map[string]any)
	if !ok {
		return env, fmt.Errorf("%w: expected collection object, got %T", ErrUnexpectedBody, content)
	}

	if raw, ok := obj["entries"]; ok && raw != nil {
		items, ok := raw.([]any)
		if !ok {
			return env, fmt.Errorf("%w: entries is %T", ErrUnexpectedBody, raw)
		}
		env.Entries = make([]map[string]any, 0, len(items))
		for _, item := range items {
			entry, ok := item.(map[string]any)
			if !ok {
				return env, fmt.Errorf("%w: entry is %T", ErrUnexpectedBody, item)
			}
			env.Entries = append(env.Entries, entry)
		}
	}

	env.TotalSize = intValue(obj["total_size"])
	env.Start = intValue(obj["start"])
	return env, nil
}

// StringField returns entry[key] as a string, or "" if it is absent or not a string.
func StringField(entry map[string]any, key string) string {
	s, _ := entry[key].(string)
	return s
}

func intValue(v any) int {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
