package restbase

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeForm(t *testing.T) {
	tests := []struct {
		name string
		data Data
		want url.Values
	}{
		{
			name: "scalars",
			data: Data{
				"subscriber":   "anne@example.com",
				"pre_verified": true,
				"pre_approved": false,
				"count":        10,
				"big":          int64(1 << 40),
				"ratio":        0.5,
				"position":     json.Number("3"),
				"raw":          []byte("bytes"),
			},
			want: url.Values{
				"subscriber":   {"anne@example.com"},
				"pre_verified": {"true"},
				"pre_approved": {"false"},
				"count":        {"10"},
				"big":          {"1099511627776"},
				"ratio":        {"0.5"},
				"position":     {"3"},
				"raw":          {"bytes"},
			},
		},
		{
			name: "nil values are dropped",
			data: Data{"display_name": nil, "email": "a@example.com"},
			want: url.Values{"email": {"a@example.com"}},
		},
		{
			name: "slices repeat the key",
			data: Data{
				"acceptable_aliases": []string{"a@example.com", "b@example.com"},
				"mixed":              []any{"x", 1, nil, true},
			},
			want: url.Values{
				"acceptable_aliases": {"a@example.com", "b@example.com"},
				"mixed":              {"x", "1", "true"},
			},
		},
		{
			name: "typed slices and arrays repeat the key",
			data: Data{
				"ids":     []int{1, 2},
				"flags":   []bool{true, false},
				"ratios":  []float64{0.5, 2},
				"pair":    [2]string{"a", "b"},
				"numbers": []json.Number{"7"},
				"empty":   []int{},
			},
			want: url.Values{
				"ids":     {"1", "2"},
				"flags":   {"true", "false"},
				"ratios":  {"0.5", "2"},
				"pair":    {"a", "b"},
				"numbers": {"7"},
			},
		},
		{
			name: "byte slices stay whole",
			data: Data{"raw": json.RawMessage(`{"a":1}`)},
			want: url.Values{"raw": {`{"a":1}`}},
		},
		{
			name: "stringer",
			data: Data{"timeout": 90 * time.Second},
			want: url.Values{"timeout": {"1m30s"}},
		},
		{
			name: "empty",
			data: Data{},
			want: url.Values{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeForm(tt.data)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("EncodeForm() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
