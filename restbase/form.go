package restbase

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
)

// EncodeForm coerces every value of data to a string. Slices and arrays of
// any element type become repeated keys and nil values are dropped.
func EncodeForm(data Data) url.Values {
	values := make(url.Values, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case nil:
			continue
		case []string:
			values[key] = append(values[key], v...)
		case []byte, json.RawMessage:
			values.Add(key, formString(v))
		default:
			rv := reflect.ValueOf(v)
			if kind := rv.Kind(); (kind != reflect.Slice && kind != reflect.Array) || rv.Type().Elem().Kind() == reflect.Uint8 {
				values.Add(key, formString(v))
				continue
			}
			for i := range rv.Len() {
				item := rv.Index(i).Interface()
				if item != nil {
					values.Add(key, formString(item))
				}
			}
		}
	}
	return values
}

func formString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
