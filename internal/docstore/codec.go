package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is how time values are stored. It is fixed width and always UTC
// so stored timestamps sort correctly as plain strings in every backend.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// normalize converts fields to the representation every backend stores:
// strings, float64, bool, nil, nested maps and slices. Times become
// TimeLayout strings.
func normalize(fields Fields) (Fields, error) {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if k == "" || strings.HasPrefix(k, "_") {
			return nil, fmt.Errorf("%w: field name %q is reserved", ErrMalformedDocument, k)
		}
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t, nil
	case time.Time:
		return FormatTime(t), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return FormatTime(*t), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	var out any
	err = json.Unmarshal(raw, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return out, nil
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Time reads a stored timestamp back.
func Time(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(TimeLayout, t)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return time.Time{}, false
			}
		}
		return parsed, true
	}
	return time.Time{}, false
}

func (f Fields) String(key string) (string, bool) {
	s, ok := f[key].(string)
	return s, ok
}

func (f Fields) Bool(key string) (bool, bool) {
	b, ok := f[key].(bool)
	return b, ok
}

func (f Fields) Time(key string) (time.Time, bool) {
	return Time(f[key])
}

func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func matches(fields, filters Fields) bool {
	for k, want := range filters {
		got, ok := fields[k]
		if !ok || compareValues(got, want) != 0 {
			return false
		}
	}
	return true
}

// compareValues orders normalized values. Values of different kinds are
// ordered by kind: nil < bool < number < string < everything else.
func compareValues(a, b any) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(x, b.(string))
	case nil:
		return 0
	}

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return strings.Compare(string(ja), string(jb))
}

func kindRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}
