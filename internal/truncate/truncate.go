package truncate

import (
	"encoding/json"
	"errors"
	"strconv"
	"unicode/utf8"
)

const (
	ellipsis          = "..."
	minTruncateLength = 10  // Runes kept when a string is cut
	maxIterations     = 100 // Safety limit for the shrink loop
	maxNestedDepth    = 10  // Maximum depth searched for arrays to halve
)

// path addresses a value inside a record: string keys for maps, int indexes
// for slices.
type path []interface{}

// TruncateMapIfNeeded shrinks data until its estimated JSON size fits limit.
// It repeatedly cuts the longest string to minTruncateLength characters plus
// an ellipsis and, once no string is long enough, halves the largest array.
// The map is modified in place; the result reports whether anything changed.
func TruncateMapIfNeeded(data map[string]interface{}, limit int64) (bool, error) {
	if data == nil {
		return false, errors.New("input data map cannot be nil")
	}
	if limit <= 0 {
		return false, errors.New("limit must be positive")
	}

	truncated := false
	for i := 0; i < maxIterations && EstimateSize(data) > limit; i++ {
		if p, s, ok := longestString(data, nil); ok {
			set(data, p, cutString(s))
			truncated = true
			continue
		}
		if p, arr, ok := largestArray(data, nil, 0); ok {
			set(data, p, arr[:len(arr)/2])
			truncated = true
			continue
		}
		break
	}
	return truncated, nil
}

// Clone deep-copies the maps and slices of a decoded JSON record so each
// destination can truncate its own copy.
func Clone(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		return Clone(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// cutString keeps the first minTruncateLength runes.
func cutString(s string) string {
	n, cut := 0, len(s)
	for i := range s {
		if n == minTruncateLength {
			cut = i
			break
		}
		n++
	}
	return s[:cut] + ellipsis
}

func longestString(v interface{}, at path) (path, string, bool) {
	var bestPath path
	best := ""
	found := false
	consider := func(p path, s string, ok bool) {
		if ok && len(s) > len(best) {
			bestPath, best, found = p, s, true
		}
	}

	switch v := v.(type) {
	case string:
		if utf8.RuneCountInString(v) > minTruncateLength+len(ellipsis) {
			return at, v, true
		}
	case map[string]interface{}:
		for k, e := range v {
			consider(longestString(e, extend(at, k)))
		}
	case []interface{}:
		for i, e := range v {
			consider(longestString(e, extend(at, i)))
		}
	}
	return bestPath, best, found
}

func largestArray(v interface{}, at path, depth int) (path, []interface{}, bool) {
	if depth > maxNestedDepth {
		return nil, nil, false
	}
	var bestPath path
	var best []interface{}
	var bestSize int64
	found := false
	consider := func(p path, arr []interface{}, ok bool) {
		if !ok {
			return
		}
		if size := EstimateSize(arr); size > bestSize {
			bestPath, best, bestSize, found = p, arr, size, true
		}
	}

	switch v := v.(type) {
	case map[string]interface{}:
		for k, e := range v {
			consider(largestArray(e, extend(at, k), depth+1))
		}
	case []interface{}:
		if len(v) > 1 {
			consider(at, v, true)
		}
		for i, e := range v {
			consider(largestArray(e, extend(at, i), depth+1))
		}
	}
	return bestPath, best, found
}

func extend(p path, key interface{}) path {
	out := make(path, len(p), len(p)+1)
	copy(out, p)
	return append(out, key)
}

// set replaces the value at p. Paths always come from a walk of data, so
// every step is known to exist.
func set(data map[string]interface{}, p path, value interface{}) {
	var current interface{} = data
	for i, step := range p {
		last := i == len(p)-1
		switch c := current.(type) {
		case map[string]interface{}:
			if last {
				c[step.(string)] = value
				return
			}
			current = c[step.(string)]
		case []interface{}:
			if last {
				c[step.(int)] = value
				return
			}
			current = c[step.(int)]
		}
	}
}

// EstimateSize approximates the JSON encoded size of v without marshalling
// the common decoded types.
func EstimateSize(v interface{}) int64 {
	switch v := v.(type) {
	case nil:
		return 4
	case bool:
		if v {
			return 4
		}
		return 5
	case string:
		return quotedSize(v)
	case float64:
		return int64(len(strconv.FormatFloat(v, 'g', -1, 64)))
	case int:
		return int64(len(strconv.Itoa(v)))
	case int64:
		return int64(len(strconv.FormatInt(v, 10)))
	case map[string]interface{}:
		size := int64(2)
		first := true
		for k, e := range v {
			if !first {
				size++
			}
			first = false
			size += quotedSize(k) + 1 + EstimateSize(e)
		}
		return size
	case []interface{}:
		size := int64(2)
		for i, e := range v {
			if i > 0 {
				size++
			}
			size += EstimateSize(e)
		}
		return size
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return int64(len(b))
	}
}

func quotedSize(s string) int64 {
	escaped := 0
	for _, c := range s {
		switch c {
		case '"', '\\', '\n', '\r', '\t':
			escaped++
		}
	}
	return int64(len(s) + escaped + 2)
}
