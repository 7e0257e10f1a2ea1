package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMaxDepth     = 10
	DefaultMaxKeyLength = 64
	DefaultMaxString    = 32 * 1024
)

// ErrMaxDepthExceeded indicates the record nests deeper than allowed.
var ErrMaxDepthExceeded = errors.New("maximum nesting depth exceeded")

// Limits bounds the shape of a submitted record.
type Limits struct {
	MaxDepth     int
	MaxKeyLength int
	MaxString    int // bytes per string value
}

// DefaultLimits returns the limits used by the /log endpoint.
func DefaultLimits() Limits {
	return Limits{MaxDepth: DefaultMaxDepth, MaxKeyLength: DefaultMaxKeyLength, MaxString: DefaultMaxString}
}

// CleanString trims s, cuts it to maxLength bytes on a rune boundary and
// drops control characters other than tab and newline.
func CleanString(s string, maxLength int) string {
	s = strings.TrimSpace(s)
	if maxLength > 0 && len(s) > maxLength {
		cut := maxLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || (unicode.IsPrint(r) && r != unicode.ReplacementChar) {
			return r
		}
		return -1
	}, s)
}

// SanitizeRecord returns a cleaned copy of data. Keys are cleaned and cut to
// MaxKeyLength, empty keys are dropped, string values are cleaned and cut to
// MaxString. Nesting beyond MaxDepth is an error.
func SanitizeRecord(data map[string]interface{}, limits Limits) (map[string]interface{}, error) {
	out, err := sanitizeMap(data, limits, 1)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sanitizeMap(data map[string]interface{}, limits Limits, depth int) (map[string]interface{}, error) {
	if depth > limits.MaxDepth {
		return nil, ErrMaxDepthExceeded
	}
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		k := CleanString(key, limits.MaxKeyLength)
		if k == "" {
			continue
		}
		v, err := sanitizeValue(value, limits, depth)
		if err != nil {
			return nil, fmt.Errorf("key '%s': %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func sanitizeValue(value interface{}, limits Limits, depth int) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return CleanString(v, limits.MaxString), nil
	case map[string]interface{}:
		return sanitizeMap(v, limits, depth+1)
	case []interface{}:
		if depth+1 > limits.MaxDepth {
			return nil, ErrMaxDepthExceeded
		}
		out := make([]interface{}, len(v))
		for i, e := range v {
			clean, err := sanitizeValue(e, limits, depth+1)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = clean
		}
		return out, nil
	default:
		return v, nil
	}
}
