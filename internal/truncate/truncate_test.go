package truncate

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonSize(t *testing.T, v interface{}) int64 {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return int64(len(b))
}

func TestTruncateMapIfNeeded(t *testing.T) {
	long := strings.Repeat("x", 200)

	tests := []struct {
		name              string
		input             map[string]interface{}
		limit             int64
		expected          map[string]interface{}
		expectedTruncated bool
	}{
		{
			name:              "No truncation needed",
			input:             map[string]interface{}{"key1": "short", "key2": "123"},
			limit:             100,
			expected:          map[string]interface{}{"key1": "short", "key2": "123"},
			expectedTruncated: false,
		},
		{
			name:              "Longest string cut first",
			input:             map[string]interface{}{"msg": long, "source": "billing"},
			limit:             60,
			expected:          map[string]interface{}{"msg": "xxxxxxxxxx...", "source": "billing"},
			expectedTruncated: true,
		},
		{
			name: "Nested string cut",
			input: map[string]interface{}{
				"ctx": map[string]interface{}{"stack": long},
			},
			limit: 50,
			expected: map[string]interface{}{
				"ctx": map[string]interface{}{"stack": "xxxxxxxxxx..."},
			},
			expectedTruncated: true,
		},
		{
			name:              "Short strings are kept",
			input:             map[string]interface{}{"a": "0123456789abc"},
			limit:             5,
			expected:          map[string]interface{}{"a": "0123456789abc"},
			expectedTruncated: false,
		},
		{
			name: "Array halved when no string is long enough",
			input: map[string]interface{}{
				"ids": []interface{}{1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0},
			},
			limit: 16,
			expected: map[string]interface{}{
				"ids": []interface{}{1.0, 2.0},
			},
			expectedTruncated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			truncated, err := TruncateMapIfNeeded(tt.input, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedTruncated, truncated)
			assert.Equal(t, tt.expected, tt.input)
		})
	}
}

func TestTruncateMapIfNeeded_Errors(t *testing.T) {
	_, err := TruncateMapIfNeeded(nil, 10)
	assert.Error(t, err)

	_, err = TruncateMapIfNeeded(map[string]interface{}{}, 0)
	assert.Error(t, err)
}

func TestCutString_MultiByte(t *testing.T) {
	s := strings.Repeat("č", 20)
	got := cutString(s)
	assert.Equal(t, strings.Repeat("č", 10)+"...", got)
}

func TestEstimateSize(t *testing.T) {
	values := []interface{}{
		nil,
		true,
		false,
		"plain",
		"with \"quotes\"\n",
		42.5,
		map[string]interface{}{"a": 1.0, "b": []interface{}{"x", nil, false}},
		[]interface{}{},
	}
	for _, v := range values {
		assert.Equal(t, jsonSize(t, v), EstimateSize(v), "%#v", v)
	}
}

func TestClone(t *testing.T) {
	orig := map[string]interface{}{
		"nested": map[string]interface{}{"msg": "hello"},
		"list":   []interface{}{"a", "b"},
	}
	c := Clone(orig)
	c["nested"].(map[string]interface{})["msg"] = "changed"
	c["list"].([]interface{})[0] = "z"

	assert.Equal(t, "hello", orig["nested"].(map[string]interface{})["msg"])
	assert.Equal(t, "a", orig["list"].([]interface{})[0])
	assert.Nil(t, Clone(nil))
}
