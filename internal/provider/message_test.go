package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringerPayload struct{ v string }

func (s stringerPayload) String() string { return "stringer:" + s.v }

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name        string
		payload     interface{}
		contentType string
		body        string
	}{
		{"String payload", "hello", ContentTypeText, "hello"},
		{"Bytes payload", []byte{0x01, 0x02}, ContentTypeBytes, "\x01\x02"},
		{"Stringer payload", stringerPayload{"x"}, ContentTypeText, "stringer:x"},
		{"Map payload", map[string]interface{}{"msg": "hi", "level": 30}, ContentTypeObject, `{"level":30,"msg":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.contentType, msg.ContentType)
			assert.Equal(t, tt.body, msg.Text())
			assert.False(t, msg.Timestamp.IsZero())
		})
	}
}

func TestNewMessage_Errors(t *testing.T) {
	_, err := NewMessage(nil)
	assert.Error(t, err)

	_, err = NewMessage(map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "queue", KindQueue.String())
	assert.Equal(t, "topic", KindTopic.String())
	assert.Equal(t, "kind(9)", Kind(9).String())

	k, err := ParseKind("topic")
	require.NoError(t, err)
	assert.Equal(t, KindTopic, k)

	_, err = ParseKind("stream")
	assert.Error(t, err)

	assert.Equal(t, KindQueue, Queue{Name: "q"}.Kind())
	assert.Equal(t, "t", Topic{Name: "t"}.DestinationName())
}
