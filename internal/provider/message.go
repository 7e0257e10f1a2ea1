package provider

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message content types.
const (
	ContentTypeText   = "text/plain"
	ContentTypeBytes  = "application/octet-stream"
	ContentTypeObject = "application/json"
)

// Message is the provider-neutral body handed to a Sender.
type Message struct {
	ContentType string
	Body        []byte
	Timestamp   time.Time
}

// Text returns the body as a string.
func (m *Message) Text() string {
	return string(m.Body)
}

// NewMessage converts a payload into a Message. Strings become text messages,
// byte slices bytes messages, and everything else is JSON-encoded.
func NewMessage(payload interface{}) (*Message, error) {
	msg := &Message{Timestamp: time.Now().UTC()}

	switch v := payload.(type) {
	case nil:
		return nil, fmt.Errorf("payload cannot be nil")
	case string:
		msg.ContentType = ContentTypeText
		msg.Body = []byte(v)
	case []byte:
		msg.ContentType = ContentTypeBytes
		msg.Body = v
	case fmt.Stringer:
		msg.ContentType = ContentTypeText
		msg.Body = []byte(v.String())
	default:
		body, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload of type %T: %w", payload, err)
		}
		msg.ContentType = ContentTypeObject
		msg.Body = body
	}

	return msg, nil
}
