// internal/provider/provider.go

// Package provider defines the contract a messaging provider must satisfy so
// channel managers can open connections, sessions and outbound handles on it.
package provider

import "fmt"

// Kind identifies the messaging model of a channel.
type Kind int

const (
	// KindQueue is point-to-point delivery.
	KindQueue Kind = iota + 1
	// KindTopic is publish/subscribe delivery.
	KindTopic
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindQueue:
		return "queue"
	case KindTopic:
		return "topic"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts "queue" or "topic" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "queue":
		return KindQueue, nil
	case "topic":
		return KindTopic, nil
	}
	return 0, fmt.Errorf("unknown channel kind: %q", s)
}

// Destination is a resolved queue or topic.
type Destination interface {
	DestinationName() string
	Kind() Kind
}

// Queue is a point-to-point destination.
type Queue struct {
	Name string
}

func (q Queue) DestinationName() string { return q.Name }
func (q Queue) Kind() Kind              { return KindQueue }

// Topic is a publish/subscribe destination.
type Topic struct {
	Name string
}

func (t Topic) DestinationName() string { return t.Name }
func (t Topic) Kind() Kind              { return KindTopic }

// Credentials authenticate a channel connection.
type Credentials struct {
	UserName string
	Password string
}

// ConnectionFactory opens connections to a provider. A nil creds value means
// the provider defaults are used.
type ConnectionFactory interface {
	Connect(kind Kind, creds *Credentials) (Connection, error)
}

// Connection is an open transport connection.
type Connection interface {
	// NewSession opens a non-transactional, auto-acknowledge session.
	NewSession() (Session, error)
	// Start begins message dispatch on the connection.
	Start() error
	Close() error
}

// Session produces outbound handles bound to destinations.
type Session interface {
	NewSender(dest Destination) (Sender, error)
	Close() error
}

// Sender publishes messages on the destination it was created for. It is a
// queue sender or a topic publisher depending on the destination kind.
type Sender interface {
	Send(msg *Message) error
}
