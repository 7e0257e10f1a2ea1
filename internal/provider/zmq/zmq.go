// Package zmq publishes channel messages over ZeroMQ. Queues use a PUSH
// socket, topics a PUB socket; every message is sent as two frames, the
// destination name and the body, so subscribers can filter on the first.
package zmq

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"gopkg.in/zeromq/goczmq.v4"

	"github.com/orgoj/logchannel/internal/provider"
)

// socket is the subset of *goczmq.Sock the provider uses.
type socket interface {
	SendMessage(parts [][]byte) error
	Destroy()
}

var newSocket = func(kind provider.Kind, endpoint string) (socket, error) {
	if kind == provider.KindTopic {
		return goczmq.NewPub(endpoint)
	}
	return goczmq.NewPush(endpoint)
}

// ConnectionFactory opens sockets to one ZeroMQ endpoint.
type ConnectionFactory struct {
	endpoint string
}

// NewConnectionFactory accepts zmq+tcp://host:port and zmq+ipc:///path.
func NewConnectionFactory(rawURL string) (*ConnectionFactory, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ZMQ URL: %w", err)
	}
	transport := strings.TrimPrefix(u.Scheme, "zmq+")
	switch transport {
	case "tcp":
		if u.Hostname() == "" || u.Port() == "" {
			return nil, fmt.Errorf("host and port are required for ZMQ tcp endpoint")
		}
		return &ConnectionFactory{endpoint: ">tcp://" + u.Host}, nil
	case "ipc":
		if u.Path == "" {
			return nil, fmt.Errorf("path is required for ZMQ ipc endpoint")
		}
		return &ConnectionFactory{endpoint: ">ipc://" + u.Path}, nil
	default:
		return nil, fmt.Errorf("unsupported ZMQ scheme: %s", u.Scheme)
	}
}

// ObjectFactory adapts NewConnectionFactory for resolver registration.
func ObjectFactory(rawURL string) (interface{}, error) {
	return NewConnectionFactory(rawURL)
}

// Endpoint returns the goczmq endpoint string, prefixed with '>' to connect.
func (f *ConnectionFactory) Endpoint() string { return f.endpoint }

// Connect implements provider.ConnectionFactory. Credentials are ignored.
func (f *ConnectionFactory) Connect(kind provider.Kind, _ *provider.Credentials) (provider.Connection, error) {
	sock, err := newSocket(kind, f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open ZMQ %s socket to %s: %w", kind, f.endpoint, err)
	}
	return &Connection{sock: sock, kind: kind}, nil
}

// Connection owns one socket. goczmq sockets are not goroutine safe, so
// every send goes through mu.
type Connection struct {
	mu     sync.Mutex
	sock   socket
	kind   provider.Kind
	closed bool
}

// NewSession implements provider.Connection.
func (c *Connection) NewSession() (provider.Session, error) {
	return &Session{conn: c}, nil
}

// Start implements provider.Connection.
func (c *Connection) Start() error { return nil }

// Close destroys the socket.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.sock.Destroy()
	}
	return nil
}

// Session shares the connection's socket.
type Session struct {
	conn *Connection
}

// NewSender implements provider.Session. The destination kind must match
// the socket type.
func (s *Session) NewSender(dest provider.Destination) (provider.Sender, error) {
	if dest.Kind() != s.conn.kind {
		return nil, fmt.Errorf("cannot send to %s %s over a %s socket", dest.Kind(), dest.DestinationName(), s.conn.kind)
	}
	return &Sender{conn: s.conn, name: []byte(dest.DestinationName())}, nil
}

// Close implements provider.Session.
func (s *Session) Close() error { return nil }

// Sender writes two-frame messages.
type Sender struct {
	conn *Connection
	name []byte
}

// Send implements provider.Sender.
func (s *Sender) Send(msg *provider.Message) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.conn.closed {
		return fmt.Errorf("ZMQ socket closed")
	}
	return s.conn.sock.SendMessage([][]byte{s.name, msg.Body})
}

var _ provider.ConnectionFactory = (*ConnectionFactory)(nil)
