// internal/provider/memory/broker.go

// Package memory is an in-process messaging provider. It records every
// delivery and can simulate an unreachable provider or a dropped transport.
package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/orgoj/logchannel/internal/provider"
)

var (
	// ErrUnreachable is returned by Connect while the broker is down.
	ErrUnreachable = errors.New("memory broker unreachable")
	// ErrDropped is returned by Send on a connection dropped by DropConnections.
	ErrDropped = errors.New("connection dropped")
	// ErrClosed is returned when using a closed session or connection.
	ErrClosed = errors.New("closed")
	// ErrBadCredentials is returned when credentials do not match.
	ErrBadCredentials = errors.New("bad credentials")
)

// Delivery is one recorded message.
type Delivery struct {
	Destination string
	Kind        provider.Kind
	SessionID   int
	Message     *provider.Message
}

// Broker records deliveries from all connections it opened.
type Broker struct {
	mu          sync.Mutex
	down        bool
	required    *provider.Credentials
	sendDelay   time.Duration
	nextSession int
	connects    int
	conns       []*Connection
	deliveries  []Delivery
	overlapping int
}

// NewBroker creates a broker that accepts connections.
func NewBroker() *Broker {
	return &Broker{}
}

// SetDown makes subsequent Connect calls fail (true) or succeed (false).
func (b *Broker) SetDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

// RequireCredentials makes Connect reject connections without these credentials.
func (b *Broker) RequireCredentials(userName, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.required = &provider.Credentials{UserName: userName, Password: password}
}

// SetSendDelay makes every Send block for d, which widens race windows in tests.
func (b *Broker) SetSendDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendDelay = d
}

// DropConnections breaks every open connection without telling its owner.
func (b *Broker) DropConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		c.dropped = true
	}
}

// Factory returns a connection factory bound to the broker.
func (b *Broker) Factory() *ConnectionFactory {
	return &ConnectionFactory{broker: b}
}

// Deliveries returns a copy of all recorded deliveries in send order.
func (b *Broker) Deliveries() []Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Delivery, len(b.deliveries))
	copy(out, b.deliveries)
	return out
}

// Payloads returns the bodies delivered to dest, in send order.
func (b *Broker) Payloads(dest string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, d := range b.deliveries {
		if d.Destination == dest {
			out = append(out, d.Message.Text())
		}
	}
	return out
}

// ConnectCount is the number of successful connects.
func (b *Broker) ConnectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

// OpenConnections is the number of connections not yet closed.
func (b *Broker) OpenConnections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.conns {
		if !c.closed {
			n++
		}
	}
	return n
}

// OverlappingSends counts sends that started while another send on the same
// session was still in flight.
func (b *Broker) OverlappingSends() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overlapping
}

// ConnectionFactory opens connections on a Broker.
type ConnectionFactory struct {
	broker *Broker
}

// Connect implements provider.ConnectionFactory.
func (f *ConnectionFactory) Connect(kind provider.Kind, creds *provider.Credentials) (provider.Connection, error) {
	b := f.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.down {
		return nil, ErrUnreachable
	}
	if b.required != nil {
		if creds == nil || *creds != *b.required {
			return nil, ErrBadCredentials
		}
	}

	c := &Connection{broker: b, kind: kind}
	b.conns = append(b.conns, c)
	b.connects++
	return c, nil
}

// Connection is a connection to a Broker.
type Connection struct {
	broker  *Broker
	kind    provider.Kind
	started bool
	closed  bool
	dropped bool
}

// Started reports whether Start was called.
func (c *Connection) Started() bool {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.started
}

// NewSession implements provider.Connection.
func (c *Connection) NewSession() (provider.Session, error) {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	b.nextSession++
	return &Session{conn: c, id: b.nextSession}, nil
}

// Start implements provider.Connection.
func (c *Connection) Start() error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.started = true
	return nil
}

// Close implements provider.Connection.
func (c *Connection) Close() error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return nil
}

// Session is a session on a memory Connection.
type Session struct {
	conn     *Connection
	id       int
	closed   bool
	inFlight int
}

// ID identifies the session across deliveries.
func (s *Session) ID() int { return s.id }

// NewSender implements provider.Session.
func (s *Session) NewSender(dest provider.Destination) (provider.Sender, error) {
	b := s.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if dest.Kind() != s.conn.kind {
		return nil, fmt.Errorf("cannot send to %s %q on a %s connection", dest.Kind(), dest.DestinationName(), s.conn.kind)
	}
	return &Sender{session: s, dest: dest}, nil
}

// Close implements provider.Session.
func (s *Session) Close() error {
	b := s.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return nil
}

// Sender records messages sent to one destination.
type Sender struct {
	session *Session
	dest    provider.Destination
}

// Send implements provider.Sender.
func (s *Sender) Send(msg *provider.Message) error {
	b := s.session.conn.broker

	b.mu.Lock()
	if err := s.usable(); err != nil {
		b.mu.Unlock()
		return err
	}
	s.session.inFlight++
	if s.session.inFlight > 1 {
		b.overlapping++
	}
	delay := b.sendDelay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s.session.inFlight--
	if err := s.usable(); err != nil {
		return err
	}
	b.deliveries = append(b.deliveries, Delivery{
		Destination: s.dest.DestinationName(),
		Kind:        s.dest.Kind(),
		SessionID:   s.session.id,
		Message:     msg,
	})
	return nil
}

// usable must be called with the broker lock held.
func (s *Sender) usable() error {
	switch {
	case s.session.conn.dropped:
		return ErrDropped
	case s.session.closed || s.session.conn.closed:
		return ErrClosed
	}
	return nil
}

var _ provider.ConnectionFactory = (*ConnectionFactory)(nil)
