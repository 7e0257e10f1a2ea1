// internal/provider/amqp/amqp.go

// Package amqp sends channel messages to an AMQP 0-9-1 broker such as
// RabbitMQ. Queues are addressed through the default exchange, topics through
// a topic exchange (amq.topic unless the URL sets ?exchange=).
package amqp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/orgoj/logchannel/internal/provider"
)

// DefaultTopicExchange receives topic messages when no exchange is configured.
const DefaultTopicExchange = "amq.topic"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclarePassive(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Close() error
}

type amqpConnection interface {
	Channel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

type dialedConnection struct {
	*amqp.Connection
}

func (d dialedConnection) Channel() (amqpChannel, error) {
	ch, err := d.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Variable for dialing to allow mocking in tests
var dial = func(uri string, cfg amqp.Config) (amqpConnection, error) {
	conn, err := amqp.DialConfig(uri, cfg)
	if err != nil {
		return nil, err
	}
	return dialedConnection{conn}, nil
}

// ConnectionFactory dials one broker URL.
type ConnectionFactory struct {
	uri       string
	exchange  string
	heartbeat time.Duration
}

// NewConnectionFactory parses an amqp:// or amqps:// URL. The optional query
// parameters exchange and heartbeat are consumed here and not sent to the broker.
func NewConnectionFactory(rawURL string) (*ConnectionFactory, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid AMQP URL: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return nil, fmt.Errorf("unsupported AMQP scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("AMQP URL requires a host")
	}

	f := &ConnectionFactory{exchange: DefaultTopicExchange}

	q := u.Query()
	if ex := q.Get("exchange"); ex != "" {
		f.exchange = ex
	}
	if hb := q.Get("heartbeat"); hb != "" {
		d, err := time.ParseDuration(hb)
		if err != nil {
			return nil, fmt.Errorf("invalid heartbeat '%s': %w", hb, err)
		}
		f.heartbeat = d
	}
	q.Del("exchange")
	q.Del("heartbeat")
	u.RawQuery = q.Encode()
	f.uri = u.String()

	return f, nil
}

// ObjectFactory adapts NewConnectionFactory for resolver registration.
func ObjectFactory(rawURL string) (interface{}, error) {
	return NewConnectionFactory(rawURL)
}

// Exchange returns the exchange topics are published to.
func (f *ConnectionFactory) Exchange() string { return f.exchange }

// Connect implements provider.ConnectionFactory. Credentials replace any
// user info carried by the URL.
func (f *ConnectionFactory) Connect(kind provider.Kind, creds *provider.Credentials) (provider.Connection, error) {
	cfg := amqp.Config{
		Heartbeat: f.heartbeat,
		Properties: amqp.Table{
			"connection_name": "logchannel-" + kind.String(),
		},
	}
	if creds != nil {
		cfg.SASL = []amqp.Authentication{&amqp.PlainAuth{Username: creds.UserName, Password: creds.Password}}
	}

	conn, err := dial(f.uri, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to dial AMQP broker: %w", err)
	}
	return &Connection{conn: conn, exchange: f.exchange}, nil
}

// Connection is an AMQP connection.
type Connection struct {
	conn     amqpConnection
	exchange string
}

// NewSession opens an AMQP channel. Channels are not in transactional mode.
func (c *Connection) NewSession() (provider.Session, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	return &Session{ch: ch, exchange: c.exchange}, nil
}

// Start checks that the connection is still open. AMQP connections dispatch
// from the moment they are dialed.
func (c *Connection) Start() error {
	if c.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

// Close implements provider.Connection.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// Session wraps one AMQP channel.
type Session struct {
	ch       amqpChannel
	exchange string
}

// NewSender verifies the destination exists and returns a handle for it.
func (s *Session) NewSender(dest provider.Destination) (provider.Sender, error) {
	switch dest.Kind() {
	case provider.KindQueue:
		if _, err := s.ch.QueueDeclarePassive(dest.DestinationName(), true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("queue '%s' is not available: %w", dest.DestinationName(), err)
		}
		return &Sender{ch: s.ch, exchange: "", key: dest.DestinationName(), mode: amqp.Persistent}, nil
	case provider.KindTopic:
		if err := s.ch.ExchangeDeclarePassive(s.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("exchange '%s' is not available: %w", s.exchange, err)
		}
		return &Sender{ch: s.ch, exchange: s.exchange, key: dest.DestinationName(), mode: amqp.Transient}, nil
	}
	return nil, fmt.Errorf("unsupported destination kind: %s", dest.Kind())
}

// Close implements provider.Session.
func (s *Session) Close() error {
	return s.ch.Close()
}

// Sender publishes to one exchange and routing key.
type Sender struct {
	ch       amqpChannel
	exchange string
	key      string
	mode     uint8
}

// Send implements provider.Sender.
func (s *Sender) Send(msg *provider.Message) error {
	return s.ch.PublishWithContext(context.Background(), s.exchange, s.key, false, false, amqp.Publishing{
		ContentType:  msg.ContentType,
		DeliveryMode: s.mode,
		Timestamp:    msg.Timestamp,
		Body:         msg.Body,
	})
}

var _ provider.ConnectionFactory = (*ConnectionFactory)(nil)
