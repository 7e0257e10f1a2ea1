// internal/provider/gelf/gelf.go

// Package gelf sends channel messages to a Graylog input. Both queues and
// topics map to the same GELF stream; the destination name travels in the
// _destination field so Graylog stream rules can route on it.
package gelf

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/Graylog2/go-gelf.v2/gelf"

	"github.com/orgoj/logchannel/internal/provider"
)

// Variables for factories to allow mocking in tests
var gelfUDPWriterFactory = gelf.NewUDPWriter
var gelfTCPWriterFactory = gelf.NewTCPWriter

// Function to set compression, can be mocked in tests
var setUDPCompression = func(writer *gelf.UDPWriter, compType gelf.CompressType) {
	writer.CompressionType = compType
}

// ConnectionFactory opens GELF writers to one address.
type ConnectionFactory struct {
	addr        string
	protocol    string // udp or tcp
	compression string // gzip, zlib or none (udp only)
	hostName    string
}

// NewConnectionFactory parses gelf+udp://host:port?compression=gzip or
// gelf+tcp://host:port.
func NewConnectionFactory(rawURL string) (*ConnectionFactory, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GELF URL: %w", err)
	}

	var protocol string
	switch u.Scheme {
	case "gelf", "gelf+udp":
		protocol = "udp"
	case "gelf+tcp":
		protocol = "tcp"
	default:
		return nil, fmt.Errorf("unsupported GELF scheme: %s", u.Scheme)
	}

	if u.Hostname() == "" {
		return nil, fmt.Errorf("host is required for GELF provider")
	}
	if u.Port() == "" {
		return nil, fmt.Errorf("valid port is required for GELF provider")
	}

	compression := u.Query().Get("compression")
	switch compression {
	case "", "none":
		compression = "none"
	case "gzip", "zlib":
	default:
		return nil, fmt.Errorf("invalid GELF compression '%s', must be 'gzip', 'zlib', or 'none'", compression)
	}

	hostName, err := os.Hostname()
	if err != nil {
		hostName = "unknown"
	}

	return &ConnectionFactory{
		addr:        u.Host,
		protocol:    protocol,
		compression: compression,
		hostName:    hostName,
	}, nil
}

// ObjectFactory adapts NewConnectionFactory for resolver registration.
func ObjectFactory(rawURL string) (interface{}, error) {
	return NewConnectionFactory(rawURL)
}

// Connect implements provider.ConnectionFactory. GELF inputs have no
// authentication, so credentials are ignored.
func (f *ConnectionFactory) Connect(kind provider.Kind, _ *provider.Credentials) (provider.Connection, error) {
	var writer gelf.Writer

	if f.protocol == "tcp" {
		tcpWriter, err := gelfTCPWriterFactory(f.addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create GELF TCP writer: %w", err)
		}
		writer = tcpWriter
	} else {
		udpWriter, err := gelfUDPWriterFactory(f.addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create GELF UDP writer: %w", err)
		}

		switch f.compression {
		case "gzip":
			setUDPCompression(udpWriter, gelf.CompressGzip)
		case "zlib":
			setUDPCompression(udpWriter, gelf.CompressZlib)
		default:
			setUDPCompression(udpWriter, gelf.CompressNone)
		}
		writer = udpWriter
	}

	return &Connection{writer: writer, hostName: f.hostName}, nil
}

// Connection owns one GELF writer.
type Connection struct {
	mu       sync.Mutex
	writer   gelf.Writer
	hostName string
	closed   bool
}

// NewSession implements provider.Connection.
func (c *Connection) NewSession() (provider.Session, error) {
	return &Session{conn: c}, nil
}

// Start implements provider.Connection.
func (c *Connection) Start() error { return nil }

// Close closes the GELF writer.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.writer.Close()
}

// Session shares the connection's writer.
type Session struct {
	conn *Connection
}

// NewSender implements provider.Session.
func (s *Session) NewSender(dest provider.Destination) (provider.Sender, error) {
	return &Sender{conn: s.conn, dest: dest}, nil
}

// Close implements provider.Session.
func (s *Session) Close() error { return nil }

// Sender writes GELF messages tagged with its destination.
type Sender struct {
	conn *Connection
	dest provider.Destination
}

// Send converts msg to a GELF message. JSON object bodies are unpacked into
// GELF fields; other bodies become the short message.
func (s *Sender) Send(msg *provider.Message) error {
	gm := &gelf.Message{
		Version:  "1.1",
		Host:     s.conn.hostName,
		TimeUnix: float64(msg.Timestamp.UnixNano()) / 1e9,
		Level:    6,
		Extra: map[string]interface{}{
			"_destination":  s.dest.DestinationName(),
			"_channel_kind": s.dest.Kind().String(),
		},
	}

	var record map[string]interface{}
	if msg.ContentType == provider.ContentTypeObject && json.Unmarshal(msg.Body, &record) == nil {
		fillFromRecord(gm, record)
	} else {
		gm.Short = firstLine(msg.Text())
		if gm.Short != msg.Text() {
			gm.Full = msg.Text()
		}
	}

	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.conn.closed {
		return fmt.Errorf("GELF writer closed")
	}
	return s.conn.writer.WriteMessage(gm)
}

func fillFromRecord(gm *gelf.Message, record map[string]interface{}) {
	gm.Short = getString(record, "message", getString(record, "msg", "No message"))
	gm.Level = getLevel(record)
	if ts, ok := getTimestamp(record); ok {
		gm.TimeUnix = ts
	}
	if full, ok := record["full_message"].(string); ok {
		gm.Full = full
	}

	for k, v := range record {
		switch k {
		case "message", "msg", "timestamp", "time", "level", "full_message":
			continue
		}

		if k == "" {
			continue
		}
		// GELF requires additional fields to start with an underscore
		extraKey := k
		if !strings.HasPrefix(extraKey, "_") {
			extraKey = "_" + extraKey
		}
		if extraKey == "_id" {
			// _id is reserved by GELF
			extraKey = "_record_id"
		}

		switch v := v.(type) {
		case string, float64, bool:
			gm.Extra[extraKey] = v
		default:
			gm.Extra[extraKey] = fmt.Sprintf("%v", v)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Helper function to get string value from record
func getString(record map[string]interface{}, key, defaultValue string) string {
	if val, ok := record[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
		return fmt.Sprintf("%v", val)
	}
	return defaultValue
}

// getTimestamp reads "timestamp" (unix seconds) or "time" (RFC 3339).
func getTimestamp(record map[string]interface{}) (float64, bool) {
	if ts, ok := record["timestamp"].(float64); ok {
		return ts, true
	}
	if s, ok := record["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return float64(t.UnixNano()) / 1e9, true
		}
	}
	return 0, false
}

// getLevel maps syslog numbers, Bunyan numbers (10-60) and level names to
// syslog severities.
func getLevel(record map[string]interface{}) int32 {
	switch v := record["level"].(type) {
	case float64:
		n := int(v)
		if n >= 10 {
			return bunyanToSyslog(n)
		}
		if n < 0 {
			return 0
		}
		if n > 7 {
			return 7
		}
		return int32(n)
	case string:
		switch strings.ToLower(v) {
		case "emergency", "emerg", "fatal":
			return 0
		case "alert":
			return 1
		case "critical", "crit":
			return 2
		case "error", "err":
			return 3
		case "warning", "warn":
			return 4
		case "notice":
			return 5
		case "informational", "info":
			return 6
		case "debug", "trace":
			return 7
		}
	}
	return 6 // Default to INFO level
}

func bunyanToSyslog(level int) int32 {
	switch {
	case level <= 20:
		return 7
	case level <= 30:
		return 6
	case level <= 40:
		return 4
	case level <= 50:
		return 3
	default:
		return 2
	}
}

var _ provider.ConnectionFactory = (*ConnectionFactory)(nil)
