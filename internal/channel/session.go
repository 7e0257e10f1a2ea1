package channel

import (
	"errors"
	"fmt"

	"github.com/orgoj/logchannel/internal/provider"
)

// Session is an open connection, its session and the outbound handle for one
// destination. It is owned by exactly one Manager.
type Session struct {
	conn    provider.Connection
	session provider.Session
	sender  provider.Sender
	dest    provider.Destination
}

// Destination returns the destination the outbound handle is bound to.
func (s *Session) Destination() provider.Destination {
	return s.dest
}

// close closes the session and then the connection, attempting both.
func (s *Session) close() error {
	var errs []error
	if err := s.session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing session: %w", err))
	}
	if err := s.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing connection: %w", err))
	}
	return errors.Join(errs...)
}
