package channel

import (
	"errors"
	"fmt"
)

var (
	// ErrBindingNotFound matches every *BindingNotFoundError.
	ErrBindingNotFound = errors.New("binding not found")
	// ErrBindingType is wrapped when a binding resolves to an object of the wrong type.
	ErrBindingType = errors.New("binding has wrong type")
	// ErrConnect matches every *ChannelConnectError.
	ErrConnect = errors.New("channel connect failed")
	// ErrSend matches every *SendError.
	ErrSend = errors.New("send failed")
	// ErrMissingBinding is returned when a mandatory binding name is empty.
	ErrMissingBinding = errors.New("missing binding name")
)

// BindingNotFoundError reports that the resolver could not produce the
// connection factory or destination bound to Name.
type BindingNotFoundError struct {
	Name string
	Err  error
}

func (e *BindingNotFoundError) Error() string {
	return fmt.Sprintf("unable to locate binding '%s': %v", e.Name, e.Err)
}

func (e *BindingNotFoundError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrBindingNotFound) true.
func (e *BindingNotFoundError) Is(target error) bool { return target == ErrBindingNotFound }

// ChannelConnectError reports a provider failure while opening a connection,
// session or outbound handle, or while starting the connection.
type ChannelConnectError struct {
	Op          string // connect, session, sender or start
	Destination string
	Err         error
}

func (e *ChannelConnectError) Error() string {
	return fmt.Sprintf("unable to create connection to '%s' (%s): %v", e.Destination, e.Op, e.Err)
}

func (e *ChannelConnectError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConnect) true.
func (e *ChannelConnectError) Is(target error) bool { return target == ErrConnect }

// SendError reports a failed publish on an established session.
type SendError struct {
	Manager string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("manager '%s': send failed: %v", e.Manager, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSend) true.
func (e *SendError) Is(target error) bool { return target == ErrSend }
