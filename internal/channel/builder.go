package channel

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/orgoj/logchannel/internal/provider"
	"github.com/orgoj/logchannel/internal/resolver"
)

// Builder opens channel sessions: factory lookup, connection, session,
// destination lookup, outbound handle, start.
type Builder struct {
	log logrus.FieldLogger
}

// NewBuilder creates a Builder that reports failures to log.
func NewBuilder(log logrus.FieldLogger) *Builder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Builder{log: log}
}

// TryConnect connects on a best-effort basis. Failures are logged as warnings
// and nil is returned.
func (b *Builder) TryConnect(ctx resolver.Context, kind provider.Kind, p Params) *Session {
	s, err := b.connect(ctx, kind, p)
	if err != nil {
		b.warn(err, kind, p)
		return nil
	}
	return s
}

// MustConnect connects or returns a *BindingNotFoundError or
// *ChannelConnectError. Failures are also logged as warnings.
func (b *Builder) MustConnect(ctx resolver.Context, kind provider.Kind, p Params) (*Session, error) {
	s, err := b.connect(ctx, kind, p)
	if err != nil {
		b.warn(err, kind, p)
		return nil, err
	}
	return s, nil
}

func (b *Builder) connect(ctx resolver.Context, kind provider.Kind, p Params) (*Session, error) {
	obj, err := ctx.Lookup(p.FactoryBinding)
	if err != nil {
		return nil, &BindingNotFoundError{Name: p.FactoryBinding, Err: err}
	}
	factory, ok := obj.(provider.ConnectionFactory)
	if !ok {
		return nil, &BindingNotFoundError{
			Name: p.FactoryBinding,
			Err:  fmt.Errorf("%w: %T is not a connection factory", ErrBindingType, obj),
		}
	}

	conn, err := factory.Connect(kind, p.credentials())
	if err != nil {
		return nil, &ChannelConnectError{Op: "connect", Destination: p.DestinationBinding, Err: err}
	}

	sess, err := conn.NewSession()
	if err != nil {
		_ = conn.Close()
		return nil, &ChannelConnectError{Op: "session", Destination: p.DestinationBinding, Err: err}
	}

	// From here on, a failure must release what was already opened.
	abort := func(cause error) error {
		_ = sess.Close()
		_ = conn.Close()
		return cause
	}

	obj, err = ctx.Lookup(p.DestinationBinding)
	if err != nil {
		return nil, abort(&BindingNotFoundError{Name: p.DestinationBinding, Err: err})
	}
	dest, ok := obj.(provider.Destination)
	if !ok || dest.Kind() != kind {
		return nil, abort(&BindingNotFoundError{
			Name: p.DestinationBinding,
			Err:  fmt.Errorf("%w: %T is not a %s", ErrBindingType, obj, kind),
		})
	}

	sender, err := sess.NewSender(dest)
	if err != nil {
		return nil, abort(&ChannelConnectError{Op: "sender", Destination: p.DestinationBinding, Err: err})
	}

	if err := conn.Start(); err != nil {
		return nil, abort(&ChannelConnectError{Op: "start", Destination: p.DestinationBinding, Err: err})
	}

	return &Session{conn: conn, session: sess, sender: sender, dest: dest}, nil
}

func (b *Builder) warn(err error, kind provider.Kind, p Params) {
	entry := b.log.WithError(err).WithField("kind", kind.String())

	var bnf *BindingNotFoundError
	if errors.As(err, &bnf) {
		entry.WithField("binding", bnf.Name).Warnf("Unable to locate binding %s", bnf.Name)
		return
	}
	entry.WithField("binding", p.DestinationBinding).Warnf("Unable to create connection to %s %s", kind, p.DestinationBinding)
}
