package channel

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/orgoj/logchannel/internal/provider"
	"github.com/orgoj/logchannel/internal/resolver"
)

// Manager owns at most one Session to a queue or topic and reconnects lazily
// on Send. Send and Release are serialized per manager for both kinds.
type Manager struct {
	name    string
	kind    provider.Kind
	params  Params
	ctx     resolver.Context
	builder *Builder
	log     logrus.FieldLogger

	mu      sync.Mutex
	session *Session
}

func newManager(name string, kind provider.Kind, params Params, ctx resolver.Context, builder *Builder, log logrus.FieldLogger, session *Session) *Manager {
	return &Manager{
		name:    name,
		kind:    kind,
		params:  params,
		ctx:     ctx,
		builder: builder,
		log:     log.WithField("manager", name),
		session: session,
	}
}

// Name returns the registry key of the manager.
func (m *Manager) Name() string { return m.name }

// Kind returns whether the manager sends to a queue or a topic.
func (m *Manager) Kind() provider.Kind { return m.kind }

// Params returns the parameters the manager was created with.
func (m *Manager) Params() Params { return m.params }

// Connected reports whether a session is currently held. A held session may
// still be dead if the transport dropped it.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Send publishes payload. Without a session it connects first, and a connect
// failure is returned as is. A publish failure is returned as *SendError and
// the session is kept until Release.
func (m *Manager) Send(payload interface{}) error {
	msg, err := provider.NewMessage(payload)
	if err != nil {
		return &SendError{Manager: m.name, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		s, err := m.builder.MustConnect(m.ctx, m.kind, m.params)
		if err != nil {
			return err
		}
		m.session = s
		m.log.Debugf("Connected to %s %s", m.kind, m.params.DestinationBinding)
	}

	if err := m.session.sender.Send(msg); err != nil {
		return &SendError{Manager: m.name, Err: err}
	}
	return nil
}

// Release closes the held session and connection. Errors are logged, and the
// manager is left unconnected either way so the next Send reconnects.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return
	}
	if err := m.session.close(); err != nil {
		m.log.WithError(err).Errorf("Error closing %s", m.name)
	}
	m.session = nil
}
