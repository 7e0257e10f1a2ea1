package channel

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgoj/logchannel/internal/provider"
	"github.com/orgoj/logchannel/internal/provider/memory"
	"github.com/orgoj/logchannel/internal/resolver"
)

func TestBuilder_Connect(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(f.log)

	s, err := b.MustConnect(f.context(t), provider.KindQueue, queueParams())
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, provider.Queue{Name: "logs"}, s.Destination())
	assert.True(t, s.conn.(*memory.Connection).Started())
	assert.Equal(t, 1, f.broker.ConnectCount())
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name      string
		kind      provider.Kind
		params    func() Params
		setup     func(f *fixture)
		wantIs    []error
		wantConns int
	}{
		{
			name: "Factory binding not found",
			kind: provider.KindQueue,
			params: func() Params {
				p := queueParams()
				p.FactoryBinding = "jms/missing"
				return p
			},
			wantIs: []error{ErrBindingNotFound, resolver.ErrNotFound},
		},
		{
			name: "Factory binding has wrong type",
			kind: provider.KindQueue,
			params: func() Params {
				p := queueParams()
				p.FactoryBinding = "jms/queue/logs"
				return p
			},
			wantIs: []error{ErrBindingNotFound, ErrBindingType},
		},
		{
			name:   "Provider unreachable",
			kind:   provider.KindQueue,
			params: queueParams,
			setup:  func(f *fixture) { f.broker.SetDown(true) },
			wantIs: []error{ErrConnect, memory.ErrUnreachable},
		},
		{
			name: "Destination binding not found",
			kind: provider.KindQueue,
			params: func() Params {
				p := queueParams()
				p.DestinationBinding = "jms/queue/missing"
				return p
			},
			wantIs: []error{ErrBindingNotFound},
		},
		{
			name:   "Destination of the wrong kind",
			kind:   provider.KindQueue,
			params: topicParams,
			wantIs: []error{ErrBindingNotFound, ErrBindingType},
		},
		{
			name:   "Credentials required but missing",
			kind:   provider.KindTopic,
			params: topicParams,
			setup:  func(f *fixture) { f.broker.RequireCredentials("app", "secret") },
			wantIs: []error{ErrConnect, memory.ErrBadCredentials},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			b := NewBuilder(f.log)

			s, err := b.MustConnect(f.context(t), tt.kind, tt.params())
			assert.Nil(t, s)
			require.Error(t, err)
			for _, target := range tt.wantIs {
				assert.True(t, errors.Is(err, target), "expected %v to match %v", err, target)
			}

			assert.Equal(t, tt.wantConns, f.broker.OpenConnections(), "partially opened connections must be closed")
			assert.Equal(t, 1, countLevel(f.hook, logrus.WarnLevel))
		})
	}
}

func TestBuilder_Credentials(t *testing.T) {
	f := newFixture(t)
	f.broker.RequireCredentials("app", "secret")
	b := NewBuilder(f.log)

	p := topicParams()
	p.UserName = "app"
	p.Password = "secret"

	s, err := b.MustConnect(f.context(t), provider.KindTopic, p)
	require.NoError(t, err)
	assert.Equal(t, provider.Topic{Name: "events"}, s.Destination())
}

func TestBuilder_TryConnectSuppresses(t *testing.T) {
	f := newFixture(t)
	f.broker.SetDown(true)
	b := NewBuilder(f.log)

	s := b.TryConnect(f.context(t), provider.KindQueue, queueParams())
	assert.Nil(t, s)

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Contains(t, entry.Message, "Unable to create connection to queue jms/queue/logs")
}

func TestErrors_Messages(t *testing.T) {
	cause := errors.New("boom")

	bnf := &BindingNotFoundError{Name: "jms/cf", Err: cause}
	assert.Contains(t, bnf.Error(), "jms/cf")
	assert.ErrorIs(t, bnf, cause)

	cce := &ChannelConnectError{Op: "session", Destination: "q", Err: cause}
	assert.Contains(t, cce.Error(), "(session)")
	assert.ErrorIs(t, cce, ErrConnect)

	se := &SendError{Manager: "m", Err: cause}
	assert.Contains(t, se.Error(), "manager 'm'")
	assert.ErrorIs(t, se, ErrSend)
	assert.NotErrorIs(t, se, ErrConnect)
}
