package channel

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgoj/logchannel/internal/provider"
	"github.com/orgoj/logchannel/internal/provider/memory"
)

func TestManager_EndToEnd(t *testing.T) {
	f := newFixture(t)

	m := f.registry.AcquireQueueManager("Q1", queueParams())
	require.NotNil(t, m)
	assert.True(t, m.Connected())

	require.NoError(t, m.Send("hello"))
	require.NoError(t, m.Send("world"))

	assert.Equal(t, []string{"hello", "world"}, f.broker.Payloads("logs"))
	deliveries := f.broker.Deliveries()
	require.Len(t, deliveries, 2)
	assert.Equal(t, deliveries[0].SessionID, deliveries[1].SessionID)
	assert.Equal(t, 1, f.broker.ConnectCount())
}

func TestManager_LazyConnect(t *testing.T) {
	f := newFixture(t)
	f.broker.SetDown(true)

	m := f.registry.AcquireQueueManager("Q1", queueParams())
	require.NotNil(t, m, "manager must exist even if the provider is down")
	assert.False(t, m.Connected())
	assert.Equal(t, 1, countLevel(f.hook, logrus.WarnLevel))

	err := m.Send("first")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnect)
	assert.False(t, m.Connected())

	f.broker.SetDown(false)
	require.NoError(t, m.Send("second"))
	assert.True(t, m.Connected())
	assert.Equal(t, []string{"second"}, f.broker.Payloads("logs"))
}

func TestManager_SuppressionBoundary(t *testing.T) {
	f := newFixture(t)
	p := queueParams()
	p.FactoryBinding = "jms/does-not-exist"

	m := f.registry.AcquireQueueManager("", p)
	require.NotNil(t, m)
	assert.Equal(t, 0, countLevel(f.hook, logrus.ErrorLevel))

	err := m.Send("payload")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBindingNotFound)

	var bnf *BindingNotFoundError
	require.ErrorAs(t, err, &bnf)
	assert.Equal(t, "jms/does-not-exist", bnf.Name)
}

func TestManager_ReleaseThenReconnect(t *testing.T) {
	for _, kind := range []provider.Kind{provider.KindQueue, provider.KindTopic} {
		t.Run(kind.String(), func(t *testing.T) {
			f := newFixture(t)

			var m *Manager
			if kind == provider.KindQueue {
				m = f.registry.AcquireQueueManager("M", queueParams())
			} else {
				m = f.registry.AcquireTopicManager("M", topicParams())
			}
			require.NotNil(t, m)
			require.NoError(t, m.Send("before"))

			m.Release()
			assert.False(t, m.Connected())
			assert.Equal(t, 0, f.broker.OpenConnections())

			// Releasing twice is harmless.
			m.Release()

			require.NoError(t, m.Send("after"))
			assert.Equal(t, 2, f.broker.ConnectCount())
			assert.Same(t, m, f.registry.Get("M"))
		})
	}
}

func TestManager_DroppedTransport(t *testing.T) {
	f := newFixture(t)
	m := f.registry.AcquireTopicManager("T", topicParams())
	require.NotNil(t, m)

	f.broker.DropConnections()

	err := m.Send("lost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSend)
	assert.ErrorIs(t, err, memory.ErrDropped)
	assert.True(t, m.Connected(), "a failed send does not demote the manager")

	m.Release()
	require.NoError(t, m.Send("recovered"))
	assert.Equal(t, []string{"recovered"}, f.broker.Payloads("events"))
}

func TestManager_SendSerialized(t *testing.T) {
	for _, kind := range []provider.Kind{provider.KindQueue, provider.KindTopic} {
		t.Run(kind.String(), func(t *testing.T) {
			f := newFixture(t)
			f.broker.SetSendDelay(2 * time.Millisecond)

			var m *Manager
			dest := "logs"
			if kind == provider.KindQueue {
				m = f.registry.AcquireQueueManager("", queueParams())
			} else {
				m = f.registry.AcquireTopicManager("", topicParams())
				dest = "events"
			}
			require.NotNil(t, m)

			const senders = 20
			var wg sync.WaitGroup
			errs := make(chan error, senders)
			for i := 0; i < senders; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs <- m.Send(fmt.Sprintf("msg-%d", i))
				}(i)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				assert.NoError(t, err)
			}
			assert.Len(t, f.broker.Payloads(dest), senders)
			assert.Equal(t, 0, f.broker.OverlappingSends())
		})
	}
}

func TestManager_ReleaseDuringSend(t *testing.T) {
	f := newFixture(t)
	f.broker.SetSendDelay(50 * time.Millisecond)
	m := f.registry.AcquireQueueManager("", queueParams())
	require.NotNil(t, m)

	done := make(chan error, 1)
	go func() { done <- m.Send("in-flight") }()
	time.Sleep(10 * time.Millisecond)
	m.Release()

	require.NoError(t, <-done, "release waits for the in-flight send")
	assert.False(t, m.Connected())
}

func TestManager_BadPayload(t *testing.T) {
	f := newFixture(t)
	m := f.registry.AcquireQueueManager("", queueParams())
	require.NotNil(t, m)

	err := m.Send(nil)
	assert.ErrorIs(t, err, ErrSend)
}

type failingConn struct{ provider.Connection }

func (c failingConn) Close() error { return errors.New("close failed") }

type failingFactory struct{ inner provider.ConnectionFactory }

func (f failingFactory) Connect(kind provider.Kind, creds *provider.Credentials) (provider.Connection, error) {
	conn, err := f.inner.Connect(kind, creds)
	if err != nil {
		return nil, err
	}
	return failingConn{conn}, nil
}

func TestManager_ReleaseLogsCloseErrors(t *testing.T) {
	f := newFixture(t)
	f.dir.Rebind("jms/failing", failingFactory{inner: f.broker.Factory()})

	p := queueParams()
	p.FactoryBinding = "jms/failing"
	m := f.registry.AcquireQueueManager("", p)
	require.NotNil(t, m)
	require.True(t, m.Connected())

	m.Release()
	assert.False(t, m.Connected())

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, m.Name(), entry.Data["manager"])
}
