package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgoj/logchannel/internal/channel"
	"github.com/orgoj/logchannel/internal/config"
	"github.com/orgoj/logchannel/internal/provider"
	"github.com/orgoj/logchannel/internal/provider/memory"
	"github.com/orgoj/logchannel/internal/resolver"
)

var testResolvers = map[string]resolver.Config{
	"mem": {Factory: "memory"},
}

type testSetup struct {
	broker   *memory.Broker
	registry *channel.Registry
	manager  *Manager
	out      *bytes.Buffer
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()

	broker := memory.NewBroker()
	dir := resolver.NewDirectory()
	dir.Rebind("cf", broker.Factory())
	dir.Rebind("queue/audit", provider.Queue{Name: "audit"})
	dir.Rebind("topic/events", provider.Topic{Name: "events"})

	env := resolver.NewEnvironment()
	env.RegisterDirectory("memory", dir)

	out := &bytes.Buffer{}
	app := NewAppLogger(out)
	app.SetLogLevel(DEBUG)
	registry := channel.NewRegistry(channel.WithEnvironment(env), channel.WithLogger(app.FieldLogger()))

	return &testSetup{
		broker:   broker,
		registry: registry,
		manager:  NewManager(registry, app),
		out:      out,
	}
}

func auditDest() config.ChannelDestination {
	return config.ChannelDestination{
		Name:               "audit",
		Kind:               "queue",
		Enabled:            true,
		Resolver:           "mem",
		FactoryBinding:     "cf",
		DestinationBinding: "queue/audit",
		Format:             "json",
		Sources:            []string{"billing-*"},
	}
}

func eventsDest() config.ChannelDestination {
	return config.ChannelDestination{
		Name:               "events",
		Kind:               "topic",
		Enabled:            true,
		Resolver:           "mem",
		FactoryBinding:     "cf",
		DestinationBinding: "topic/events",
		Format:             "text",
	}
}

func TestNewManager_InitLoggers(t *testing.T) {
	disabled := auditDest()
	disabled.Name = "disabled"
	disabled.Enabled = false

	unknownResolver := auditDest()
	unknownResolver.Name = "lost"
	unknownResolver.Resolver = "nowhere"

	missingBinding := eventsDest()
	missingBinding.Name = "unbound"
	missingBinding.DestinationBinding = ""

	tests := []struct {
		name            string
		destCfgs        []config.ChannelDestination
		expectInitError bool
		expectedLoggers []string
	}{
		{
			name:            "No destinations",
			destCfgs:        nil,
			expectedLoggers: []string{},
		},
		{
			name:            "Queue and topic",
			destCfgs:        []config.ChannelDestination{auditDest(), eventsDest()},
			expectedLoggers: []string{"audit", "events"},
		},
		{
			name:            "Disabled destination is skipped",
			destCfgs:        []config.ChannelDestination{auditDest(), disabled},
			expectedLoggers: []string{"audit"},
		},
		{
			name:            "Unknown resolver",
			destCfgs:        []config.ChannelDestination{eventsDest(), unknownResolver},
			expectInitError: true,
			expectedLoggers: []string{"events"},
		},
		{
			name:            "Missing destination binding",
			destCfgs:        []config.ChannelDestination{missingBinding},
			expectInitError: true,
			expectedLoggers: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSetup(t)
			defer s.manager.CloseAll()

			err := s.manager.InitLoggers(tt.destCfgs, testResolvers)
			if tt.expectInitError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedLoggers, s.manager.GetAllEnabledLoggerNames())
		})
	}
}

func TestManager_BrokerDownAtStartup(t *testing.T) {
	s := newTestSetup(t)
	s.broker.SetDown(true)

	require.NoError(t, s.manager.InitLoggers([]config.ChannelDestination{auditDest()}, testResolvers))
	lgr := s.manager.GetLogger("audit")
	require.NotNil(t, lgr)
	assert.Contains(t, s.out.String(), "Unable to create connection to")

	record := map[string]interface{}{"msg": "first"}
	assert.ErrorIs(t, lgr.Log(record), channel.ErrConnect)

	s.broker.SetDown(false)
	require.NoError(t, lgr.Log(record))
	require.Len(t, s.broker.Payloads("audit"), 1)
}

func TestManager_GetLogger(t *testing.T) {
	s := newTestSetup(t)
	require.NoError(t, s.manager.InitLoggers([]config.ChannelDestination{auditDest()}, testResolvers))

	assert.NotNil(t, s.manager.GetLogger("audit"))
	assert.Equal(t, "audit", s.manager.GetLogger("audit").Name())
	assert.Nil(t, s.manager.GetLogger("missing"))
}

func TestManager_LoggersFor(t *testing.T) {
	s := newTestSetup(t)
	require.NoError(t, s.manager.InitLoggers([]config.ChannelDestination{auditDest(), eventsDest()}, testResolvers))

	names := func(ls []Logger) []string {
		out := []string{}
		for _, l := range ls {
			out = append(out, l.Name())
		}
		return out
	}

	assert.Equal(t, []string{"audit", "events"}, names(s.manager.LoggersFor("billing-eu")))
	assert.Equal(t, []string{"events"}, names(s.manager.LoggersFor("auth")))
}

func TestManager_Channels(t *testing.T) {
	s := newTestSetup(t)
	require.NoError(t, s.manager.InitLoggers([]config.ChannelDestination{auditDest(), eventsDest()}, testResolvers))

	status := s.manager.Channels()
	require.Len(t, status, 2)
	assert.Equal(t, ChannelStatus{Name: "audit", Manager: "audit", Kind: "queue", Connected: true, Sources: []string{"billing-*"}}, status[0])
	assert.Equal(t, ChannelStatus{Name: "events", Manager: "events", Kind: "topic", Connected: true}, status[1])

	b, err := json.Marshal(status[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"events","manager":"events","kind":"topic","connected":true}`, string(b))
}

func TestManager_CloseAll(t *testing.T) {
	s := newTestSetup(t)
	require.NoError(t, s.manager.InitLoggers([]config.ChannelDestination{auditDest(), eventsDest()}, testResolvers))
	require.Equal(t, 2, s.broker.OpenConnections())

	s.manager.CloseAll()

	assert.Equal(t, 0, s.broker.OpenConnections())
	assert.Empty(t, s.manager.GetAllEnabledLoggerNames())
	// Managers stay registered for reuse on re-initialization.
	assert.Equal(t, []string{"audit", "events"}, s.registry.Names())
}

func TestManager_ReinitReleasesPreviousLoggers(t *testing.T) {
	s := newTestSetup(t)
	require.NoError(t, s.manager.InitLoggers([]config.ChannelDestination{auditDest()}, testResolvers))
	first := s.manager.GetLogger("audit").(*ChannelLogger).Manager()

	require.NoError(t, s.manager.InitLoggers([]config.ChannelDestination{auditDest()}, testResolvers))
	second := s.manager.GetLogger("audit").(*ChannelLogger).Manager()

	assert.Same(t, first, second)
	assert.False(t, second.Connected())
	require.NoError(t, s.manager.GetLogger("audit").Log(map[string]interface{}{"msg": "again"}))
	assert.True(t, second.Connected())
}

func TestManager_DefaultsToGlobalAppLogger(t *testing.T) {
	m := NewManager(channel.NewRegistry(channel.WithLogger(logrus.New())), nil)
	assert.Same(t, GetAppLogger(), m.appLogger)
}

func newParams() channel.Params {
	return channel.Params{
		Resolver:           testResolvers["mem"],
		FactoryBinding:     "cf",
		DestinationBinding: "queue/audit",
	}
}
