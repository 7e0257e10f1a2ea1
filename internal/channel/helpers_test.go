package channel

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/orgoj/logchannel/internal/provider"
	"github.com/orgoj/logchannel/internal/provider/memory"
	"github.com/orgoj/logchannel/internal/resolver"
)

type fixture struct {
	broker   *memory.Broker
	dir      *resolver.Directory
	env      *resolver.Environment
	registry *Registry
	hook     *test.Hook
	log      *logrus.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	broker := memory.NewBroker()
	dir := resolver.NewDirectory()
	dir.Rebind("jms/cf", broker.Factory())
	dir.Rebind("jms/queue/logs", provider.Queue{Name: "logs"})
	dir.Rebind("jms/topic/events", provider.Topic{Name: "events"})

	env := resolver.NewEnvironment()
	env.RegisterDirectory("memory", dir)

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	return &fixture{
		broker:   broker,
		dir:      dir,
		env:      env,
		registry: NewRegistry(WithEnvironment(env), WithLogger(log)),
		hook:     hook,
		log:      log,
	}
}

func (f *fixture) context(t *testing.T) resolver.Context {
	t.Helper()
	ctx, err := f.env.NewContext(resolver.Config{Factory: "memory"})
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	return ctx
}

func queueParams() Params {
	return Params{
		Resolver:           resolver.Config{Factory: "memory"},
		FactoryBinding:     "jms/cf",
		DestinationBinding: "jms/queue/logs",
	}
}

func topicParams() Params {
	return Params{
		Resolver:           resolver.Config{Factory: "memory"},
		FactoryBinding:     "jms/cf",
		DestinationBinding: "jms/topic/events",
	}
}

// countLevel counts hook entries at level.
func countLevel(hook *test.Hook, level logrus.Level) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
