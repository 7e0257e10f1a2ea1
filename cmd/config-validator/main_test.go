package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orgoj/logchannel/internal/config"
	"github.com/orgoj/logchannel/internal/provider"
	"github.com/orgoj/logchannel/internal/provider/memory"
	"github.com/orgoj/logchannel/internal/resolver"
)

func testEnvironment() *resolver.Environment {
	dir := resolver.NewDirectory()
	dir.Rebind("cf", memory.NewBroker().Factory())
	dir.Rebind("queue/audit", provider.Queue{Name: "audit"})
	dir.Rebind("topic/events", provider.Topic{Name: "events"})

	env := resolver.NewEnvironment()
	env.RegisterDirectory("memory", dir)
	return env
}

func testConfig(dest config.ChannelDestination) *config.Config {
	return &config.Config{
		Resolvers: map[string]resolver.Config{"mem": {Factory: "memory"}},
		Channels:  []config.ChannelDestination{dest},
	}
}

func TestResolveBindings(t *testing.T) {
	valid := config.ChannelDestination{
		Name:               "audit",
		Kind:               "queue",
		Enabled:            true,
		Resolver:           "mem",
		FactoryBinding:     "cf",
		DestinationBinding: "queue/audit",
	}

	tests := []struct {
		name    string
		mutate  func(d *config.ChannelDestination)
		wantErr string
	}{
		{name: "valid", mutate: func(d *config.ChannelDestination) {}},
		{name: "missing factory", mutate: func(d *config.ChannelDestination) { d.FactoryBinding = "nope" }, wantErr: "nope"},
		{name: "factory is a destination", mutate: func(d *config.ChannelDestination) { d.FactoryBinding = "queue/audit" }, wantErr: "not a connection factory"},
		{name: "destination is a factory", mutate: func(d *config.ChannelDestination) { d.DestinationBinding = "cf" }, wantErr: "not a destination"},
		{name: "kind mismatch", mutate: func(d *config.ChannelDestination) { d.DestinationBinding = "topic/events" }, wantErr: "is a topic, not a queue"},
		{name: "nothing enabled", mutate: func(d *config.ChannelDestination) { d.Enabled = false }, wantErr: "at least one channel"},
		{name: "unconfigured resolver", mutate: func(d *config.ChannelDestination) { d.Resolver = "other" }, wantErr: "requires a provider URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := valid
			tt.mutate(&dest)
			err := resolveBindings(testConfig(dest), testEnvironment())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
