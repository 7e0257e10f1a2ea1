// Package all registers the built-in network providers with a resolver
// environment.
package all

import (
	"github.com/orgoj/logchannel/internal/provider/amqp"
	"github.com/orgoj/logchannel/internal/provider/gelf"
	"github.com/orgoj/logchannel/internal/provider/zmq"
	"github.com/orgoj/logchannel/internal/resolver"
)

// Schemes maps every URL scheme handled by a built-in provider to its object
// factory.
var Schemes = map[string]resolver.ObjectFactory{
	"amqp":     amqp.ObjectFactory,
	"amqps":    amqp.ObjectFactory,
	"gelf":     gelf.ObjectFactory,
	"gelf+udp": gelf.ObjectFactory,
	"gelf+tcp": gelf.ObjectFactory,
	"zmq+tcp":  zmq.ObjectFactory,
	"zmq+ipc":  zmq.ObjectFactory,
}

// Register adds the built-in providers to env.
func Register(env *resolver.Environment) {
	for scheme, f := range Schemes {
		env.RegisterProvider(scheme, f)
	}
}

// NewEnvironment returns a resolver environment with the file context factory
// and all built-in providers.
func NewEnvironment() *resolver.Environment {
	env := resolver.NewEnvironment()
	Register(env)
	return env
}
