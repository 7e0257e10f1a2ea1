package channel

import (
	"fmt"

	"github.com/orgoj/logchannel/internal/provider"
	"github.com/orgoj/logchannel/internal/resolver"
)

// Params is everything a manager needs to (re)connect. It is immutable once
// handed to the registry.
type Params struct {
	Resolver           resolver.Config
	FactoryBinding     string // Name of the connection factory in the resolver
	DestinationBinding string // Name of the queue or topic in the resolver
	UserName           string // Optional; provider defaults are used when empty
	Password           string
}

// Validate checks the mandatory binding names.
func (p Params) Validate() error {
	if p.FactoryBinding == "" {
		return fmt.Errorf("%w: factory binding", ErrMissingBinding)
	}
	if p.DestinationBinding == "" {
		return fmt.Errorf("%w: destination binding", ErrMissingBinding)
	}
	return nil
}

// credentials returns nil when no user name is configured.
func (p Params) credentials() *provider.Credentials {
	if p.UserName == "" {
		return nil
	}
	return &provider.Credentials{UserName: p.UserName, Password: p.Password}
}

// ManagerName derives the registry key used when no explicit name is given.
func ManagerName(kind provider.Kind, p Params) string {
	return kind.String() + ":" + p.FactoryBinding + "." + p.DestinationBinding
}
