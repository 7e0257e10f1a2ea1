// internal/resolver/resolver.go

// Package resolver turns symbolic binding names into provider objects
// (connection factories and destinations).
package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// DefaultFactory is used when Config.Factory is empty.
const DefaultFactory = "file"

var (
	// ErrNotFound matches every lookup miss.
	ErrNotFound = errors.New("name not found")
	// ErrAuthentication is returned when principal and credentials are rejected.
	ErrAuthentication = errors.New("authentication failed")
	// ErrContextClosed is returned by Lookup on a closed context.
	ErrContextClosed = errors.New("context closed")
)

// NotFoundError reports a binding name that could not be resolved.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("name not found: %s", e.Name)
}

// Is makes errors.Is(err, ErrNotFound) true.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Config selects and configures a naming context.
type Config struct {
	Factory        string `yaml:"factory,omitempty"`          // Context factory identity, default "file"
	ProviderURL    string `yaml:"provider_url,omitempty"`     // e.g. file:///etc/logchannel/directory.yaml
	URLPkgPrefixes string `yaml:"url_pkg_prefixes,omitempty"` // Colon-separated schemes allowed for URL names
	Principal      string `yaml:"principal,omitempty"`
	Credentials    string `yaml:"credentials,omitempty"`
}

// Context resolves binding names.
type Context interface {
	Lookup(name string) (interface{}, error)
	Close() error
}

// ContextFactory creates a Context for a configuration.
type ContextFactory func(env *Environment, cfg Config) (Context, error)

// ObjectFactory builds a provider object from a URL such as amqp://host/vhost.
type ObjectFactory func(rawURL string) (interface{}, error)

// Environment holds the registered context factories and provider object
// factories. It is safe for concurrent use.
type Environment struct {
	mu        sync.RWMutex
	factories map[string]ContextFactory
	objects   map[string]ObjectFactory
}

// NewEnvironment returns an environment with the "file" context factory registered.
func NewEnvironment() *Environment {
	env := &Environment{
		factories: make(map[string]ContextFactory),
		objects:   make(map[string]ObjectFactory),
	}
	env.RegisterContextFactory(DefaultFactory, newFileContext)
	return env
}

// RegisterContextFactory registers f under name, replacing any previous one.
func (e *Environment) RegisterContextFactory(name string, f ContextFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.factories[name] = f
}

// RegisterDirectory exposes an in-process directory as a context factory.
func (e *Environment) RegisterDirectory(name string, dir *Directory) {
	e.RegisterContextFactory(name, func(env *Environment, cfg Config) (Context, error) {
		if err := dir.authenticate(cfg.Principal, cfg.Credentials); err != nil {
			return nil, err
		}
		return newDirContext(env, dir, cfg), nil
	})
}

// RegisterProvider registers the object factory used for URL names with the
// given scheme.
func (e *Environment) RegisterProvider(scheme string, f ObjectFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.objects[strings.ToLower(scheme)] = f
}

// NewContext creates a context using the factory named by cfg.Factory.
func (e *Environment) NewContext(cfg Config) (Context, error) {
	name := cfg.Factory
	if name == "" {
		name = DefaultFactory
	}

	e.mu.RLock()
	f, ok := e.factories[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown context factory: %s", name)
	}
	return f(e, cfg)
}

// resolveURL builds an object for a URL name, honouring the allowed prefixes.
func (e *Environment) resolveURL(rawURL string, prefixes []string) (interface{}, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return nil, &NotFoundError{Name: rawURL}
	}
	scheme := strings.ToLower(u.Scheme)
	if !schemeAllowed(scheme, prefixes) {
		return nil, &NotFoundError{Name: rawURL}
	}

	e.mu.RLock()
	f, ok := e.objects[scheme]
	e.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Name: rawURL}
	}

	obj, err := f(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build object for %s: %w", rawURL, err)
	}
	return obj, nil
}

func schemeAllowed(scheme string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(scheme, p) {
			return true
		}
	}
	return false
}

// splitPrefixes parses the colon-separated URLPkgPrefixes value.
func splitPrefixes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ":") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isURLName(name string) bool {
	return strings.Contains(name, "://")
}
