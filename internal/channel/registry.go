// internal/channel/registry.go

// Package channel keeps named managers that send log payloads to queues and
// topics, connecting lazily and reconnecting on demand.
package channel

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/orgoj/logchannel/internal/provider"
	"github.com/orgoj/logchannel/internal/resolver"
)

// Factory builds a manager for name. Returning nil means construction failed
// and nothing is registered.
type Factory func(name string, params Params) *Manager

// Registry maps manager names to live managers. At most one manager is ever
// constructed per name.
type Registry struct {
	mu       sync.RWMutex
	managers map[string]*Manager
	inflight singleflight.Group

	env     *resolver.Environment
	builder *Builder
	log     logrus.FieldLogger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry and its managers.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Registry) { r.log = log }
}

// WithEnvironment sets the resolver environment managers create contexts from.
func WithEnvironment(env *resolver.Environment) Option {
	return func(r *Registry) { r.env = env }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{managers: make(map[string]*Manager)}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	if r.env == nil {
		r.env = resolver.NewEnvironment()
	}
	r.builder = NewBuilder(r.log)
	return r
}

// Acquire returns the manager registered under name, or runs factory once to
// create it. On a hit, factory and params are ignored.
func (r *Registry) Acquire(name string, factory Factory, params Params) *Manager {
	if m := r.Get(name); m != nil {
		if m.params != params {
			r.log.WithField("manager", name).Debug("Manager already exists, ignoring new parameters")
		}
		return m
	}

	v, _, _ := r.inflight.Do(name, func() (interface{}, error) {
		// A construction for name may have finished between Get and Do.
		if m := r.Get(name); m != nil {
			return m, nil
		}
		m := factory(name, params)
		if m == nil {
			return nil, nil
		}
		r.mu.Lock()
		r.managers[name] = m
		r.mu.Unlock()
		return m, nil
	})

	m, _ := v.(*Manager)
	return m
}

// AcquireQueueManager returns the queue manager for name. An empty name is
// derived from the binding names. Nil is returned when a binding name is
// missing or the resolver context cannot be created.
func (r *Registry) AcquireQueueManager(name string, params Params) *Manager {
	return r.acquireKind(provider.KindQueue, name, params)
}

// AcquireTopicManager is AcquireQueueManager for topics.
func (r *Registry) AcquireTopicManager(name string, params Params) *Manager {
	return r.acquireKind(provider.KindTopic, name, params)
}

func (r *Registry) acquireKind(kind provider.Kind, name string, params Params) *Manager {
	if err := params.Validate(); err != nil {
		r.log.WithError(err).Errorf("Cannot create %s manager", kind)
		return nil
	}
	if name == "" {
		name = ManagerName(kind, params)
	}

	m := r.Acquire(name, r.managerFactory(kind), params)
	if m != nil && m.Kind() != kind {
		r.log.WithField("manager", name).Errorf("Manager is a %s manager, not a %s manager", m.Kind(), kind)
		return nil
	}
	return m
}

// managerFactory creates the resolver context and makes one best-effort
// connection attempt. A context failure aborts construction.
func (r *Registry) managerFactory(kind provider.Kind) Factory {
	return func(name string, params Params) *Manager {
		ctx, err := r.env.NewContext(params.Resolver)
		if err != nil {
			r.log.WithError(err).WithField("manager", name).Error("Unable to create resolver context")
			return nil
		}
		session := r.builder.TryConnect(ctx, kind, params)
		return newManager(name, kind, params, ctx, r.builder, r.log, session)
	}
}

// Get returns the manager registered under name, or nil.
func (r *Registry) Get(name string) *Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.managers[name]
}

// Names returns the registered manager names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.managers))
	for name := range r.managers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReleaseAll releases every registered manager. Managers stay registered.
func (r *Registry) ReleaseAll() {
	r.mu.RLock()
	managers := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, m := range managers {
		wg.Add(1)
		go func(m *Manager) {
			defer wg.Done()
			m.Release()
		}(m)
	}
	wg.Wait()
}
