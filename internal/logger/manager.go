// internal/logger/manager.go

package logger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/orgoj/logchannel/internal/channel"
	"github.com/orgoj/logchannel/internal/config"
	"github.com/orgoj/logchannel/internal/provider"
	"github.com/orgoj/logchannel/internal/resolver"
)

// ChannelStatus describes one configured destination.
type ChannelStatus struct {
	Name      string   `json:"name"`
	Manager   string   `json:"manager"`
	Kind      string   `json:"kind"`
	Connected bool     `json:"connected"`
	Sources   []string `json:"sources,omitempty"`
}

// Manager handles the lifecycle and access to logger instances.
type Manager struct {
	registry  *channel.Registry
	loggers   map[string]*ChannelLogger
	sources   map[string][]string
	mu        sync.RWMutex
	appLogger *AppLogger
}

// NewManager creates a new logger manager acquiring channels from registry.
func NewManager(registry *channel.Registry, appLogger *AppLogger) *Manager {
	if appLogger == nil {
		appLogger = GetAppLogger()
	}
	return &Manager{
		registry:  registry,
		loggers:   make(map[string]*ChannelLogger),
		sources:   make(map[string][]string),
		appLogger: appLogger,
	}
}

// InitLoggers initializes loggers based on the provided configuration. A
// destination whose broker is down is still initialized; it connects on the
// first record.
func (m *Manager) InitLoggers(channels []config.ChannelDestination, resolvers map[string]resolver.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Close existing loggers first if any (e.g., on config reload)
	for name, lgr := range m.loggers {
		if err := lgr.Close(); err != nil {
			m.appLogger.Warn("Error closing existing logger '%s' during re-initialization: %v", name, err)
		}
	}
	m.loggers = make(map[string]*ChannelLogger)
	m.sources = make(map[string][]string)

	var initErrors []error
	for _, dest := range channels {
		if !dest.Enabled {
			continue
		}

		lgr, err := m.newLogger(dest, resolvers)
		if err != nil {
			m.appLogger.Error("Failed to initialize channel destination '%s' (kind: %s): %v", dest.Name, dest.Kind, err)
			initErrors = append(initErrors, fmt.Errorf("dest '%s': %w", dest.Name, err))
			continue
		}

		m.loggers[dest.Name] = lgr
		m.sources[dest.Name] = dest.Sources
		m.appLogger.Info("Initialized channel destination '%s' (manager: %s, connected: %t)", dest.Name, lgr.manager.Name(), lgr.manager.Connected())
	}

	if len(initErrors) > 0 {
		return fmt.Errorf("failed to initialize some loggers: %w", errors.Join(initErrors...))
	}
	return nil
}

func (m *Manager) newLogger(dest config.ChannelDestination, resolvers map[string]resolver.Config) (*ChannelLogger, error) {
	kind, err := provider.ParseKind(dest.Kind)
	if err != nil {
		return nil, err
	}

	var rc resolver.Config
	if dest.Resolver != "" {
		var ok bool
		if rc, ok = resolvers[dest.Resolver]; !ok {
			return nil, fmt.Errorf("resolver '%s' not configured", dest.Resolver)
		}
	}

	params := channel.Params{
		Resolver:           rc,
		FactoryBinding:     dest.FactoryBinding,
		DestinationBinding: dest.DestinationBinding,
		UserName:           dest.UserName,
		Password:           dest.Password,
	}

	var mgr *channel.Manager
	if kind == provider.KindTopic {
		mgr = m.registry.AcquireTopicManager(dest.Name, params)
	} else {
		mgr = m.registry.AcquireQueueManager(dest.Name, params)
	}
	if mgr == nil {
		return nil, fmt.Errorf("no %s manager available for %s", kind, dest.DestinationBinding)
	}

	return NewChannelLogger(dest, mgr)
}

// GetLogger retrieves a logger instance by name.
// Returns nil if the logger is not found or not initialized.
func (m *Manager) GetLogger(name string) Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lgr, ok := m.loggers[name]
	if !ok {
		return nil
	}
	return lgr
}

// GetAllEnabledLoggerNames returns the sorted names of all initialized loggers.
func (m *Manager) GetAllEnabledLoggerNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.loggers))
	for name := range m.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoggersFor returns the loggers whose source patterns match source, ordered
// by name.
func (m *Manager) LoggersFor(source string) []Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []Logger
	for _, lgr := range m.loggers {
		if lgr.Accepts(source) {
			matched = append(matched, lgr)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name() < matched[j].Name() })
	return matched
}

// Channels reports the state of every initialized destination, ordered by name.
func (m *Manager) Channels() []ChannelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ChannelStatus, 0, len(m.loggers))
	for name, lgr := range m.loggers {
		mgr := lgr.Manager()
		out = append(out, ChannelStatus{
			Name:      name,
			Manager:   mgr.Name(),
			Kind:      mgr.Kind().String(),
			Connected: mgr.Connected(),
			Sources:   m.sources[name],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CloseAll closes all managed logger instances.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appLogger.Info("Shutting down... Closing loggers.")
	var wg sync.WaitGroup
	for name, lgr := range m.loggers {
		wg.Add(1)
		go func(name string, lgr Logger) {
			defer wg.Done()
			if err := lgr.Close(); err != nil {
				m.appLogger.Warn("Error closing logger '%s': %v", name, err)
			}
		}(name, lgr)
	}
	wg.Wait()
	m.appLogger.Info("Loggers closed.")
	m.loggers = make(map[string]*ChannelLogger)
	m.sources = make(map[string][]string)
}
