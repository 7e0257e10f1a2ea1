package resolver

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Directory is an in-process table of bindings.
type Directory struct {
	mu         sync.RWMutex
	bindings   map[string]interface{}
	principals map[string]string
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		bindings:   make(map[string]interface{}),
		principals: make(map[string]string),
	}
}

// Bind adds a binding. Binding an existing name is an error.
func (d *Directory) Bind(name string, obj interface{}) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("binding name cannot be empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.bindings[name]; exists {
		return fmt.Errorf("name already bound: %s", name)
	}
	d.bindings[name] = obj
	return nil
}

// Rebind adds or replaces a binding.
func (d *Directory) Rebind(name string, obj interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bindings[strings.TrimSpace(name)] = obj
}

// Unbind removes a binding if present.
func (d *Directory) Unbind(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bindings, strings.TrimSpace(name))
}

// AddPrincipal requires contexts to authenticate as one of the added principals.
func (d *Directory) AddPrincipal(name, credentials string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.principals[name] = credentials
}

// Lookup returns the object bound to name.
func (d *Directory) Lookup(name string) (interface{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	obj, ok := d.bindings[strings.TrimSpace(name)]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return obj, nil
}

// Names returns all bound names, sorted.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.bindings))
	for name := range d.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Directory) authenticate(principal, credentials string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.principals) == 0 {
		return nil
	}
	expected, ok := d.principals[principal]
	if !ok || expected != credentials {
		return fmt.Errorf("principal %q: %w", principal, ErrAuthentication)
	}
	return nil
}

// dirContext resolves names against a Directory, falling back to URL names.
type dirContext struct {
	env      *Environment
	dir      *Directory
	prefixes []string

	mu     sync.RWMutex
	closed bool
}

func newDirContext(env *Environment, dir *Directory, cfg Config) *dirContext {
	return &dirContext{
		env:      env,
		dir:      dir,
		prefixes: splitPrefixes(cfg.URLPkgPrefixes),
	}
}

// Lookup implements Context.
func (c *dirContext) Lookup(name string) (interface{}, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrContextClosed
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &NotFoundError{Name: name}
	}
	if obj, err := c.dir.Lookup(name); err == nil {
		return obj, nil
	}
	if isURLName(name) {
		return c.env.resolveURL(name, c.prefixes)
	}
	return nil, &NotFoundError{Name: name}
}

// Close implements Context.
func (c *dirContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
