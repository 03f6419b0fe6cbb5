package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Plugin bundles a schema definition with an optional custom parse function.
type Plugin struct {
	Definition Definition
	Parse      ParseFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Plugin)
)

// Register makes a plugin available by name. It panics if the name is empty
// or already registered.
func Register(name string, p Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if name == "" {
		panic("schema: Register with empty name")
	}
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("schema: Register called twice for %q", name))
	}
	if p.Definition.Name == "" {
		p.Definition.Name = name
	}
	registry[name] = p
}

// Lookup returns a registered plugin.
func Lookup(name string) (Plugin, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// Plugins returns the sorted names of every registered plugin.
func Plugins() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
