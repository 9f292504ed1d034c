package driver

import (
	"fmt"
	"sort"
	"sync"

	"github.com/focuscam/focuscam/internal/logging"
)

var logger = logging.NewLogger("focuscam/driver")

// FilterFn is being used to decide if a backend should be included in the
// query result.
type FilterFn func(Backend) bool

type manager struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

var managerInstance = newManager()

func newManager() *manager {
	return &manager{
		backends: make(map[string]Backend),
	}
}

// GetManager gets manager singleton instance. Backends register themselves
// from init, so the set is fixed once main starts.
func GetManager() *manager {
	return managerInstance
}

// Register adds a backend under its name. Names must be unique.
func (m *manager) Register(b Backend) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := b.Name()
	if _, ok := m.backends[name]; ok {
		return fmt.Errorf("backend %q is already registered", name)
	}
	m.backends[name] = b
	return nil
}

// Lookup returns the backend registered as name.
func (m *manager) Lookup(name string) (Backend, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.backends[name]
	return b, ok
}

// Resolve turns a preference list into backends, keeping its order. Unknown
// names are skipped with a warning since a config file may list a backend
// that is not built for this platform.
func (m *manager) Resolve(names []string) ([]Backend, error) {
	resolved := make([]Backend, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		b, ok := m.Lookup(name)
		if !ok {
			logger.Warnf("backend %q is not available on this platform, skipping", name)
			continue
		}
		resolved = append(resolved, b)
	}

	if len(resolved) == 0 {
		return nil, fmt.Errorf("none of the backends %v are available (registered: %v)", names, m.Names())
	}
	return resolved, nil
}

// Query returns every backend for which filter returns true, sorted by name.
func (m *manager) Query(filter FilterFn) []Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Backend, 0, len(m.backends))
	for _, b := range m.backends {
		if filter == nil || filter(b) {
			results = append(results, b)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Name() < results[j].Name()
	})
	return results
}

// Names lists the registered backend names, sorted.
func (m *manager) Names() []string {
	backends := m.Query(nil)
	names := make([]string, 0, len(backends))
	for _, b := range backends {
		names = append(names, b.Name())
	}
	return names
}

// FilterNot returns a filter function which negates the given filter
func FilterNot(filter FilterFn) FilterFn {
	return func(b Backend) bool {
		return !filter(b)
	}
}

// FilterName returns a filter function matching a single backend name.
func FilterName(name string) FilterFn {
	return func(b Backend) bool {
		return b.Name() == name
	}
}
