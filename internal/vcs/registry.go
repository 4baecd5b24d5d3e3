package vcs

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Options configures a backend when it is opened.
type Options struct {
	// Binary is the backend executable; empty selects the backend default
	Binary string

	// Timeout bounds each backend invocation; zero selects the backend default
	Timeout time.Duration

	// AuthorName and AuthorEmail override the commit identity. Empty values
	// fall back to the user's own VCS configuration.
	AuthorName  string
	AuthorEmail string
}

// Constructor creates an Adapter bound to dir.
// Backends register themselves with the registry using Register().
type Constructor func(dir string, opts Options) (Adapter, error)

// registry maps backend names to their constructors
var (
	registry      = make(map[string]Constructor)
	registryMutex sync.RWMutex
)

// Register registers a backend constructor under name.
// This is called from init() functions in backend packages.
//
// Example:
//
//	func init() {
//	    vcs.Register("git", func(dir string, opts vcs.Options) (vcs.Adapter, error) {
//	        return New(dir, opts)
//	    })
//	}
func Register(name string, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("vcs: Register constructor is nil for backend %s", name))
	}

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("vcs: Register called twice for backend %s", name))
	}

	registry[name] = constructor
}

// Open creates an Adapter for dir using the backend registered as name.
// Returns an error wrapping ErrVCSNotAvailable for an unknown backend.
func Open(name string, dir string, opts Options) (Adapter, error) {
	registryMutex.RLock()
	constructor := registry[name]
	registryMutex.RUnlock()

	if constructor == nil {
		return nil, fmt.Errorf("%w: no backend registered as %q (have %v)",
			ErrVCSNotAvailable, name, Backends())
	}

	return constructor(dir, opts)
}

// IsRegistered returns true if a constructor is registered under name.
func IsRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, exists := registry[name]
	return exists
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
