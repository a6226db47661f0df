package transport

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
)

// Options are common to all uplink implementations.
type Options struct {
	// NodeID identifies this node to the destination.
	NodeID string
}

// Factory creates an Acquirer from a parsed uplink URL.
type Factory func(u *url.URL, opts Options) (Acquirer, error)

var (
	factories     = make(map[string]Factory)
	factoriesLock sync.RWMutex
)

// Register makes an uplink implementation available by URL scheme.
// It is intended to be called from init funcs.
func Register(scheme string, factory Factory) {
	factoriesLock.Lock()
	defer factoriesLock.Unlock()
	if _, exist := factories[scheme]; exist {
		panic("transport: scheme registered twice: " + scheme)
	}
	factories[scheme] = factory
}

// Schemes lists registered URL schemes.
func Schemes() []string {
	factoriesLock.RLock()
	defer factoriesLock.RUnlock()
	schemes := make([]string, 0, len(factories))
	for scheme := range factories {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// Open creates the Acquirer for an uplink URL, e.g.
// tcp://host:port, serial:///dev/ttyUSB0?baud=9600, mqtt://host:1883/prefix/.
func Open(rawURL string, opts Options) (Acquirer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid uplink URL: %v", err)
	}
	factoriesLock.RLock()
	factory := factories[u.Scheme]
	factoriesLock.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unknown uplink URL scheme: %q", u.Scheme)
	}
	return factory(u, opts)
}
