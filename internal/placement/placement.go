// Package placement is a registry of exported functions and the
// deployment node each one is tagged for. The runtime that actually
// moves execution between nodes consumes this metadata; the pipeline's
// only obligation is to register its legs and hand its result across
// the boundary by ownership transfer.
package placement

import (
	"fmt"
	"sort"
	"sync"
)

var (
	mu       sync.Mutex
	registry = map[string]string{}
)

// Register tags the exported function fn to run on node. Re-registering
// fn with a different node is a programming error and panics.
func Register(fn, node string) {
	mu.Lock()
	defer mu.Unlock()
	if existing, ok := registry[fn]; ok && existing != node {
		panic(fmt.Sprintf("placement: function %q already registered for node %q", fn, existing))
	}
	registry[fn] = node
}

// NodeFor returns the node fn is tagged for.
func NodeFor(fn string) (string, bool) {
	mu.Lock()
	defer mu.Unlock()
	node, ok := registry[fn]
	return node, ok
}

// Functions returns the registered function names in sorted order.
func Functions() []string {
	mu.Lock()
	defer mu.Unlock()
	fns := make([]string, 0, len(registry))
	for fn := range registry {
		fns = append(fns, fn)
	}
	sort.Strings(fns)
	return fns
}
