package orchestrate

import (
	"fmt"
	"sort"
	"sync"
)

// Table maps capability identifiers to adapters and resolves the subset
// a request is authorized to use.
type Table struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewTable creates an empty capability table.
func NewTable() *Table {
	return &Table{adapters: make(map[string]Adapter)}
}

// Register adds adapters to the table.
func (t *Table) Register(adapters ...Adapter) error {
	for i, adapter := range adapters {
		if adapter == nil {
			return fmt.Errorf("adapter at index %d is nil", i)
		}
		if adapter.Definition().Name == "" {
			return fmt.Errorf("adapter at index %d has empty name", i)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, adapter := range adapters {
		t.adapters[adapter.Definition().Name] = adapter
	}
	return nil
}

// Resolve returns the adapters for the recognized names, preserving request
// order and skipping duplicates. Unknown names are silently dropped: a stale
// or misconfigured capability name must not abort the whole request.
func (t *Table) Resolve(names []string) []Adapter {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]struct{}, len(names))
	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if adapter, ok := t.adapters[name]; ok {
			out = append(out, adapter)
		}
	}
	return out
}

// Definitions returns all registered definitions in stable name order.
func (t *Table) Definitions() []Definition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	defs := make([]Definition, 0, len(t.adapters))
	for _, adapter := range t.adapters {
		defs = append(defs, adapter.Definition())
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}
