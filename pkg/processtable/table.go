// Package processtable tracks the background units started by one
// orchestrator instance, in the order they were started.
package processtable

import (
	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/process"
	"github.com/core-tools/hsu-stack/pkg/topology"
)

// Entry is one tracked background unit.
type Entry struct {
	Name   string
	Tier   topology.Tier
	Handle process.Handle
}

// Table is an insertion-ordered map from unit name to handle. It is owned
// by a single orchestrator and is not safe for concurrent use.
type Table struct {
	order   []string
	entries map[string]Entry
}

func New() *Table {
	return &Table{
		entries: make(map[string]Entry),
	}
}

// Record tracks a background handle under name. Foreground handles and
// names already present are rejected.
func (t *Table) Record(name string, tier topology.Tier, handle process.Handle) error {
	if name == "" {
		return errors.NewValidationError("unit name is required", nil)
	}
	if handle.IsForeground() {
		return errors.NewValidationError("foreground units are not tracked", nil).WithContext("unit", name)
	}
	if _, exists := t.entries[name]; exists {
		return errors.NewConflictError("unit already tracked", nil).WithContext("unit", name)
	}

	t.entries[name] = Entry{Name: name, Tier: tier, Handle: handle}
	t.order = append(t.order, name)
	return nil
}

// Update replaces the handle of a tracked unit, keeping its position.
func (t *Table) Update(name string, handle process.Handle) error {
	entry, exists := t.entries[name]
	if !exists {
		return errors.NewNotFoundError("unit not tracked", nil).WithContext("unit", name)
	}
	entry.Handle = handle
	t.entries[name] = entry
	return nil
}

func (t *Table) Lookup(name string) (Entry, bool) {
	entry, ok := t.entries[name]
	return entry, ok
}

// Remove drops name from the table. Removing an unknown name is a no-op.
func (t *Table) Remove(name string) {
	if _, exists := t.entries[name]; !exists {
		return
	}
	delete(t.entries, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// All returns the entries in insertion order.
func (t *Table) All() []Entry {
	result := make([]Entry, 0, len(t.order))
	for _, name := range t.order {
		result = append(result, t.entries[name])
	}
	return result
}

// Reverse returns the entries newest first, the order used for shutdown.
func (t *Table) Reverse() []Entry {
	result := make([]Entry, 0, len(t.order))
	for i := len(t.order) - 1; i >= 0; i-- {
		result = append(result, t.entries[t.order[i]])
	}
	return result
}

func (t *Table) Len() int {
	return len(t.order)
}
