// Package importmap translates identifiers from an exported project into
// identifiers of the instance it is imported into.
//
// Every mapper keeps three tables keyed by the old ID: the registered
// descriptive key, the required flag and the new ID. An old ID must be
// registered before it can be flagged as required, a new ID is visible
// only after MapValue, and ClearMappedValues leaves registrations and
// required flags untouched.
package importmap

import (
	"fmt"
	"sort"
	"sync"
)

// Mapper is the generic old-to-new ID translation table.
// All methods are safe for concurrent use.
type Mapper struct {
	kind string

	mu       sync.RWMutex
	keys     map[string]string
	required map[string]struct{}
	mapped   map[string]string
}

// NewMapper creates an empty mapper. kind names the entity type in
// errors and persisted mappings (e.g. "version").
func NewMapper(kind string) *Mapper {
	return &Mapper{
		kind:     kind,
		keys:     make(map[string]string),
		required: make(map[string]struct{}),
		mapped:   make(map[string]string),
	}
}

// Kind returns the entity type this mapper translates.
func (m *Mapper) Kind() string { return m.kind }

// RegisterOldValue records that oldID exists in the source data with the
// given descriptive key. Registering again replaces the key.
func (m *Mapper) RegisterOldValue(oldID, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[oldID] = key
}

// FlagValueAsRequired marks a registered oldID as needed by the import.
func (m *Mapper) FlagValueAsRequired(oldID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[oldID]; !ok {
		return fmt.Errorf("%s %q flagged as required before it was registered", m.kind, oldID)
	}
	m.required[oldID] = struct{}{}
	return nil
}

// MapValue records the new ID for oldID.
func (m *Mapper) MapValue(oldID, newID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapped[oldID] = newID
}

// MappedID returns the new ID for oldID, if one was mapped.
func (m *Mapper) MappedID(oldID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.mapped[oldID]
	return id, ok
}

// Key returns the descriptive key registered for oldID.
func (m *Mapper) Key(oldID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[oldID]
	return k, ok
}

// IsRequired reports whether oldID has been flagged as required.
func (m *Mapper) IsRequired(oldID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.required[oldID]
	return ok
}

// RegisteredOldIDs returns every registered old ID, sorted.
func (m *Mapper) RegisteredOldIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.keys)
}

// RequiredOldIDs returns every required old ID, sorted.
func (m *Mapper) RequiredOldIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.required)
}

// UnmappedRequiredOldIDs returns required old IDs that have no new ID.
func (m *Mapper) UnmappedRequiredOldIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id := range m.required {
		if _, ok := m.mapped[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Mappings returns a copy of the old-to-new table.
func (m *Mapper) Mappings() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.mapped))
	for k, v := range m.mapped {
		out[k] = v
	}
	return out
}

// ClearMappedValues forgets every new ID.
func (m *Mapper) ClearMappedValues() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapped = make(map[string]string)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
