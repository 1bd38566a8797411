package resolver

import (
	"sync"

	"github.com/log2timeline/dfvfs-go/pathspec"
)

// MountTable is the programmatic identifier -> PathSpec map MOUNT
// specs indirect through (§4.1, §4.3). Grounded on rclone's
// backend/alias/alias.go (one remote name resolving to another
// configured remote's root) and backend/combine/combine.go's
// identifier-to-remote upstream map, generalized to a runtime-mutable
// table instead of config-file-parsed at startup.
type MountTable struct {
	mu      sync.RWMutex
	entries map[string]*pathspec.PathSpec
}

// NewMountTable returns an empty mount table.
func NewMountTable() *MountTable {
	return &MountTable{entries: map[string]*pathspec.PathSpec{}}
}

// Register associates identifier with target, replacing any previous
// association (mirrors backend.RegisterResolverHelper's idempotent
// re-registration).
func (m *MountTable) Register(identifier string, target *pathspec.PathSpec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[identifier] = target
}

// Unregister removes identifier's association, if any.
func (m *MountTable) Unregister(identifier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, identifier)
}

// Lookup resolves identifier to its target PathSpec.
func (m *MountTable) Lookup(identifier string) (*pathspec.PathSpec, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	spec, ok := m.entries[identifier]
	return spec, ok
}
