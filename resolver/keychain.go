package resolver

import "sync"

// KeyChain is the process-wide credential store (§4.3, §6 "Key chain"):
// a mapping from a spec's comparable form to a set of named credentials
// (password, recovery_password, key, startup_key, ...). Grounded on
// rclone's backend/hasher/kv.go key-value store (Get/Set/Remove over a
// small embedded map), repurposed from hash caching to credential
// storage with an extra comparable-keyed outer level.
type KeyChain struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
}

// NewKeyChain returns an empty key chain.
func NewKeyChain() *KeyChain {
	return &KeyChain{entries: map[string]map[string]string{}}
}

// Set records value under name for the spec whose comparable form is
// comparable (§4.3's "key_chain.set(spec.comparable, name, value)").
func (k *KeyChain) Set(comparable, name, value string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.entries[comparable]
	if !ok {
		m = map[string]string{}
		k.entries[comparable] = m
	}
	m[name] = value
}

// Get returns the credential named name for comparable, if one was set.
func (k *KeyChain) Get(comparable, name string) (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	m, ok := k.entries[comparable]
	if !ok {
		return "", false
	}
	v, ok := m[name]
	return v, ok
}

// Remove deletes the credential named name for comparable, if present.
func (k *KeyChain) Remove(comparable, name string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.entries[comparable]
	if !ok {
		return
	}
	delete(m, name)
	if len(m) == 0 {
		delete(k.entries, comparable)
	}
}
