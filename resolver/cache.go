package resolver

import (
	"sync"

	"github.com/log2timeline/dfvfs-go/direntry"
)

// fsCache is the resolver's reference-counted open-file-system cache
// (§4.3: "repeated opens of the same comparable return the same
// underlying file system"). Grounded on rclone's backend/cache/cache.go,
// which wraps another Fs behind a persistent/memory storage layer and
// tracks reference-counted open handles so the wrapped Fs is only ever
// torn down once nothing still holds it open; here the wrapped resource
// is a direntry.FileSystem keyed by the opening spec's comparable form
// instead of a remote name.
type fsCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	fsys direntry.FileSystem
	refs int
}

func newFSCache() *fsCache {
	return &fsCache{entries: map[string]*cacheEntry{}}
}

// acquire returns the cached file system for key, opening a fresh one
// with open if none is cached yet. The returned handle's Close releases
// this acquisition's reference instead of tearing down the shared
// file system; the underlying Close only runs once the last reference
// is released.
func (c *fsCache) acquire(key string, open func() (direntry.FileSystem, error)) (direntry.FileSystem, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.refs++
		c.mu.Unlock()
		return &handle{FileSystem: e.fsys, cache: c, key: key}, nil
	}
	c.mu.Unlock()

	fsys, err := open()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		// Lost the race: someone else populated the entry while we were
		// opening ours. Keep theirs, discard the one we just opened.
		e.refs++
		fsys.Close()
		return &handle{FileSystem: e.fsys, cache: c, key: key}, nil
	}
	c.entries[key] = &cacheEntry{fsys: fsys, refs: 1}
	return &handle{FileSystem: fsys, cache: c, key: key}, nil
}

func (c *fsCache) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(c.entries, key)
		e.fsys.Close()
	}
}

// handle is one acquisition of a cached file system: every method but
// Close delegates to the shared instance.
type handle struct {
	direntry.FileSystem
	cache     *fsCache
	key       string
	closeOnce sync.Once
}

func (h *handle) Close() error {
	h.closeOnce.Do(func() { h.cache.release(h.key) })
	return nil
}

var _ direntry.FileSystem = (*handle)(nil)
