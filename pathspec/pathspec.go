package pathspec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/log2timeline/dfvfs-go/dfvfserrors"
)

// PathSpec is an immutable, comparable record naming a datum by
// describing, from outside in, each container it is nested within
// (§3). Value objects: freely copied, compared by Comparable().
type PathSpec struct {
	typ    Type
	parent *PathSpec
	attrs  map[string]any
}

// Type returns the spec's type indicator.
func (p *PathSpec) Type() Type { return p.typ }

// Parent returns the spec's parent, or nil for a system-resolvable leaf.
func (p *PathSpec) Parent() *PathSpec { return p.parent }

// Attr returns the named attribute and whether it was set.
func (p *PathSpec) Attr(name string) (any, bool) {
	v, ok := p.attrs[name]
	return v, ok
}

// AttrString returns a string attribute, or "" if absent or not a string.
func (p *PathSpec) AttrString(name string) string {
	v, ok := p.attrs[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// AttrInt64 returns an int64 attribute, or 0 if absent or not an int64.
func (p *PathSpec) AttrInt64(name string) int64 {
	v, ok := p.attrs[name]
	if !ok {
		return 0
	}
	n, _ := v.(int64)
	return n
}

// AttrBytes returns a []byte attribute, or nil if absent or not bytes.
func (p *PathSpec) AttrBytes(name string) []byte {
	v, ok := p.attrs[name]
	if !ok {
		return nil
	}
	b, _ := v.([]byte)
	return b
}

// Attrs returns a defensive copy of the attribute map.
func (p *PathSpec) Attrs() map[string]any {
	out := make(map[string]any, len(p.attrs))
	for k, v := range p.attrs {
		out[k] = v
	}
	return out
}

// Depth walks parents and reports the number of hops to the root leaf.
// Used by callers asserting the chain-acyclicity testable property (§8);
// construction itself guarantees acyclicity (see below), this is just a
// bound check helper.
func (p *PathSpec) Depth() int {
	n := 0
	for cur := p; cur.parent != nil; cur = cur.parent {
		n++
		if n > maxChainDepth {
			return n
		}
	}
	return n
}

// Equal reports whether p and other denote the same object: their
// comparable forms are byte-equal (§3 invariant).
func (p *PathSpec) Equal(other *PathSpec) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Comparable() == other.Comparable()
}

// Less orders two specs by comparable form, giving PathSpec a total
// order usable as a map/sort key alongside Comparable() itself.
func (p *PathSpec) Less(other *PathSpec) bool {
	return p.Comparable() < other.Comparable()
}

// maxChainDepth is a generous ceiling (no legitimate forensic chain
// nests this deep); Depth uses it only to short-circuit pathological
// callers, construction itself cannot produce a cycle since every
// PathSpec is built by wrapping an already-built, immutable parent.
const maxChainDepth = 64

// validator validates type-specific attributes and the parent-presence
// rule for one type indicator. Returns the attribute map the spec
// stores (the type's recognized attributes, values as given) or an
// error.
type validator func(parent *PathSpec, attrs map[string]any) (map[string]any, error)

var (
	registryMu sync.RWMutex
	registry   = map[Type]validator{}
)

func init() {
	registerBuiltinValidators()
}

// Register installs (or idempotently replaces, per §4.2) the validator
// for a type indicator. Exposed so callers can extend the closed type
// set's per-type rules without touching this package, mirroring
// fs.Register's replace-on-reregister semantics.
func Register(t Type, v validator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = v
}

// New constructs a PathSpec, validating required/optional attributes and
// the parent-presence rule for t (§4.1). Unknown types fail with
// ErrUnsupportedType.
func New(t Type, parent *PathSpec, attrs map[string]any) (*PathSpec, error) {
	registryMu.RLock()
	v, ok := registry[t]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("type %q: %w", t, dfvfserrors.ErrUnsupportedType)
	}

	if IsSystemResolvable(t) {
		if parent != nil {
			return nil, fmt.Errorf("%s must not have a parent: %w", t, dfvfserrors.ErrPathSpec)
		}
	} else if parent == nil {
		return nil, fmt.Errorf("%s requires a parent: %w", t, dfvfserrors.ErrPathSpec)
	}

	normalized, err := v(parent, attrs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", t, dfvfserrors.ErrPathSpec, err)
	}

	return &PathSpec{typ: t, parent: parent, attrs: normalized}, nil
}

// requireAttrs fails if any of names is absent from attrs.
func requireAttrs(attrs map[string]any, names ...string) error {
	for _, n := range names {
		if _, ok := attrs[n]; !ok {
			return fmt.Errorf("missing required attribute %q", n)
		}
	}
	return nil
}

// copyKnown copies only the attributes named in allowed, so an unknown
// attribute silently typo'd by a caller is dropped rather than smuggled
// through into the comparable form.
func copyKnown(attrs map[string]any, allowed ...string) map[string]any {
	out := make(map[string]any, len(attrs))
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}
	for k, v := range attrs {
		if allowedSet[k] {
			out[k] = v
		}
	}
	return out
}

// sortedKeys returns the attribute keys of m, sorted ASCII as required
// by the comparable-form spec (§6).
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
