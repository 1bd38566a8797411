// Package backend is the pluggable back-end registry (§4.2): two
// parallel registries keyed on type indicator, one for resolver helpers
// (new_file_object / new_file_system factories) and one for analyzer
// helpers (format specifications used for signature scanning).
//
// Grounded on rclone's fs.RegInfo/fs.Register pattern (every
// backend/*/*.go file's init() block), generalized from "one Fs
// implementation per backend name" registered once per process, to "one
// resolver/analyzer pair per type indicator", replacing on re-registration
// exactly like fs.Register does.
package backend

import (
	"context"
	"sync"

	"github.com/log2timeline/dfvfs-go/direntry"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

// Context is the slice of resolver.Context a back-end needs: opening a
// parent node, fetching credentials, and resolving mount identifiers.
// Defined here (not in package resolver) so back-ends don't import the
// resolver package, which itself imports backend to dispatch to helpers.
type Context interface {
	// OpenParentStream opens spec's parent as a stream, as required by
	// back-ends whose NewFileObject needs a byte-addressable parent.
	OpenParentStream(ctx context.Context, spec *pathspec.PathSpec) (stream.Stream, error)

	// OpenParentFileSystem opens spec's parent as an (already-cached,
	// idempotent-within-context) file system.
	OpenParentFileSystem(ctx context.Context, spec *pathspec.PathSpec) (direntry.FileSystem, error)

	// Credential resolves a credential for spec, following the explicit
	// attribute -> key-chain -> callback order (§4.3). The caller (a
	// back-end) should only call this after checking the spec's own
	// attribute itself.
	Credential(spec *pathspec.PathSpec, name string) (string, bool)

	// MountLookup resolves a MOUNT identifier to its target PathSpec.
	MountLookup(identifier string) (*pathspec.PathSpec, bool)

	// OpenFileSystem resolves spec itself (not its parent) to a file
	// system, recursively. Used by back-ends that redirect to an
	// unrelated chain entirely (MOUNT) rather than wrapping their own
	// parent (ENCRYPTED_STREAM, COMPRESSED_STREAM, ...).
	OpenFileSystem(ctx context.Context, spec *pathspec.PathSpec) (direntry.FileSystem, error)

	// OpenStream resolves spec itself (not its parent) to a stream,
	// recursively.
	OpenStream(ctx context.Context, spec *pathspec.PathSpec) (stream.Stream, error)
}

// NewFileObjectFunc constructs a Stream for spec, given its already
// (recursively) resolved parent via rc.
type NewFileObjectFunc func(ctx context.Context, spec *pathspec.PathSpec, rc Context) (stream.Stream, error)

// NewFileSystemFunc constructs a FileSystem for spec.
type NewFileSystemFunc func(ctx context.Context, spec *pathspec.PathSpec, rc Context) (direntry.FileSystem, error)

// ResolverHelper is the per-type resolver back-end contract (§4.2).
// A helper may set only NewFileObject, only NewFileSystem, or both.
type ResolverHelper struct {
	Type          pathspec.Type
	NewFileObject NewFileObjectFunc
	NewFileSystem NewFileSystemFunc
}

// FormatCategory is the priority bucket an analyzer helper's format
// belongs to (§4.6). Ambiguous matches are ordered file-system >
// volume-system > storage-media > archive > compressed > encoded >
// encrypted.
type FormatCategory int

// Categories, in the priority order the analyzer sorts by (§4.6).
const (
	CategoryFileSystem FormatCategory = iota
	CategoryVolumeSystem
	CategoryStorageMedia
	CategoryArchive
	CategoryCompressed
	CategoryEncoded
	CategoryEncrypted
)

// DefaultWindow is the minimal-prefix read size the analyzer uses for a
// category before evaluating structural checks (§4.6).
func (c FormatCategory) DefaultWindow() int64 {
	switch c {
	case CategoryStorageMedia:
		return 64 * 1024
	case CategoryArchive:
		return 4 * 1024
	case CategoryCompressed:
		return 32
	default:
		return 4 * 1024
	}
}

// ByteSignature is a literal byte pattern the analyzer looks for either
// at a fixed Offset, or anywhere within [Offset, Offset+SearchWindow)
// when SearchWindow is positive (§4.2).
type ByteSignature struct {
	Offset       int64
	SearchWindow int64
	Pattern      []byte
}

// StructuralCheck is an optional post-check run over the already-opened
// parent stream once a signature matches, to rule out false positives
// (§4.2).
type StructuralCheck func(ctx context.Context, s stream.Stream) (bool, error)

// FormatSpec is a registered analyzer helper's declaration of what its
// type indicator looks like on the wire (§4.2).
type FormatSpec struct {
	Type       pathspec.Type
	Categories []FormatCategory
	Signatures []ByteSignature
	Check      StructuralCheck
}

var (
	mu              sync.RWMutex
	resolverHelpers = map[pathspec.Type]*ResolverHelper{}
	analyzerHelpers = map[pathspec.Type]*FormatSpec{}
)

// RegisterResolverHelper installs h, replacing any helper previously
// registered for h.Type (idempotent re-registration, §4.2).
func RegisterResolverHelper(h *ResolverHelper) {
	mu.Lock()
	defer mu.Unlock()
	resolverHelpers[h.Type] = h
}

// RegisterAnalyzerHelper installs f, replacing any spec previously
// registered for f.Type.
func RegisterAnalyzerHelper(f *FormatSpec) {
	mu.Lock()
	defer mu.Unlock()
	analyzerHelpers[f.Type] = f
}

// LookupResolverHelper returns the helper registered for t, if any.
func LookupResolverHelper(t pathspec.Type) (*ResolverHelper, bool) {
	mu.RLock()
	defer mu.RUnlock()
	h, ok := resolverHelpers[t]
	return h, ok
}

// LookupAnalyzerHelper returns the format spec registered for t, if any.
func LookupAnalyzerHelper(t pathspec.Type) (*FormatSpec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := analyzerHelpers[t]
	return f, ok
}

// AllAnalyzerHelpers returns a snapshot of every registered format spec,
// for the analyzer to consolidate into one multi-pattern scanner.
func AllAnalyzerHelpers() []*FormatSpec {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]*FormatSpec, 0, len(analyzerHelpers))
	for _, f := range analyzerHelpers {
		out = append(out, f)
	}
	return out
}
