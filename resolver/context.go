package resolver

import (
	"context"

	"github.com/log2timeline/dfvfs-go/direntry"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

// resolverContext implements backend.Context against a Resolver: it
// opens a spec's parent (or the spec itself, for MOUNT-style
// redirection) by recursing back into the Resolver, and answers
// credential/mount queries from the Resolver's key chain and mount
// table. One is constructed per OpenStream/OpenFileSystem call,
// including the nested calls made for a spec's parents; back-ends never
// see the Resolver type itself (§4.2's import-cycle avoidance: backend
// doesn't import resolver).
type resolverContext struct {
	r *Resolver
}

func (c *resolverContext) OpenParentStream(ctx context.Context, spec *pathspec.PathSpec) (stream.Stream, error) {
	parent := spec.Parent()
	if parent == nil {
		return nil, errNoParent(spec)
	}
	return c.r.OpenStream(ctx, parent)
}

func (c *resolverContext) OpenParentFileSystem(ctx context.Context, spec *pathspec.PathSpec) (direntry.FileSystem, error) {
	parent := spec.Parent()
	if parent == nil {
		return nil, errNoParent(spec)
	}
	return c.r.OpenFileSystem(ctx, parent)
}

func (c *resolverContext) OpenFileSystem(ctx context.Context, spec *pathspec.PathSpec) (direntry.FileSystem, error) {
	return c.r.OpenFileSystem(ctx, spec)
}

func (c *resolverContext) OpenStream(ctx context.Context, spec *pathspec.PathSpec) (stream.Stream, error) {
	return c.r.OpenStream(ctx, spec)
}

func (c *resolverContext) Credential(spec *pathspec.PathSpec, name string) (string, bool) {
	return c.r.credential(spec, name)
}

func (c *resolverContext) MountLookup(identifier string) (*pathspec.PathSpec, bool) {
	return c.r.mounts.Lookup(identifier)
}
