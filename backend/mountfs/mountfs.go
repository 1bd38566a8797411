// Package mountfs implements the MOUNT resolver helper (§4.3 "a mount
// table lets a caller register a friendly identifier for a path-spec
// chain, then reference it by name from other chains"), pure
// indirection through a named lookup with no local state of its own.
// Grounded on rclone's backend/alias's "rename an existing remote"
// pattern, generalized from "remote name string" to "resolver.Context's
// mount table lookup by identifier".
package mountfs

import (
	"context"
	"fmt"

	"github.com/log2timeline/dfvfs-go/backend"
	"github.com/log2timeline/dfvfs-go/dfvfserrors"
	"github.com/log2timeline/dfvfs-go/direntry"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

func init() {
	backend.RegisterResolverHelper(&backend.ResolverHelper{
		Type:          pathspec.MOUNT,
		NewFileObject: newFileObject,
		NewFileSystem: newFileSystem,
	})
}

func target(spec *pathspec.PathSpec, rc backend.Context) (*pathspec.PathSpec, error) {
	identifier := spec.AttrString(pathspec.AttrIdentifier)
	target, ok := rc.MountLookup(identifier)
	if !ok {
		return nil, fmt.Errorf("mount %q: %w", identifier, dfvfserrors.ErrNotFound)
	}
	return target, nil
}

func newFileObject(ctx context.Context, spec *pathspec.PathSpec, rc backend.Context) (stream.Stream, error) {
	t, err := target(spec, rc)
	if err != nil {
		return nil, err
	}
	return rc.OpenStream(ctx, t)
}

func newFileSystem(ctx context.Context, spec *pathspec.PathSpec, rc backend.Context) (direntry.FileSystem, error) {
	t, err := target(spec, rc)
	if err != nil {
		return nil, err
	}
	return rc.OpenFileSystem(ctx, t)
}
