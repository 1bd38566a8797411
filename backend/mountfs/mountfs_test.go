package mountfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/log2timeline/dfvfs-go/backend"
	"github.com/log2timeline/dfvfs-go/direntry"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

type fakeContext struct {
	mounts map[string]*pathspec.PathSpec
	fsys   direntry.FileSystem
	s      stream.Stream
	opened *pathspec.PathSpec
}

func (f *fakeContext) OpenParentStream(context.Context, *pathspec.PathSpec) (stream.Stream, error) {
	return nil, nil
}
func (f *fakeContext) OpenParentFileSystem(context.Context, *pathspec.PathSpec) (direntry.FileSystem, error) {
	return nil, nil
}
func (f *fakeContext) Credential(*pathspec.PathSpec, string) (string, bool) { return "", false }
func (f *fakeContext) MountLookup(identifier string) (*pathspec.PathSpec, bool) {
	t, ok := f.mounts[identifier]
	return t, ok
}
func (f *fakeContext) OpenFileSystem(_ context.Context, spec *pathspec.PathSpec) (direntry.FileSystem, error) {
	f.opened = spec
	return f.fsys, nil
}
func (f *fakeContext) OpenStream(_ context.Context, spec *pathspec.PathSpec) (stream.Stream, error) {
	f.opened = spec
	return f.s, nil
}

var _ backend.Context = (*fakeContext)(nil)

func TestNewFileSystemFollowsMountLookup(t *testing.T) {
	ctx := context.Background()
	target, err := pathspec.New(pathspec.OS, nil, map[string]any{pathspec.AttrLocation: "/tmp"})
	require.NoError(t, err)

	fc := &fakeContext{mounts: map[string]*pathspec.PathSpec{"disk1": target}}
	spec, err := pathspec.New(pathspec.MOUNT, nil, map[string]any{pathspec.AttrIdentifier: "disk1"})
	require.NoError(t, err)

	_, err = newFileSystem(ctx, spec, fc)
	require.NoError(t, err)
	assert.True(t, target.Equal(fc.opened))
}

func TestNewFileSystemUnknownIdentifier(t *testing.T) {
	ctx := context.Background()
	fc := &fakeContext{mounts: map[string]*pathspec.PathSpec{}}
	spec, err := pathspec.New(pathspec.MOUNT, nil, map[string]any{pathspec.AttrIdentifier: "missing"})
	require.NoError(t, err)

	_, err = newFileSystem(ctx, spec, fc)
	assert.Error(t, err)
}
