package gzipfmt

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/log2timeline/dfvfs-go/direntry"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

type memStream struct {
	data []byte
	pos  int64
}

func (m *memStream) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}
func (m *memStream) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case stream.SeekStart:
		base = 0
	case stream.SeekCurrent:
		base = m.pos
	case stream.SeekEnd:
		base = int64(len(m.data))
	}
	m.pos = base + offset
	return m.pos, nil
}
func (m *memStream) Close() error         { return nil }
func (m *memStream) Offset() int64        { return m.pos }
func (m *memStream) Size() (int64, error) { return int64(len(m.data)), nil }

type fakeContext struct{ parent stream.Stream }

func (f *fakeContext) OpenParentStream(context.Context, *pathspec.PathSpec) (stream.Stream, error) {
	return f.parent, nil
}
func (f *fakeContext) OpenParentFileSystem(context.Context, *pathspec.PathSpec) (direntry.FileSystem, error) {
	return nil, nil
}
func (f *fakeContext) Credential(*pathspec.PathSpec, string) (string, bool) { return "", false }
func (f *fakeContext) MountLookup(string) (*pathspec.PathSpec, bool)        { return nil, false }
func (f *fakeContext) OpenFileSystem(context.Context, *pathspec.PathSpec) (direntry.FileSystem, error) {
	return nil, nil
}
func (f *fakeContext) OpenStream(context.Context, *pathspec.PathSpec) (stream.Stream, error) {
	return nil, nil
}

func parentSpec(t *testing.T) *pathspec.PathSpec {
	t.Helper()
	spec, err := pathspec.New(pathspec.OS, nil, map[string]any{pathspec.AttrLocation: "/image.bin"})
	require.NoError(t, err)
	return spec
}

func gzipMember(t *testing.T, s string) []byte {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func TestNewFileObjectSingleMember(t *testing.T) {
	ctx := context.Background()
	raw := gzipMember(t, "hello gzip")
	fc := &fakeContext{parent: &memStream{data: raw}}

	spec, err := pathspec.New(pathspec.GZIP, parentSpec(t), nil)
	require.NoError(t, err)

	s, err := newFileObject(ctx, spec, fc)
	require.NoError(t, err)
	defer s.Close()

	out := make([]byte, 64)
	n, err := s.Read(out)
	require.NoError(t, err)
	assert.Equal(t, "hello gzip", string(out[:n]))
}

func TestNewFileObjectMultistream(t *testing.T) {
	ctx := context.Background()
	raw := append(gzipMember(t, "first"), gzipMember(t, "second")...)
	fc := &fakeContext{parent: &memStream{data: raw}}

	spec, err := pathspec.New(pathspec.GZIP, parentSpec(t), nil)
	require.NoError(t, err)

	s, err := newFileObject(ctx, spec, fc)
	require.NoError(t, err)
	defer s.Close()

	out := make([]byte, 64)
	n, err := s.Read(out)
	require.NoError(t, err)
	assert.Equal(t, "firstsecond", string(out[:n]))

	gs, ok := s.(*gzipStream)
	require.True(t, ok)
	assert.Len(t, gs.members, 2)
	idx, ok := gs.MemberAt(6)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}
