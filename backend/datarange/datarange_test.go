package datarange

import (
	"bytes"
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

func TestNewFileObjectWindow(t *testing.T) {
	ctx := context.Background()
	parent := &memStream{data: []byte("0123456789")}
	fc := &fakeContext{parent: parent}

	spec, err := pathspec.New(pathspec.DATA_RANGE, parentSpec(t), map[string]any{
		pathspec.AttrRangeOffset: int64(3),
		pathspec.AttrRangeSize:   int64(4),
	})
	require.NoError(t, err)

	s, err := newFileObject(ctx, spec, fc)
	require.NoError(t, err)
	defer s.Close()

	buf := make([]byte, 4)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "3456", string(buf[:n]))

	size, err := s.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 4, size)

	pos, err := s.Seek(0, stream.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 4, pos)
}

// TestNewFileObjectExceedsParentClips covers the case where a declared
// range extends past the parent's actual length (§4.4: size is the
// declared range_size regardless of parent length; reads clip against
// whatever the parent actually has).
func TestNewFileObjectExceedsParentClips(t *testing.T) {
	ctx := context.Background()
	fc := &fakeContext{parent: &memStream{data: bytes.Repeat([]byte{0xAA}, 5)}}

	spec, err := pathspec.New(pathspec.DATA_RANGE, parentSpec(t), map[string]any{
		pathspec.AttrRangeOffset: int64(3),
		pathspec.AttrRangeSize:   int64(10),
	})
	require.NoError(t, err)

	s, err := newFileObject(ctx, spec, fc)
	require.NoError(t, err)
	defer s.Close()

	size, err := s.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xAA}, data)
}

func TestNewFileObjectNegativeRejected(t *testing.T) {
	ctx := context.Background()
	fc := &fakeContext{parent: &memStream{data: bytes.Repeat([]byte{0}, 5)}}

	spec, err := pathspec.New(pathspec.DATA_RANGE, parentSpec(t), map[string]any{
		pathspec.AttrRangeOffset: int64(-1),
		pathspec.AttrRangeSize:   int64(10),
	})
	require.NoError(t, err)

	_, err = newFileObject(ctx, spec, fc)
	assert.Error(t, err)
}
