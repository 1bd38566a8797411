package archivefs

import (
	"archive/tar"
	"archive/zip"
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

func buildTar(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "dir/file.txt", Mode: 0o644, Size: 11}))
	_, err := tw.Write([]byte("hello tar!!"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestNewFileSystemTar(t *testing.T) {
	ctx := context.Background()
	raw := buildTar(t)
	fc := &fakeContext{parent: &memStream{data: raw}}

	spec, err := pathspec.New(pathspec.TAR, parentSpec(t), map[string]any{pathspec.AttrLocation: "/"})
	require.NoError(t, err)

	fsys, err := newFileSystemFunc(readTar)(ctx, spec, fc)
	require.NoError(t, err)

	entry, err := fsys.EntryBySpec(ctx, mustSpec(t, spec, "/dir/file.txt"))
	require.NoError(t, err)
	s, err := entry.GetFileObject(ctx, "")
	require.NoError(t, err)
	buf := make([]byte, 64)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello tar!!", string(buf[:n]))
}

// TestTarEntryReadToEOF exercises the stream with repeated Read calls
// past the end of its data, the way io.ReadAll/io.Copy do, rather than
// a single oversized-buffer Read: bufferStream.Read must report io.EOF
// once exhausted instead of looping at (0, nil).
func TestTarEntryReadToEOF(t *testing.T) {
	ctx := context.Background()
	raw := buildTar(t)
	fc := &fakeContext{parent: &memStream{data: raw}}

	spec, err := pathspec.New(pathspec.TAR, parentSpec(t), map[string]any{pathspec.AttrLocation: "/"})
	require.NoError(t, err)

	fsys, err := newFileSystemFunc(readTar)(ctx, spec, fc)
	require.NoError(t, err)

	entry, err := fsys.EntryBySpec(ctx, mustSpec(t, spec, "/dir/file.txt"))
	require.NoError(t, err)
	s, err := entry.GetFileObject(ctx, "")
	require.NoError(t, err)

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "hello tar!!", string(data))
}

func mustSpec(t *testing.T, parent *pathspec.PathSpec, location string) *pathspec.PathSpec {
	t.Helper()
	spec, err := pathspec.New(parent.Type(), parent.Parent(), map[string]any{pathspec.AttrLocation: location})
	require.NoError(t, err)
	return spec
}

func buildZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("a/b.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello zip"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNewFileSystemZip(t *testing.T) {
	ctx := context.Background()
	raw := buildZip(t)
	fc := &fakeContext{parent: &memStream{data: raw}}

	spec, err := pathspec.New(pathspec.ZIP, parentSpec(t), map[string]any{pathspec.AttrLocation: "/"})
	require.NoError(t, err)

	fsys, err := newFileSystemFunc(readZip)(ctx, spec, fc)
	require.NoError(t, err)

	root, err := fsys.RootEntry(ctx)
	require.NoError(t, err)
	it, err := root.SubEntries(ctx)
	require.NoError(t, err)
	require.True(t, it.Next())
	assert.Equal(t, "a", it.Entry().Name())
}

func cpioEntry(name string, mode uint32, data []byte) []byte {
	var buf bytes.Buffer
	nameBytes := append([]byte(name), 0)
	fmtHex := func(v int) string { return padHex(v) }
	buf.WriteString("070701")
	buf.WriteString(fmtHex(0))                 // ino
	buf.WriteString(fmtHex(int(mode)))          // mode
	buf.WriteString(fmtHex(0))                 // uid
	buf.WriteString(fmtHex(0))                 // gid
	buf.WriteString(fmtHex(1))                 // nlink
	buf.WriteString(fmtHex(0))                 // mtime
	buf.WriteString(fmtHex(len(data)))          // filesize
	buf.WriteString(fmtHex(0))                 // devmajor
	buf.WriteString(fmtHex(0))                 // devminor
	buf.WriteString(fmtHex(0))                 // rdevmajor
	buf.WriteString(fmtHex(0))                 // rdevminor
	buf.WriteString(fmtHex(len(nameBytes)))    // namesize
	buf.WriteString(fmtHex(0))                 // check
	buf.Write(nameBytes)
	padTo4(&buf)
	buf.Write(data)
	padTo4(&buf)
	return buf.Bytes()
}

func padHex(v int) string {
	s := make([]byte, 8)
	const hexdigits = "0123456789ABCDEF"
	for i := 7; i >= 0; i-- {
		s[i] = hexdigits[v&0xf]
		v >>= 4
	}
	return string(s)
}

func padTo4(buf *bytes.Buffer) {
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}

func TestNewFileSystemCPIO(t *testing.T) {
	ctx := context.Background()
	var raw bytes.Buffer
	raw.Write(cpioEntry("file.txt", 0o100644, []byte("hello cpio")))
	raw.Write(cpioEntry("TRAILER!!!", 0, nil))

	fc := &fakeContext{parent: &memStream{data: raw.Bytes()}}
	spec, err := pathspec.New(pathspec.CPIO, parentSpec(t), map[string]any{pathspec.AttrLocation: "/"})
	require.NoError(t, err)

	fsys, err := newFileSystemFunc(readCPIO)(ctx, spec, fc)
	require.NoError(t, err)

	entry, err := fsys.EntryBySpec(ctx, mustSpec(t, spec, "/file.txt"))
	require.NoError(t, err)
	s, err := entry.GetFileObject(ctx, "")
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello cpio", string(buf[:n]))
}
