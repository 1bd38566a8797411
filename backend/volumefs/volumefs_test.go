package volumefs

import (
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

type fakeContext struct {
	parent      stream.Stream
	credentials map[string]string
}

func (f *fakeContext) OpenParentStream(context.Context, *pathspec.PathSpec) (stream.Stream, error) {
	return f.parent, nil
}
func (f *fakeContext) OpenParentFileSystem(context.Context, *pathspec.PathSpec) (direntry.FileSystem, error) {
	return nil, nil
}
func (f *fakeContext) Credential(_ *pathspec.PathSpec, name string) (string, bool) {
	v, ok := f.credentials[name]
	return v, ok
}
func (f *fakeContext) MountLookup(string) (*pathspec.PathSpec, bool) { return nil, false }
func (f *fakeContext) OpenFileSystem(context.Context, *pathspec.PathSpec) (direntry.FileSystem, error) {
	return nil, nil
}
func (f *fakeContext) OpenStream(context.Context, *pathspec.PathSpec) (stream.Stream, error) {
	return nil, nil
}

func parentSpec(t *testing.T) *pathspec.PathSpec {
	t.Helper()
	spec, err := pathspec.New(pathspec.OS, nil, map[string]any{pathspec.AttrLocation: "/disk.raw"})
	require.NoError(t, err)
	return spec
}

func TestPassthroughImageRAW(t *testing.T) {
	ctx := context.Background()
	fc := &fakeContext{parent: &memStream{data: []byte("rawbytes")}}
	spec, err := pathspec.New(pathspec.RAW, parentSpec(t), map[string]any{})
	require.NoError(t, err)

	s, err := passthroughImage(ctx, spec, fc)
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "rawbytes", string(buf[:n]))
}

func TestDecodeImageUnregistered(t *testing.T) {
	ctx := context.Background()
	fc := &fakeContext{parent: &memStream{}}
	spec, err := pathspec.New(pathspec.QCOW, parentSpec(t), map[string]any{})
	require.NoError(t, err)

	_, err = decodeImage(pathspec.QCOW)(ctx, spec, fc)
	assert.Error(t, err)
}

type identityImageDecoder struct{}

func (identityImageDecoder) Decode(_ context.Context, parent stream.Stream) (stream.Stream, error) {
	return parent, nil
}

func TestDecodeImageRegistered(t *testing.T) {
	RegisterImageDecoder(pathspec.QCOW, identityImageDecoder{})
	t.Cleanup(func() { UnregisterImageDecoder(pathspec.QCOW) })

	ctx := context.Background()
	fc := &fakeContext{parent: &memStream{data: []byte("qcow-payload")}}
	spec, err := pathspec.New(pathspec.QCOW, parentSpec(t), map[string]any{})
	require.NoError(t, err)

	s, err := decodeImage(pathspec.QCOW)(ctx, spec, fc)
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "qcow-payload", string(buf[:n]))
}

func TestDecodeFileSystemUnregistered(t *testing.T) {
	ctx := context.Background()
	fc := &fakeContext{parent: &memStream{}}
	spec, err := pathspec.New(pathspec.EXT, parentSpec(t), map[string]any{pathspec.AttrLocation: "/"})
	require.NoError(t, err)

	_, err = decodeFileSystem(pathspec.EXT)(ctx, spec, fc)
	assert.Error(t, err)
}

func TestDecodeVolumeSystemEnumeratesVolumes(t *testing.T) {
	RegisterVolumeSystemDecoder(pathspec.GPT, staticVolumeDecoder{
		{Index: 1, Identifier: "EFI"},
		{Index: 2, Identifier: "root"},
	})
	t.Cleanup(func() { UnregisterVolumeSystemDecoder(pathspec.GPT) })

	ctx := context.Background()
	fc := &fakeContext{parent: &memStream{}}
	spec, err := pathspec.New(pathspec.GPT, parentSpec(t), map[string]any{pathspec.AttrVolumeIndex: int64(0)})
	require.NoError(t, err)

	fsys, err := decodeVolumeSystem(pathspec.GPT)(ctx, spec, fc)
	require.NoError(t, err)

	root, err := fsys.RootEntry(ctx)
	require.NoError(t, err)
	it, err := root.SubEntries(ctx)
	require.NoError(t, err)

	var names []string
	for it.Next() {
		names = append(names, it.Entry().Name())
	}
	assert.Equal(t, []string{"EFI", "root"}, names)
}

type staticVolumeDecoder []Volume

func (d staticVolumeDecoder) Volumes(context.Context, stream.Stream) ([]Volume, error) {
	out := make([]Volume, len(d))
	copy(out, d)
	return out, nil
}

type passwordCheckDecoder struct{ got string }

func (d *passwordCheckDecoder) Decode(_ context.Context, parent stream.Stream, credential string) (stream.Stream, error) {
	d.got = credential
	return parent, nil
}

func TestDecodeEncryptedContainerUsesExplicitAttr(t *testing.T) {
	d := &passwordCheckDecoder{}
	RegisterEncryptedContainerDecoder(pathspec.LUKSDE, d)
	t.Cleanup(func() { UnregisterEncryptedContainerDecoder(pathspec.LUKSDE) })

	ctx := context.Background()
	fc := &fakeContext{parent: &memStream{data: []byte("ciphertext")}}
	spec, err := pathspec.New(pathspec.LUKSDE, parentSpec(t), map[string]any{pathspec.AttrPassword: "hunter2"})
	require.NoError(t, err)

	_, err = decodeEncryptedContainer(pathspec.LUKSDE)(ctx, spec, fc)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", d.got)
}

func TestDecodeEncryptedContainerNoCredentialFails(t *testing.T) {
	RegisterEncryptedContainerDecoder(pathspec.LUKSDE, &passwordCheckDecoder{})
	t.Cleanup(func() { UnregisterEncryptedContainerDecoder(pathspec.LUKSDE) })

	ctx := context.Background()
	fc := &fakeContext{parent: &memStream{}}
	spec, err := pathspec.New(pathspec.LUKSDE, parentSpec(t), map[string]any{})
	require.NoError(t, err)

	_, err = decodeEncryptedContainer(pathspec.LUKSDE)(ctx, spec, fc)
	assert.Error(t, err)
}
