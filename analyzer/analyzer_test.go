package analyzer

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/log2timeline/dfvfs-go/backend/archivefs"
	_ "github.com/log2timeline/dfvfs-go/backend/gzipfmt"
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

var _ stream.Stream = (*memStream)(nil)

func TestAnalyzeZip(t *testing.T) {
	data := append([]byte{'P', 'K', 0x03, 0x04}, make([]byte, 128)...)
	matches, err := Analyze(context.Background(), &memStream{data: data})
	require.NoError(t, err)
	assert.Contains(t, matches, pathspec.ZIP)
}

func TestAnalyzeGzipMagic(t *testing.T) {
	data := append([]byte{0x1f, 0x8b, 0x08, 0x00}, make([]byte, 64)...)
	matches, err := Analyze(context.Background(), &memStream{data: data})
	require.NoError(t, err)
	assert.Contains(t, matches, pathspec.GZIP)
}

func TestAnalyzeNoMatch(t *testing.T) {
	data := []byte("just some plain text, nothing recognizable here")
	matches, err := Analyze(context.Background(), &memStream{data: data})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestAnalyzeOrdersByCategoryThenOffset(t *testing.T) {
	// tar's signature sits at offset 257; zip's sits at offset 0. Even
	// though tar's literal match is later in the buffer, both are
	// CategoryArchive so offset breaks the tie and zip must sort first.
	data := make([]byte, 257+5)
	copy(data[0:], []byte{'P', 'K', 0x03, 0x04})
	copy(data[257:], []byte("ustar"))

	matches, err := Matches(context.Background(), &memStream{data: data})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, pathspec.ZIP, matches[0].Type)
	assert.Equal(t, pathspec.TAR, matches[1].Type)
}
