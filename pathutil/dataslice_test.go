package pathutil

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestDataSliceWindow(t *testing.T) {
	parent := &memStream{data: []byte("0123456789")}
	s, err := DataSlice(parent, 3, 7)
	require.NoError(t, err)
	defer s.Close()

	buf := make([]byte, 4)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "3456", string(buf[:n]))

	size, err := s.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 4, size)
}

func TestDataSliceExceedsParent(t *testing.T) {
	parent := &memStream{data: []byte("01234")}
	_, err := DataSlice(parent, 3, 10)
	assert.Error(t, err)
}

func TestDataSliceSeek(t *testing.T) {
	parent := &memStream{data: []byte("abcdefghij")}
	s, err := DataSlice(parent, 2, 8)
	require.NoError(t, err)
	defer s.Close()

	pos, err := s.Seek(0, stream.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 6, pos)

	_, err = s.Seek(-1, stream.SeekStart)
	assert.Error(t, err)
}
