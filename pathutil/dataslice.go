// Package pathutil implements §4.9's ambient path helpers: the Windows
// path resolver, the FindSpec searcher, and the data-slice view. None
// of these has a PathSpec-chain or byte-stream-contract shape of its
// own, so they live outside resolver/direntry as small pieces a caller
// wires in on top of an already-resolved stream or file system.
package pathutil

import (
	"fmt"
	"io"

	"github.com/log2timeline/dfvfs-go/dfvfserrors"
	"github.com/log2timeline/dfvfs-go/stream"
)

// DataSlice wraps any already-open stream to expose a fixed [a, b)
// byte window with its own independent [0, b-a) offset space (§4.9),
// the same windowing arithmetic as the DATA_RANGE resolver helper
// (backend/datarange/datarange.go's windowStream) but usable directly
// against a Stream a caller already holds, without going through a
// PathSpec at all — e.g. a carved region a FindSpec search located but
// that never warrants its own addressable PathSpec.
func DataSlice(parent stream.Stream, a, b int64) (stream.Stream, error) {
	if a < 0 || b < a {
		return nil, fmt.Errorf("data slice [%d,%d): %w", a, b, dfvfserrors.ErrInvalidData)
	}
	parentSize, err := parent.Size()
	if err != nil {
		return nil, err
	}
	if b > parentSize {
		return nil, fmt.Errorf("data slice [%d,%d) exceeds parent size %d: %w", a, b, parentSize, dfvfserrors.ErrInvalidData)
	}
	if _, err := parent.Seek(a, stream.SeekStart); err != nil {
		return nil, err
	}
	return &sliceStream{parent: parent, base: a, size: b - a}, nil
}

type sliceStream struct {
	parent stream.Stream
	base   int64
	size   int64
	pos    int64
}

func (s *sliceStream) Read(p []byte) (int, error) {
	if s.pos >= s.size {
		return 0, io.EOF
	}
	remain := s.size - s.pos
	if int64(len(p)) > remain {
		p = p[:remain]
	}
	n, err := s.parent.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *sliceStream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case stream.SeekStart:
		target = offset
	case stream.SeekCurrent:
		target = s.pos + offset
	case stream.SeekEnd:
		target = s.size + offset
	default:
		return 0, fmt.Errorf("data slice: invalid whence %d", whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("data slice: seek out of range: %w", dfvfserrors.ErrInvalidData)
	}
	if _, err := s.parent.Seek(s.base+target, stream.SeekStart); err != nil {
		return 0, err
	}
	s.pos = target
	return s.pos, nil
}

func (s *sliceStream) Close() error         { return s.parent.Close() }
func (s *sliceStream) Offset() int64        { return s.pos }
func (s *sliceStream) Size() (int64, error) { return s.size, nil }

var _ stream.Stream = (*sliceStream)(nil)
