// Package datarange implements the DATA_RANGE resolver helper: a
// byte-range window onto a parent stream (§4.1 "DATA_RANGE carves a
// contiguous [offset, offset+size) window out of its parent"), used to
// address an embedded volume or an unallocated-space carve without a
// container format of its own.
//
// Grounded on rclone's backend/chunker's offset-into-composite-stream
// arithmetic, narrowed from "reassemble N fixed-size chunk objects" down
// to "present one fixed window of an already-open parent stream".
package datarange

import (
	"context"
	"fmt"
	"io"

	"github.com/log2timeline/dfvfs-go/backend"
	"github.com/log2timeline/dfvfs-go/dfvfserrors"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

func init() {
	backend.RegisterResolverHelper(&backend.ResolverHelper{
		Type:          pathspec.DATA_RANGE,
		NewFileObject: newFileObject,
	})
}

func newFileObject(ctx context.Context, spec *pathspec.PathSpec, rc backend.Context) (stream.Stream, error) {
	offset := spec.AttrInt64(pathspec.AttrRangeOffset)
	size := spec.AttrInt64(pathspec.AttrRangeSize)
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("data range offset=%d size=%d: %w", offset, size, dfvfserrors.ErrInvalidData)
	}

	parent, err := rc.OpenParentStream(ctx, spec)
	if err != nil {
		return nil, err
	}

	// size is authoritative regardless of the parent's actual length
	// (§4.4): a range extending past the parent is legal, and reads
	// simply come up short once windowStream.Read hits the parent's
	// own EOF.
	if _, err := parent.Seek(offset, stream.SeekStart); err != nil {
		parent.Close()
		return nil, err
	}

	return &windowStream{parent: parent, base: offset, size: size}, nil
}

// windowStream exposes [base, base+size) of parent as its own [0, size).
type windowStream struct {
	parent stream.Stream
	base   int64
	size   int64
	pos    int64
}

func (w *windowStream) Read(p []byte) (int, error) {
	if w.pos >= w.size {
		return 0, io.EOF
	}
	remain := w.size - w.pos
	if int64(len(p)) > remain {
		p = p[:remain]
	}
	n, err := w.parent.Read(p)
	w.pos += int64(n)
	return n, err
}

func (w *windowStream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case stream.SeekStart:
		target = offset
	case stream.SeekCurrent:
		target = w.pos + offset
	case stream.SeekEnd:
		target = w.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("seek out of range: %w", dfvfserrors.ErrInvalidData)
	}
	if _, err := w.parent.Seek(w.base+target, stream.SeekStart); err != nil {
		return 0, err
	}
	w.pos = target
	return w.pos, nil
}

func (w *windowStream) Close() error         { return w.parent.Close() }
func (w *windowStream) Offset() int64        { return w.pos }
func (w *windowStream) Size() (int64, error) { return w.size, nil }

var _ stream.Stream = (*windowStream)(nil)
