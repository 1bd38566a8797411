// Package stream defines the byte-stream contract every transform and
// format back-end satisfies (§3, §4.4): open/close/read/seek/offset/size,
// in the shape of rclone's ReadSeekCloser (backend/crypt/cipher.go)
// generalized from "decrypt a remote object" to "any composable
// transform over a parent stream".
package stream

import "io"

// Whence values for Seek, matching io.Seeker's contract (§3: "seek past
// size is permitted, reading past size returns 0 bytes").
const (
	SeekStart   = io.SeekStart
	SeekCurrent = io.SeekCurrent
	SeekEnd     = io.SeekEnd
)

// Stream is the polymorphic byte-addressable contract (§3). Size is
// known once the stream is open (backend/compressed decodes its whole
// stream at open time); Read returns up to len(p) bytes, 0 at EOF; Seek
// past Size is legal and does not extend Size (§8 read-bounds property).
//
// Single-threaded per instance (§5): a Stream must be used from one
// goroutine at a time; distinct Stream instances over the same parent
// are independent and may be used concurrently.
type Stream interface {
	io.Reader
	io.Seeker
	io.Closer

	// Offset returns the current read position.
	Offset() int64

	// Size returns the stream's total size. Transforms whose size is not
	// stored (compressed streams) are decoded in full when opened, so Size
	// reports the decoded length without reading further (§4.4).
	Size() (int64, error)
}

// ReaderAtStream is satisfied by streams that can additionally serve
// random-access reads without disturbing Offset, e.g. for use by
// io.ReaderAt-based consumers (archive readers, io.SectionReader-style
// slicing) without holding a lock around Seek+Read pairs.
type ReaderAtStream interface {
	Stream
	io.ReaderAt
}
