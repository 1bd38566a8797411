// Package direntry defines the polymorphic file-entry / file-system
// model (§3, §4.5): a hierarchy traversal contract independent of the
// underlying format, in the shape of rclone's fs.Fs/fs.Object/fs.DirEntry
// trio generalized from "remote storage object" to "node inside any
// layered container".
package direntry

import (
	"context"
	"time"

	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

// EntryType enumerates the kinds of node a Stat can describe (§3).
type EntryType int

// Entry kinds.
const (
	TypeFile EntryType = iota
	TypeDirectory
	TypeLink
	TypeDevice
	TypeSocket
	TypePipe
	TypeWhiteout
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeLink:
		return "link"
	case TypeDevice:
		return "device"
	case TypeSocket:
		return "socket"
	case TypePipe:
		return "pipe"
	case TypeWhiteout:
		return "whiteout"
	default:
		return "unknown"
	}
}

// Stat carries the metadata record for a file entry (§3). Times are
// surfaced as time.Time, which on every supported platform preserves
// nanosecond precision and a location (time zone); callers that need a
// guaranteed lossless round-trip for a format whose on-disk time lacks a
// zone should treat the zone as UTC by convention, matching how
// backend/local's metadata_*.go files normalize per-OS stat_t times.
type Stat struct {
	Type EntryType
	Size int64

	AccessTime     time.Time
	ModificationTime time.Time
	ChangeTime     time.Time
	CreationTime   time.Time
	BackupTime     time.Time

	Owner uint64
	Group uint64
	Mode  uint32

	// Identifier is the format's native node id: inode, MFT entry, CNID...
	Identifier string
	NumberOfLinks uint64

	// DeviceNumber is set only when Type is TypeDevice.
	DeviceNumber uint64
}

// Attribute is one named, typed metadata attribute exposed by a file
// entry (extended attributes, NTFS attributes) (§4.5).
type Attribute struct {
	Name string
	Type string
	Open func(ctx context.Context) (stream.Stream, error)
}

// DataStream describes one addressable data stream attached to a file
// entry: the empty-string name is the default/unnamed stream, any other
// name is an alternate (NTFS ADS, HFS resource fork) (§3).
type DataStream struct {
	Name string
}

// FileEntry is the polymorphic per-node contract (§3).
type FileEntry interface {
	Name() string
	PathSpec() *pathspec.PathSpec
	Parent() (FileEntry, error)

	// SubEntries returns a restartable lazy sequence: each call produces
	// a fresh iterator over the current directory state, matching the
	// "lazy sequences ... each iteration re-opens" design note (§9).
	SubEntries(ctx context.Context) (EntryIterator, error)

	DataStreams() []DataStream
	Attributes() []Attribute

	Stat() (Stat, error)

	// LinkTarget returns the raw link target for TypeLink entries.
	LinkTarget() (string, error)

	// GetFileObject opens the named data stream (empty string = default).
	GetFileObject(ctx context.Context, dataStreamName string) (stream.Stream, error)
}

// EntryIterator is a pull-based, explicitly closeable iterator over a
// directory's children (§9 "coroutine idioms ... pull-based iterators
// with explicit close"), replacing the source's generator functions.
type EntryIterator interface {
	// Next advances to the next entry. Returns false at the end or on
	// error; callers must check Err after a false return.
	Next() bool
	Entry() FileEntry
	Err() error
	Close() error
}

// FileSystem is the polymorphic per-container contract (§3). Its
// lifetime owns back-end state (an open volume decoder, an open archive
// reader); callers must Close it when done.
type FileSystem interface {
	PathSeparator() string

	// RootEntry never fails for a successfully opened file system (§4.5).
	RootEntry(ctx context.Context) (FileEntry, error)

	// EntryBySpec resolves spec to an entry using fast-path identifiers
	// (inode/MFT entry/CNID) when present, else by location (§4.5).
	EntryBySpec(ctx context.Context, spec *pathspec.PathSpec) (FileEntry, error)

	ExistsBySpec(ctx context.Context, spec *pathspec.PathSpec) (bool, error)

	JoinPath(segments ...string) string
	SplitPath(location string) []string

	Close() error
}
