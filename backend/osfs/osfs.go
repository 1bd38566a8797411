// Package osfs is the OS resolver helper (§4.3 "OS specs open the host
// filesystem: regular files, devices, and directories"). Grounded on
// rclone's backend/local/local.go Fs/Object pair, trimmed to the
// read-only subset the spec needs (no Put/Mkdir/SetModTime/xattr-write —
// §1 Non-goals exclude writes) and generalized from "the Fs this process
// happens to be rooted at" to "whatever OS location a PathSpec names".
package osfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/log2timeline/dfvfs-go/backend"
	"github.com/log2timeline/dfvfs-go/dfvfserrors"
	"github.com/log2timeline/dfvfs-go/direntry"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

func init() {
	backend.RegisterResolverHelper(&backend.ResolverHelper{
		Type:          pathspec.OS,
		NewFileObject: newFileObject,
		NewFileSystem: newFileSystem,
	})
}

// FS is the host-filesystem back-end for a single OS PathSpec root.
type FS struct {
	root string
}

func newFileSystem(_ context.Context, spec *pathspec.PathSpec, _ backend.Context) (direntry.FileSystem, error) {
	loc := spec.AttrString(pathspec.AttrLocation)
	if loc == "" {
		return nil, fmt.Errorf("OS spec missing location: %w", dfvfserrors.ErrPathSpec)
	}
	return &FS{root: loc}, nil
}

func newFileObject(_ context.Context, spec *pathspec.PathSpec, _ backend.Context) (stream.Stream, error) {
	loc := spec.AttrString(pathspec.AttrLocation)
	if loc == "" {
		return nil, fmt.Errorf("OS spec missing location: %w", dfvfserrors.ErrPathSpec)
	}
	return openFileStream(loc)
}

// PathSeparator returns the host path separator.
func (f *FS) PathSeparator() string { return string(os.PathSeparator) }

// RootEntry opens the configured root location.
func (f *FS) RootEntry(ctx context.Context) (direntry.FileEntry, error) {
	return f.EntryBySpec(ctx, nil)
}

// EntryBySpec resolves by location; spec may be nil to mean the FS root.
func (f *FS) EntryBySpec(_ context.Context, spec *pathspec.PathSpec) (direntry.FileEntry, error) {
	loc := f.root
	if spec != nil {
		if l := spec.AttrString(pathspec.AttrLocation); l != "" {
			loc = l
		}
	}
	info, err := os.Lstat(loc)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", loc, dfvfserrors.ErrNotFound)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%s: %w", loc, dfvfserrors.ErrAccessDenied)
		}
		return nil, fmt.Errorf("%s: %w", loc, dfvfserrors.ErrBackEndFailure)
	}
	return &Entry{fs: f, path: loc, info: info}, nil
}

// ExistsBySpec reports whether the location names an existing node.
func (f *FS) ExistsBySpec(ctx context.Context, spec *pathspec.PathSpec) (bool, error) {
	_, err := f.EntryBySpec(ctx, spec)
	if err != nil {
		if dfvfserrIsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func dfvfserrIsNotFound(err error) bool {
	return errors.Is(err, dfvfserrors.ErrNotFound)
}

// JoinPath joins segments with the host separator.
func (f *FS) JoinPath(segments ...string) string { return filepath.Join(segments...) }

// SplitPath splits location into its host-separated segments.
func (f *FS) SplitPath(location string) []string {
	clean := filepath.Clean(location)
	var parts []string
	for clean != "." && clean != string(filepath.Separator) {
		dir, file := filepath.Split(clean)
		parts = append([]string{file}, parts...)
		clean = filepath.Clean(dir)
		if dir == "" {
			break
		}
	}
	return parts
}

// Close releases host resources. The OS back-end holds none at the
// FileSystem level (each file handle is owned by its own Stream).
func (f *FS) Close() error { return nil }

// Entry is a host filesystem node.
type Entry struct {
	fs   *FS
	path string
	info os.FileInfo
}

// Name returns the entry's base name.
func (e *Entry) Name() string { return filepath.Base(e.path) }

// PathSpec returns an OS PathSpec naming this entry.
func (e *Entry) PathSpec() *pathspec.PathSpec {
	spec, _ := pathspec.New(pathspec.OS, nil, map[string]any{pathspec.AttrLocation: e.path})
	return spec
}

// Parent returns the entry one directory up, or ErrNotFound at the root.
func (e *Entry) Parent() (direntry.FileEntry, error) {
	parentPath := filepath.Dir(e.path)
	if parentPath == e.path {
		return nil, fmt.Errorf("%s: %w", e.path, dfvfserrors.ErrNotFound)
	}
	info, err := os.Lstat(parentPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", parentPath, dfvfserrors.ErrBackEndFailure)
	}
	return &Entry{fs: e.fs, path: parentPath, info: info}, nil
}

// SubEntries lists the directory's children, lazily and restartably:
// every call to SubEntries opens a fresh directory handle (§9 design
// note — no shared cursor across iterations).
func (e *Entry) SubEntries(_ context.Context) (direntry.EntryIterator, error) {
	if !e.info.IsDir() {
		return nil, fmt.Errorf("%s: %w", e.path, dfvfserrors.ErrInvalidData)
	}
	f, err := os.Open(e.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.path, dfvfserrors.ErrBackEndFailure)
	}
	names, err := f.Readdirnames(-1)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.path, dfvfserrors.ErrBackEndFailure)
	}
	sort.Strings(names)
	return &dirIterator{fs: e.fs, dir: e.path, names: names}, nil
}

type dirIterator struct {
	fs    *FS
	dir   string
	names []string
	i     int
	cur   direntry.FileEntry
	err   error
}

func (it *dirIterator) Next() bool {
	for it.i < len(it.names) {
		name := it.names[it.i]
		it.i++
		full := filepath.Join(it.dir, name)
		info, err := os.Lstat(full)
		if err != nil {
			continue // vanished between readdir and lstat; skip rather than fail the whole listing
		}
		it.cur = &Entry{fs: it.fs, path: full, info: info}
		return true
	}
	return false
}

func (it *dirIterator) Entry() direntry.FileEntry { return it.cur }
func (it *dirIterator) Err() error                { return it.err }
func (it *dirIterator) Close() error              { return nil }

// DataStreams returns just the default stream; the host filesystem
// exposes no named alternates (that is an NTFS-ADS/HFS-resource-fork
// concept, see backend/volumefs).
func (e *Entry) DataStreams() []direntry.DataStream {
	return []direntry.DataStream{{Name: ""}}
}

// Attributes returns this entry's extended attributes, if the platform
// and entry support them.
func (e *Entry) Attributes() []direntry.Attribute {
	return readXattrs(e.path)
}

// Stat returns the entry's metadata record.
func (e *Entry) Stat() (direntry.Stat, error) {
	return statFromInfo(e.path, e.info)
}

// LinkTarget returns the raw symlink target.
func (e *Entry) LinkTarget() (string, error) {
	if e.info.Mode()&os.ModeSymlink == 0 {
		return "", fmt.Errorf("%s: not a symlink: %w", e.path, dfvfserrors.ErrInvalidData)
	}
	target, err := os.Readlink(e.path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", e.path, dfvfserrors.ErrBackEndFailure)
	}
	return target, nil
}

// GetFileObject opens dataStreamName's bytes. The OS back-end only has a
// default stream.
func (e *Entry) GetFileObject(_ context.Context, dataStreamName string) (stream.Stream, error) {
	if dataStreamName != "" {
		return nil, fmt.Errorf("%s: unknown data stream %q: %w", e.path, dataStreamName, dfvfserrors.ErrNotFound)
	}
	return openFileStream(e.path)
}

// fileStream is the Stream implementation backing OS file objects.
type fileStream struct {
	f    *os.File
	size int64
}

func openFileStream(path string) (stream.Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, dfvfserrors.ErrNotFound)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%s: %w", path, dfvfserrors.ErrAccessDenied)
		}
		return nil, fmt.Errorf("%s: %w", path, dfvfserrors.ErrBackEndFailure)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, dfvfserrors.ErrBackEndFailure)
	}
	return &fileStream{f: f, size: info.Size()}, nil
}

func (s *fileStream) Read(p []byte) (int, error) { return s.f.Read(p) }

func (s *fileStream) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

func (s *fileStream) Close() error { return s.f.Close() }

func (s *fileStream) Offset() int64 {
	off, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	return off
}

func (s *fileStream) Size() (int64, error) { return s.size, nil }

func (s *fileStream) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

var _ stream.ReaderAtStream = (*fileStream)(nil)
var _ direntry.FileEntry = (*Entry)(nil)
var _ direntry.FileSystem = (*FS)(nil)
