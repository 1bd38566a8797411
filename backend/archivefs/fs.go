package archivefs

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/log2timeline/dfvfs-go/dfvfserrors"
	"github.com/log2timeline/dfvfs-go/direntry"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

// FS is a decoded archive exposed through the polymorphic file-system
// contract (§3), addressed by the location attribute relative to its
// root.
type FS struct {
	root     *node
	specType pathspec.Type
	parent   *pathspec.PathSpec
}

func (f *FS) PathSeparator() string { return "/" }

func (f *FS) RootEntry(_ context.Context) (direntry.FileEntry, error) {
	return &Entry{fs: f, path: "/", n: f.root}, nil
}

func (f *FS) find(path string) (*node, error) {
	segs := splitPath(path)
	cur := f.root
	for _, s := range segs {
		var next *node
		for _, c := range cur.children {
			if c.name == s {
				next = c
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%s: %w", path, dfvfserrors.ErrNotFound)
		}
		cur = next
	}
	return cur, nil
}

func (f *FS) EntryBySpec(_ context.Context, spec *pathspec.PathSpec) (direntry.FileEntry, error) {
	loc := spec.AttrString(pathspec.AttrLocation)
	if loc == "" {
		loc = "/"
	}
	n, err := f.find(loc)
	if err != nil {
		return nil, err
	}
	return &Entry{fs: f, path: loc, n: n}, nil
}

func (f *FS) ExistsBySpec(ctx context.Context, spec *pathspec.PathSpec) (bool, error) {
	_, err := f.EntryBySpec(ctx, spec)
	return err == nil, nil
}

func (f *FS) JoinPath(segments ...string) string {
	out := ""
	for _, s := range segments {
		if s == "" {
			continue
		}
		out += "/" + s
	}
	if out == "" {
		return "/"
	}
	return out
}

func (f *FS) SplitPath(location string) []string { return splitPath(location) }

func (f *FS) Close() error { return nil }

// Entry is a node inside a decoded archive.
type Entry struct {
	fs   *FS
	path string
	n    *node
}

func (e *Entry) Name() string {
	if e.n.name == "" {
		return "/"
	}
	return e.n.name
}

func (e *Entry) PathSpec() *pathspec.PathSpec {
	spec, _ := pathspec.New(e.fs.specType, e.fs.parent, map[string]any{pathspec.AttrLocation: e.path})
	return spec
}

func (e *Entry) Parent() (direntry.FileEntry, error) {
	segs := splitPath(e.path)
	if len(segs) == 0 {
		return nil, fmt.Errorf("/: %w", dfvfserrors.ErrNotFound)
	}
	parentPath := "/" + joinSlash(segs[:len(segs)-1])
	n, err := e.fs.find(parentPath)
	if err != nil {
		return nil, err
	}
	return &Entry{fs: e.fs, path: parentPath, n: n}, nil
}

func joinSlash(segs []string) string {
	out := ""
	for i, s := range segs {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}

func (e *Entry) SubEntries(_ context.Context) (direntry.EntryIterator, error) {
	if !e.n.isDir {
		return nil, fmt.Errorf("%s: %w", e.path, dfvfserrors.ErrInvalidData)
	}
	children := make([]*node, len(e.n.children))
	copy(children, e.n.children)
	sort.Slice(children, func(i, j int) bool { return children[i].name < children[j].name })
	return &iterator{fs: e.fs, dir: e.path, children: children}, nil
}

type iterator struct {
	fs       *FS
	dir      string
	children []*node
	i        int
	cur      direntry.FileEntry
}

func (it *iterator) Next() bool {
	if it.i >= len(it.children) {
		return false
	}
	n := it.children[it.i]
	it.i++
	path := it.dir
	if path == "/" {
		path = "/" + n.name
	} else {
		path = path + "/" + n.name
	}
	it.cur = &Entry{fs: it.fs, path: path, n: n}
	return true
}

func (it *iterator) Entry() direntry.FileEntry { return it.cur }
func (it *iterator) Err() error                { return nil }
func (it *iterator) Close() error              { return nil }

func (e *Entry) DataStreams() []direntry.DataStream {
	return []direntry.DataStream{{Name: ""}}
}

func (e *Entry) Attributes() []direntry.Attribute { return nil }

func (e *Entry) Stat() (direntry.Stat, error) {
	typ := direntry.TypeFile
	if e.n.isDir {
		typ = direntry.TypeDirectory
	}
	return direntry.Stat{
		Type:              typ,
		Size:              int64(len(e.n.data)),
		ModificationTime: e.n.modTime,
	}, nil
}

func (e *Entry) LinkTarget() (string, error) {
	return "", fmt.Errorf("%s: not a symlink: %w", e.path, dfvfserrors.ErrInvalidData)
}

func (e *Entry) GetFileObject(_ context.Context, dataStreamName string) (stream.Stream, error) {
	if dataStreamName != "" {
		return nil, fmt.Errorf("%s: unknown data stream %q: %w", e.path, dataStreamName, dfvfserrors.ErrNotFound)
	}
	if e.n.isDir {
		return nil, fmt.Errorf("%s: %w", e.path, dfvfserrors.ErrInvalidData)
	}
	return &bufferStream{data: e.n.data}, nil
}

type bufferStream struct {
	data []byte
	pos  int64
}

func (b *bufferStream) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *bufferStream) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case stream.SeekStart:
		base = 0
	case stream.SeekCurrent:
		base = b.pos
	case stream.SeekEnd:
		base = int64(len(b.data))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position")
	}
	b.pos = pos
	return pos, nil
}

func (b *bufferStream) Close() error         { return nil }
func (b *bufferStream) Offset() int64        { return b.pos }
func (b *bufferStream) Size() (int64, error) { return int64(len(b.data)), nil }

var (
	_ direntry.FileEntry  = (*Entry)(nil)
	_ direntry.FileSystem = (*FS)(nil)
	_ stream.Stream       = (*bufferStream)(nil)
)
