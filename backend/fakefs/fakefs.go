// Package fakefs is the FAKE resolver helper (§4.9 "fake file-system
// builder constructs an in-memory hierarchy for tests") and, doubling as
// its own back-end, the FAKE type's resolver contract (§3 FAKE is a
// system-resolvable root). Grounded on rclone's backend/memory/memory.go
// in-memory Fs/Object pair, replacing "process-wide named buckets of
// bytes" with "a named, pre-built in-memory PathSpec tree".
package fakefs

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/log2timeline/dfvfs-go/backend"
	"github.com/log2timeline/dfvfs-go/dfvfserrors"
	"github.com/log2timeline/dfvfs-go/direntry"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

func init() {
	backend.RegisterResolverHelper(&backend.ResolverHelper{
		Type:          pathspec.FAKE,
		NewFileObject: newFileObject,
		NewFileSystem: newFileSystem,
	})
}

// node is one entry in a built fake tree.
type node struct {
	name     string
	isDir    bool
	data     []byte
	modTime  time.Time
	children []*node // insertion order; SubEntries yields them sorted by name
}

// Builder constructs an in-memory hierarchy, then Register()s it under a
// location so a FAKE PathSpec naming that location resolves to it.
type Builder struct {
	root *node
}

// NewBuilder starts a new fake tree.
func NewBuilder() *Builder {
	return &Builder{root: &node{name: "", isDir: true}}
}

// AddFile inserts a file at the given slash-separated path with data.
func (b *Builder) AddFile(path string, data []byte) *Builder {
	segs := splitPath(path)
	dir := b.ensureDir(segs[:len(segs)-1])
	name := segs[len(segs)-1]
	dir.children = append(dir.children, &node{name: name, data: data, modTime: time.Now()})
	return b
}

// AddDir inserts an (possibly empty) directory at the given path.
func (b *Builder) AddDir(path string) *Builder {
	b.ensureDir(splitPath(path))
	return b
}

func (b *Builder) ensureDir(segs []string) *node {
	cur := b.root
	for _, s := range segs {
		if s == "" {
			continue
		}
		var next *node
		for _, c := range cur.children {
			if c.isDir && c.name == s {
				next = c
				break
			}
		}
		if next == nil {
			next = &node{name: s, isDir: true}
			cur.children = append(cur.children, next)
		}
		cur = next
	}
	return cur
}

// Build finalizes the tree into an openable FileSystem.
func (b *Builder) Build() *FS {
	return &FS{root: b.root}
}

func splitPath(path string) []string {
	var out []string
	cur := ""
	for _, r := range path {
		if r == '/' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*FS{}
)

// Register makes fsys resolvable as the FAKE tree named by location.
func Register(location string, fsys *FS) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[location] = fsys
}

// Unregister removes a previously registered tree.
func Unregister(location string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, location)
}

func lookup(location string) (*FS, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fsys, ok := registry[location]
	return fsys, ok
}

func newFileSystem(_ context.Context, spec *pathspec.PathSpec, _ backend.Context) (direntry.FileSystem, error) {
	loc := spec.AttrString(pathspec.AttrLocation)
	fsys, ok := lookup(loc)
	if !ok {
		return nil, fmt.Errorf("fake tree %q: %w", loc, dfvfserrors.ErrNotFound)
	}
	return fsys, nil
}

func newFileObject(_ context.Context, spec *pathspec.PathSpec, _ backend.Context) (stream.Stream, error) {
	loc := spec.AttrString(pathspec.AttrLocation)
	fsys, ok := lookup(loc)
	if !ok {
		return nil, fmt.Errorf("fake tree %q: %w", loc, dfvfserrors.ErrNotFound)
	}
	n, err := fsys.find("/")
	if err != nil {
		return nil, err
	}
	if n.isDir {
		return nil, fmt.Errorf("%s: %w", loc, dfvfserrors.ErrInvalidData)
	}
	return newNodeStream(n), nil
}

// FS is a fully in-memory file system built by Builder.
type FS struct {
	root *node
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
	if err != nil {
		return false, nil
	}
	return true, nil
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

// Entry is a node inside a fake tree.
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
	spec, _ := pathspec.New(pathspec.FAKE, nil, map[string]any{pathspec.AttrLocation: e.path})
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
	return newNodeStream(e.n), nil
}

type nodeStream struct {
	data []byte
	pos  int64
}

func newNodeStream(n *node) stream.Stream {
	return &nodeStream{data: n.data}
}

func (s *nodeStream) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *nodeStream) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case stream.SeekStart:
		base = 0
	case stream.SeekCurrent:
		base = s.pos
	case stream.SeekEnd:
		base = int64(len(s.data))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position")
	}
	s.pos = pos
	return pos, nil
}

func (s *nodeStream) Close() error         { return nil }
func (s *nodeStream) Offset() int64        { return s.pos }
func (s *nodeStream) Size() (int64, error) { return int64(len(s.data)), nil }

var (
	_ direntry.FileEntry   = (*Entry)(nil)
	_ direntry.FileSystem  = (*FS)(nil)
	_ stream.Stream        = (*nodeStream)(nil)
)
