// Package volumefs is the uniform back-end contract for the storage-media
// image, native file-system, volume-system, and whole-volume encrypted
// container type indicators spec §1 places out of scope for a real
// implementation ("the real decoders for EWF/QCOW/... images, APFS/EXT/...
// file systems, GPT/LVM/... volume systems, and BDE/FVDE/LUKSDE
// containers are consumed through a small uniform back-end contract, not
// reimplemented here").
//
// Grounded on rclone's backend/union/upstream.go pattern of wrapping an
// arbitrary, separately-configured backend behind one fixed interface
// (upstream.Fs wraps whatever fs.Fs its remote string names, exposing
// only fs.Fs's own methods outward) and on the deleted archive/base.go's
// minimal lazily-opened wrapper shape (documented in DESIGN.md): each
// decoder kind here is a small interface a real library would implement,
// looked up from a type-keyed registry exactly like backend/fakefs's
// location-keyed registry. RAW and SMRAW are the two exceptions: "raw"
// means no container format at all, so those two get a real passthrough
// implementation instead of a registry lookup.
package volumefs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/log2timeline/dfvfs-go/backend"
	"github.com/log2timeline/dfvfs-go/dfvfserrors"
	"github.com/log2timeline/dfvfs-go/direntry"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

func init() {
	for _, t := range []pathspec.Type{pathspec.RAW, pathspec.SMRAW} {
		backend.RegisterResolverHelper(&backend.ResolverHelper{Type: t, NewFileObject: passthroughImage})
	}
	for _, t := range []pathspec.Type{pathspec.EWF, pathspec.QCOW, pathspec.VHDI, pathspec.VMDK, pathspec.MODI, pathspec.PHDI} {
		backend.RegisterResolverHelper(&backend.ResolverHelper{Type: t, NewFileObject: decodeImage(t)})
	}
	for _, t := range []pathspec.Type{pathspec.APFS, pathspec.EXT, pathspec.HFS, pathspec.XFS, pathspec.FAT, pathspec.TSK, pathspec.NTFS} {
		backend.RegisterResolverHelper(&backend.ResolverHelper{Type: t, NewFileSystem: decodeFileSystem(t)})
	}
	for _, t := range []pathspec.Type{pathspec.APFS_CONTAINER, pathspec.LVM, pathspec.GPT, pathspec.APM, pathspec.MBR, pathspec.TSK_PARTITION} {
		backend.RegisterResolverHelper(&backend.ResolverHelper{Type: t, NewFileSystem: decodeVolumeSystem(t)})
	}
	for _, t := range []pathspec.Type{pathspec.BDE, pathspec.FVDE, pathspec.LUKSDE} {
		backend.RegisterResolverHelper(&backend.ResolverHelper{Type: t, NewFileObject: decodeEncryptedContainer(t)})
	}
}

// ---- storage-media images (EWF/QCOW/VHDI/VMDK/MODI/PHDI) ----

// ImageDecoder turns a compressed/sparse disk-image container's raw
// bytes into a flat, linearly addressable stream of the medium it
// contains. A real binding (libewf, qcow2, vhdx, vmdk, ...) implements
// this per format and registers itself with RegisterImageDecoder.
type ImageDecoder interface {
	Decode(ctx context.Context, parent stream.Stream) (stream.Stream, error)
}

var (
	imageMu       sync.RWMutex
	imageDecoders = map[pathspec.Type]ImageDecoder{}
)

// RegisterImageDecoder plugs a real decoder in for t, one of
// EWF/QCOW/VHDI/VMDK/MODI/PHDI.
func RegisterImageDecoder(t pathspec.Type, d ImageDecoder) {
	imageMu.Lock()
	defer imageMu.Unlock()
	imageDecoders[t] = d
}

// UnregisterImageDecoder removes t's decoder, if any.
func UnregisterImageDecoder(t pathspec.Type) {
	imageMu.Lock()
	defer imageMu.Unlock()
	delete(imageDecoders, t)
}

func decodeImage(t pathspec.Type) backend.NewFileObjectFunc {
	return func(ctx context.Context, spec *pathspec.PathSpec, rc backend.Context) (stream.Stream, error) {
		imageMu.RLock()
		d, ok := imageDecoders[t]
		imageMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("volumefs: no image decoder registered for %s: %w", t, dfvfserrors.ErrUnsupportedType)
		}
		parent, err := rc.OpenParentStream(ctx, spec)
		if err != nil {
			return nil, err
		}
		defer parent.Close()
		s, err := d.Decode(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dfvfserrors.ErrBackEndFailure, err)
		}
		return s, nil
	}
}

// passthroughImage implements RAW and SMRAW: both mean "no container
// format", so the parent's own bytes already are the medium.
func passthroughImage(ctx context.Context, spec *pathspec.PathSpec, rc backend.Context) (stream.Stream, error) {
	return rc.OpenParentStream(ctx, spec)
}

// ---- native file systems (APFS/EXT/HFS/XFS/FAT/TSK/NTFS) ----

// FileSystemDecoder turns a medium's raw bytes into a navigable
// direntry.FileSystem. A real binding parses the on-disk structures for
// its one format and registers itself with RegisterFileSystemDecoder.
type FileSystemDecoder interface {
	Decode(ctx context.Context, parent stream.Stream) (direntry.FileSystem, error)
}

var (
	fsMu       sync.RWMutex
	fsDecoders = map[pathspec.Type]FileSystemDecoder{}
)

// RegisterFileSystemDecoder plugs a real decoder in for t, one of
// APFS/EXT/HFS/XFS/FAT/TSK/NTFS.
func RegisterFileSystemDecoder(t pathspec.Type, d FileSystemDecoder) {
	fsMu.Lock()
	defer fsMu.Unlock()
	fsDecoders[t] = d
}

// UnregisterFileSystemDecoder removes t's decoder, if any.
func UnregisterFileSystemDecoder(t pathspec.Type) {
	fsMu.Lock()
	defer fsMu.Unlock()
	delete(fsDecoders, t)
}

func decodeFileSystem(t pathspec.Type) backend.NewFileSystemFunc {
	return func(ctx context.Context, spec *pathspec.PathSpec, rc backend.Context) (direntry.FileSystem, error) {
		fsMu.RLock()
		d, ok := fsDecoders[t]
		fsMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("volumefs: no file system decoder registered for %s: %w", t, dfvfserrors.ErrUnsupportedType)
		}
		parent, err := rc.OpenParentStream(ctx, spec)
		if err != nil {
			return nil, err
		}
		defer parent.Close()
		fsys, err := d.Decode(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dfvfserrors.ErrBackEndFailure, err)
		}
		return fsys, nil
	}
}

// ---- volume systems (APFS_CONTAINER/LVM/GPT/APM/MBR/TSK_PARTITION) ----

// Volume is one partition/volume a VolumeSystemDecoder found.
type Volume struct {
	Index       int
	Identifier  string
	StartOffset int64
}

// VolumeSystemDecoder enumerates the volumes/partitions inside a
// partitioned-container's raw bytes. Mirrors vshadowfs.Catalog's shape
// (store enumeration), generalized from "shadow store" to "partition".
type VolumeSystemDecoder interface {
	Volumes(ctx context.Context, parent stream.Stream) ([]Volume, error)
}

var (
	volMu       sync.RWMutex
	volDecoders = map[pathspec.Type]VolumeSystemDecoder{}
)

// RegisterVolumeSystemDecoder plugs a real decoder in for t, one of
// APFS_CONTAINER/LVM/GPT/APM/MBR/TSK_PARTITION.
func RegisterVolumeSystemDecoder(t pathspec.Type, d VolumeSystemDecoder) {
	volMu.Lock()
	defer volMu.Unlock()
	volDecoders[t] = d
}

// UnregisterVolumeSystemDecoder removes t's decoder, if any.
func UnregisterVolumeSystemDecoder(t pathspec.Type) {
	volMu.Lock()
	defer volMu.Unlock()
	delete(volDecoders, t)
}

func decodeVolumeSystem(t pathspec.Type) backend.NewFileSystemFunc {
	return func(ctx context.Context, spec *pathspec.PathSpec, rc backend.Context) (direntry.FileSystem, error) {
		volMu.RLock()
		d, ok := volDecoders[t]
		volMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("volumefs: no volume system decoder registered for %s: %w", t, dfvfserrors.ErrUnsupportedType)
		}
		parent, err := rc.OpenParentStream(ctx, spec)
		if err != nil {
			return nil, err
		}
		defer parent.Close()
		volumes, err := d.Volumes(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dfvfserrors.ErrBackEndFailure, err)
		}
		sort.Slice(volumes, func(i, j int) bool { return volumes[i].Index < volumes[j].Index })
		return &volumeFS{specType: t, parent: spec.Parent(), volumes: volumes}, nil
	}
}

type volumeFS struct {
	specType pathspec.Type
	parent   *pathspec.PathSpec
	volumes  []Volume
}

func (f *volumeFS) PathSeparator() string { return "/" }

func (f *volumeFS) RootEntry(context.Context) (direntry.FileEntry, error) {
	return &volumeRootEntry{fs: f}, nil
}

func (f *volumeFS) EntryBySpec(_ context.Context, spec *pathspec.PathSpec) (direntry.FileEntry, error) {
	idx := int(spec.AttrInt64(pathspec.AttrVolumeIndex))
	for _, v := range f.volumes {
		if v.Index == idx {
			return &volumeEntry{fs: f, volume: v}, nil
		}
	}
	return nil, fmt.Errorf("volumefs: volume %d: %w", idx, dfvfserrors.ErrNotFound)
}

func (f *volumeFS) ExistsBySpec(ctx context.Context, spec *pathspec.PathSpec) (bool, error) {
	_, err := f.EntryBySpec(ctx, spec)
	return err == nil, nil
}

func (f *volumeFS) JoinPath(segments ...string) string {
	out := ""
	for _, s := range segments {
		if s != "" {
			out += "/" + s
		}
	}
	if out == "" {
		return "/"
	}
	return out
}

func (f *volumeFS) SplitPath(location string) []string {
	if location == "" || location == "/" {
		return nil
	}
	return []string{location}
}

func (f *volumeFS) Close() error { return nil }

type volumeRootEntry struct{ fs *volumeFS }

func (e *volumeRootEntry) Name() string { return "/" }

func (e *volumeRootEntry) PathSpec() *pathspec.PathSpec {
	spec, _ := pathspec.New(e.fs.specType, e.fs.parent, map[string]any{pathspec.AttrVolumeIndex: int64(0)})
	return spec
}

func (e *volumeRootEntry) Parent() (direntry.FileEntry, error) {
	return nil, fmt.Errorf("/: %w", dfvfserrors.ErrNotFound)
}

func (e *volumeRootEntry) SubEntries(context.Context) (direntry.EntryIterator, error) {
	return &volumeIterator{fs: e.fs, volumes: e.fs.volumes}, nil
}

func (e *volumeRootEntry) DataStreams() []direntry.DataStream { return nil }
func (e *volumeRootEntry) Attributes() []direntry.Attribute   { return nil }

func (e *volumeRootEntry) Stat() (direntry.Stat, error) {
	return direntry.Stat{Type: direntry.TypeDirectory}, nil
}

func (e *volumeRootEntry) LinkTarget() (string, error) {
	return "", fmt.Errorf("/: not a symlink: %w", dfvfserrors.ErrInvalidData)
}

func (e *volumeRootEntry) GetFileObject(context.Context, string) (stream.Stream, error) {
	return nil, fmt.Errorf("/: %w", dfvfserrors.ErrInvalidData)
}

type volumeIterator struct {
	fs      *volumeFS
	volumes []Volume
	i       int
	cur     direntry.FileEntry
}

func (it *volumeIterator) Next() bool {
	if it.i >= len(it.volumes) {
		return false
	}
	it.cur = &volumeEntry{fs: it.fs, volume: it.volumes[it.i]}
	it.i++
	return true
}

func (it *volumeIterator) Entry() direntry.FileEntry { return it.cur }
func (it *volumeIterator) Err() error                { return nil }
func (it *volumeIterator) Close() error              { return nil }

// volumeEntry is not byte-addressable: resolve a further PathSpec
// (typically a file system type) with this entry's PathSpec() as
// parent, the same as a vshadowfs store entry.
type volumeEntry struct {
	fs     *volumeFS
	volume Volume
}

func (e *volumeEntry) Name() string {
	if e.volume.Identifier != "" {
		return e.volume.Identifier
	}
	return fmt.Sprintf("volume%d", e.volume.Index)
}

func (e *volumeEntry) PathSpec() *pathspec.PathSpec {
	spec, _ := pathspec.New(e.fs.specType, e.fs.parent, map[string]any{
		pathspec.AttrVolumeIndex: int64(e.volume.Index),
		pathspec.AttrStartOffset: e.volume.StartOffset,
	})
	return spec
}

func (e *volumeEntry) Parent() (direntry.FileEntry, error) {
	return &volumeRootEntry{fs: e.fs}, nil
}

func (e *volumeEntry) SubEntries(context.Context) (direntry.EntryIterator, error) {
	return nil, fmt.Errorf("%s: %w", e.Name(), dfvfserrors.ErrInvalidData)
}

func (e *volumeEntry) DataStreams() []direntry.DataStream { return nil }
func (e *volumeEntry) Attributes() []direntry.Attribute   { return nil }

func (e *volumeEntry) Stat() (direntry.Stat, error) {
	return direntry.Stat{Type: direntry.TypeDevice}, nil
}

func (e *volumeEntry) LinkTarget() (string, error) {
	return "", fmt.Errorf("%s: not a symlink: %w", e.Name(), dfvfserrors.ErrInvalidData)
}

func (e *volumeEntry) GetFileObject(context.Context, string) (stream.Stream, error) {
	return nil, fmt.Errorf("%s: a volume-system node is not a data stream: %w", e.Name(), dfvfserrors.ErrInvalidData)
}

// ---- whole-volume encrypted containers (BDE/FVDE/LUKSDE) ----

// EncryptedContainerDecoder decrypts a whole-volume container given its
// raw bytes and a resolved credential. A real binding (BitLocker,
// FileVault2, LUKS) implements this and registers with
// RegisterEncryptedContainerDecoder.
type EncryptedContainerDecoder interface {
	Decode(ctx context.Context, parent stream.Stream, credential string) (stream.Stream, error)
}

var (
	containerMu       sync.RWMutex
	containerDecoders = map[pathspec.Type]EncryptedContainerDecoder{}
)

// RegisterEncryptedContainerDecoder plugs a real decoder in for t, one
// of BDE/FVDE/LUKSDE.
func RegisterEncryptedContainerDecoder(t pathspec.Type, d EncryptedContainerDecoder) {
	containerMu.Lock()
	defer containerMu.Unlock()
	containerDecoders[t] = d
}

// UnregisterEncryptedContainerDecoder removes t's decoder, if any.
func UnregisterEncryptedContainerDecoder(t pathspec.Type) {
	containerMu.Lock()
	defer containerMu.Unlock()
	delete(containerDecoders, t)
}

// credentialAttrs is, per type, the ordered attribute names §6 lists as
// this container's explicit-credential slots (checked before falling
// back to the key-chain/callback per §4.3).
var credentialAttrs = map[pathspec.Type][]string{
	pathspec.BDE:    {pathspec.AttrPassword, pathspec.AttrRecoveryPassword, pathspec.AttrStartupKey},
	pathspec.FVDE:   {pathspec.AttrPassword, pathspec.AttrRecoveryPassword, pathspec.AttrEncryptedRootPlist},
	pathspec.LUKSDE: {pathspec.AttrPassword},
}

func decodeEncryptedContainer(t pathspec.Type) backend.NewFileObjectFunc {
	return func(ctx context.Context, spec *pathspec.PathSpec, rc backend.Context) (stream.Stream, error) {
		containerMu.RLock()
		d, ok := containerDecoders[t]
		containerMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("volumefs: no container decoder registered for %s: %w", t, dfvfserrors.ErrUnsupportedType)
		}

		credential, err := resolveCredential(spec, rc, t)
		if err != nil {
			return nil, err
		}

		parent, err := rc.OpenParentStream(ctx, spec)
		if err != nil {
			return nil, err
		}
		defer parent.Close()

		s, err := d.Decode(ctx, parent, credential)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dfvfserrors.ErrBackEndFailure, err)
		}
		return s, nil
	}
}

// resolveCredential follows §4.3's explicit attribute -> key-chain ->
// callback order, the same sequence backend/encrypted's resolveKey uses.
func resolveCredential(spec *pathspec.PathSpec, rc backend.Context, t pathspec.Type) (string, error) {
	for _, name := range credentialAttrs[t] {
		if v := spec.AttrString(name); v != "" {
			return v, nil
		}
	}
	for _, name := range credentialAttrs[t] {
		if v, ok := rc.Credential(spec, name); ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s: %w", t, dfvfserrors.ErrEncryptedVolumeLocked)
}

var (
	_ direntry.FileSystem = (*volumeFS)(nil)
	_ direntry.FileEntry  = (*volumeRootEntry)(nil)
	_ direntry.FileEntry  = (*volumeEntry)(nil)
)
