package scanner

import (
	"context"

	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/resolver"
)

// volumeSystemTypes are the FileSystem-producing types whose root entry
// enumerates selectable children (partitions/volumes) rather than being
// a mountable file system itself (§4.8).
var volumeSystemTypes = map[pathspec.Type]bool{
	pathspec.APFS_CONTAINER: true,
	pathspec.LVM:            true,
	pathspec.GPT:            true,
	pathspec.APM:            true,
	pathspec.MBR:            true,
	pathspec.TSK_PARTITION:  true,
}

// encryptedContainerTypes are resolved as a Stream: a locked one
// surfaces EncryptedVolumeLocked from OpenStream, which the volume
// scanner retries after seeding a credential.
var encryptedContainerTypes = map[pathspec.Type]bool{
	pathspec.BDE:    true,
	pathspec.FVDE:   true,
	pathspec.LUKSDE: true,
}

// credentialNames is the ordered set of credential attribute names each
// encrypted container type accepts (§6); password is tried first for
// all three since it is the common case.
var credentialNames = map[pathspec.Type][]string{
	pathspec.BDE:    {pathspec.AttrPassword, pathspec.AttrRecoveryPassword, pathspec.AttrStartupKey},
	pathspec.FVDE:   {pathspec.AttrPassword, pathspec.AttrRecoveryPassword, pathspec.AttrEncryptedRootPlist},
	pathspec.LUKSDE: {pathspec.AttrPassword},
}

// VolumeScanner builds on SourceScanner (§4.8): it drives the
// partition/volume/snapshot/credential decisions a plain source scan
// leaves open, returning the PathSpecs of every selected file system's
// root.
type VolumeScanner struct {
	r        *resolver.Resolver
	source   *SourceScanner
	opts     Options
	mediator Mediator
}

// NewVolumeScanner builds a volume scanner over r with the given
// defaults and interactive fallback. A nil mediator behaves like
// NoMediator.
func NewVolumeScanner(r *resolver.Resolver, opts Options, mediator Mediator) *VolumeScanner {
	if mediator == nil {
		mediator = NoMediator{}
	}
	return &VolumeScanner{r: r, source: NewSourceScanner(r), opts: opts, mediator: mediator}
}

// Scan runs the source scan over root, then resolves every
// partition/volume/snapshot/credential decision it finds, returning the
// PathSpecs of every selected file system's root entry (§4.8).
func (v *VolumeScanner) Scan(ctx context.Context, root *pathspec.PathSpec) ([]*pathspec.PathSpec, error) {
	tree, err := v.source.Scan(ctx, root)
	if err != nil {
		return nil, err
	}
	var out []*pathspec.PathSpec
	v.collect(ctx, tree, &out)
	return out, nil
}

func (v *VolumeScanner) collect(ctx context.Context, node *Node, out *[]*pathspec.PathSpec) {
	switch node.Status {
	case StatusContinuing:
		for _, c := range node.Children {
			v.collect(ctx, c, out)
			if v.opts.ScanMode == ScanModeOnePass && len(*out) > 0 {
				return
			}
		}

	case StatusFileSystem:
		t := node.Spec.Type()
		if volumeSystemTypes[t] || t == pathspec.VSHADOW {
			v.expandVolumeSystem(ctx, node, out)
			return
		}
		*out = append(*out, node.Spec)

	case StatusLocked:
		v.unlock(ctx, node, out)
	}
}

// expandVolumeSystem enumerates a volume-system or VSHADOW node's
// sub-entries (each a partition/volume/store candidate), applies
// Options' selection (falling back to the mediator for anything
// Options doesn't already decide), and re-scans every selected
// candidate as a fresh source-scan branch.
func (v *VolumeScanner) expandVolumeSystem(ctx context.Context, node *Node, out *[]*pathspec.PathSpec) {
	fsys, err := v.r.OpenFileSystem(ctx, node.Spec)
	if err != nil {
		return
	}
	defer fsys.Close()

	rootEntry, err := fsys.RootEntry(ctx)
	if err != nil {
		return
	}
	it, err := rootEntry.SubEntries(ctx)
	if err != nil {
		return
	}
	defer it.Close()

	isSnapshot := node.Spec.Type() == pathspec.VSHADOW
	index := 0
	for it.Next() {
		candidate := it.Entry().PathSpec()
		selected := v.selectCandidate(candidate, index, isSnapshot)
		index++
		if !selected {
			continue
		}
		child := v.source.scanNode(ctx, candidate, 0)
		if child.Status == StatusFileSystem && child.Spec.Type() == node.Spec.Type() {
			// One partition/store of this same volume system: it is a
			// selected root itself, not another system to expand.
			*out = append(*out, child.Spec)
			continue
		}
		v.collect(ctx, child, out)
	}
}

func (v *VolumeScanner) selectCandidate(spec *pathspec.PathSpec, index int, isSnapshot bool) bool {
	if isSnapshot {
		if v.opts.Snapshots.decided() {
			return v.opts.Snapshots.includes(index)
		}
		return v.mediator.ConfirmSnapshot(spec, index)
	}
	sel := v.opts.Partitions
	if !sel.decided() {
		sel = v.opts.Volumes
	}
	if sel.decided() {
		return sel.includes(index)
	}
	return v.mediator.ConfirmPartition(spec, index)
}

// unlock retries a Locked node once a credential is found, first from
// Options.Credentials, then from the mediator, seeding it into the
// resolver's key chain before re-scanning — the volume scanner supplying
// the key-chain step of §4.3's acquisition order, after the back-end
// itself already tried the spec's own attribute.
func (v *VolumeScanner) unlock(ctx context.Context, node *Node, out *[]*pathspec.PathSpec) {
	t := node.Spec.Type()
	if !encryptedContainerTypes[t] {
		return
	}
	for _, name := range credentialNames[t] {
		value, ok := v.opts.credentialFor(t, name)
		if !ok {
			value, ok = v.mediator.Credential(node.Spec, name)
		}
		if !ok {
			continue
		}
		v.r.KeyChain().Set(node.Spec.Comparable(), name, value)
		child := v.source.scanNode(ctx, node.Spec, 0)
		if child.Status != StatusLocked {
			v.collect(ctx, child, out)
			return
		}
	}
}
