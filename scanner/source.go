// Package scanner implements the source scanner (§4.7) and, on top of
// it, the volume scanner with its mediator (§4.8): given a root
// PathSpec, repeatedly open and re-analyze to build a scan tree of
// nested layers, then (for the volume scanner) walk that tree applying
// partition/volume/snapshot/credential decisions to arrive at the set
// of selected file-system roots.
//
// Grounded on rclone's fs/march package (march.go's repeated
// list-then-recurse directory walk, src/dst trees compared level by
// level) generalized from "walk a live directory tree" to "walk a
// PathSpec chain, opening and analyzing one layer at a time"; §7's
// "collect per-branch errors rather than aborting the whole scan" is
// grounded on march's Transversal callback design, which keeps walking
// siblings after one subtree reports an error instead of stopping.
package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/log2timeline/dfvfs-go/analyzer"
	"github.com/log2timeline/dfvfs-go/backend"
	"github.com/log2timeline/dfvfs-go/dfvfserrors"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/resolver"
)

// NodeStatus is how a scan-tree node terminated (§4.7).
type NodeStatus int

// Terminal and internal node statuses.
const (
	// StatusContinuing means the node is an internal node: it matched one
	// or more deeper self-describing layer types, recorded as Children.
	StatusContinuing NodeStatus = iota
	// StatusFileSystem means the node resolved to a mountable file system.
	StatusFileSystem
	// StatusEmptyContainer means the node opened but carries zero bytes.
	StatusEmptyContainer
	// StatusUnrecognized means the node's bytes matched no registered format.
	StatusUnrecognized
	// StatusLocked means the node needs a credential the resolver
	// couldn't supply (§4.3's credential acquisition order exhausted).
	StatusLocked
	// StatusFailed means opening the node surfaced an error that isn't
	// one of the above — recorded on Err rather than aborting the scan
	// (§7 "collect per-branch errors rather than aborting the whole scan").
	StatusFailed
)

func (s NodeStatus) String() string {
	switch s {
	case StatusContinuing:
		return "continuing"
	case StatusFileSystem:
		return "file_system"
	case StatusEmptyContainer:
		return "empty_container"
	case StatusUnrecognized:
		return "unrecognized"
	case StatusLocked:
		return "locked"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Node is one point in the scan tree (§4.7).
type Node struct {
	Spec     *pathspec.PathSpec
	Status   NodeStatus
	Children []*Node

	// CredentialType is the slot for the credential attribute a Locked
	// node is missing (e.g. "password"). The source scanner does not
	// fill it in (isLocked reports no name), so it is empty on every
	// node the scanner builds.
	CredentialType string

	// Err carries the cause for a Failed node, or a Locked node's
	// underlying error for diagnostics.
	Err error
}

// selfDescribingTypes are the type indicators the scanner will
// automatically descend into on an analyzer match: every one a plain
// pathspec.New(t, parent, attrs) call can construct without any
// information beyond what the analyzer itself supplies (no compression
// method, no credential, no partition index). Everything else (volume
// systems, transform streams, external image formats, encrypted
// containers) needs a mediator decision (§4.8) and is the volume
// scanner's job, not the plain source scanner's.
var selfDescribingTypes = map[pathspec.Type]bool{
	pathspec.GZIP: true,
	pathspec.TAR:  true,
	pathspec.ZIP:  true,
	pathspec.CPIO: true,
}

// SourceScanner builds the scan tree (§4.7).
type SourceScanner struct {
	r *resolver.Resolver

	// MaxDepth bounds recursion (0 means unlimited); a node at the limit
	// is reported StatusUnrecognized rather than explored further.
	MaxDepth int
}

// NewSourceScanner builds a scanner that resolves nodes through r.
func NewSourceScanner(r *resolver.Resolver) *SourceScanner {
	return &SourceScanner{r: r}
}

// Scan builds the scan tree rooted at root.
func (s *SourceScanner) Scan(ctx context.Context, root *pathspec.PathSpec) (*Node, error) {
	if root == nil {
		return nil, fmt.Errorf("scanner: %w: nil root", dfvfserrors.ErrPathSpec)
	}
	return s.scanNode(ctx, root, 0), nil
}

func (s *SourceScanner) scanNode(ctx context.Context, spec *pathspec.PathSpec, depth int) *Node {
	node := &Node{Spec: spec}

	if s.MaxDepth > 0 && depth >= s.MaxDepth {
		node.Status = StatusUnrecognized
		return node
	}

	st, err := s.r.OpenStream(ctx, spec)
	if err != nil {
		if locked, name := isLocked(err); locked {
			node.Status = StatusLocked
			node.CredentialType = name
			node.Err = err
			return node
		}
		// Types with no NewFileObject (on-disk/volume-system file
		// systems) have nothing to analyze as bytes; try them as a
		// file system outright instead of failing the branch.
		if helper, ok := backend.LookupResolverHelper(spec.Type()); ok && helper.NewFileSystem != nil {
			fsys, ferr := s.r.OpenFileSystem(ctx, spec)
			if ferr != nil {
				if locked, name := isLocked(ferr); locked {
					node.Status = StatusLocked
					node.CredentialType = name
					node.Err = ferr
					return node
				}
				node.Status = StatusFailed
				node.Err = ferr
				return node
			}
			_ = fsys.Close()
			node.Status = StatusFileSystem
			return node
		}
		node.Status = StatusFailed
		node.Err = err
		return node
	}
	defer st.Close()

	size, err := st.Size()
	if err != nil {
		node.Status = StatusFailed
		node.Err = err
		return node
	}
	if size == 0 {
		node.Status = StatusEmptyContainer
		return node
	}

	matches, err := analyzer.Matches(ctx, st)
	if err != nil {
		node.Status = StatusFailed
		node.Err = err
		return node
	}

	var children []*Node
	for _, m := range matches {
		if !selfDescribingTypes[m.Type] {
			continue
		}
		childSpec, err := childSpecFor(m.Type, spec)
		if err != nil {
			children = append(children, &Node{Spec: spec, Status: StatusFailed, Err: err})
			continue
		}
		children = append(children, s.scanNode(ctx, childSpec, depth+1))
	}

	if len(children) == 0 {
		node.Status = StatusUnrecognized
		return node
	}
	node.Status = StatusContinuing
	node.Children = children
	return node
}

// childSpecFor constructs the PathSpec for a self-describing layer type
// the analyzer named, filling in whatever its validator requires beyond
// a parent (§4.1; CPIO/TAR/ZIP require a location even at their archive
// root, conventionally "/").
func childSpecFor(t pathspec.Type, parent *pathspec.PathSpec) (*pathspec.PathSpec, error) {
	switch t {
	case pathspec.TAR, pathspec.ZIP, pathspec.CPIO:
		return pathspec.New(t, parent, map[string]any{pathspec.AttrLocation: "/"})
	default:
		return pathspec.New(t, parent, map[string]any{})
	}
}

func isLocked(err error) (bool, string) {
	if !errors.Is(err, dfvfserrors.ErrEncryptedVolumeLocked) {
		return false, ""
	}
	return true, ""
}

// Leaves returns every terminal node in the tree (depth-first, in
// child order) — the input a caller filters down to, e.g., just the
// StatusFileSystem nodes.
func Leaves(root *Node) []*Node {
	if root == nil {
		return nil
	}
	if root.Status != StatusContinuing {
		return []*Node{root}
	}
	var out []*Node
	for _, c := range root.Children {
		out = append(out, Leaves(c)...)
	}
	return out
}
