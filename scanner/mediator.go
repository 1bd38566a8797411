package scanner

import "github.com/log2timeline/dfvfs-go/pathspec"

// IndexSelection is a `{all|index-list}` option (§4.8).
type IndexSelection struct {
	All     bool
	Indexes []int
}

// AllIndexes selects every candidate.
func AllIndexes() IndexSelection { return IndexSelection{All: true} }

// SelectIndexes selects exactly the given candidate indexes.
func SelectIndexes(idx ...int) IndexSelection { return IndexSelection{Indexes: idx} }

func (s IndexSelection) includes(i int) bool {
	if s.All {
		return true
	}
	for _, v := range s.Indexes {
		if v == i {
			return true
		}
	}
	return false
}

// decided reports whether s resolves i one way or the other without
// asking the mediator: All and an explicit index list both decide; a
// zero-value IndexSelection (neither set) leaves it up to the mediator.
func (s IndexSelection) decided() bool {
	return s.All || len(s.Indexes) > 0
}

// SnapshotSelection is the `{none|all|index-list}` VSS store option (§4.8).
type SnapshotSelection struct {
	None    bool
	All     bool
	Indexes []int
}

func (s SnapshotSelection) includes(i int) bool {
	if s.None {
		return false
	}
	if s.All {
		return true
	}
	for _, v := range s.Indexes {
		if v == i {
			return true
		}
	}
	return false
}

func (s SnapshotSelection) decided() bool {
	return s.None || s.All || len(s.Indexes) > 0
}

// Credential is one pre-supplied `(type, value)` pair (§4.8); Name
// defaults to "password" when empty, the credential every encrypted
// container type accepts (§6).
type Credential struct {
	Type  pathspec.Type
	Name  string
	Value string
}

// ScanMode controls how exhaustively the volume scanner explores
// ambiguous branches (§4.8).
type ScanMode int

// Scan modes.
const (
	// ScanModeOnePass stops at the first file system found along a branch.
	ScanModeOnePass ScanMode = iota
	// ScanModeExhaustive continues exploring every self-describing
	// sibling match the source scanner found, not just the first.
	ScanModeExhaustive
)

// Options controls the volume scanner's defaults (§4.8). The zero value
// means "ask the mediator for everything".
type Options struct {
	Partitions  IndexSelection
	Volumes     IndexSelection
	Snapshots   SnapshotSelection
	Credentials []Credential
	ScanMode    ScanMode
}

// credentialFor returns the first pre-supplied credential matching
// spec's type and name, if any.
func (o Options) credentialFor(t pathspec.Type, name string) (string, bool) {
	for _, c := range o.Credentials {
		if c.Type != t {
			continue
		}
		cname := c.Name
		if cname == "" {
			cname = pathspec.AttrPassword
		}
		if cname != name {
			continue
		}
		return c.Value, true
	}
	return "", false
}

// Mediator resolves the decisions Options leaves open (§4.8): which
// partition/volume/snapshot candidate to keep when the configured
// selection doesn't already decide it, and which credential to try for
// a locked node Options didn't cover.
//
// Grounded on rclone's fs/config interactive Confirm/Choose prompts
// (fs/config/config.go's `Confirm`/`ChooseNumber`, used by backends that
// need a runtime decision their config alone doesn't supply) generalized
// from "pick a remote setup option" to "pick a partition/VSS store/
// credential"; a non-interactive Mediator (e.g. one that always answers
// false/"", "", false) makes scan_mode=one-pass fully unattended.
type Mediator interface {
	// ConfirmPartition is asked once per discovered partition/volume
	// candidate Options.Partitions/Volumes doesn't already decide.
	ConfirmPartition(spec *pathspec.PathSpec, index int) bool

	// ConfirmSnapshot is asked once per discovered VSS store candidate
	// Options.Snapshots doesn't already decide.
	ConfirmSnapshot(spec *pathspec.PathSpec, index int) bool

	// Credential is asked for a locked node's missing credential name
	// when Options.Credentials has no matching entry.
	Credential(spec *pathspec.PathSpec, name string) (string, bool)
}

// NoMediator never confirms a candidate or supplies a credential: every
// decision Options doesn't already settle is declined. Useful for
// scan_mode=one-pass unattended runs and for tests.
type NoMediator struct{}

func (NoMediator) ConfirmPartition(*pathspec.PathSpec, int) bool        { return false }
func (NoMediator) ConfirmSnapshot(*pathspec.PathSpec, int) bool         { return false }
func (NoMediator) Credential(*pathspec.PathSpec, string) (string, bool) { return "", false }

var _ Mediator = NoMediator{}
