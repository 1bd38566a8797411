package pathutil

import (
	"context"
	"fmt"
	"regexp"

	"github.com/log2timeline/dfvfs-go/direntry"
	"github.com/log2timeline/dfvfs-go/pathspec"
)

// cancelCheckInterval bounds how often Find checks ctx for
// cancellation mid-walk (§5: "cooperative cancellation token each N
// reads, N tuned so cancellation latency stays low").
const cancelCheckInterval = 256

// FindSpec names what the searcher is looking for (§4.9): one compiled
// pattern per path segment below the search root, an optional
// depth range, an optional entry-type filter, and an optional named
// data-stream requirement.
type FindSpec struct {
	segments   []*regexp.Regexp
	minDepth   int
	maxDepth   int // 0 means unbounded
	entryType  *direntry.EntryType
	streamName string
	streamSet  bool
}

// NewFindSpec compiles one regex per path segment (applied depth by
// depth below the search root) into a FindSpec; caseSensitive controls
// whether each pattern is compiled with Go regexp's `(?i)` flag.
// Per-segment patterns may be empty strings, meaning "match any name
// at this depth".
func NewFindSpec(caseSensitive bool, segments ...string) (*FindSpec, error) {
	fs := &FindSpec{minDepth: len(segments), maxDepth: len(segments)}
	for i, seg := range segments {
		if seg == "" {
			fs.segments = append(fs.segments, nil)
			continue
		}
		pattern := seg
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("find spec: segment %d: %w", i, err)
		}
		fs.segments = append(fs.segments, re)
	}
	return fs, nil
}

// WithDepth overrides the depth range a match must fall within; by
// default NewFindSpec sets min=max=len(segments) (an exact-depth
// match). A maxDepth of 0 means unbounded below minDepth.
func (fs *FindSpec) WithDepth(minDepth, maxDepth int) *FindSpec {
	fs.minDepth = minDepth
	fs.maxDepth = maxDepth
	return fs
}

// WithEntryType restricts matches to entries of the given type.
func (fs *FindSpec) WithEntryType(t direntry.EntryType) *FindSpec {
	fs.entryType = &t
	return fs
}

// WithDataStream restricts matches to entries carrying a data stream
// of the given name (the empty string still means the default stream,
// explicitly required rather than left unfiltered).
func (fs *FindSpec) WithDataStream(name string) *FindSpec {
	fs.streamName = name
	fs.streamSet = true
	return fs
}

func (fs *FindSpec) segmentAt(depth int) (*regexp.Regexp, bool) {
	if depth-1 < 0 || depth-1 >= len(fs.segments) {
		return nil, false
	}
	return fs.segments[depth-1], true
}

func (fs *FindSpec) withinDepth(depth int) bool {
	if depth < fs.minDepth {
		return false
	}
	return fs.maxDepth == 0 || depth <= fs.maxDepth
}

// Find walks fsys from its root, recursing into directories and
// testing each entry's full path (segment by segment) against spec,
// returning the PathSpec of every match (§4.9).
//
// Grounded on the general shape of a depth-bounded, pattern-filtered
// tree walk; §5's cooperative cancellation requirement ("long
// operations ... must check a cooperative cancellation token each N
// reads") is honored by checking ctx every cancelCheckInterval visited
// entries rather than only at the top of the call.
func Find(ctx context.Context, fsys direntry.FileSystem, spec *FindSpec) ([]*pathspec.PathSpec, error) {
	root, err := fsys.RootEntry(ctx)
	if err != nil {
		return nil, err
	}
	var out []*pathspec.PathSpec
	visited := 0
	if err := walk(ctx, root, spec, 1, &out, &visited); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(ctx context.Context, entry direntry.FileEntry, spec *FindSpec, depth int, out *[]*pathspec.PathSpec, visited *int) error {
	it, err := entry.SubEntries(ctx)
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		*visited++
		if *visited%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		child := it.Entry()
		pattern, bounded := spec.segmentAt(depth)
		if bounded && pattern != nil && !pattern.MatchString(child.Name()) {
			continue
		}

		if spec.withinDepth(depth) && depth >= len(spec.segments) && matchesFilters(child, spec) {
			*out = append(*out, child.PathSpec())
		}

		st, err := child.Stat()
		if err == nil && st.Type == direntry.TypeDirectory && (spec.maxDepth == 0 || depth < spec.maxDepth) {
			if err := walk(ctx, child, spec, depth+1, out, visited); err != nil {
				return err
			}
		}
	}
	return it.Err()
}

func matchesFilters(entry direntry.FileEntry, spec *FindSpec) bool {
	if spec.entryType != nil {
		st, err := entry.Stat()
		if err != nil || st.Type != *spec.entryType {
			return false
		}
	}
	if spec.streamSet {
		found := false
		for _, ds := range entry.DataStreams() {
			if ds.Name == spec.streamName {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
