// Package analyzer implements the format analyzer (§4.6): it
// consolidates every registered back-end's format specification into a
// single multi-pattern scanner over a stream's leading bytes, runs
// structural checks to rule out false positives, and orders ambiguous
// matches by category priority then first-match offset.
//
// Grounded on rclone's backend/compress/compress.go, whose
// checkCompressAndType reads a fixed heuristic prefix once and sniffs it
// with gabriel-vasile/mimetype before deciding whether to wrap an
// object; generalized here from "one MIME guess" to "every registered
// type indicator's signature set", with mimetype.Detect kept on as the
// best-effort label attached to bytes nothing in the registry claims.
package analyzer

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/gabriel-vasile/mimetype"

	"github.com/log2timeline/dfvfs-go/backend"
	"github.com/log2timeline/dfvfs-go/internal/dlog"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

// Match is one candidate type the analyzer found, together with the
// category it matched under and the offset its signature fired at —
// exactly the two keys §4.6 orders ambiguous matches by.
type Match struct {
	Type     pathspec.Type
	Category backend.FormatCategory
	Offset   int64
}

// Analyze returns the type indicators a stream's leading bytes match,
// most likely first (§4.6).
func Analyze(ctx context.Context, s stream.Stream) ([]pathspec.Type, error) {
	matches, err := Matches(ctx, s)
	if err != nil {
		return nil, err
	}
	out := make([]pathspec.Type, len(matches))
	for i, m := range matches {
		out[i] = m.Type
	}
	return out, nil
}

// Matches is Analyze's richer form, exposing the category and offset
// each candidate type matched at.
func Matches(ctx context.Context, s stream.Stream) ([]Match, error) {
	specs := backend.AllAnalyzerHelpers()
	window := scanWindow(specs)

	if _, err := s.Seek(0, stream.SeekStart); err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	buf := make([]byte, window)
	n, err := io.ReadFull(s, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	buf = buf[:n]

	var found []Match
	for _, spec := range specs {
		off, ok := matchSignatures(spec.Signatures, buf)
		if !ok {
			continue
		}
		if spec.Check != nil {
			if _, err := s.Seek(0, stream.SeekStart); err != nil {
				return nil, fmt.Errorf("analyzer: %w", err)
			}
			passed, err := spec.Check(ctx, s)
			if err != nil {
				return nil, fmt.Errorf("analyzer: %s structural check: %w", spec.Type, err)
			}
			if !passed {
				continue
			}
		}
		found = append(found, Match{Type: spec.Type, Category: bestCategory(spec.Categories), Offset: off})
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Category != found[j].Category {
			return found[i].Category < found[j].Category
		}
		return found[i].Offset < found[j].Offset
	})

	if len(found) == 0 {
		dlog.Debugf(ctx, "analyzer: no registered type matched %s prefix, mime guess %s", dlog.Size(int64(len(buf))), mimetype.Detect(buf).String())
	}
	return found, nil
}

// scanWindow is the minimal prefix covering every registered signature
// and every registered category's default window (§4.6).
func scanWindow(specs []*backend.FormatSpec) int64 {
	var window int64
	for _, spec := range specs {
		for _, cat := range spec.Categories {
			if w := cat.DefaultWindow(); w > window {
				window = w
			}
		}
		for _, sig := range spec.Signatures {
			end := sig.Offset + sig.SearchWindow
			if sig.SearchWindow <= 0 {
				end = sig.Offset + int64(len(sig.Pattern))
			}
			if end > window {
				window = end
			}
		}
	}
	if window == 0 {
		window = backend.CategoryArchive.DefaultWindow()
	}
	return window
}

// bestCategory picks the highest-priority (lowest-valued) category a
// helper declared, for helpers that span more than one.
func bestCategory(cats []backend.FormatCategory) backend.FormatCategory {
	best := cats[0]
	for _, c := range cats[1:] {
		if c < best {
			best = c
		}
	}
	return best
}
