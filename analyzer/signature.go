package analyzer

import (
	"bytes"

	"github.com/log2timeline/dfvfs-go/backend"
)

// matchSignatures reports whether buf satisfies any one of sigs, and the
// offset the first satisfying signature matched at — the tie-breaker
// §4.6 orders ambiguous same-category matches by.
func matchSignatures(sigs []backend.ByteSignature, buf []byte) (int64, bool) {
	for _, sig := range sigs {
		if off, ok := matchOne(sig, buf); ok {
			return off, true
		}
	}
	return 0, false
}

// matchOne evaluates a single signature against buf: a fixed-offset
// literal match when SearchWindow is zero, or a search anywhere within
// [Offset, Offset+SearchWindow) otherwise (§4.2).
func matchOne(sig backend.ByteSignature, buf []byte) (int64, bool) {
	if sig.Offset < 0 {
		return 0, false
	}
	if sig.SearchWindow <= 0 {
		end := sig.Offset + int64(len(sig.Pattern))
		if end > int64(len(buf)) {
			return 0, false
		}
		if bytes.Equal(buf[sig.Offset:end], sig.Pattern) {
			return sig.Offset, true
		}
		return 0, false
	}

	limit := sig.Offset + sig.SearchWindow
	if limit > int64(len(buf)) {
		limit = int64(len(buf))
	}
	if sig.Offset >= limit {
		return 0, false
	}
	idx := bytes.Index(buf[sig.Offset:limit], sig.Pattern)
	if idx < 0 {
		return 0, false
	}
	return sig.Offset + int64(idx), true
}
