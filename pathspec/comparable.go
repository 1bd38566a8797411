package pathspec

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/log2timeline/dfvfs-go/dfvfserrors"
)

// intValuedAttrs are rendered/parsed as decimal integers in comparable form.
var intValuedAttrs = map[string]bool{
	AttrRangeOffset:  true,
	AttrRangeSize:    true,
	AttrVolumeIndex:  true,
	AttrStoreIndex:   true,
	AttrPartIndex:    true,
	AttrStartOffset:  true,
	AttrRowIndex:     true,
	AttrInode:        true,
	AttrMFTEntry:     true,
	AttrMFTAttribute: true,
}

// Comparable returns the canonical textual serialization of the chain
// (§6): newline-terminated lines, one per spec, starting with this spec
// and walking its parents, so the parent-less system-resolvable leaf
// (OS/FAKE/MOUNT) is the last line; attribute keys sorted ASCII, byte-valued attributes hex-encoded
// with a "0x" prefix. Two specs denote the same object iff their
// Comparable() strings are byte-equal.
func (p *PathSpec) Comparable() string {
	var b strings.Builder
	for cur := p; cur != nil; cur = cur.parent {
		b.WriteString(cur.line())
		b.WriteByte('\n')
	}
	return b.String()
}

func (p *PathSpec) line() string {
	var b strings.Builder
	b.WriteString("type=")
	b.WriteString(string(p.typ))
	for _, k := range sortedKeys(p.attrs) {
		b.WriteString(", ")
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatAttrValue(k, p.attrs[k]))
	}
	return b.String()
}

func formatAttrValue(key string, v any) string {
	switch val := v.(type) {
	case []byte:
		return "0x" + hex.EncodeToString(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Parse reconstructs a chain from its comparable form (§4.1), building
// from the leaf (last line) back to the first line so every intermediate PathSpec is validated the same
// way New() validates a hand-built chain. Round-trip is lossless:
// Parse(p.Comparable()).Comparable() == p.Comparable().
func Parse(s string) (*PathSpec, error) {
	lines := splitNonEmptyLines(s)
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty comparable form: %w", dfvfserrors.ErrPathSpec)
	}

	var parent *PathSpec
	// lines end with the leaf; build it (last line) first.
	for i := len(lines) - 1; i >= 0; i-- {
		t, attrs, err := parseLine(lines[i])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", i, dfvfserrors.ErrPathSpec, err)
		}
		spec, err := New(t, parent, attrs)
		if err != nil {
			return nil, err
		}
		parent = spec
	}
	return parent, nil
}

func splitNonEmptyLines(s string) []string {
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func parseLine(line string) (Type, map[string]any, error) {
	parts := strings.Split(line, ", ")
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("empty line")
	}
	typePart := parts[0]
	const typePrefix = "type="
	if !strings.HasPrefix(typePart, typePrefix) {
		return "", nil, fmt.Errorf("missing type= prefix")
	}
	t := Type(strings.TrimPrefix(typePart, typePrefix))

	attrs := make(map[string]any, len(parts)-1)
	for _, kv := range parts[1:] {
		k, vs, ok := strings.Cut(kv, "=")
		if !ok {
			return "", nil, fmt.Errorf("malformed attribute %q", kv)
		}
		v, err := parseAttrValue(k, vs)
		if err != nil {
			return "", nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		attrs[k] = v
	}
	return t, attrs, nil
}

func parseAttrValue(key, vs string) (any, error) {
	if byteValuedAttrs[key] {
		hexPart := strings.TrimPrefix(vs, "0x")
		b, err := hex.DecodeString(hexPart)
		if err != nil {
			return nil, fmt.Errorf("bad hex encoding: %w", err)
		}
		return b, nil
	}
	if intValuedAttrs[key] {
		n, err := strconv.ParseInt(vs, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer: %w", err)
		}
		return n, nil
	}
	return vs, nil
}
