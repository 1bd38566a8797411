package pathutil

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/log2timeline/dfvfs-go/dfvfserrors"
	"github.com/log2timeline/dfvfs-go/direntry"
	"github.com/log2timeline/dfvfs-go/pathspec"
)

// The Windows path forms this resolver normalizes have no analogue
// anywhere in the teacher or the rest of the example pack — every
// backend in both is POSIX-path-oriented (rclone's remotes, the
// forensic back-ends elsewhere in this module) — so this file is
// written directly against regexp/strings rather than grounded on a
// specific example; see DESIGN.md's stdlib-only exception note.

var envPattern = regexp.MustCompile(`%([A-Za-z0-9_]+)%`)

// shortNamePattern recognizes a classic 8.3 short name segment
// ("RUNTIM~1.DLL", "PROGRA~1"): a base of up to 8 chars containing a
// "~" followed by digits, optionally a 3-char extension.
var shortNamePattern = regexp.MustCompile(`^[^.~]{1,8}~[0-9]{1,4}(\.[^.]{1,3})?$`)

// MountLookup resolves a drive-letter ("C:") or volume-GUID
// ("VOLUME{guid}") identifier to the PathSpec it is mounted at;
// resolver.MountTable satisfies this without pathutil importing
// resolver directly.
type MountLookup interface {
	Lookup(identifier string) (*pathspec.PathSpec, bool)
}

// CaseInsensitiveFS is implemented by a direntry.FileSystem whose
// segment resolution ignores case (FAT, NTFS, HFS+ in its default
// configuration); the resolver only consults it to decide whether a
// failed exact-name lookup deserves a case-insensitive directory scan.
type CaseInsensitiveFS interface {
	CaseInsensitive() bool
}

// WindowsResolver normalizes the Windows path forms in the glossary
// (`C:\…`, `\??\…`, `\\.\…`, `\\?\…`, `\\server\share\…`, UNC
// extended, `%ENV%`, `\VOLUME{…}\…`) into a plain file-system-native
// location (§4.9):
//
//  1. environment-variable substitution against Env
//  2. drive/volume-GUID lookup against Mounts
//  3. short-name expansion via a cache populated from the target file
//     system
//  4. case-insensitive segment resolution when the file system
//     declares itself as such
type WindowsResolver struct {
	// Env is the configured substitution map for %NAME% references.
	Env map[string]string

	// Mounts resolves a drive letter or volume GUID to its target.
	Mounts MountLookup

	shortNames shortNameCache
}

// NewWindowsResolver builds a resolver with the given environment map
// and mount lookup (either may be nil: substitution/lookup then simply
// finds nothing and leaves that part of the path untouched).
func NewWindowsResolver(env map[string]string, mounts MountLookup) *WindowsResolver {
	return &WindowsResolver{Env: env, Mounts: mounts, shortNames: shortNameCache{}}
}

// Resolve normalizes location. When fsys is non-nil, steps 3 and 4
// additionally walk fsys segment by segment to recover the on-disk
// spelling; a nil fsys performs only steps 1-2 (substitution and mount
// lookup), useful when the caller just wants a canonical location
// string to build a PathSpec from, not an open entry.
func (w *WindowsResolver) Resolve(ctx context.Context, fsys direntry.FileSystem, location string) (string, error) {
	substituted := w.substituteEnv(location)

	rest, err := w.stripNamespace(substituted)
	if err != nil {
		return "", err
	}

	prefix := ""
	if strings.HasPrefix(rest, "/") {
		prefix = "/"
	}

	segments := splitWindowsPath(rest)
	if fsys == nil || len(segments) == 0 {
		return prefix + strings.Join(segments, "/"), nil
	}

	resolved, err := w.resolveSegments(ctx, fsys, segments)
	if err != nil {
		return "", err
	}
	return prefix + strings.Join(resolved, "/"), nil
}

func (w *WindowsResolver) substituteEnv(location string) string {
	return envPattern.ReplaceAllStringFunc(location, func(ref string) string {
		name := ref[1 : len(ref)-1]
		if v, ok := w.Env[name]; ok {
			return v
		}
		return ref
	})
}

// stripNamespace peels off the NT-native (`\??\`) and Win32 device
// (`\\.\`, `\\?\`) namespace prefixes, then resolves whatever drive
// letter, volume-GUID, or direct UNC share reference remains into a
// plain path via Mounts; a bare drive-letter or `\\server\share\…`
// form with no such prefix is handled identically.
func (w *WindowsResolver) stripNamespace(location string) (string, error) {
	rest := location
	for _, prefix := range []string{`\??\`, `\\.\`, `\\?\`} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}

	switch {
	case strings.HasPrefix(strings.ToUpper(rest), "UNC\\"):
		rest = `\\` + rest[len("UNC\\"):]
		return w.resolveUNC(rest)

	case len(rest) >= 2 && rest[1] == ':' && isDriveLetter(rest[0]):
		return w.resolveDrive(rest)

	case strings.HasPrefix(strings.ToUpper(rest), `\VOLUME{`) || strings.HasPrefix(strings.ToUpper(rest), "VOLUME{"):
		return w.resolveVolumeGUID(strings.TrimPrefix(rest, `\`))

	case strings.HasPrefix(rest, `\\`):
		return w.resolveUNC(rest)

	default:
		return rest, nil
	}
}

func isDriveLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func (w *WindowsResolver) resolveDrive(rest string) (string, error) {
	identifier := strings.ToUpper(rest[:2]) // "C:"
	tail := strings.TrimPrefix(rest[2:], `\`)
	target, ok := w.lookupMount(identifier)
	if !ok {
		return "", fmt.Errorf("windows path: no mount registered for drive %s: %w", identifier, dfvfserrors.ErrPathSpec)
	}
	return joinLocation(target, tail), nil
}

func (w *WindowsResolver) resolveVolumeGUID(rest string) (string, error) {
	end := strings.Index(rest, "}")
	if end < 0 {
		return "", fmt.Errorf("windows path: malformed volume reference %q: %w", rest, dfvfserrors.ErrPathSpec)
	}
	identifier := rest[:end+1]
	tail := strings.TrimPrefix(rest[end+1:], `\`)
	target, ok := w.lookupMount(identifier)
	if !ok {
		return "", fmt.Errorf("windows path: no mount registered for %s: %w", identifier, dfvfserrors.ErrPathSpec)
	}
	return joinLocation(target, tail), nil
}

// resolveUNC looks up a `\\server\share` identifier against Mounts;
// unlike a drive or volume-GUID reference, an unregistered network
// share is not an error — not every forensic acquisition configures a
// mount entry for shares it never needs to cross, so the reference is
// passed through unresolved for the file system to interpret directly.
func (w *WindowsResolver) resolveUNC(rest string) (string, error) {
	trimmed := strings.TrimPrefix(rest, `\\`)
	parts := strings.SplitN(trimmed, `\`, 3)
	if len(parts) < 2 {
		return rest, nil
	}
	identifier := parts[0] + `\` + parts[1]
	tail := ""
	if len(parts) == 3 {
		tail = parts[2]
	}
	if target, ok := w.lookupMount(identifier); ok {
		return joinLocation(target, tail), nil
	}
	return rest, nil
}

func (w *WindowsResolver) lookupMount(identifier string) (*pathspec.PathSpec, bool) {
	if w.Mounts == nil {
		return nil, false
	}
	return w.Mounts.Lookup(identifier)
}

func joinLocation(target *pathspec.PathSpec, tail string) string {
	base := strings.TrimSuffix(target.AttrString(pathspec.AttrLocation), "/")
	if tail == "" {
		return base
	}
	return base + "/" + strings.ReplaceAll(tail, `\`, "/")
}

func splitWindowsPath(location string) []string {
	var out []string
	for _, seg := range strings.FieldsFunc(location, func(r rune) bool { return r == '\\' || r == '/' }) {
		out = append(out, seg)
	}
	return out
}

// resolveSegments walks fsys from its root, one path segment at a
// time, recovering the on-disk spelling for short names and
// case-insensitive matches; an exact match short-circuits the
// directory scan.
func (w *WindowsResolver) resolveSegments(ctx context.Context, fsys direntry.FileSystem, segments []string) ([]string, error) {
	entry, err := fsys.RootEntry(ctx)
	if err != nil {
		return nil, err
	}

	insensitive := false
	if ci, ok := fsys.(CaseInsensitiveFS); ok {
		insensitive = ci.CaseInsensitive()
	}

	resolved := make([]string, 0, len(segments))
	dirKey := ""
	for _, want := range segments {
		children, err := listNames(ctx, entry)
		if err != nil {
			return nil, err
		}

		actual, child, err := w.matchSegment(dirKey, want, children, insensitive)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, actual)
		entry = child
		dirKey = strings.Join(resolved, "/")
	}
	return resolved, nil
}

type namedChild struct {
	name  string
	entry direntry.FileEntry
}

func listNames(ctx context.Context, dir direntry.FileEntry) ([]namedChild, error) {
	it, err := dir.SubEntries(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []namedChild
	for it.Next() {
		out = append(out, namedChild{name: it.Entry().Name(), entry: it.Entry()})
	}
	return out, it.Err()
}

// matchSegment finds want among children: exact match first, then (if
// want looks like an 8.3 short name) a short-name match via the cache,
// then a case-insensitive match when the file system allows it.
func (w *WindowsResolver) matchSegment(dirKey, want string, children []namedChild, insensitive bool) (string, direntry.FileEntry, error) {
	for _, c := range children {
		if c.name == want {
			return c.name, c.entry, nil
		}
	}

	if shortNamePattern.MatchString(want) {
		if long, ok := w.shortNames.lookup(dirKey, want, children); ok {
			for _, c := range children {
				if c.name == long {
					return c.name, c.entry, nil
				}
			}
		}
	}

	if insensitive {
		for _, c := range children {
			if strings.EqualFold(c.name, want) {
				return c.name, c.entry, nil
			}
		}
	}

	return "", nil, fmt.Errorf("windows path: %q: %w", want, dfvfserrors.ErrNotFound)
}

// shortNameCache memoizes the short-name -> long-name mapping for each
// directory it has already scanned, populated lazily the first time a
// short-name-shaped segment is looked up under that directory (§4.9).
type shortNameCache struct {
	byDir map[string]map[string]string
}

func (c *shortNameCache) lookup(dirKey, want string, children []namedChild) (string, bool) {
	if c.byDir == nil {
		c.byDir = map[string]map[string]string{}
	}
	table, ok := c.byDir[dirKey]
	if !ok {
		table = map[string]string{}
		for _, ch := range children {
			table[shortNameFor(ch.name)] = ch.name
		}
		c.byDir[dirKey] = table
	}
	long, ok := table[strings.ToUpper(want)]
	return long, ok
}

// shortNameFor derives the classic 8.3 short-name candidate for a long
// name: uppercased base with spaces dropped (cut to 6 chars when longer
// than 8), "~1", uppercased 3-char extension.
// Real generators also disambiguate collisions with ~2, ~3, ...; this
// cache only needs to match what a genuine Windows short name would
// look like closely enough to reverse-map a FindSpec-style reference,
// not to reproduce the generator bit for bit.
func shortNameFor(long string) string {
	base := long
	ext := ""
	if i := strings.LastIndex(long, "."); i > 0 {
		base, ext = long[:i], long[i+1:]
	}
	base = strings.ToUpper(strings.Map(func(r rune) rune {
		if r == ' ' {
			return -1
		}
		return r
	}, base))
	if len(base) > 8 {
		base = base[:6] + "~1"
	} else {
		base = base + "~1"
	}
	if ext == "" {
		return base
	}
	ext = strings.ToUpper(ext)
	if len(ext) > 3 {
		ext = ext[:3]
	}
	return base + "." + ext
}
