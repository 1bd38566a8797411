// Package dfvfserrors defines the closed set of error kinds surfaced by
// every layer of dfvfs-go.
//
// Lower layers never invent new kinds: a decode failure from an external
// decoder is wrapped as BackEndFailure or InvalidData, never replayed
// as-is, so callers can always errors.Is against this set.
package dfvfserrors

import "errors"

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", Kind) when
// propagating through a layer so errors.Is keeps working.
var (
	// ErrUnsupportedType means no back-end is registered for a type indicator.
	ErrUnsupportedType = errors.New("dfvfs: unsupported type indicator")

	// ErrPathSpec means a chain is malformed: a missing/extra attribute,
	// an orphan root type, or a parent-presence rule violation.
	ErrPathSpec = errors.New("dfvfs: malformed path specification")

	// ErrNotFound means a path or entry is absent.
	ErrNotFound = errors.New("dfvfs: not found")

	// ErrAccessDenied means the host denied a permission.
	ErrAccessDenied = errors.New("dfvfs: access denied")

	// ErrInvalidData means a format violation: bad magic, truncated
	// header, or decode failure.
	ErrInvalidData = errors.New("dfvfs: invalid data")

	// ErrCorruptVolume means a structural inconsistency was found mid-traversal.
	ErrCorruptVolume = errors.New("dfvfs: corrupt volume")

	// ErrEncryptedVolumeLocked means credentials are missing or wrong.
	ErrEncryptedVolumeLocked = errors.New("dfvfs: encrypted volume locked")

	// ErrBackEndFailure wraps an opaque error surfaced by an underlying decoder.
	ErrBackEndFailure = errors.New("dfvfs: back-end failure")

	// ErrCancelled means a cooperative cancellation token fired.
	ErrCancelled = errors.New("dfvfs: cancelled")

	// ErrTimedOut means a caller-imposed timeout elapsed.
	ErrTimedOut = errors.New("dfvfs: timed out")
)
