// Package all imports every resolver/analyzer back-end for its
// registration side effects: the one place a caller needs to import to
// get the whole closed type-indicator set wired up. Grounded on
// rclone's own backend/all/all.go, which does the same blank-import
// trick over its (much larger) set of storage-provider backends.
package all

import (
	_ "github.com/log2timeline/dfvfs-go/backend/archivefs"
	_ "github.com/log2timeline/dfvfs-go/backend/compressed"
	_ "github.com/log2timeline/dfvfs-go/backend/datarange"
	_ "github.com/log2timeline/dfvfs-go/backend/encoded"
	_ "github.com/log2timeline/dfvfs-go/backend/encrypted"
	_ "github.com/log2timeline/dfvfs-go/backend/fakefs"
	_ "github.com/log2timeline/dfvfs-go/backend/gzipfmt"
	_ "github.com/log2timeline/dfvfs-go/backend/mountfs"
	_ "github.com/log2timeline/dfvfs-go/backend/osfs"
	_ "github.com/log2timeline/dfvfs-go/backend/sqliteblob"
	_ "github.com/log2timeline/dfvfs-go/backend/volumefs"
	_ "github.com/log2timeline/dfvfs-go/backend/vshadowfs"
)
