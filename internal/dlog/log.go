// Package dlog is the leveled logger used across dfvfs-go, in the shape
// of rclone's fs.Debugf/fs.Logf: callers format a message lazily and the
// package decides whether it is worth emitting.
package dlog

import (
	"context"
	"io"
	"log"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
)

// Level controls verbosity.
type Level int

// Levels, least to most verbose.
const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
)

var (
	mu     sync.Mutex
	level  = LevelInfo
	logger = log.New(os.Stderr, "", log.LstdFlags)
)

// SetOutput redirects log output, mirroring fs.SetLogOutput's test hook.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", log.LstdFlags)
}

// SetLevel adjusts the verbosity threshold.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

func logf(l Level, prefix string, format string, args ...any) {
	mu.Lock()
	cur := level
	lg := logger
	mu.Unlock()
	if l > cur {
		return
	}
	lg.Printf(prefix+format, args...)
}

// Debugf logs at debug level. ctx is accepted (unused today) so call
// sites can later thread request-scoped fields without churn.
func Debugf(_ context.Context, format string, args ...any) {
	logf(LevelDebug, "DEBUG: ", format, args...)
}

// Infof logs at info level.
func Infof(_ context.Context, format string, args ...any) {
	logf(LevelInfo, "INFO: ", format, args...)
}

// Errorf logs at error level.
func Errorf(_ context.Context, format string, args ...any) {
	logf(LevelError, "ERROR: ", format, args...)
}

// Size renders a byte count the way debug log lines report stream and
// container sizes, e.g. "8.2 GiB".
func Size(n int64) string {
	return humanize.IBytes(uint64(n))
}
