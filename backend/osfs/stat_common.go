package osfs

import (
	"os"
	"strconv"

	"github.com/log2timeline/dfvfs-go/direntry"
)

func entryType(info os.FileInfo) direntry.EntryType {
	m := info.Mode()
	switch {
	case m&os.ModeSymlink != 0:
		return direntry.TypeLink
	case m.IsDir():
		return direntry.TypeDirectory
	case m&os.ModeDevice != 0:
		return direntry.TypeDevice
	case m&os.ModeSocket != 0:
		return direntry.TypeSocket
	case m&os.ModeNamedPipe != 0:
		return direntry.TypePipe
	default:
		return direntry.TypeFile
	}
}

func uint64ToDecimal(n uint64) string {
	return strconv.FormatUint(n, 10)
}
