//go:build linux

package osfs

import (
	"os"
	"syscall"
	"time"

	"github.com/log2timeline/dfvfs-go/direntry"
)

// statFromInfo builds the full Stat record from a Linux stat_t,
// preserving nanosecond precision access/modification/change times
// (§3). Creation and backup times have no equivalent on Linux's native
// stat and are left zero.
func statFromInfo(path string, info os.FileInfo) (direntry.Stat, error) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return basicStat(info), nil
	}
	s := direntry.Stat{
		Type:              entryType(info),
		Size:              info.Size(),
		AccessTime:        time.Unix(st.Atim.Unix()),
		ModificationTime: time.Unix(st.Mtim.Unix()),
		ChangeTime:        time.Unix(st.Ctim.Unix()),
		Owner:             uint64(st.Uid),
		Group:             uint64(st.Gid),
		Mode:              uint32(st.Mode),
		Identifier:        uint64ToDecimal(st.Ino),
		NumberOfLinks:     uint64(st.Nlink),
	}
	if s.Type == direntry.TypeDevice {
		s.DeviceNumber = uint64(st.Rdev)
	}
	return s, nil
}

func basicStat(info os.FileInfo) direntry.Stat {
	return direntry.Stat{
		Type:              entryType(info),
		Size:              info.Size(),
		ModificationTime: info.ModTime(),
		Mode:              uint32(info.Mode().Perm()),
	}
}
