//go:build !linux

package osfs

import (
	"os"

	"github.com/log2timeline/dfvfs-go/direntry"
)

// statFromInfo falls back to the portable os.FileInfo fields on
// platforms without a Linux-shaped stat_t; change/creation/backup times
// and owner/group/inode are left zero there.
func statFromInfo(_ string, info os.FileInfo) (direntry.Stat, error) {
	return basicStat(info), nil
}
