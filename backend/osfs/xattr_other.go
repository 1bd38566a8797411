//go:build !linux

package osfs

import "github.com/log2timeline/dfvfs-go/direntry"

func readXattrs(_ string) []direntry.Attribute { return nil }
