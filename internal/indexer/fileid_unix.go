//go:build unix

package indexer

import (
	"os"
	"strconv"
	"syscall"
)

// fileID returns the inode and device number of a file.
func fileID(info os.FileInfo) (inode, device string) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", ""
	}
	return strconv.FormatUint(uint64(st.Ino), 10), strconv.FormatUint(uint64(st.Dev), 10) //nolint:unconvert // Dev width varies by platform
}
