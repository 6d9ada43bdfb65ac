//go:build !unix

package indexer

import "os"

func fileID(os.FileInfo) (inode, device string) {
	return "", ""
}
