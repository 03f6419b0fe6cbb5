//go:build !linux

package platform

import "os"

// InodeDev returns zeros where no portable inode is available; rotation is
// then detected by size shrinkage only.
func InodeDev(fi os.FileInfo) (uint64, uint64) {
	return 0, 0
}
