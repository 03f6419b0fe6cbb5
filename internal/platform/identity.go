// Package platform isolates OS-specific file identity lookups.
package platform

import "os"

// Identity distinguishes one file from a replacement at the same path.
type Identity struct {
	Inode  uint64
	Device uint64
}

// Known reports whether the platform supplied a real identity.
func (id Identity) Known() bool {
	return id.Inode != 0 || id.Device != 0
}

// IdentityOf returns the identity of fi.
func IdentityOf(fi os.FileInfo) Identity {
	ino, dev := InodeDev(fi)
	return Identity{Inode: ino, Device: dev}
}
