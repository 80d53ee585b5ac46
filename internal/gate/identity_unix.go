//go:build unix

package gate

import (
	"os"
	"syscall"
)

// nlink returns the hardlink count for a file, from its Lstat info.
func nlink(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Nlink)
	}
	return 1
}

// dirWritable reports whether the current process can write to dir.
func dirWritable(dir string) bool {
	return syscall.Access(dir, 0x2) == nil
}

// statIdentity returns the device+inode pair for path, following symlinks.
// This is the identity comparison spec.md §4.2 requires to survive rename:
// a protected file moved or symlinked to a new name is still recognized.
func statIdentity(path string) (fileIdentity, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return fileIdentity{}, false
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fileIdentity{}, false
	}
	return fileIdentity{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, true
}
