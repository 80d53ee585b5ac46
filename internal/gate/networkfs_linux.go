//go:build linux

package gate

import "syscall"

// Network filesystem magic numbers from linux/magic.h, used to detect the
// weaker-guarantee case spec.md §4.8 calls out ("network filesystems are
// detected by mount type on POSIX").
const (
	nfsSuperMagic   = 0x6969
	cifsMagicNumber = 0xff534d42
	smb2MagicNumber = 0xfe534d42
	afsSuperMagic   = 0x5346414f
)

func (v *Verifier) isNetworkFS(path string) bool {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return false
	}
	switch int64(st.Type) {
	case nfsSuperMagic, cifsMagicNumber, smb2MagicNumber, afsSuperMagic:
		return true
	default:
		return false
	}
}
