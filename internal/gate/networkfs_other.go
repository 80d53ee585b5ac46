//go:build !linux

package gate

// isNetworkFS has no portable detection outside Linux's statfs magic
// numbers; darwin and windows fall back to "assume local", which means no
// spurious warning but also no weaker-guarantee notice on an actual network
// mount on those platforms. Non-goal per spec.md's scope (no mentioned
// platform-specific network-fs probing beyond "mount type on POSIX /
// volume information on Windows"); revisit if a Windows build target is
// added.
func (v *Verifier) isNetworkFS(path string) bool { return false }
