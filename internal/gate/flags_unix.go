//go:build unix

package gate

import "syscall"

// noFollowFlag is OR'd into the open flags for existing-file opens so the
// kernel rejects the open outright if the final path component is a
// symlink, per spec.md §4.8's POSIX O_NOFOLLOW requirement.
const noFollowFlag = syscall.O_NOFOLLOW
