//go:build !unix

package gate

// noFollowFlag is 0 on platforms without O_NOFOLLOW (Windows). On these
// platforms Verifier.OpenExisting opens with no no-follow flag and no
// reparse-point check; only CreateNew goes through os.OpenRoot (see
// verifier.go).
const noFollowFlag = 0
