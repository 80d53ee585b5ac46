package gate

import (
	"runtime"
	"strings"
)

// NormalizedPath is a platform-independent form used only for comparison
// and allowlist/protected-file matching — never for opening files. Opening
// always goes through the Verifier, which opens the path it resolved at
// approval time and checks the file identity recorded then.
type NormalizedPath struct {
	Canonical  string
	Basename   string
	IsAbsolute bool
}

// caseInsensitiveFS reports whether paths should be lowercased for
// comparison. Matches the teacher's Windows-aware path helpers in
// internal/tools/filesystem.go, generalized to all three target platforms.
func caseInsensitiveFS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// Normalize canonicalizes a user-supplied path string per spec.md §4.1.
func Normalize(path string) (NormalizedPath, error) {
	if path == "" {
		return NormalizedPath{}, newErr(ErrInvalidPath, "empty path")
	}
	if strings.IndexByte(path, 0) >= 0 {
		return NormalizedPath{}, newErr(ErrInvalidPath, "path contains a null byte")
	}
	if len(path) > maxPathLength() {
		return NormalizedPath{}, newErr(ErrInvalidPath, "path exceeds maximum length")
	}

	s := strings.ReplaceAll(path, `\`, "/")

	if caseInsensitiveFS() {
		s = strings.ToLower(s)
	}

	// Drive letter: "C:..." -> "/c/..."
	if len(s) >= 2 && s[1] == ':' && isASCIILetter(s[0]) {
		drive := strings.ToLower(string(s[0]))
		rest := s[2:]
		if !strings.HasPrefix(rest, "/") {
			rest = "/" + rest
		}
		s = "/" + drive + rest
	} else if strings.HasPrefix(s, "//") {
		// UNC: "//server/share/..." -> "/unc/server/share/..."
		s = "/unc/" + strings.TrimPrefix(s, "//")
	}

	isAbs := strings.HasPrefix(s, "/")

	s = collapseSlashes(s)

	if len(s) > 1 && strings.HasSuffix(s, "/") {
		s = strings.TrimRight(s, "/")
		if s == "" {
			s = "/"
		}
	}

	base := s
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		base = s[idx+1:]
	}

	return NormalizedPath{Canonical: s, Basename: base, IsAbsolute: isAbs}, nil
}

func collapseSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSlash := false
	for _, r := range s {
		if r == '/' {
			if lastSlash {
				continue
			}
			lastSlash = true
		} else {
			lastSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// maxPathLength returns the platform path length ceiling used for
// InvalidPath rejection. Every platform is held to the POSIX PATH_MAX of
// 4096 so behavior doesn't vary by build target; Windows' legacy MAX_PATH
// (260) is not enforced.
func maxPathLength() int {
	return 4096
}
