// Package approval implements the two ApprovalChannel transports named in
// spec.md §4.7: a direct TTY prompter for the root process, and a proxied
// IPC client/server pair for sub-agents, which never own a TTY themselves.
package approval

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// GeneratePathPattern implements spec.md §4.7's path pattern-generation
// rule: directory component plus a conservative wildcard over the
// extension, or an exact match for a root-level file.
//
//	./src/foo/bar.c -> ^\./src/foo/.*\.c$
func GeneratePathPattern(p string) string {
	dotPrefix := strings.HasPrefix(p, "./")
	p = path.Clean(p)
	dir := path.Dir(p)
	base := path.Base(p)
	ext := path.Ext(base)

	// path.Clean drops a leading "./"; put it back so the pattern still
	// matches the path argument as the caller wrote it.
	if dotPrefix {
		p = "./" + p
		if dir != "." {
			dir = "./" + dir
		}
	}

	if dir == "." || dir == "/" {
		return "^" + regexp.QuoteMeta(p) + "$"
	}
	if ext == "" {
		return "^" + regexp.QuoteMeta(dir) + "/" + regexp.QuoteMeta(base) + "$"
	}
	return "^" + regexp.QuoteMeta(dir) + "/.*" + regexp.QuoteMeta(ext) + "$"
}

// GenerateShellPattern implements spec.md §4.7's shell pattern rule: base
// command plus first argument, never including an operator-bearing token.
// Expects tokens already free of any chain/pipe/subshell/redirect hazard
// (the orchestrator never reaches Approval's "allow always" path with a
// hazardous ParsedCommand in the first place).
func GenerateShellPattern(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) == 1 {
		return []string{tokens[0]}
	}
	return []string{tokens[0], tokens[1]}
}

// GenerateURLPattern implements spec.md §4.7's URL pattern rule: scheme +
// exact hostname + (/|$), which prevents a sibling-subdomain bypass like
// approving example.com and having it match evil.example.com.
func GenerateURLPattern(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("cannot parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q missing scheme or host", rawURL)
	}
	return fmt.Sprintf("^%s://%s(/|$)", regexp.QuoteMeta(u.Scheme), regexp.QuoteMeta(u.Host)), nil
}

// IsBroaderThanOperation reports whether pattern would match more than the
// single operation it was generated from — e.g. a directory wildcard
// pattern over an extension matches sibling files, not just the one just
// approved. Per spec.md §4.7, such patterns must be confirmed by the user
// before being added; this is a conservative heuristic callers use to
// decide whether to show that extra confirmation step.
func IsBroaderThanOperation(pattern, exactOperation string) bool {
	// A URL pattern ending in (/|$) covers every path on the host.
	return strings.Contains(pattern, ".*") || strings.Contains(pattern, "*") || strings.HasSuffix(pattern, "(/|$)")
}
