package gate

import (
	"regexp"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate/shellparse"
)

// shellEquivalents is the cross-shell command-name equivalence table from
// spec.md §4.4. Each row lists names treated as the same command when
// checking a shell allowlist prefix — so an "Allow always" learned against
// `ls` also covers `Get-ChildItem` on a PowerShell session.
var shellEquivalents = [][]string{
	{"ls", "dir", "get-childitem", "gci"},
	{"cat", "type", "get-content", "gc"},
	{"rm", "del", "remove-item", "ri"},
	{"cp", "copy", "copy-item", "cpi"},
	{"mv", "move", "move-item", "mi"},
	{"pwd", "get-location", "gl"},
}

var equivalenceRow = func() map[string]int {
	m := make(map[string]int)
	for i, row := range shellEquivalents {
		for _, name := range row {
			m[name] = i
		}
	}
	return m
}()

// sameCommandFamily reports whether a and b are the same command under the
// cross-shell equivalence table, case-insensitively, falling back to plain
// equality for commands not in the table.
func sameCommandFamily(a, b string) bool {
	al, bl := strings.ToLower(a), strings.ToLower(b)
	if al == bl {
		return true
	}
	ra, aok := equivalenceRow[al]
	rb, bok := equivalenceRow[bl]
	return aok && bok && ra == rb
}

// Allowlist holds two flat, append-ordered lists: regex entries (non-shell
// tools) and shell entries (command prefixes). Config-file entries are
// loaded first; session "Allow always" entries are appended afterward and
// dropped at session end — callers must not persist the session-added
// slice back to disk and must not copy it when cloning a GateConfig for a
// sub-agent (spec.md §4.4, §4.9 sub-agent cloning rule).
type Allowlist struct {
	mu                sync.RWMutex
	regexEntries      []AllowlistEntry
	shellEntries      []ShellAllowlistEntry
	sessionStart      int // index into regexEntries where session-added entries begin
	shellSessionStart int // index into shellEntries where session-added entries begin
}

// NewAllowlist builds an Allowlist from persisted config entries. Patterns
// that fail to compile are dropped with their error returned, so a single
// bad config entry doesn't prevent the rest from loading.
func NewAllowlist(regexCfg []AllowlistEntry, shellCfg []ShellAllowlistEntry) (*Allowlist, []error) {
	a := &Allowlist{}
	var errs []error
	for _, e := range regexCfg {
		re, err := regexp.Compile(e.Pattern)
		if err != nil {
			errs = append(errs, newErr(ErrInvalidConfig, "allowlist pattern %q for tool %q: %v", e.Pattern, e.Tool, err))
			continue
		}
		e.re = re
		a.regexEntries = append(a.regexEntries, e)
	}
	a.shellEntries = append(a.shellEntries, shellCfg...)
	a.sessionStart = len(a.regexEntries)
	a.shellSessionStart = len(a.shellEntries)
	return a, errs
}

// CheckRegex implements check_regex(tool, target) -> bool from spec.md
// §4.4: a linear scan requiring exact tool-name equality and a regex match
// against target.
func (a *Allowlist) CheckRegex(tool, target string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, e := range a.regexEntries {
		if e.Tool == tool && e.re != nil && e.re.MatchString(target) {
			return true
		}
	}
	return false
}

// CheckShell implements check_shell(tokens, shellType) -> bool. Callers
// must not invoke this for a hazardous ParsedCommand — the orchestrator
// short-circuits to "not allowlisted" in that case per spec.md §4.4.
func (a *Allowlist) CheckShell(tokens []string, shell shellparse.ShellType) bool {
	if len(tokens) == 0 {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, e := range a.shellEntries {
		if e.Shell != "" && string(e.Shell) != string(shell) {
			continue
		}
		if len(e.Prefix) == 0 || len(e.Prefix) > len(tokens) {
			continue
		}
		if !sameCommandFamily(e.Prefix[0], tokens[0]) {
			continue
		}
		matched := true
		for i := 1; i < len(e.Prefix); i++ {
			if e.Prefix[i] != tokens[i] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// AddRegexAlways appends a session-scoped regex "Allow always" entry.
func (a *Allowlist) AddRegexAlways(tool, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return newErr(ErrInvalidConfig, "allow-always pattern %q: %v", pattern, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.regexEntries = append(a.regexEntries, AllowlistEntry{Tool: tool, Pattern: pattern, re: re})
	return nil
}

// AddShellAlways appends a session-scoped shell "Allow always" entry.
func (a *Allowlist) AddShellAlways(prefix []string, shell shellparse.ShellType) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shellEntries = append(a.shellEntries, ShellAllowlistEntry{Prefix: prefix, Shell: ShellType(shell)})
}

// CloneForSubagent returns a new Allowlist containing only the
// config-loaded entries (both regex and shell), dropping any session-added
// "Allow always" ones, per spec.md §4.9's sub-agent cloning rule.
func (a *Allowlist) CloneForSubagent() *Allowlist {
	a.mu.RLock()
	defer a.mu.RUnlock()
	clone := &Allowlist{sessionStart: a.sessionStart, shellSessionStart: a.shellSessionStart}
	clone.regexEntries = append(clone.regexEntries, a.regexEntries[:a.sessionStart]...)
	clone.shellEntries = append(clone.shellEntries, a.shellEntries[:a.shellSessionStart]...)
	return clone
}
