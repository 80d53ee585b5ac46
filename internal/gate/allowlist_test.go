package gate

import (
	"testing"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate/shellparse"
)

func TestCheckRegex(t *testing.T) {
	a, errs := NewAllowlist([]AllowlistEntry{
		{Tool: "read_file", Pattern: `^/workspace/.*\.go$`},
	}, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errs: %v", errs)
	}
	if !a.CheckRegex("read_file", "/workspace/main.go") {
		t.Error("expected match")
	}
	if a.CheckRegex("read_file", "/etc/passwd") {
		t.Error("expected no match")
	}
	if a.CheckRegex("write_file", "/workspace/main.go") {
		t.Error("tool name must match exactly")
	}
}

func TestCheckShellPrefixAndEquivalence(t *testing.T) {
	a, _ := NewAllowlist(nil, []ShellAllowlistEntry{
		{Prefix: []string{"ls", "-la"}},
	})
	if !a.CheckShell([]string{"ls", "-la", "/tmp"}, shellparse.POSIX) {
		t.Error("expected prefix match")
	}
	if !a.CheckShell([]string{"Get-ChildItem", "-la", "/tmp"}, shellparse.PowerShell) {
		t.Error("expected cross-shell equivalence match")
	}
	if a.CheckShell([]string{"ls", "-R"}, shellparse.POSIX) {
		t.Error("prefix token mismatch should not match")
	}
}

func TestCheckShellRespectsShellRestriction(t *testing.T) {
	a, _ := NewAllowlist(nil, []ShellAllowlistEntry{
		{Prefix: []string{"git", "status"}, Shell: ShellPOSIX},
	})
	if a.CheckShell([]string{"git", "status"}, shellparse.PowerShell) {
		t.Error("entry restricted to posix should not match powershell")
	}
	if !a.CheckShell([]string{"git", "status"}, shellparse.POSIX) {
		t.Error("expected match on posix")
	}
}

func TestAllowAlwaysNotInheritedBySubagent(t *testing.T) {
	a, _ := NewAllowlist([]AllowlistEntry{{Tool: "read_file", Pattern: `^/a`}}, nil)
	if err := a.AddRegexAlways("read_file", "^/b"); err != nil {
		t.Fatalf("AddRegexAlways: %v", err)
	}
	if !a.CheckRegex("read_file", "/b/x") {
		t.Fatal("session entry should be active in parent")
	}
	clone := a.CloneForSubagent()
	if clone.CheckRegex("read_file", "/b/x") {
		t.Error("sub-agent clone must not inherit session-added entries")
	}
	if !clone.CheckRegex("read_file", "/a/x") {
		t.Error("sub-agent clone must keep config-loaded entries")
	}
}

func TestShellAllowAlwaysNotInheritedBySubagent(t *testing.T) {
	a, _ := NewAllowlist(nil, []ShellAllowlistEntry{{Prefix: []string{"git", "status"}}})
	a.AddShellAlways([]string{"ls", "-la"}, shellparse.POSIX)
	if !a.CheckShell([]string{"ls", "-la", "/tmp"}, shellparse.POSIX) {
		t.Fatal("session shell entry should be active in parent")
	}
	clone := a.CloneForSubagent()
	if clone.CheckShell([]string{"ls", "-la", "/tmp"}, shellparse.POSIX) {
		t.Error("sub-agent clone must not inherit session-added shell entries")
	}
	if !clone.CheckShell([]string{"git", "status"}, shellparse.POSIX) {
		t.Error("sub-agent clone must keep config-loaded shell entries")
	}
}
