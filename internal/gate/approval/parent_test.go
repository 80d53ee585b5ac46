package approval

import (
	"bytes"
	"testing"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
	"github.com/nextlevelbuilder/ralph-gate/internal/gate/shellparse"
)

type fakeDirectChannel struct {
	resp gate.ApprovalResponse
}

func (f *fakeDirectChannel) RequestApproval(req gate.ApprovalRequest) (gate.ApprovalResponse, error) {
	resp := f.resp
	resp.RequestID = req.RequestID
	return resp, nil
}

func newTestAllowlist(t *testing.T) *gate.Allowlist {
	t.Helper()
	a, errs := gate.NewAllowlist(nil, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errs: %v", errs)
	}
	return a
}

func TestParentMultiplexerLearnsShellPatternAsShellEntry(t *testing.T) {
	allowlist := newTestAllowlist(t)
	fake := &fakeDirectChannel{resp: gate.ApprovalResponse{Decision: gate.DecisionAllowedAlways, Pattern: "git status"}}
	m := NewParentMultiplexer(fake, allowlist)

	link := &SubagentLink{ID: "sub-1", ShellType: shellparse.POSIX, ResponseW: &bytes.Buffer{}}
	m.handle(inboundRequest{link: link, req: gate.ApprovalRequest{RequestID: 1, Tool: "shell", Summary: "run git status"}})

	if allowlist.CheckRegex("shell", "git status") {
		t.Fatal("shell tool pattern must not be learned as a regex entry")
	}
	if !allowlist.CheckShell([]string{"git", "status"}, shellparse.POSIX) {
		t.Fatal("expected shell pattern to be learned as a shell allowlist entry")
	}
}

func TestParentMultiplexerLearnsPathPatternAsRegexEntry(t *testing.T) {
	allowlist := newTestAllowlist(t)
	fake := &fakeDirectChannel{resp: gate.ApprovalResponse{Decision: gate.DecisionAllowedAlways, Pattern: `^/workspace/.*\.go$`}}
	m := NewParentMultiplexer(fake, allowlist)

	link := &SubagentLink{ID: "sub-1", ResponseW: &bytes.Buffer{}}
	m.handle(inboundRequest{link: link, req: gate.ApprovalRequest{RequestID: 1, Tool: "read_file", Summary: "read main.go"}})

	if !allowlist.CheckRegex("read_file", "/workspace/main.go") {
		t.Fatal("expected path pattern to be learned as a regex allowlist entry")
	}
}
