package gate

import (
	"testing"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate/shellparse"
)

type fakeChannel struct {
	responses []ApprovalResponse
	i         int
	requests  []ApprovalRequest
}

func (f *fakeChannel) RequestApproval(req ApprovalRequest) (ApprovalResponse, error) {
	f.requests = append(f.requests, req)
	if f.i >= len(f.responses) {
		return ApprovalResponse{RequestID: req.RequestID, Decision: DecisionDenied}, nil
	}
	resp := f.responses[f.i]
	f.i++
	resp.RequestID = req.RequestID
	return resp, nil
}

func newTestOrchestrator(t *testing.T, ch ApprovalChannel) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := BuildGateConfig(RawGateConfig{})
	if err != nil {
		t.Fatalf("BuildGateConfig: %v", err)
	}
	cfg.Channel = ch
	protected := NewProtectedRegistry(dir, nil, nil, 0)
	t.Cleanup(protected.Close)
	verifier := NewVerifier(dir, true)
	return NewOrchestrator(cfg, protected, verifier, shellparse.POSIX), dir
}

func TestOrchestratorAllowsPlainRead(t *testing.T) {
	o, dir := newTestOrchestrator(t, nil)
	_ = dir
	out := o.CheckAndExecute(ToolCall{Name: "read_file", Arguments: map[string]interface{}{"path": "notes.txt"}})
	if out.Err != nil {
		t.Fatalf("expected allow, got %v", out.Err)
	}
}

func TestOrchestratorDeniesWriteToProtectedFile(t *testing.T) {
	o, dir := newTestOrchestrator(t, nil)
	_ = dir
	out := o.CheckAndExecute(ToolCall{Name: "write_file", Arguments: map[string]interface{}{"path": ".env"}})
	if out.Err == nil {
		t.Fatal("expected ProtectedFile error")
	}
	gerr, ok := out.Err.(*Error)
	if !ok || gerr.Kind != ErrProtectedFile {
		t.Fatalf("expected ErrProtectedFile, got %v", out.Err)
	}
}

func TestOrchestratorNonInteractiveGateBecomesNonInteractive(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	out := o.CheckAndExecute(ToolCall{Name: "write_file", Arguments: map[string]interface{}{"path": "report.txt"}})
	if out.Err == nil {
		t.Fatal("expected NonInteractiveGate with no approval channel")
	}
	gerr, ok := out.Err.(*Error)
	if !ok || gerr.Kind != ErrNonInteractive {
		t.Fatalf("expected ErrNonInteractive, got %v", out.Err)
	}
}

func TestOrchestratorApprovalOnceProceeds(t *testing.T) {
	ch := &fakeChannel{responses: []ApprovalResponse{{Decision: DecisionAllowedOnce}}}
	o, _ := newTestOrchestrator(t, ch)
	out := o.CheckAndExecute(ToolCall{Name: "write_file", Arguments: map[string]interface{}{"path": "report.txt"}})
	if out.Err != nil {
		t.Fatalf("expected allow after approval, got %v", out.Err)
	}
	if out.ApprovedPath == nil {
		t.Fatal("expected an ApprovedPath for a path-bearing tool")
	}
}

func TestOrchestratorAbortStopsSession(t *testing.T) {
	ch := &fakeChannel{responses: []ApprovalResponse{{Decision: DecisionAborted}}}
	o, _ := newTestOrchestrator(t, ch)
	out := o.CheckAndExecute(ToolCall{Name: "write_file", Arguments: map[string]interface{}{"path": "report.txt"}})
	if out.Err == nil {
		t.Fatal("expected Aborted error")
	}
	if !o.Aborted() {
		t.Fatal("expected session to be marked aborted")
	}
	out2 := o.CheckAndExecute(ToolCall{Name: "read_file", Arguments: map[string]interface{}{"path": "notes.txt"}})
	gerr, ok := out2.Err.(*Error)
	if !ok || gerr.Kind != ErrAborted {
		t.Fatalf("expected subsequent calls to fail with ErrAborted, got %v", out2.Err)
	}
}

func TestOrchestratorDangerousShellBypassesAllowlist(t *testing.T) {
	ch := &fakeChannel{responses: []ApprovalResponse{{Decision: DecisionDenied}}}
	o, _ := newTestOrchestrator(t, ch)
	if err := o.cfg.Allowlist.AddRegexAlways("never-matches", "x"); err != nil {
		t.Fatal(err)
	}
	o.cfg.Allowlist.AddShellAlways([]string{"git"}, shellparse.POSIX)
	out := o.CheckAndExecute(ToolCall{Name: "shell", Arguments: map[string]interface{}{"command": "git status; rm -rf /"}})
	if out.Err == nil {
		t.Fatal("expected denial for dangerous chained command despite matching allowlist prefix")
	}
}

func TestOrchestratorYoloAllowsGateButNotDangerous(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	o.cfg.Yolo = true
	out := o.CheckAndExecute(ToolCall{Name: "write_file", Arguments: map[string]interface{}{"path": "report.txt"}})
	if out.Err != nil {
		t.Fatalf("expected yolo to allow a gated write, got %v", out.Err)
	}

	out2 := o.CheckAndExecute(ToolCall{Name: "shell", Arguments: map[string]interface{}{"command": "rm -rf /"}})
	if out2.Err == nil {
		t.Fatal("expected yolo to still deny a dangerous command")
	}
}

func TestOrchestratorRateLimitsAfterRepeatedDenials(t *testing.T) {
	// fakeChannel with no scripted responses denies every request.
	o, _ := newTestOrchestrator(t, &fakeChannel{})
	var lastErr error
	for i := 0; i < 4; i++ {
		out := o.CheckAndExecute(ToolCall{Name: "write_file", Arguments: map[string]interface{}{"path": "report.txt"}})
		lastErr = out.Err
	}
	gerr, ok := lastErr.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %v", lastErr)
	}
	if gerr.Kind != ErrRateLimited && gerr.Kind != ErrOperationDenied {
		t.Fatalf("unexpected kind %v", gerr.Kind)
	}
}
