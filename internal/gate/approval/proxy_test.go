package approval

import (
	"bufio"
	"io"
	"testing"
	"time"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
)

func TestProxyChannelRoundTrip(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	defer reqR.Close()
	defer respW.Close()

	proxy := NewProxyChannel(reqW, respR, time.Second)

	go func() {
		r := bufio.NewReader(reqR)
		req, err := ReadRequest(r)
		if err != nil {
			return
		}
		WriteResponse(respW, gate.ApprovalResponse{RequestID: req.RequestID, Decision: gate.DecisionAllowedOnce})
	}()

	resp, err := proxy.RequestApproval(gate.ApprovalRequest{RequestID: 42, Tool: "shell"})
	if err != nil {
		t.Fatalf("RequestApproval: %v", err)
	}
	if resp.Decision != gate.DecisionAllowedOnce {
		t.Errorf("got decision %v, want AllowedOnce", resp.Decision)
	}
}

func TestProxyChannelTimesOutAsDenied(t *testing.T) {
	reqR, reqW := io.Pipe()
	_, respW := io.Pipe()
	defer reqR.Close()
	defer respW.Close()

	proxy := NewProxyChannel(reqW, neverReads{}, 10*time.Millisecond)
	go io.Copy(io.Discard, reqR)

	resp, err := proxy.RequestApproval(gate.ApprovalRequest{RequestID: 1, Tool: "shell"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Decision != gate.DecisionDenied {
		t.Errorf("expected timeout to deny, got %v", resp.Decision)
	}
}

// neverReads is an io.Reader that blocks forever, simulating a parent that
// never responds.
type neverReads struct{}

func (neverReads) Read(p []byte) (int, error) {
	select {}
}
