package approval

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
)

func TestWireRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := gate.ApprovalRequest{RequestID: 7, Tool: "shell", Arguments: `{"command":"git status"}`, Summary: "shell: git status"}
	if err := WriteRequest(&buf, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	got, err := ReadRequest(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if got != req {
		t.Errorf("got %+v, want %+v", got, req)
	}
}

func TestWireResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	resp := gate.ApprovalResponse{RequestID: 3, Decision: gate.DecisionAllowedAlways, Pattern: "^/tmp/.*$"}
	if err := WriteResponse(&buf, resp); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	got, err := ReadResponse(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if got != resp {
		t.Errorf("got %+v, want %+v", got, resp)
	}
}

func TestWireTruncatesOversizedSummary(t *testing.T) {
	var buf bytes.Buffer
	huge := make([]byte, maxMessageBytes*2)
	for i := range huge {
		huge[i] = 'x'
	}
	req := gate.ApprovalRequest{RequestID: 1, Tool: "shell", Arguments: "{}", Summary: string(huge)}
	if err := WriteRequest(&buf, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	if buf.Len() > maxMessageBytes {
		t.Errorf("encoded message is %d bytes, want <= %d", buf.Len(), maxMessageBytes)
	}
	got, err := ReadRequest(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if got.RequestID != 1 {
		t.Errorf("request_id corrupted by truncation: got %d", got.RequestID)
	}
}

func TestMultipleFramedMessagesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	WriteRequest(&buf, gate.ApprovalRequest{RequestID: 1, Tool: "a"})
	WriteRequest(&buf, gate.ApprovalRequest{RequestID: 2, Tool: "b"})

	r := bufio.NewReader(&buf)
	first, err := ReadRequest(r)
	if err != nil || first.RequestID != 1 {
		t.Fatalf("first read: %+v, %v", first, err)
	}
	second, err := ReadRequest(r)
	if err != nil || second.RequestID != 2 {
		t.Fatalf("second read: %+v, %v", second, err)
	}
}
