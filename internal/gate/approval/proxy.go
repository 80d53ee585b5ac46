package approval

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
)

// DefaultProxyTimeout is the sub-agent's default wait for a parent
// response before treating the request as denied, per spec.md §4.7/§5.
const DefaultProxyTimeout = 5 * time.Minute

// ProxyChannel is the sub-agent-side ApprovalChannel: it serializes each
// request over requestW and blocks on responseR for the matching reply.
// Exactly one request may be outstanding at a time per ProxyChannel, which
// matches the orchestrator's single-threaded check_and_execute model.
type ProxyChannel struct {
	requestW  io.Writer
	responseR *bufio.Reader
	timeout   time.Duration

	mu sync.Mutex
}

// NewProxyChannel wraps the sub-agent's ends of its request/response
// pipes. timeout <= 0 uses DefaultProxyTimeout.
func NewProxyChannel(requestW io.Writer, responseR io.Reader, timeout time.Duration) *ProxyChannel {
	if timeout <= 0 {
		timeout = DefaultProxyTimeout
	}
	return &ProxyChannel{requestW: requestW, responseR: bufio.NewReader(responseR), timeout: timeout}
}

// RequestApproval implements gate.ApprovalChannel. On timeout it returns a
// Denied decision rather than an error — spec.md §4.7: "On timeout, the
// sub-agent treats the request as denied."
func (p *ProxyChannel) RequestApproval(req gate.ApprovalRequest) (gate.ApprovalResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := WriteRequest(p.requestW, req); err != nil {
		return gate.ApprovalResponse{}, fmt.Errorf("approval proxy: write request: %w", err)
	}

	type result struct {
		resp gate.ApprovalResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := ReadResponse(p.responseR)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return gate.ApprovalResponse{}, fmt.Errorf("approval proxy: read response: %w", r.err)
		}
		if r.resp.RequestID != req.RequestID {
			return gate.ApprovalResponse{RequestID: req.RequestID, Decision: gate.DecisionDenied}, fmt.Errorf("approval proxy: response request_id mismatch: got %d want %d", r.resp.RequestID, req.RequestID)
		}
		return r.resp, nil
	case <-time.After(p.timeout):
		return gate.ApprovalResponse{RequestID: req.RequestID, Decision: gate.DecisionDenied}, nil
	}
}
