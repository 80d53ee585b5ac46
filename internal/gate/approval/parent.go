package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
	"github.com/nextlevelbuilder/ralph-gate/internal/gate/shellparse"
	"golang.org/x/time/rate"
)

// SubagentLink is one sub-agent's half of the IPC pipe pair, from the
// parent's point of view: requests arrive on RequestR, responses go out
// on ResponseW. ShellType is the sub-agent's own detected shell, needed so
// a learned shell "Allow always" pattern is recorded under the right
// ShellAllowlistEntry.Shell restriction.
type SubagentLink struct {
	ID        string
	PID       int
	RequestR  io.Reader
	ResponseW io.Writer
	ShellType shellparse.ShellType
}

type inboundRequest struct {
	link *SubagentLink
	req  gate.ApprovalRequest
}

// ParentMultiplexer is the root process's approval loop: it owns the TTY
// and serializes prompts between the root session's own tool calls and any
// outstanding sub-agent requests, per spec.md §4.7's "Proxied" mode and
// §5's "at most one approval prompt active at a time" rule.
//
// The readiness primitive spec.md §5 describes as "poll/select" is
// expressed here the idiomatic Go way: each sub-agent pipe gets its own
// reader goroutine feeding a shared channel, and Run's `select` picks
// whichever is ready first — functionally poll(2)/select(2), without the
// syscall.
type ParentMultiplexer struct {
	direct        gate.ApprovalChannel
	allowlist     *gate.Allowlist
	promptLimiter *rate.Limiter

	mu      sync.Mutex
	inbound chan inboundRequest
	links   map[string]*SubagentLink
}

// NewParentMultiplexer builds the parent's prompt loop. direct is the
// root session's own approval channel (always a *DirectChannel in
// production; the interface exists so tests can substitute a fake without
// touching a TTY). allowlist is the parent's own session allowlist — per
// spec.md §4.7, a sub-agent's "allow always" pattern is added there, not
// to the sub-agent's view.
func NewParentMultiplexer(direct gate.ApprovalChannel, allowlist *gate.Allowlist) *ParentMultiplexer {
	return &ParentMultiplexer{
		direct:    direct,
		allowlist: allowlist,
		// ~100ms poll cadence, per spec.md §5's "bounded timeout (~100 ms)":
		// caps how fast consecutive sub-agent prompts can be dispatched so a
		// burst of requests doesn't flood the TTY faster than a human (or
		// the PID banner) can be read.
		promptLimiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		inbound:       make(chan inboundRequest, 16),
		links:         make(map[string]*SubagentLink),
	}
}

// RegisterSubagent starts a reader goroutine for link and fans its
// requests into the shared inbound channel. Call once per spawned
// sub-agent; the goroutine exits when link.RequestR hits EOF (the
// sub-agent process died or closed its pipe).
func (m *ParentMultiplexer) RegisterSubagent(link *SubagentLink) {
	m.mu.Lock()
	m.links[link.ID] = link
	m.mu.Unlock()

	go func() {
		r := bufio.NewReader(link.RequestR)
		for {
			req, err := ReadRequest(r)
			if err != nil {
				if err != io.EOF {
					slog.Debug("approval.parent: sub-agent request reader stopped", "subagent", link.ID, "error", err)
				}
				m.mu.Lock()
				delete(m.links, link.ID)
				m.mu.Unlock()
				return
			}
			m.inbound <- inboundRequest{link: link, req: req}
		}
	}()
}

// Run services sub-agent requests until done is closed. It is meant to run
// on its own goroutine, separate from the root session's own tool-call
// loop. The root session's orchestrator uses the same DirectChannel, which
// holds a lock for the whole of each prompt, so the two never prompt
// concurrently.
func (m *ParentMultiplexer) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case in := <-m.inbound:
			m.handle(in)
		}
	}
}

func (m *ParentMultiplexer) handle(in inboundRequest) {
	if err := m.promptLimiter.Wait(context.Background()); err != nil {
		return
	}

	displayReq := in.req
	displayReq.Summary = fmt.Sprintf("[pid %d] %s", in.link.PID, displayReq.Summary)

	resp, err := m.direct.RequestApproval(displayReq)
	if err != nil {
		slog.Warn("approval.parent: prompt failed, denying", "subagent", in.link.ID, "error", err)
		resp = gate.ApprovalResponse{RequestID: in.req.RequestID, Decision: gate.DecisionDenied}
	}
	resp.RequestID = in.req.RequestID

	if resp.Decision == gate.DecisionAllowedAlways && resp.Pattern != "" {
		// Visible centrally: the pattern is learned on the parent's own
		// allowlist, never forwarded back to the sub-agent's view. Shell
		// tools are only ever checked against the shell list (policy.go's
		// Evaluate never calls CheckRegex for CategoryShell), so a shell
		// pattern has to land there too or it can never match again.
		if gate.CategoryFor(in.req.Tool) == gate.CategoryShell {
			m.allowlist.AddShellAlways(strings.Fields(resp.Pattern), in.link.ShellType)
		} else if err := m.allowlist.AddRegexAlways(in.req.Tool, resp.Pattern); err != nil {
			slog.Warn("approval.parent: failed to learn sub-agent pattern", "error", err)
		}
	}

	if err := WriteResponse(in.link.ResponseW, resp); err != nil {
		slog.Warn("approval.parent: failed to write response", "subagent", in.link.ID, "error", err)
	}
}
