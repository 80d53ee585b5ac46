package approval

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
)

// promptChoice is the five-way answer spec.md §4.7 lists for the direct
// prompt: allow once, deny, allow always, details, abort.
type promptChoice string

const (
	choiceAllowOnce   promptChoice = "allow_once"
	choiceDeny        promptChoice = "deny"
	choiceAllowAlways promptChoice = "allow_always"
	choiceDetails     promptChoice = "details"
	choiceAbort       promptChoice = "abort"
)

// DirectChannel prompts on the process's own TTY. It must only be
// constructed for the root process — spec.md §3/§4.7 forbid a sub-agent
// from touching the TTY at all.
type DirectChannel struct {
	mu                sync.Mutex // one prompt on the TTY at a time
	patternForRequest func(req gate.ApprovalRequest) (string, bool)
	confirmPattern    func(pattern string) bool
}

// NewDirectChannel builds a TTY-backed ApprovalChannel. patternForRequest
// derives the "allow always" pattern for a request (path/shell/url, per
// spec.md §4.7's three pattern-generation rules); confirmPattern is
// consulted whenever that pattern would match more than the current
// operation, and should itself prompt the user. A nil confirmPattern
// accepts every generated pattern without the extra confirmation step —
// acceptable only when patternForRequest never returns a broader-than-one
// pattern (e.g. in tests).
func NewDirectChannel(patternForRequest func(req gate.ApprovalRequest) (string, bool), confirmPattern func(pattern string) bool) *DirectChannel {
	return &DirectChannel{patternForRequest: patternForRequest, confirmPattern: confirmPattern}
}

// RequestApproval implements gate.ApprovalChannel.
func (d *DirectChannel) RequestApproval(req gate.ApprovalRequest) (gate.ApprovalResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	choice, err := d.prompt(req)
	if err != nil {
		return gate.ApprovalResponse{}, err
	}

	switch choice {
	case choiceAllowOnce:
		return gate.ApprovalResponse{RequestID: req.RequestID, Decision: gate.DecisionAllowedOnce}, nil
	case choiceDeny:
		return gate.ApprovalResponse{RequestID: req.RequestID, Decision: gate.DecisionDenied}, nil
	case choiceAbort:
		return gate.ApprovalResponse{RequestID: req.RequestID, Decision: gate.DecisionAborted}, nil
	case choiceAllowAlways:
		pattern := ""
		if d.patternForRequest != nil {
			p, broad := d.patternForRequest(req)
			pattern = p
			if broad && d.confirmPattern != nil && !d.confirmPattern(p) {
				return gate.ApprovalResponse{RequestID: req.RequestID, Decision: gate.DecisionAllowedOnce}, nil
			}
		}
		return gate.ApprovalResponse{RequestID: req.RequestID, Decision: gate.DecisionAllowedAlways, Pattern: pattern}, nil
	default:
		return gate.ApprovalResponse{RequestID: req.RequestID, Decision: gate.DecisionDenied}, nil
	}
}

// prompt renders the huh select for one request. A "details" choice loops
// back into a second prompt showing the full arguments before re-asking.
func (d *DirectChannel) prompt(req gate.ApprovalRequest) (promptChoice, error) {
	for {
		var choice promptChoice
		title := fmt.Sprintf("%s wants to run: %s", req.Tool, req.Summary)
		err := huh.NewSelect[promptChoice]().
			Title(title).
			Options(
				huh.NewOption("Allow once", choiceAllowOnce),
				huh.NewOption("Deny", choiceDeny),
				huh.NewOption("Allow always", choiceAllowAlways),
				huh.NewOption("Show details", choiceDetails),
				huh.NewOption("Abort", choiceAbort),
			).
			Value(&choice).
			Run()
		if err != nil {
			return choiceDeny, fmt.Errorf("approval prompt: %w", err)
		}
		if choice != choiceDetails {
			return choice, nil
		}
		if err := huh.NewNote().Title("Arguments").Description(req.Arguments).Run(); err != nil {
			return choiceDeny, fmt.Errorf("approval details: %w", err)
		}
	}
}
