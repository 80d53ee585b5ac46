package approval

import "github.com/nextlevelbuilder/ralph-gate/internal/gate"

// AlwaysDenyChannel is a minimal gate.ApprovalChannel that denies every
// request. Useful for a session explicitly run non-interactively with no
// --yolo flag, where the caller wants gate activity logged as explicit
// denials rather than falling through to the orchestrator's own
// no-channel handling.
type AlwaysDenyChannel struct{}

func (AlwaysDenyChannel) RequestApproval(req gate.ApprovalRequest) (gate.ApprovalResponse, error) {
	return gate.ApprovalResponse{RequestID: req.RequestID, Decision: gate.DecisionDenied}, nil
}
