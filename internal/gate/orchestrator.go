package gate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/nextlevelbuilder/ralph-gate/internal/gate/shellparse"
)

// writeCategories are the categories whose path argument must pass the
// ProtectionCheck state before anything else runs.
var writeCategories = map[GateCategory]bool{
	CategoryFileWrite: true,
}

// pathBearingTools declares which tools carry a path argument that needs
// Verifier treatment in the PathVerify state.
var pathBearingTools = map[string]bool{
	"read_file":  true,
	"write_file": true,
	"edit_file":  true,
}

// Outcome is what check_and_execute returns: either a verified handle to
// hand to the tool executor, or a structured *Error explaining the
// rejection. On success ApprovedPath is set for path-bearing tools and
// ParsedCommand for shell tools; other tools (e.g. web_fetch) carry neither.
type Outcome struct {
	Call           ToolCall
	ApprovedPath   *ApprovedPath
	ParsedCommand  *shellparse.ParsedCommand
	Err            error
}

// Orchestrator runs the Start -> ProtectionCheck -> RateCheck -> PolicyEval
// -> [Approval] -> PathVerify -> Execute -> Done state machine from spec.md
// §4.9 for each tool call. It does not perform Execute itself — callers
// (internal/executor) take the Outcome and hand it to the real tool.
type Orchestrator struct {
	cfg        *GateConfig
	protected  *ProtectedRegistry
	verifier   *Verifier
	policy     *PolicyEvaluator
	shellType  shellparse.ShellType
	nextReqID  uint32
	aborted    bool
}

// NewOrchestrator wires a GateConfig to the protected-file registry and
// path verifier for one session (or one sub-agent).
func NewOrchestrator(cfg *GateConfig, protected *ProtectedRegistry, verifier *Verifier, shell shellparse.ShellType) *Orchestrator {
	slog.Debug("gate.orchestrator: session started", "session_id", sessionID, "shell", shell)
	return &Orchestrator{
		cfg:       cfg,
		protected: protected,
		verifier:  verifier,
		policy:    NewPolicyEvaluator(cfg.Categories, cfg.Allowlist),
		shellType: shell,
	}
}

// Aborted reports whether the session-level abort (spec.md §4.9 Approval
// state, "Aborted -> session-level abort") has been triggered. Once set,
// every subsequent CheckAndExecute call fails fast with ErrAborted.
func (o *Orchestrator) Aborted() bool { return o.aborted }

// CheckAndExecute runs the full pipeline for one tool call and returns an
// Outcome. It never performs the tool's side effect.
func (o *Orchestrator) CheckAndExecute(call ToolCall) Outcome {
	if o.aborted {
		return Outcome{Call: call, Err: newErr(ErrAborted, "session aborted")}
	}
	if !o.cfg.Enabled {
		return o.allowWithoutGate(call)
	}

	// ProtectionCheck
	if path, ok := o.pathArgument(call); ok && writeCategories[CategoryFor(call.Name)] {
		o.protected.ForceRefresh()
		if o.protected.IsProtected(path) {
			return Outcome{Call: call, Err: newPathErr(ErrProtectedFile, path, "file is protected and cannot be modified")}
		}
	}

	// RateCheck
	if o.cfg.Denials.IsRateLimited(call.Name) {
		secs := o.cfg.Denials.RetryAfterSeconds(call.Name)
		return Outcome{Call: call, Err: &Error{Kind: ErrRateLimited, Message: fmt.Sprintf("%s is rate limited after repeated denials", call.Name), RetryAfter: secs}}
	}

	// PolicyEval
	action, parsed := o.policy.Evaluate(call, o.shellType)
	if o.cfg.Yolo && action == ActionGate && !(parsed != nil && parsed.IsDangerous) {
		action = ActionAllow
	}

	switch action {
	case ActionDeny:
		o.cfg.Denials.RecordDenial(call.Name)
		return Outcome{Call: call, Err: newErr(ErrOperationDenied, "%s is denied by policy", call.Name)}
	case ActionAllow:
		return o.finish(call, parsed)
	}

	// action == ActionGate: Approval
	decision, pattern, err := o.requestApproval(call, parsed)
	if err != nil {
		return Outcome{Call: call, Err: err}
	}
	switch decision {
	case DecisionDenied:
		o.cfg.Denials.RecordDenial(call.Name)
		return Outcome{Call: call, Err: newErr(ErrOperationDenied, "%s denied by approver", call.Name)}
	case DecisionAborted:
		o.aborted = true
		return Outcome{Call: call, Err: newErr(ErrAborted, "aborted by approver")}
	case DecisionAllowedAlways:
		o.learnPattern(call, parsed, pattern)
		fallthrough
	case DecisionAllowedOnce:
		o.cfg.Denials.Reset(call.Name)
		return o.finish(call, parsed)
	default:
		return Outcome{Call: call, Err: newErr(ErrInvalidConfig, "unknown approval decision %q", decision)}
	}
}

// finish runs PathVerify (for path-bearing tools) and returns the Outcome
// the tool executor will act on.
func (o *Orchestrator) finish(call ToolCall, parsed *shellparse.ParsedCommand) Outcome {
	if !pathBearingTools[call.Name] {
		return Outcome{Call: call, ParsedCommand: parsed}
	}
	path, ok := o.pathArgument(call)
	if !ok {
		return Outcome{Call: call, Err: newErr(ErrInvalidConfig, "%s requires a path argument", call.Name)}
	}
	ap, err := o.verifier.Approve(path)
	if err != nil {
		return Outcome{Call: call, Err: err}
	}
	return Outcome{Call: call, ApprovedPath: ap}
}

func (o *Orchestrator) allowWithoutGate(call ToolCall) Outcome {
	var parsed *shellparse.ParsedCommand
	if CategoryFor(call.Name) == CategoryShell {
		raw, _ := call.Arguments["command"].(string)
		p := shellparse.Parse(raw, o.shellType)
		parsed = &p
	}
	return o.finish(call, parsed)
}

func (o *Orchestrator) pathArgument(call ToolCall) (string, bool) {
	mt := MatchTargetFor(call.Name)
	if mt != "path" {
		return "", false
	}
	v, ok := call.Arguments["path"].(string)
	return v, ok && v != ""
}

// requestApproval builds an ApprovalRequest and resolves it through the
// configured channel. A nil channel means no TTY and no proxy is
// available — spec.md §4.7/§8's non-interactive rule applies: Gate becomes
// NonInteractiveGate, distinct from an approver actively denying.
func (o *Orchestrator) requestApproval(call ToolCall, parsed *shellparse.ParsedCommand) (ApprovalDecision, string, error) {
	if o.cfg.Channel == nil {
		return "", "", newErr(ErrNonInteractive, "%s requires approval but no approval channel is available", call.Name)
	}

	argsJSON, _ := json.Marshal(call.Arguments)
	req := ApprovalRequest{
		RequestID: o.newRequestID(),
		Tool:      call.Name,
		Arguments: string(argsJSON),
		Summary:   summarize(call, parsed),
	}

	resp, err := o.cfg.Channel.RequestApproval(req)
	if err != nil {
		return DecisionDenied, "", newErr(ErrApprovalTimeout, "approval channel error: %v", err)
	}
	return resp.Decision, resp.Pattern, nil
}

func (o *Orchestrator) newRequestID() uint32 {
	o.nextReqID++
	if o.nextReqID == 0 {
		o.nextReqID = 1
	}
	return o.nextReqID
}

// summarize builds the human-readable one-liner shown alongside an
// approval prompt.
func summarize(call ToolCall, parsed *shellparse.ParsedCommand) string {
	if parsed != nil {
		return fmt.Sprintf("%s: %v", call.Name, parsed.Tokens)
	}
	if v, ok := call.Arguments["path"]; ok {
		return fmt.Sprintf("%s %v", call.Name, v)
	}
	if v, ok := call.Arguments["url"]; ok {
		return fmt.Sprintf("%s %v", call.Name, v)
	}
	return call.Name
}

// learnPattern implements the "Allow always" branch of PolicyEval/Approval:
// add the generated (and, per spec.md §4.7, user-confirmed before this
// call is reached) pattern to the allowlist.
func (o *Orchestrator) learnPattern(call ToolCall, parsed *shellparse.ParsedCommand, pattern string) {
	if pattern == "" {
		return
	}
	if parsed != nil {
		tokens := tokenizePatternPrefix(pattern)
		o.cfg.Allowlist.AddShellAlways(tokens, shellparse.ShellType(parsed.Shell))
		return
	}
	if err := o.cfg.Allowlist.AddRegexAlways(call.Name, pattern); err != nil {
		slog.Warn("gate.orchestrator: failed to learn pattern", "tool", call.Name, "pattern", pattern, "error", err)
	}
}

func tokenizePatternPrefix(pattern string) []string {
	var tokens []string
	var cur []byte
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == ' ' {
			if len(cur) > 0 {
				tokens = append(tokens, string(cur))
				cur = nil
			}
			continue
		}
		cur = append(cur, pattern[i])
	}
	if len(cur) > 0 {
		tokens = append(tokens, string(cur))
	}
	return tokens
}

// sessionID is a per-process identifier surfaced in logs (not the
// allowlist/approval protocol, which uses RequestID) so operators can
// correlate gate activity with a specific invocation across log lines.
var sessionID = uuid.NewString()

// IsInteractive reports whether stdin is a TTY — used by callers building
// a GateConfig to decide whether a direct approval channel can be wired up
// at all, per spec.md §4.7's non-interactive rule.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}
