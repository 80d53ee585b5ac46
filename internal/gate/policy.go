package gate

import (
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate/shellparse"
)

// PolicyEvaluator maps a ToolCall to a GateAction per spec.md §4.5.
type PolicyEvaluator struct {
	categories map[GateCategory]GateAction
	allowlist  *Allowlist
}

// NewPolicyEvaluator builds an evaluator from the per-category action map.
// Categories absent from the map default to ActionGate, the conservative
// choice.
func NewPolicyEvaluator(categories map[GateCategory]GateAction, allowlist *Allowlist) *PolicyEvaluator {
	return &PolicyEvaluator{categories: categories, allowlist: allowlist}
}

// Evaluate returns the GateAction for call, and the ParsedCommand when the
// tool is a shell tool whose category action is Gate (nil otherwise,
// including shell tools whose category is Allow or Deny), so callers can
// reuse the parse result instead of re-tokenizing.
func (p *PolicyEvaluator) Evaluate(call ToolCall, shell shellparse.ShellType) (GateAction, *shellparse.ParsedCommand) {
	category := CategoryFor(call.Name)
	action := p.categories[category]
	if action == "" {
		action = ActionGate
	}

	if action == ActionDeny {
		return ActionDeny, nil
	}
	if action == ActionAllow {
		return ActionAllow, nil
	}

	// action == ActionGate: consult the allowlist.
	if category == CategoryShell {
		raw, _ := call.Arguments["command"].(string)
		parsed := shellparse.Parse(raw, shell)
		if parsed.IsHazardous() {
			return ActionGate, &parsed
		}
		if p.allowlist != nil && p.allowlist.CheckShell(parsed.Tokens, shell) {
			return ActionAllow, &parsed
		}
		return ActionGate, &parsed
	}

	target := call.Name
	if mt := MatchTargetFor(call.Name); mt != "" {
		if v, ok := call.Arguments[mt]; ok {
			target = fmt.Sprintf("%v", v)
		}
	} else if category == CategoryPython {
		// Dynamic/python tools carry no match-target, so no allowlist
		// entry can match them.
		return ActionGate, nil
	} else {
		// No declared match-target (memory tools): match against the full
		// arguments JSON, per spec.md §4.5.
		if b, err := json.Marshal(call.Arguments); err == nil {
			target = string(b)
		}
	}

	if p.allowlist != nil && p.allowlist.CheckRegex(call.Name, target) {
		return ActionAllow, nil
	}
	return ActionGate, nil
}
