package cmd

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
	"github.com/nextlevelbuilder/ralph-gate/internal/gate/approval"
)

// patternForRequest derives an "allow always" pattern from a pending
// ApprovalRequest, per spec.md §4.7's three pattern-generation rules. It
// is the DirectChannel's only source of truth for what gets persisted to
// the allowlist — wrong here means a stale rule survives the session.
func patternForRequest(req gate.ApprovalRequest) (string, bool) {
	var args map[string]interface{}
	_ = json.Unmarshal([]byte(req.Arguments), &args)

	if tokens, ok := args["tokens"].([]interface{}); ok {
		strs := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if s, ok := t.(string); ok {
				strs = append(strs, s)
			}
		}
		// A shell prefix also matches every longer command, so it is
		// always broader than the one operation.
		pattern := approval.GenerateShellPattern(strs)
		return strings.Join(pattern, " "), true
	}
	if command, _ := args["command"].(string); command != "" {
		pattern := approval.GenerateShellPattern(strings.Fields(command))
		return strings.Join(pattern, " "), true
	}
	if url, _ := args["url"].(string); url != "" {
		p, err := approval.GenerateURLPattern(url)
		if err != nil {
			return "", false
		}
		return p, approval.IsBroaderThanOperation(p, url)
	}
	if path, _ := args["path"].(string); path != "" {
		p := approval.GeneratePathPattern(path)
		return p, approval.IsBroaderThanOperation(p, path)
	}
	return "", false
}

// confirmPattern asks the user to confirm a pattern broader than the
// single operation it was generated from.
func confirmPattern(pattern string) bool {
	confirmed := false
	_ = huh.NewConfirm().
		Title("This will also allow:").
		Description(pattern).
		Affirmative("Yes, allow always").
		Negative("No, just this once").
		Value(&confirmed).
		Run()
	return confirmed
}
