// Package gate implements the approval gate and safe tool-execution core:
// it intercepts every tool call, classifies it by risk, consults policy,
// obtains user approval where required, and enforces TOCTOU-safe file
// access and shell-injection-safe command matching.
package gate

import (
	"regexp"
	"time"
)

// GateCategory classifies a tool call by risk. Closed set.
type GateCategory string

const (
	CategoryFileWrite GateCategory = "file_write"
	CategoryFileRead  GateCategory = "file_read"
	CategoryShell     GateCategory = "shell"
	CategoryNetwork   GateCategory = "network"
	CategoryMemory    GateCategory = "memory"
	CategorySubagent  GateCategory = "subagent"
	CategoryMCP       GateCategory = "mcp"
	CategoryPython    GateCategory = "python"
)

// allCategories lists the closed set, used to validate config input.
var allCategories = map[GateCategory]bool{
	CategoryFileWrite: true,
	CategoryFileRead:  true,
	CategoryShell:     true,
	CategoryNetwork:   true,
	CategoryMemory:    true,
	CategorySubagent:  true,
	CategoryMCP:       true,
	CategoryPython:    true,
}

// GateAction is the result of policy evaluation for one tool call.
type GateAction string

const (
	ActionAllow GateAction = "allow"
	ActionGate  GateAction = "gate"
	ActionDeny  GateAction = "deny"
)

// matchTargets declares, per tool name, which argument feeds the allowlist
// match. Dynamic/python tools carry no match-target by design (§4.5): their
// trust was established when their source was written, which itself
// triggered a file_write gate.
var matchTargets = map[string]string{
	"read_file":  "path",
	"write_file": "path",
	"edit_file":  "path",
	"web_fetch":  "url",
	"shell":      "tokens",
	"exec":       "tokens",
}

// toolCategories maps a tool name to its GateCategory. Tools not listed
// default to CategoryPython (python-defined tools, per the Open Question
// resolution in spec.md §9: category is by tool, not source language).
var toolCategories = map[string]GateCategory{
	"read_file":      CategoryFileRead,
	"write_file":     CategoryFileWrite,
	"edit_file":      CategoryFileWrite,
	"shell":          CategoryShell,
	"exec":           CategoryShell,
	"web_fetch":      CategoryNetwork,
	"memory_search":  CategoryMemory,
	"memory_get":     CategoryMemory,
	"sessions_spawn": CategorySubagent,
	"subagent_spawn": CategorySubagent,
}

// MatchTargetFor returns the declared match-target kind for a tool name,
// or "" if the tool carries none (e.g. memory tools match full arguments,
// dynamic tools match nothing).
func MatchTargetFor(tool string) string {
	return matchTargets[tool]
}

// CategoryFor returns the GateCategory for a tool name.
func CategoryFor(tool string) GateCategory {
	if c, ok := toolCategories[tool]; ok {
		return c
	}
	return CategoryPython
}

// RegisterTool lets callers declare category/match-target for tools the
// core doesn't know about (e.g. MCP-provided or dynamically defined tools).
func RegisterTool(name string, category GateCategory, matchTarget string) {
	toolCategories[name] = category
	if matchTarget != "" {
		matchTargets[name] = matchTarget
	}
}

// ToolCall is the minimal shape the gate needs from an LLM-issued tool
// invocation. It has the same fields as providers.ToolCall, so callers
// convert with a plain field-by-field copy.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// AllowlistEntry matches a non-shell tool call by exact tool name and a
// compiled regex over the tool's match-target.
type AllowlistEntry struct {
	Tool    string
	Pattern string
	re      *regexp.Regexp
}

// ShellAllowlistEntry matches a shell command by an ordered token prefix,
// optionally restricted to one shell type.
type ShellAllowlistEntry struct {
	Prefix []string
	Shell  ShellType // "" = any
}

// ShellType identifies which shell produced/will run a command.
type ShellType string

const (
	ShellPOSIX      ShellType = "posix"
	ShellCmd        ShellType = "cmd"
	ShellPowerShell ShellType = "powershell"
)

// DenialCounter tracks consecutive denials for one tool within a session.
type DenialCounter struct {
	Tool         string
	Count        int
	LastDenialAt time.Time
	BackoffUntil time.Time
}

// ApprovalDecision is the user/parent's answer to an ApprovalRequest.
type ApprovalDecision string

const (
	DecisionAllowedOnce   ApprovalDecision = "allow_once"
	DecisionAllowedAlways ApprovalDecision = "allow_always"
	DecisionDenied        ApprovalDecision = "deny"
	DecisionAborted       ApprovalDecision = "abort"
)

// ApprovalRequest is what the orchestrator asks an ApprovalChannel to
// resolve: "should this tool call proceed?"
type ApprovalRequest struct {
	RequestID uint32
	Tool      string
	Arguments string // JSON-encoded, for display
	Summary   string // human-readable one-liner
}

// ApprovalResponse is the channel's answer.
type ApprovalResponse struct {
	RequestID uint32
	Decision  ApprovalDecision
	Pattern   string // set when Decision == DecisionAllowedAlways
}

// ApprovedPath is the contract between the approval step and the Verifier:
// it binds exactly one subsequent open, and is discarded whether that open
// succeeds or fails. The Verifier opens ResolvedPath as resolved at
// approval time and compares the file (or parent) identity recorded here,
// so a path swapped after approval is rejected rather than followed.
type ApprovedPath struct {
	OriginalPath    string
	ResolvedPath    string
	ExistedAtApprove bool
	Identity        fileIdentity // valid if ExistedAtApprove
	ParentIdentity  fileIdentity // valid if !ExistedAtApprove
	ParentResolved  string       // valid if !ExistedAtApprove
	IsNetworkFS     bool
}
