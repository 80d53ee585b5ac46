package config

import "github.com/nextlevelbuilder/ralph-gate/internal/gate"

// ToolsConfig controls tool availability and the approval gate.
type ToolsConfig struct {
	Profile          string                     `json:"profile,omitempty"`             // "minimal"/"coding"/"messaging"/"full" (default), visibility layer above the gate
	Allow            []string                   `json:"allow,omitempty"`               // global allow list (tool names)
	Deny             []string                   `json:"deny,omitempty"`                // global deny list
	AlsoAllow        []string                   `json:"alsoAllow,omitempty"`           // additive: adds without removing existing
	ByProvider       map[string]*ToolPolicySpec `json:"byProvider,omitempty"`          // per-provider overrides
	RateLimitPerHour int                        `json:"rate_limit_per_hour,omitempty"` // max tool executions per hour per session (0 = disabled)
	ApprovalGates    ApprovalGatesConfig        `json:"approval_gates"`
}

// ApprovalGatesConfig is the JSON-config surface for the approval gate —
// it is translated into a gate.RawGateConfig (and from there into a
// gate.GateConfig) by cmd/run.go at startup.
type ApprovalGatesConfig struct {
	Enabled                 *bool                    `json:"enabled,omitempty"` // default true
	Categories               map[string]string        `json:"categories,omitempty"`
	Allowlist                []gate.RawAllowlistEntry `json:"allowlist,omitempty"`
	ProtectedFiles           []string                 `json:"protected_files,omitempty"`
	ProtectedRefreshSeconds  int                      `json:"protected_refresh_seconds,omitempty"` // default 30
	Yolo                     bool                     `json:"-"`                                   // set only from --yolo; never persisted
}

// ToRawGateConfig converts the JSON config shape into the gate package's
// input type.
func (a ApprovalGatesConfig) ToRawGateConfig() gate.RawGateConfig {
	return gate.RawGateConfig{
		Enabled:    a.Enabled,
		Categories: a.Categories,
		Allowlist:  a.Allowlist,
	}
}

// ToolPolicySpec defines a tool policy at any level (global, per-agent,
// per-provider).
type ToolPolicySpec struct {
	Allow      []string                   `json:"allow,omitempty"`
	Deny       []string                   `json:"deny,omitempty"`
	AlsoAllow  []string                   `json:"alsoAllow,omitempty"`
	ByProvider map[string]*ToolPolicySpec `json:"byProvider,omitempty"`
}

// SessionsConfig controls session storage.
type SessionsConfig struct {
	Storage string `json:"storage"`            // directory for session files
	Scope   string `json:"scope,omitempty"`    // "per-sender" (default), "global"
	MainKey string `json:"main_key,omitempty"` // main session key suffix (default "main")
}
