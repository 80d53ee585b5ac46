package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultAgentID is used when no agent in Agents.List is marked default.
const DefaultAgentID = "default"

// Config is the root configuration for ralph-gate.
type Config struct {
	Agents   AgentsConfig   `json:"agents"`
	Tools    ToolsConfig    `json:"tools"`
	Sessions SessionsConfig `json:"sessions"`
	mu       sync.RWMutex
}

// AgentsConfig contains agent defaults and per-agent overrides.
type AgentsConfig struct {
	Defaults AgentDefaults        `json:"defaults"`
	List     map[string]AgentSpec `json:"list,omitempty"`
}

// AgentDefaults are default settings for all agents.
type AgentDefaults struct {
	Workspace           string           `json:"workspace"`
	RestrictToWorkspace bool             `json:"restrict_to_workspace"`
	Provider            string           `json:"provider"`
	Model               string           `json:"model"`
	MaxTokens           int              `json:"max_tokens"`
	Temperature         float64          `json:"temperature"`
	MaxToolIterations   int              `json:"max_tool_iterations"`
	ContextWindow       int              `json:"context_window"`
	Subagents           *SubagentsConfig `json:"subagents,omitempty"`
}

// SubagentsConfig configures the subagent system. All fields optional —
// zero values mean "use default".
type SubagentsConfig struct {
	MaxConcurrent       int `json:"maxConcurrent,omitempty"`
	MaxSpawnDepth       int `json:"maxSpawnDepth,omitempty"`
	MaxChildrenPerAgent int `json:"maxChildrenPerAgent,omitempty"`
	ArchiveAfterMinutes int `json:"archiveAfterMinutes,omitempty"`
}

// AgentSpec is the per-agent configuration override. Zero values mean
// "inherit from defaults".
type AgentSpec struct {
	DisplayName       string          `json:"displayName,omitempty"`
	Provider          string          `json:"provider,omitempty"`
	Model             string          `json:"model,omitempty"`
	MaxTokens         int             `json:"max_tokens,omitempty"`
	Temperature       float64         `json:"temperature,omitempty"`
	MaxToolIterations int             `json:"max_tool_iterations,omitempty"`
	ContextWindow     int             `json:"context_window,omitempty"`
	Tools             *ToolPolicySpec `json:"tools,omitempty"`
	Workspace         string          `json:"workspace,omitempty"`
	Default           bool            `json:"default,omitempty"`
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Agents = src.Agents
	c.Tools = src.Tools
	c.Sessions = src.Sessions
}

// Hash returns a SHA-256-derived short hash of the config, used to detect
// concurrent edits (e.g. between Load and a later Save).
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}
