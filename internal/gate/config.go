package gate

// GateConfig is the process-wide (or, for a sub-agent, view-only) policy:
// an enabled flag, per-category actions, and the owned Allowlist and
// DenialTracker. Per spec.md §3's ownership note, a GateConfig exclusively
// owns its Allowlist and DenialTracker — they are never shared across
// GateConfig instances, only copied via CloneForSubagent.
type GateConfig struct {
	Enabled    bool
	Categories map[GateCategory]GateAction
	Allowlist  *Allowlist
	Denials    *DenialTracker
	Channel    ApprovalChannel // nil => no TTY and no proxy; Gate decisions fail with ErrNonInteractive (spec.md §4.7)
	Yolo       bool
}

// ApprovalChannel is the seam the orchestrator calls through to resolve a
// Gate decision into allow/deny. internal/gate/approval provides the two
// concrete implementations (direct TTY, proxied sub-agent IPC).
type ApprovalChannel interface {
	RequestApproval(req ApprovalRequest) (ApprovalResponse, error)
}

// RawAllowlistEntry is the JSON5-config shape of one allowlist array
// element, before it's split into either an AllowlistEntry or a
// ShellAllowlistEntry. Keys other than these four are not rejected:
// config.Load decodes with json5, which ignores keys it does not know.
type RawAllowlistEntry struct {
	Tool    string   `json:"tool"`
	Pattern string   `json:"pattern,omitempty"`
	Command []string `json:"command,omitempty"`
	Shell   string   `json:"shell,omitempty"`
}

// RawGateConfig is the on-disk shape of the `approval_gates` config key.
type RawGateConfig struct {
	Enabled    *bool                        `json:"enabled,omitempty"`
	Categories map[string]string            `json:"categories,omitempty"`
	Allowlist  []RawAllowlistEntry          `json:"allowlist,omitempty"`
}

// DefaultCategories is the conservative starting point: reads are allowed,
// everything with a side effect is gated, nothing is denied outright by
// default (operators opt into Deny per category).
func DefaultCategories() map[GateCategory]GateAction {
	return map[GateCategory]GateAction{
		CategoryFileRead: ActionAllow,
		CategoryFileWrite: ActionGate,
		CategoryShell:     ActionGate,
		CategoryNetwork:   ActionGate,
		CategoryMemory:    ActionAllow,
		CategorySubagent:  ActionGate,
		CategoryMCP:       ActionGate,
		CategoryPython:    ActionGate,
	}
}

// BuildGateConfig validates raw and turns it into a GateConfig. Invalid
// category names or malformed allowlist entries produce an InvalidConfig
// error rather than silently dropping the offending entry — config
// mistakes in a security gate should fail loudly.
func BuildGateConfig(raw RawGateConfig) (*GateConfig, error) {
	cfg := &GateConfig{
		Enabled:    true,
		Categories: DefaultCategories(),
	}
	if raw.Enabled != nil {
		cfg.Enabled = *raw.Enabled
	}

	for name, action := range raw.Categories {
		cat := GateCategory(name)
		if !allCategories[cat] {
			return nil, newErr(ErrInvalidConfig, "unknown gate category %q", name)
		}
		act := GateAction(action)
		if act != ActionAllow && act != ActionGate && act != ActionDeny {
			return nil, newErr(ErrInvalidConfig, "invalid action %q for category %q", action, name)
		}
		cfg.Categories[cat] = act
	}

	var regexEntries []AllowlistEntry
	var shellEntries []ShellAllowlistEntry
	for _, e := range raw.Allowlist {
		if e.Tool == "" {
			return nil, newErr(ErrInvalidConfig, "allowlist entry missing tool")
		}
		isShell := len(e.Command) > 0
		if isShell {
			if e.Pattern != "" {
				return nil, newErr(ErrInvalidConfig, "allowlist entry for %q has both command and pattern", e.Tool)
			}
			var shellType ShellType
			switch e.Shell {
			case "", "any":
				shellType = ""
			case string(ShellPOSIX), string(ShellCmd), string(ShellPowerShell):
				shellType = ShellType(e.Shell)
			default:
				return nil, newErr(ErrInvalidConfig, "invalid shell %q for tool %q", e.Shell, e.Tool)
			}
			shellEntries = append(shellEntries, ShellAllowlistEntry{Prefix: e.Command, Shell: shellType})
		} else {
			if e.Pattern == "" {
				return nil, newErr(ErrInvalidConfig, "allowlist entry for %q missing pattern or command", e.Tool)
			}
			if e.Shell != "" {
				return nil, newErr(ErrInvalidConfig, "non-shell allowlist entry for %q must not set shell", e.Tool)
			}
			regexEntries = append(regexEntries, AllowlistEntry{Tool: e.Tool, Pattern: e.Pattern})
		}
	}

	allowlist, errs := NewAllowlist(regexEntries, shellEntries)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	cfg.Allowlist = allowlist
	cfg.Denials = NewDenialTracker()

	return cfg, nil
}

// CloneForSubagent returns a view-only GateConfig for a spawned sub-agent:
// same category defaults and config-loaded allowlist entries, a fresh
// denial tracker, and ch as its approval channel (always proxied — a
// sub-agent never owns the TTY, per spec.md §3/§4.7).
func (c *GateConfig) CloneForSubagent(ch ApprovalChannel) *GateConfig {
	categories := make(map[GateCategory]GateAction, len(c.Categories))
	for k, v := range c.Categories {
		categories[k] = v
	}
	return &GateConfig{
		Enabled:    c.Enabled,
		Categories: categories,
		Allowlist:  c.Allowlist.CloneForSubagent(),
		Denials:    NewDenialTracker(),
		Channel:    ch,
		Yolo:       c.Yolo,
	}
}
