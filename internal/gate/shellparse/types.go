// Package shellparse implements the three conservative shell tokenizers
// (POSIX, cmd.exe, PowerShell) described in spec.md §4.3. Each produces the
// same ParsedCommand shape so the allowlist and policy evaluator can stay
// shell-agnostic.
package shellparse

// ShellType identifies which shell a command string is interpreted by.
type ShellType string

const (
	POSIX      ShellType = "posix"
	Cmd        ShellType = "cmd"
	PowerShell ShellType = "powershell"
)

// ParsedCommand is the shared output of all three tokenizers. Any hazard
// flag set, or IsDangerous true, means the orchestrator must never consult
// the allowlist for this command — it goes straight to policy/approval.
type ParsedCommand struct {
	Raw         string
	Tokens      []string
	Shell       ShellType
	HasChain    bool // ; && || (cmd.exe: unquoted &)
	HasPipe     bool // |
	HasSubshell bool // $(...) `...` { } $var  (cmd.exe: %VAR%)
	HasRedirect bool // > >> < <<
	IsDangerous bool
}

// IsHazardous reports whether any condition exists that forbids allowlist
// matching for this command (spec.md §4.3/§4.4).
func (p ParsedCommand) IsHazardous() bool {
	return p.HasChain || p.HasPipe || p.HasSubshell || p.HasRedirect || p.IsDangerous
}

// DetectShell picks a ShellType from session environment, per spec.md §4.3:
// "Shell type is detected from environment variables at session start
// (COMSPEC, PSModulePath, SHELL)".
func DetectShell(getenv func(string) string) ShellType {
	if getenv("PSModulePath") != "" {
		return PowerShell
	}
	if getenv("COMSPEC") != "" && getenv("SHELL") == "" {
		return Cmd
	}
	return POSIX
}

// Parse dispatches to the tokenizer for shell.
func Parse(command string, shell ShellType) ParsedCommand {
	switch shell {
	case Cmd:
		return parseCmd(command)
	case PowerShell:
		return parsePowerShell(command)
	default:
		return parsePOSIX(command)
	}
}
