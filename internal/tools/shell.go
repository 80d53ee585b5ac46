package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate/shellparse"
)

// ExecTool runs a shell command on the host. Danger detection, allowlist
// matching, and approval all happen in the gate orchestrator before
// Execute is ever called — by the time a command reaches here it has
// already cleared check_and_execute, and Execute's only job is to pick
// the right shell binary for the parsed command and run it.
type ExecTool struct {
	workingDir string
	timeout    time.Duration
	restrict   bool
}

func NewExecTool(workingDir string, restrict bool) *ExecTool {
	return &ExecTool{
		workingDir: workingDir,
		timeout:    60 * time.Second,
		restrict:   restrict,
	}
}

func (t *ExecTool) Name() string        { return "exec" }
func (t *ExecTool) Description() string { return "Execute a shell command and return its output" }
func (t *ExecTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to execute",
			},
			"working_dir": map[string]interface{}{
				"type":        "string",
				"description": "Optional working directory for the command",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ExecTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	command, _ := args["command"].(string)
	if command == "" {
		return ErrorResult("command is required")
	}

	cwd := ToolWorkspaceFromCtx(ctx)
	if cwd == "" {
		cwd = t.workingDir
	}
	if wd, _ := args["working_dir"].(string); wd != "" {
		cwd = wd
	}

	shell := shellparse.DetectShell(os.Getenv)
	return t.run(ctx, shell, command, cwd)
}

func (t *ExecTool) run(ctx context.Context, shell shellparse.ShellType, command, cwd string) *Result {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var cmd *exec.Cmd
	switch shell {
	case shellparse.PowerShell:
		cmd = exec.CommandContext(ctx, "pwsh", "-NoProfile", "-Command", command)
	case shellparse.Cmd:
		cmd = exec.CommandContext(ctx, "cmd.exe", "/C", command)
	default:
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var result string
	if stdout.Len() > 0 {
		result = stdout.String()
	}
	if stderr.Len() > 0 {
		if result != "" {
			result += "\n"
		}
		result += "STDERR:\n" + stderr.String()
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ErrorResult(fmt.Sprintf("command timed out after %s", t.timeout))
		}
		if result == "" {
			result = err.Error()
		}
		return ErrorResult(result)
	}

	if result == "" {
		result = "(command completed with no output)"
	}

	return SilentResult(result)
}
