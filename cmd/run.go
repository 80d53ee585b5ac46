package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/ralph-gate/internal/config"
	"github.com/nextlevelbuilder/ralph-gate/internal/executor"
	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
	"github.com/nextlevelbuilder/ralph-gate/internal/gate/approval"
	"github.com/nextlevelbuilder/ralph-gate/internal/gate/shellparse"
	"github.com/nextlevelbuilder/ralph-gate/internal/providers"
	"github.com/nextlevelbuilder/ralph-gate/internal/tools"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a gated tool-execution session against the configured workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession()
		},
	}
}

// runSession wires config -> gate -> tool registry -> executor and drives
// a simple newline-delimited JSON tool-call loop on stdin: each line is
// {"name": "...", "arguments": {...}}, and each result is printed as a
// JSON object on stdout. This is the reference external interface spec.md
// §6 describes the containing agent loop using; a real agent loop would
// call executor.Run directly instead of going through stdin/stdout.
func runSession() error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("run: failed to load config", "error", err)
		os.Exit(2)
	}
	if yolo {
		cfg.Tools.ApprovalGates.Yolo = true
	}

	workspace := config.ExpandHome(cfg.Agents.Defaults.Workspace)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		slog.Error("run: failed to create workspace", "error", err)
		os.Exit(2)
	}

	gateCfg, err := gate.BuildGateConfig(cfg.Tools.ApprovalGates.ToRawGateConfig())
	if err != nil {
		slog.Error("run: invalid approval_gates config", "error", err)
		os.Exit(2)
	}
	gateCfg.Yolo = cfg.Tools.ApprovalGates.Yolo

	for _, spec := range allowTools {
		// "tool:tok,tok,..." — the text up to the first ':' names the tool;
		// the comma- or space-separated rest is the allowed command prefix.
		if i := strings.Index(spec, ":"); i >= 0 {
			spec = spec[i+1:]
		}
		toks := strings.FieldsFunc(spec, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		if len(toks) == 0 {
			continue
		}
		gateCfg.Allowlist.AddShellAlways(toks, shellparse.POSIX)
	}
	for _, cat := range allowCats {
		gateCfg.Categories[gate.GateCategory(cat)] = gate.ActionAllow
	}

	refresh := time.Duration(cfg.Tools.ApprovalGates.ProtectedRefreshSeconds) * time.Second
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	protected := gate.NewProtectedRegistry(workspace, cfg.Tools.ApprovalGates.ProtectedFiles, nil, refresh)
	defer protected.Close()

	verifier := gate.NewVerifier(workspace, cfg.Agents.Defaults.RestrictToWorkspace)

	var directChannel *approval.DirectChannel
	if gateCfg.Enabled && gate.IsInteractive() {
		directChannel = approval.NewDirectChannel(patternForRequest, confirmPattern)
		gateCfg.Channel = directChannel
	}

	shellType := shellparse.DetectShell(os.Getenv)
	orch := gate.NewOrchestrator(gateCfg, protected, verifier, shellType)

	registry := tools.NewRegistry()
	registry.Register(tools.NewReadFileTool(workspace, cfg.Agents.Defaults.RestrictToWorkspace))
	registry.Register(tools.NewWriteFileTool(workspace, cfg.Agents.Defaults.RestrictToWorkspace))
	registry.Register(tools.NewEditFileTool(workspace, cfg.Agents.Defaults.RestrictToWorkspace))
	registry.Register(tools.NewExecTool(workspace, cfg.Agents.Defaults.RestrictToWorkspace))
	registry.Register(tools.NewWebFetchTool(tools.WebFetchConfig{}))

	subagentCfg := tools.SubagentConfig{MaxConcurrent: 4, MaxSpawnDepth: 3, MaxChildrenPerAgent: 8, ArchiveAfterMinutes: 30}
	if s := cfg.Agents.Defaults.Subagents; s != nil {
		subagentCfg = tools.SubagentConfig{
			MaxConcurrent:       s.MaxConcurrent,
			MaxSpawnDepth:       s.MaxSpawnDepth,
			MaxChildrenPerAgent: s.MaxChildrenPerAgent,
			ArchiveAfterMinutes: s.ArchiveAfterMinutes,
		}
	}

	policy := tools.NewPolicyEngine(tools.Policy{
		Profile:   cfg.Tools.Profile,
		Allow:     cfg.Tools.Allow,
		Deny:      cfg.Tools.Deny,
		AlsoAllow: cfg.Tools.AlsoAllow,
	})

	var manager *tools.SubagentManager
	if directChannel != nil {
		parentMux := approval.NewParentMultiplexer(directChannel, gateCfg.Allowlist)
		done := make(chan struct{})
		go parentMux.Run(done)

		manager = tools.NewSubagentManager(subagentCfg, parentMux, gateCfg, protected, verifier, shellType, subagentRunFunc(registry, verifier, policy, cfg.Tools.RateLimitPerHour))
		registry.Register(tools.NewSpawnTool(manager))
	}

	exec := executor.New(registry, orch, verifier, policy).WithRateLimiter(executor.NewRateLimiter(cfg.Tools.RateLimitPerHour))

	ctx := rootContext()
	ctx = tools.WithToolSessionID(ctx, config.DefaultAgentID)
	return driveStdin(ctx, exec)
}

// subagentRunFunc drives a spawned subagent's single task line through its
// own gated orchestrator and tool registry, the same newline-JSON protocol
// the root session uses. A real agent loop would instead feed the task
// into the LLM and let it issue tool calls over several turns; this is the
// minimal body that exercises the approval-proxy wiring end to end.
func subagentRunFunc(registry *tools.Registry, verifier *gate.Verifier, policy *tools.PolicyEngine, rateLimitPerHour int) tools.RunFunc {
	return func(ctx context.Context, t *tools.SubagentTask, orch *gate.Orchestrator) (string, error) {
		subExec := executor.New(registry, orch, verifier, policy).WithRateLimiter(executor.NewRateLimiter(rateLimitPerHour))
		ctx = tools.WithToolSessionID(ctx, t.ID)
		ctx = tools.WithToolSpawnDepth(ctx, t.Depth)
		result := subExec.Run(ctx, providers.ToolCall{Name: "exec", Arguments: map[string]interface{}{"command": t.Task}})
		if result.IsError {
			return "", fmt.Errorf("%s", result.ForLLM)
		}
		return result.ForLLM, nil
	}
}

type toolCallLine struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func driveStdin(ctx context.Context, exec *executor.Executor) error {
	scanner := bufio.NewScanner(os.Stdin)
	enc := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var call toolCallLine
		if err := json.Unmarshal([]byte(line), &call); err != nil {
			enc.Encode(map[string]string{"error": fmt.Sprintf("invalid tool call: %v", err)})
			continue
		}

		result := exec.Run(ctx, providersToolCall(call))
		enc.Encode(result)
	}
	return scanner.Err()
}
