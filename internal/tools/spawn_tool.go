package tools

import (
	"context"
	"fmt"
)

// SpawnTool exposes SubagentManager.Spawn as a regular tool, so an agent
// loop can request a subagent the same way it requests any other tool
// call. The parent session id and nesting depth travel through the
// context rather than through arguments, since the caller shouldn't be
// able to claim a depth it isn't actually at.
type SpawnTool struct {
	manager *SubagentManager
}

func NewSpawnTool(manager *SubagentManager) *SpawnTool {
	return &SpawnTool{manager: manager}
}

func (t *SpawnTool) Name() string { return "subagent_spawn" }

func (t *SpawnTool) Description() string {
	return "Spawn a subagent to work on a task concurrently. Approval requests the subagent raises are proxied to this session."
}

func (t *SpawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "the task for the subagent to perform",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "short human-readable label for the subagent (optional)",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)

	parentID := ToolSessionIDFromCtx(ctx)
	depth := ToolSpawnDepthFromCtx(ctx)
	callback := ToolAsyncCBFromCtx(ctx)

	msg, err := t.manager.Spawn(ctx, parentID, depth, task, label, callback)
	if err != nil {
		return ErrorResult(fmt.Sprintf("subagent_spawn: %v", err))
	}
	return SilentResult(msg)
}
