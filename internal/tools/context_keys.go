package tools

import "context"

// Tool execution context keys.
// These replace mutable setter fields on tool instances, making tools
// thread-safe for concurrent execution. Values are injected by the
// executor and read by individual tools during Execute().

type toolContextKey string

const (
	ctxWorkspace  toolContextKey = "tool_workspace"
	ctxAsyncCB    toolContextKey = "tool_async_cb"
	ctxSessionID  toolContextKey = "tool_session_id"
	ctxSpawnDepth toolContextKey = "tool_spawn_depth"
)

func WithToolWorkspace(ctx context.Context, ws string) context.Context {
	return context.WithValue(ctx, ctxWorkspace, ws)
}

func ToolWorkspaceFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxWorkspace).(string)
	return v
}

func WithToolAsyncCB(ctx context.Context, cb AsyncCallback) context.Context {
	return context.WithValue(ctx, ctxAsyncCB, cb)
}

func ToolAsyncCBFromCtx(ctx context.Context) AsyncCallback {
	v, _ := ctx.Value(ctxAsyncCB).(AsyncCallback)
	return v
}

// WithToolSessionID identifies the current agent so subagent spawns can be
// attributed and counted against their parent's child limit.
func WithToolSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxSessionID, id)
}

func ToolSessionIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxSessionID).(string)
	return v
}

// WithToolSpawnDepth records how many levels of subagent nesting produced
// the current call, so a further subagent_spawn can be checked against
// SubagentConfig.MaxSpawnDepth before it runs.
func WithToolSpawnDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, ctxSpawnDepth, depth)
}

func ToolSpawnDepthFromCtx(ctx context.Context) int {
	v, _ := ctx.Value(ctxSpawnDepth).(int)
	return v
}
