package cmd

import (
	"context"

	"github.com/nextlevelbuilder/ralph-gate/internal/providers"
)

func rootContext() context.Context {
	return context.Background()
}

func providersToolCall(call toolCallLine) providers.ToolCall {
	return providers.ToolCall{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: call.Arguments,
	}
}
