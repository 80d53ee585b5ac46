package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
)

// ReadFileTool reads file contents. Path resolution and TOCTOU protection
// are the executor's job (it runs the gate orchestrator before Execute is
// ever called and hands the tool an already-verified *gate.ApprovedPath
// via context) — by the time Execute runs, the only work left is opening
// the verified descriptor and doing the read.
type ReadFileTool struct {
	workspace string
	restrict  bool
}

func NewReadFileTool(workspace string, restrict bool) *ReadFileTool {
	return &ReadFileTool{workspace: workspace, restrict: restrict}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file" }
func (t *ReadFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to read",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	if path == "" {
		return ErrorResult("path is required")
	}

	ap := ApprovedPathFromCtx(ctx)
	if ap == nil {
		return ErrorResult("read_file: no approved path in context — tool executor must run the gate before Execute")
	}
	verifier := VerifierFromCtx(ctx)
	if verifier == nil {
		return ErrorResult("read_file: no verifier in context")
	}

	f, err := verifier.OpenExisting(ap, os.O_RDONLY, 0)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to open file: %v", err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to read file: %v", err))
	}

	return SilentResult(string(data))
}

// WriteFileTool creates a new file. Overwriting an existing file is
// edit_file's job — spec.md draws the gate category line at file_write
// for both, but only EditFileTool touches an already-existing descriptor.
type WriteFileTool struct {
	workspace string
	restrict  bool
}

func NewWriteFileTool(workspace string, restrict bool) *WriteFileTool {
	return &WriteFileTool{workspace: workspace, restrict: restrict}
}

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Create a new file with the given contents" }
func (t *WriteFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":    map[string]interface{}{"type": "string", "description": "Path to the file to create"},
			"content": map[string]interface{}{"type": "string", "description": "File contents"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return ErrorResult("path is required")
	}

	ap := ApprovedPathFromCtx(ctx)
	verifier := VerifierFromCtx(ctx)
	if ap == nil || verifier == nil {
		return ErrorResult("write_file: missing approved path or verifier in context")
	}

	f, err := verifier.CreateNew(ap, 0o644)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to create file: %v", err))
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return ErrorResult(fmt.Sprintf("failed to write file: %v", err))
	}

	return SilentResult(fmt.Sprintf("wrote %d bytes to %s", len(content), path))
}

// EditFileTool replaces an exact substring in an existing file. It opens
// through the same verified descriptor as ReadFileTool, rewrites the full
// contents, and truncates+rewrites in place rather than reopening by path.
type EditFileTool struct {
	workspace string
	restrict  bool
}

func NewEditFileTool(workspace string, restrict bool) *EditFileTool {
	return &EditFileTool{workspace: workspace, restrict: restrict}
}

func (t *EditFileTool) Name() string        { return "edit_file" }
func (t *EditFileTool) Description() string { return "Replace an exact substring within an existing file" }
func (t *EditFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":        map[string]interface{}{"type": "string", "description": "Path to the file to edit"},
			"old_string":  map[string]interface{}{"type": "string", "description": "Exact text to replace"},
			"new_string":  map[string]interface{}{"type": "string", "description": "Replacement text"},
			"replace_all": map[string]interface{}{"type": "boolean", "description": "Replace every occurrence instead of requiring uniqueness"},
		},
		"required": []string{"path", "old_string", "new_string"},
	}
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	oldStr, _ := args["old_string"].(string)
	newStr, _ := args["new_string"].(string)
	replaceAll, _ := args["replace_all"].(bool)
	if path == "" || oldStr == "" {
		return ErrorResult("path and old_string are required")
	}

	ap := ApprovedPathFromCtx(ctx)
	verifier := VerifierFromCtx(ctx)
	if ap == nil || verifier == nil {
		return ErrorResult("edit_file: missing approved path or verifier in context")
	}

	f, err := verifier.OpenExisting(ap, os.O_RDWR, 0)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to open file: %v", err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to read file: %v", err))
	}
	original := string(data)

	count := strings.Count(original, oldStr)
	if count == 0 {
		return ErrorResult("old_string not found in file")
	}
	if count > 1 && !replaceAll {
		return ErrorResult(fmt.Sprintf("old_string is not unique (%d occurrences); pass replace_all or include more context", count))
	}

	var updated string
	var replaced int
	if replaceAll {
		updated = strings.ReplaceAll(original, oldStr, newStr)
		replaced = count
	} else {
		updated = strings.Replace(original, oldStr, newStr, 1)
		replaced = 1
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ErrorResult(fmt.Sprintf("failed to seek file: %v", err))
	}
	if err := f.Truncate(0); err != nil {
		return ErrorResult(fmt.Sprintf("failed to truncate file: %v", err))
	}
	if _, err := f.WriteString(updated); err != nil {
		return ErrorResult(fmt.Sprintf("failed to write file: %v", err))
	}

	return SilentResult(fmt.Sprintf("replaced %d occurrence(s) in %s", replaced, path))
}

// gateContextKey namespaces the two values the executor injects before
// calling a path-bearing tool's Execute: the verifier it used to approve
// the path, and the ApprovedPath itself.
type gateContextKey string

const (
	ctxVerifier     gateContextKey = "gate_verifier"
	ctxApprovedPath gateContextKey = "gate_approved_path"
)

func WithVerifier(ctx context.Context, v *gate.Verifier) context.Context {
	return context.WithValue(ctx, ctxVerifier, v)
}

func VerifierFromCtx(ctx context.Context) *gate.Verifier {
	v, _ := ctx.Value(ctxVerifier).(*gate.Verifier)
	return v
}

func WithApprovedPath(ctx context.Context, ap *gate.ApprovedPath) context.Context {
	return context.WithValue(ctx, ctxApprovedPath, ap)
}

func ApprovedPathFromCtx(ctx context.Context) *gate.ApprovedPath {
	ap, _ := ctx.Value(ctxApprovedPath).(*gate.ApprovedPath)
	return ap
}
