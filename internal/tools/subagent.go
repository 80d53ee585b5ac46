// Subagents run the same approval gate as the parent session, but a
// subagent's approval requests are proxied back to the parent's terminal
// instead of prompting directly — the parent owns the only TTY. Each
// subagent gets its own gate.approval.ProxyChannel wired to an in-memory
// pipe pair registered with the parent's gate.approval.ParentMultiplexer.
package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
	"github.com/nextlevelbuilder/ralph-gate/internal/gate/approval"
	"github.com/nextlevelbuilder/ralph-gate/internal/gate/shellparse"
)

// SubagentConfig bounds how many subagents can exist and how deep they can
// nest, mirroring spec.md's sub-agent scoping rules.
type SubagentConfig struct {
	MaxConcurrent       int
	MaxSpawnDepth       int
	MaxChildrenPerAgent int
	ArchiveAfterMinutes int
}

const (
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

// SubagentTask tracks a running or completed subagent.
type SubagentTask struct {
	ID          string
	ParentID    string
	Task        string
	Label       string
	Status      string
	Result      string
	Depth       int
	CreatedAt   int64
	CompletedAt int64
	cancelFunc  context.CancelFunc
}

// RunFunc executes a subagent's task body. It is supplied by the caller
// (the agent loop) rather than built into the manager, since the manager
// itself knows nothing about LLM providers or conversation turns — only
// about gate wiring and lifecycle bookkeeping.
type RunFunc func(ctx context.Context, task *SubagentTask, orch *gate.Orchestrator) (string, error)

// SubagentManager manages the lifecycle of spawned subagents and wires
// each one's approval traffic through the parent's approval.ParentMultiplexer.
type SubagentManager struct {
	mu        sync.RWMutex
	tasks     map[string]*SubagentTask
	config    SubagentConfig
	parent    *approval.ParentMultiplexer
	baseGate  *gate.GateConfig
	protected *gate.ProtectedRegistry
	verifier  *gate.Verifier
	shellType shellparse.ShellType
	run       RunFunc
}

func NewSubagentManager(cfg SubagentConfig, parent *approval.ParentMultiplexer, baseGate *gate.GateConfig, protected *gate.ProtectedRegistry, verifier *gate.Verifier, shell shellparse.ShellType, run RunFunc) *SubagentManager {
	return &SubagentManager{
		tasks:     make(map[string]*SubagentTask),
		config:    cfg,
		parent:    parent,
		baseGate:  baseGate,
		protected: protected,
		verifier:  verifier,
		shellType: shell,
		run:       run,
	}
}

// CountRunningForParent returns the number of running tasks for a parent.
func (sm *SubagentManager) CountRunningForParent(parentID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	count := 0
	for _, t := range sm.tasks {
		if t.ParentID == parentID && t.Status == TaskStatusRunning {
			count++
		}
	}
	return count
}

// sweepArchived drops finished tasks older than ArchiveAfterMinutes. Called
// with sm.mu held. A zero ArchiveAfterMinutes disables the sweep, keeping
// task history around indefinitely (the pre-existing behavior).
func (sm *SubagentManager) sweepArchived() {
	if sm.config.ArchiveAfterMinutes <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(sm.config.ArchiveAfterMinutes) * time.Minute).UnixMilli()
	for id, t := range sm.tasks {
		if t.Status == TaskStatusRunning {
			continue
		}
		if t.CompletedAt != 0 && t.CompletedAt < cutoff {
			delete(sm.tasks, id)
		}
	}
}

// Spawn creates a new subagent task that runs asynchronously, reporting its
// result through callback once done. It returns a status message immediately.
func (sm *SubagentManager) Spawn(ctx context.Context, parentID string, depth int, task, label string, callback AsyncCallback) (string, error) {
	sm.mu.Lock()
	sm.sweepArchived()

	if depth >= sm.config.MaxSpawnDepth {
		sm.mu.Unlock()
		return "", fmt.Errorf("spawn depth limit reached (%d/%d)", depth, sm.config.MaxSpawnDepth)
	}

	running := 0
	childCount := 0
	for _, t := range sm.tasks {
		if t.Status == TaskStatusRunning {
			running++
		}
		if t.ParentID == parentID {
			childCount++
		}
	}
	if running >= sm.config.MaxConcurrent {
		sm.mu.Unlock()
		return "", fmt.Errorf("max concurrent subagents reached (%d/%d)", running, sm.config.MaxConcurrent)
	}
	if childCount >= sm.config.MaxChildrenPerAgent {
		sm.mu.Unlock()
		return "", fmt.Errorf("max children per agent reached (%d/%d)", childCount, sm.config.MaxChildrenPerAgent)
	}

	id := uuid.NewString()
	if label == "" {
		label = truncateLabel(task, 50)
	}

	t := &SubagentTask{
		ID:        id,
		ParentID:  parentID,
		Task:      task,
		Label:     label,
		Status:    TaskStatusRunning,
		Depth:     depth + 1,
		CreatedAt: time.Now().UnixMilli(),
	}
	taskCtx, cancel := context.WithCancel(ctx)
	t.cancelFunc = cancel

	sm.tasks[id] = t
	sm.mu.Unlock()

	slog.Info("tools.subagent: spawned", "id", id, "parent", parentID, "depth", t.Depth, "label", label)

	go sm.runTask(taskCtx, t, callback)

	return fmt.Sprintf("spawned subagent %q (id=%s, depth=%d) for task: %s", label, id, t.Depth, truncateLabel(task, 100)), nil
}

// Cancel stops a running subagent's context, letting its RunFunc observe
// ctx.Done() and unwind.
func (sm *SubagentManager) Cancel(id string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	t, ok := sm.tasks[id]
	if !ok || t.Status != TaskStatusRunning {
		return false
	}
	if t.cancelFunc != nil {
		t.cancelFunc()
	}
	t.Status = TaskStatusCancelled
	return true
}

// runTask wires a fresh gate.Orchestrator proxied through the parent
// multiplexer, runs the task body, and records the outcome.
func (sm *SubagentManager) runTask(ctx context.Context, t *SubagentTask, callback AsyncCallback) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	proxy := approval.NewProxyChannel(reqW, respR, approval.DefaultProxyTimeout)
	link := &approval.SubagentLink{ID: t.ID, RequestR: reqR, ResponseW: respW, ShellType: sm.shellType}
	sm.parent.RegisterSubagent(link)

	subGate := sm.baseGate.CloneForSubagent(proxy)
	orch := gate.NewOrchestrator(subGate, sm.protected, sm.verifier, sm.shellType)

	result, err := sm.run(ctx, t, orch)

	sm.mu.Lock()
	t.CompletedAt = time.Now().UnixMilli()
	if err != nil {
		t.Status = TaskStatusFailed
		t.Result = err.Error()
	} else {
		t.Status = TaskStatusCompleted
		t.Result = result
	}
	status, res := t.Status, t.Result
	sm.mu.Unlock()

	reqR.Close()
	respW.Close()

	slog.Info("tools.subagent: finished", "id", t.ID, "status", status)

	if callback != nil {
		if status == TaskStatusFailed {
			callback(ErrorResult(res))
		} else {
			callback(SilentResult(res))
		}
	}
}

func truncateLabel(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
