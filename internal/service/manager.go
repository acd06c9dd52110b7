package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Strob0t/CodeSmith/internal/config"
	"github.com/Strob0t/CodeSmith/internal/domain"
	"github.com/Strob0t/CodeSmith/internal/domain/conversation"
	"github.com/Strob0t/CodeSmith/internal/domain/event"
	"github.com/Strob0t/CodeSmith/internal/domain/policy"
	"github.com/Strob0t/CodeSmith/internal/domain/task"
	"github.com/Strob0t/CodeSmith/internal/logger"
	"github.com/Strob0t/CodeSmith/internal/port/cache"
	"github.com/Strob0t/CodeSmith/internal/port/decision"
	"github.com/Strob0t/CodeSmith/internal/port/interaction"
	"github.com/Strob0t/CodeSmith/internal/port/store"
	"github.com/Strob0t/CodeSmith/internal/tools"
	"github.com/Strob0t/CodeSmith/internal/token"
)

// Stats aggregates task counts by status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Manager owns task lifecycles: creation, execution, cancellation, and
// cleanup. It enforces one orchestrator per task id and hands each running
// task its own validator, executor, memory, and event stream.
type Manager struct {
	store      store.Store
	orch       *Orchestrator
	workspaces *Workspaces
	pool       *Pool
	cache      cache.Cache
	asker      interaction.Asker
	counter    *token.Counter
	cfg        *config.Config
	log        *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewManager wires the manager. cache and asker may be nil.
func NewManager(s store.Store, d decision.Decider, cfg *config.Config, c cache.Cache, asker interaction.Asker, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:      s,
		orch:       NewOrchestrator(d, s, cfg.Orchestrator, log),
		workspaces: NewWorkspaces(cfg.Workspace, log),
		pool:       NewPool(cfg.Orchestrator.MaxConcurrentTasks),
		cache:      c,
		asker:      asker,
		counter:    token.NewCounter(cfg.Memory.Encoding),
		cfg:        cfg,
		log:        log,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Workspaces exposes the session workspace manager (for janitor startup).
func (m *Manager) Workspaces() *Workspaces { return m.workspaces }

// Create registers a new pending task. An empty workspaceRoot provisions a
// managed session workspace.
func (m *Manager) Create(ctx context.Context, request, workspaceRoot string) (*task.Task, error) {
	if request == "" {
		return nil, fmt.Errorf("create task: empty request: %w", domain.ErrInvalid)
	}

	if workspaceRoot == "" {
		dir, err := m.workspaces.Provision()
		if err != nil {
			return nil, fmt.Errorf("create task: %w", err)
		}
		workspaceRoot = dir
	}

	t := task.New(uuid.NewString(), request, workspaceRoot)
	if err := m.store.Create(ctx, t); err != nil {
		return nil, err
	}

	m.log.Info("task created", "task_id", t.ID, "workspace", workspaceRoot)
	return t.Clone(), nil
}

// Execute starts the orchestrator loop for a pending task and returns its
// event stream. The loop runs in the background, bounded by the execution
// pool; the returned channel is closed when the task reaches a terminal
// status. Execution is detached from ctx — use Cancel to stop a task.
func (m *Manager) Execute(ctx context.Context, id string) (<-chan event.Event, error) {
	t, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusPending {
		return nil, fmt.Errorf("execute task %s in status %s: %w", id, t.Status, domain.ErrConflict)
	}

	v, err := policy.NewValidator(m.cfg.Security.Policy(), t.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("execute task %s: %w", id, err)
	}

	m.mu.Lock()
	if _, running := m.cancels[id]; running {
		m.mu.Unlock()
		return nil, fmt.Errorf("execute task %s: already executing: %w", id, domain.ErrConflict)
	}
	// The run context carries the task id so every context-aware log line
	// under this execution is attributed to the task.
	runCtx, cancel := context.WithCancel(logger.WithTaskID(context.WithoutCancel(ctx), id))
	m.cancels[id] = cancel
	m.mu.Unlock()

	exec := tools.NewExecutor(v, m.cfg.Tools, m.cache, m.asker, m.log)
	mem := conversation.NewMemory(m.cfg.Memory.MaxMessages, m.cfg.Memory.MaxTokens, m.counter)
	stream := event.NewStream(m.cfg.Orchestrator.EventBuffer)

	m.workspaces.Touch(t.WorkspaceRoot)

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.cancels, id)
			m.mu.Unlock()
			cancel()
		}()

		err := m.pool.Run(runCtx, func() error {
			m.orch.Run(runCtx, t, v, exec, mem, stream)
			return nil
		})
		if err != nil {
			// Cancelled while queued for a pool slot; the loop never started.
			if failErr := t.Fail(task.ReasonCancelled, "cancelled before execution started"); failErr == nil {
				if updErr := m.store.Update(context.WithoutCancel(runCtx), t); updErr != nil {
					m.log.ErrorContext(runCtx, "persist cancelled task", "error", updErr)
				}
			}
			stream.Emit(terminalCtx(runCtx), event.New(event.TypeTaskFailed, id, event.TaskFailed{
				Reason: task.ReasonCancelled,
				Error:  "cancelled before execution started",
			}))
			stream.Close()
		}
	}()

	return stream.Events(), nil
}

// Get returns a snapshot of the task.
func (m *Manager) Get(ctx context.Context, id string) (*task.Task, error) {
	return m.store.Get(ctx, id)
}

// List returns snapshots of all tasks, newest first.
func (m *Manager) List(ctx context.Context) ([]task.Task, error) {
	return m.store.List(ctx)
}

// Cancel requests cancellation of a running task. The orchestrator observes
// it at the top of its next iteration; cancellation is never silently
// dropped, but it does not interrupt an in-flight tool execution.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	cancel, running := m.cancels[id]
	m.mu.Unlock()

	if running {
		cancel()
		m.log.Info("task cancellation requested", "task_id", id)
		return nil
	}

	t, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("cancel task %s in status %s: %w", id, t.Status, domain.ErrConflict)
}

// Delete removes a task record. Running tasks must be cancelled first.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, running := m.cancels[id]
	m.mu.Unlock()
	if running {
		return fmt.Errorf("delete task %s: still executing: %w", id, domain.ErrConflict)
	}
	return m.store.Delete(ctx, id)
}

// Stats returns task counts by status.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	tasks, err := m.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case task.StatusPending:
			s.Pending++
		case task.StatusRunning:
			s.Running++
		case task.StatusCompleted:
			s.Completed++
		case task.StatusFailed:
			s.Failed++
		}
	}
	return s, nil
}
