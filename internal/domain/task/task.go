// Package task defines the Task lifecycle entity: one end-to-end request
// from submission to terminal status, including its per-iteration log.
package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/CodeSmith/internal/domain"
)

// Status represents the current state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stable reason codes for terminal failures.
const (
	ReasonBudgetExhausted = "budget exhausted"
	ReasonTooManyFailures = "too many consecutive failures"
	ReasonCancelled       = "cancelled"
	ReasonProtocol        = "decision protocol violation"
	ReasonReported        = "reported by agent"
)

// Task is the lifecycle record of one agent request. It is mutated only by
// the orchestrator that owns it and becomes immutable once the status leaves
// StatusRunning.
type Task struct {
	ID              string            `json:"id"`
	OriginalRequest string            `json:"original_request"`
	WorkspaceRoot   string            `json:"workspace_root"`
	Status          Status            `json:"status"`
	Iterations      []IterationRecord `json:"iteration_log,omitempty"`
	Result          *Result           `json:"result,omitempty"`
	Error           string            `json:"error,omitempty"`
	FailReason      string            `json:"fail_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
}

// IterationRecord captures one orchestrator loop iteration: what the
// decision service proposed and what came of it. Append-only.
type IterationRecord struct {
	Index     int              `json:"index"`
	Reasoning string           `json:"reasoning,omitempty"`
	Proposed  []ProposedAction `json:"proposed_actions"`
	Outcomes  []ActionOutcome  `json:"action_outcomes"`
}

// ProposedAction is the persisted form of a decision-service action.
type ProposedAction struct {
	Tool       string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ActionOutcome records the result of validating and executing one action.
type ActionOutcome struct {
	Tool      string `json:"tool_name"`
	Succeeded bool   `json:"succeeded"`
	Result    string `json:"result,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result holds the output of a completed task: the model's free-text message
// and summary plus machine-checkable execution stats.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Summary string `json:"summary,omitempty"`
	Stats   Stats  `json:"stats"`
}

// Stats aggregates what actually happened across a task's iterations.
type Stats struct {
	Iterations   int `json:"iterations"`
	ToolCalls    int `json:"tool_calls"`
	Failures     int `json:"failures"`
	FilesChanged int `json:"files_changed"`
	TestsPassed  int `json:"tests_passed"`
	TestsFailed  int `json:"tests_failed"`
}

// New creates a pending task.
func New(id, originalRequest, workspaceRoot string) *Task {
	return &Task{
		ID:              id,
		OriginalRequest: originalRequest,
		WorkspaceRoot:   workspaceRoot,
		Status:          StatusPending,
		CreatedAt:       time.Now().UTC(),
	}
}

// Terminal reports whether the task has reached a final status.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Start transitions Pending -> Running.
func (t *Task) Start() error {
	if t.Status != StatusPending {
		return fmt.Errorf("start task %s in status %s: %w", t.ID, t.Status, domain.ErrConflict)
	}
	t.Status = StatusRunning
	now := time.Now().UTC()
	t.StartedAt = &now
	return nil
}

// Complete transitions Running -> Completed with the given result.
func (t *Task) Complete(res Result) error {
	if t.Status != StatusRunning {
		return fmt.Errorf("complete task %s in status %s: %w", t.ID, t.Status, domain.ErrConflict)
	}
	t.Status = StatusCompleted
	t.Result = &res
	now := time.Now().UTC()
	t.FinishedAt = &now
	return nil
}

// Fail transitions Running -> Failed with a stable reason code and a
// human-readable message.
func (t *Task) Fail(reason, message string) error {
	if t.Terminal() {
		return fmt.Errorf("fail task %s in status %s: %w", t.ID, t.Status, domain.ErrConflict)
	}
	t.Status = StatusFailed
	t.FailReason = reason
	t.Error = message
	now := time.Now().UTC()
	t.FinishedAt = &now
	return nil
}

// AppendIteration appends one loop iteration to the task's log.
func (t *Task) AppendIteration(rec IterationRecord) {
	t.Iterations = append(t.Iterations, rec)
}

// Clone returns a deep copy, safe to hand out as a snapshot while the owning
// orchestrator keeps mutating the original.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.StartedAt != nil {
		at := *t.StartedAt
		c.StartedAt = &at
	}
	if t.FinishedAt != nil {
		at := *t.FinishedAt
		c.FinishedAt = &at
	}
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	if t.Iterations != nil {
		c.Iterations = make([]IterationRecord, len(t.Iterations))
		for i, rec := range t.Iterations {
			c.Iterations[i] = rec.clone()
		}
	}
	return &c
}

func (r IterationRecord) clone() IterationRecord {
	c := r
	if r.Proposed != nil {
		c.Proposed = make([]ProposedAction, len(r.Proposed))
		for i, p := range r.Proposed {
			c.Proposed[i] = ProposedAction{
				Tool:       p.Tool,
				Parameters: append(json.RawMessage(nil), p.Parameters...),
			}
		}
	}
	if r.Outcomes != nil {
		c.Outcomes = append([]ActionOutcome(nil), r.Outcomes...)
	}
	return c
}
