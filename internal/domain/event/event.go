// Package event defines the ordered progress stream a task emits while the
// orchestrator drives it.
package event

import (
	"encoding/json"
	"time"

	"github.com/Strob0t/CodeSmith/internal/domain/task"
)

// Type identifies an event on the per-task stream.
type Type string

const (
	TypeIterationStart Type = "iteration_start"
	TypeReasoning      Type = "reasoning"
	TypeActionStart    Type = "action_start"
	TypeActionSuccess  Type = "action_success"
	TypeActionFailed   Type = "action_failed"
	TypeTaskCompleted  Type = "task_completed"
	TypeTaskFailed     Type = "task_failed"
)

// Event is one entry on a task's append-only, strictly ordered stream.
type Event struct {
	Type    Type      `json:"type"`
	TaskID  string    `json:"task_id"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// IterationStart is emitted at the top of each loop iteration.
type IterationStart struct {
	Index int `json:"index"`
}

// Reasoning carries the decision service's free-text reasoning, when present.
type Reasoning struct {
	Text string `json:"text"`
}

// ActionStart is emitted before an action is validated and executed.
type ActionStart struct {
	Tool       string          `json:"tool"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ActionSuccess is emitted after a tool execution succeeds.
type ActionSuccess struct {
	Tool   string `json:"tool"`
	Result string `json:"result,omitempty"`
}

// ActionFailed is emitted when validation rejects an action or execution fails.
type ActionFailed struct {
	Tool      string `json:"tool"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error"`
}

// TaskCompleted is the terminal event of a successful task.
type TaskCompleted struct {
	Message string     `json:"message"`
	Summary string     `json:"summary,omitempty"`
	Stats   task.Stats `json:"stats"`
}

// TaskFailed is the terminal event of a failed task.
type TaskFailed struct {
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// New stamps an event with the current time.
func New(t Type, taskID string, payload any) Event {
	return Event{Type: t, TaskID: taskID, At: time.Now().UTC(), Payload: payload}
}
