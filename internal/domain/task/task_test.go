package task

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Strob0t/CodeSmith/internal/domain"
)

func TestLifecycleTransitions(t *testing.T) {
	tk := New("t1", "add a README", "/tmp/ws")
	if tk.Status != StatusPending {
		t.Fatalf("new task status = %s, want pending", tk.Status)
	}
	if tk.Terminal() {
		t.Fatal("new task must not be terminal")
	}

	if err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if tk.Status != StatusRunning || tk.StartedAt == nil {
		t.Fatalf("after Start: status=%s startedAt=%v", tk.Status, tk.StartedAt)
	}

	if err := tk.Complete(Result{Success: true, Message: "done"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if tk.Status != StatusCompleted || tk.Result == nil || tk.FinishedAt == nil {
		t.Fatalf("after Complete: status=%s result=%v", tk.Status, tk.Result)
	}
	if !tk.Terminal() {
		t.Fatal("completed task must be terminal")
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{
			name: "start twice",
			run: func() error {
				tk := New("t", "r", "/ws")
				_ = tk.Start()
				return tk.Start()
			},
		},
		{
			name: "complete without start",
			run: func() error {
				tk := New("t", "r", "/ws")
				return tk.Complete(Result{Success: true})
			},
		},
		{
			name: "fail after completed",
			run: func() error {
				tk := New("t", "r", "/ws")
				_ = tk.Start()
				_ = tk.Complete(Result{Success: true})
				return tk.Fail(ReasonCancelled, "cancelled")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("err = %v, want ErrConflict", err)
			}
		})
	}
}

func TestFailSetsReasonAndMessage(t *testing.T) {
	tk := New("t", "r", "/ws")
	_ = tk.Start()
	if err := tk.Fail(ReasonBudgetExhausted, "no finish after 20 iterations"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if tk.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", tk.Status)
	}
	if tk.FailReason != ReasonBudgetExhausted {
		t.Fatalf("reason = %q, want %q", tk.FailReason, ReasonBudgetExhausted)
	}
	if tk.Error == "" {
		t.Fatal("error message must be set")
	}
}

func TestCloneIsolation(t *testing.T) {
	tk := New("t", "r", "/ws")
	_ = tk.Start()
	tk.AppendIteration(IterationRecord{
		Index:    0,
		Proposed: []ProposedAction{{Tool: "read", Parameters: json.RawMessage(`{"path":"a.txt"}`)}},
		Outcomes: []ActionOutcome{{Tool: "read", Succeeded: true, Result: "hi"}},
	})

	snap := tk.Clone()

	tk.AppendIteration(IterationRecord{Index: 1})
	tk.Iterations[0].Outcomes[0].Result = "mutated"

	if len(snap.Iterations) != 1 {
		t.Fatalf("snapshot iterations = %d, want 1", len(snap.Iterations))
	}
	if got := snap.Iterations[0].Outcomes[0].Result; got != "hi" {
		t.Fatalf("snapshot outcome result = %q, want %q", got, "hi")
	}
}
