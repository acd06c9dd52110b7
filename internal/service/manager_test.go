package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Strob0t/CodeSmith/internal/adapter/memstore"
	"github.com/Strob0t/CodeSmith/internal/config"
	"github.com/Strob0t/CodeSmith/internal/domain"
	"github.com/Strob0t/CodeSmith/internal/domain/event"
	"github.com/Strob0t/CodeSmith/internal/domain/task"
	"github.com/Strob0t/CodeSmith/internal/port/decision"
)

func newTestManager(t *testing.T, d decision.Decider) *Manager {
	t.Helper()
	cfg := config.Defaults()
	cfg.Workspace.SessionBase = filepath.Join(t.TempDir(), "sessions")
	cfg.Orchestrator.MaxIterations = 5
	return NewManager(memstore.New(), d, &cfg, nil, nil, discardLogger())
}

func drain(ch <-chan event.Event) []event.Event {
	var out []event.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestCreateWithExplicitWorkspace(t *testing.T) {
	m := newTestManager(t, &scriptedDecider{})
	root := t.TempDir()

	tk, err := m.Create(context.Background(), "do the thing", root)
	if err != nil {
		t.Fatal(err)
	}
	if tk.WorkspaceRoot != root || tk.Status != task.StatusPending {
		t.Fatalf("task = %+v", tk)
	}

	got, err := m.Get(context.Background(), tk.ID)
	if err != nil || got.ID != tk.ID {
		t.Fatalf("Get: %v", err)
	}
}

func TestCreateProvisionsWorkspaceWhenEmpty(t *testing.T) {
	m := newTestManager(t, &scriptedDecider{})

	tk, err := m.Create(context.Background(), "do the thing", "")
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(tk.WorkspaceRoot)
	if err != nil || !info.IsDir() {
		t.Fatalf("workspace %s: %v", tk.WorkspaceRoot, err)
	}
}

func TestCreateRejectsEmptyRequest(t *testing.T) {
	m := newTestManager(t, &scriptedDecider{})
	if _, err := m.Create(context.Background(), "", t.TempDir()); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestExecuteRunsTaskToCompletion(t *testing.T) {
	d := &scriptedDecider{script: []step{
		{proposal: proposal("create then finish",
			mustAction(t, "create", `{"path":"a.txt","content":"hi"}`),
			mustAction(t, "finish", `{"success":true,"message":"done"}`),
		)},
	}}
	m := newTestManager(t, d)

	tk, err := m.Create(context.Background(), "create a.txt", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	events, err := m.Execute(context.Background(), tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	all := drain(events)
	if n := countEvents(all, event.TypeTaskCompleted); n != 1 {
		t.Fatalf("task_completed count = %d in %v", n, eventTypes(all))
	}

	got, err := m.Get(context.Background(), tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != task.StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if _, err := os.Stat(filepath.Join(tk.WorkspaceRoot, "a.txt")); err != nil {
		t.Fatal("created file missing from workspace")
	}
}

func TestExecuteNonPendingConflicts(t *testing.T) {
	d := &scriptedDecider{script: []step{
		{proposal: proposal("", mustAction(t, "finish", `{"success":true,"message":"done"}`))},
	}}
	m := newTestManager(t, d)

	tk, err := m.Create(context.Background(), "noop", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	events, err := m.Execute(context.Background(), tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	drain(events)

	if _, err := m.Execute(context.Background(), tk.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestExecuteUnknownTask(t *testing.T) {
	m := newTestManager(t, &scriptedDecider{})
	if _, err := m.Execute(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelRunningTask(t *testing.T) {
	started := make(chan struct{})
	d := &blockingDecider{started: started}
	m := newTestManager(t, d)

	tk, err := m.Create(context.Background(), "long task", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	events, err := m.Execute(context.Background(), tk.ID)
	if err != nil {
		t.Fatal(err)
	}

	<-started
	if err := m.Cancel(context.Background(), tk.ID); err != nil {
		t.Fatal(err)
	}

	all := drain(events)
	if n := countEvents(all, event.TypeTaskFailed); n != 1 {
		t.Fatalf("task_failed count = %d", n)
	}
	got, err := m.Get(context.Background(), tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FailReason != task.ReasonCancelled {
		t.Fatalf("reason = %q", got.FailReason)
	}
}

func TestCancelNonRunningConflicts(t *testing.T) {
	m := newTestManager(t, &scriptedDecider{})
	tk, err := m.Create(context.Background(), "pending", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Cancel(context.Background(), tk.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestDeleteRunningConflicts(t *testing.T) {
	started := make(chan struct{})
	d := &blockingDecider{started: started}
	m := newTestManager(t, d)

	tk, err := m.Create(context.Background(), "long task", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	events, err := m.Execute(context.Background(), tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	<-started

	if err := m.Delete(context.Background(), tk.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	if err := m.Cancel(context.Background(), tk.ID); err != nil {
		t.Fatal(err)
	}
	drain(events)

	// The stream closes just before the execution goroutine releases its
	// registration, so give Delete a moment to stop conflicting.
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := m.Delete(context.Background(), tk.ID)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) || time.Now().After(deadline) {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := m.Get(context.Background(), tk.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after delete", err)
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	d := &scriptedDecider{script: []step{
		{proposal: proposal("", mustAction(t, "finish", `{"success":true,"message":"done"}`))},
	}}
	m := newTestManager(t, d)

	if _, err := m.Create(context.Background(), "stays pending", t.TempDir()); err != nil {
		t.Fatal(err)
	}
	done, err := m.Create(context.Background(), "runs to completion", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	events, err := m.Execute(context.Background(), done.ID)
	if err != nil {
		t.Fatal(err)
	}
	drain(events)

	s, err := m.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Total: 2, Pending: 1, Completed: 1}
	if s != want {
		t.Fatalf("stats = %+v, want %+v", s, want)
	}
}

// blockingDecider parks until its context is cancelled, then reports the
// cancellation as a transport error. The orchestrator sees ctx.Err() at the
// top of the next iteration and fails the task as cancelled.
type blockingDecider struct {
	started chan struct{}
	once    bool
}

func (d *blockingDecider) Propose(ctx context.Context, _ decision.Request) (*decision.Proposal, error) {
	if !d.once {
		d.once = true
		close(d.started)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		return nil, errors.New("test decider timed out")
	}
}
