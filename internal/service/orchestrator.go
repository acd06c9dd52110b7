// Package service wires the agent runtime together: the orchestrator loop
// that drives one task, the manager that owns task lifecycles, session
// workspaces, and the execution pool.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/CodeSmith/internal/config"
	"github.com/Strob0t/CodeSmith/internal/domain/action"
	"github.com/Strob0t/CodeSmith/internal/domain/conversation"
	"github.com/Strob0t/CodeSmith/internal/domain/event"
	"github.com/Strob0t/CodeSmith/internal/domain/policy"
	"github.com/Strob0t/CodeSmith/internal/domain/task"
	"github.com/Strob0t/CodeSmith/internal/logger"
	"github.com/Strob0t/CodeSmith/internal/port/decision"
	"github.com/Strob0t/CodeSmith/internal/port/store"
	"github.com/Strob0t/CodeSmith/internal/tools"
)

// maxFoldedResult bounds how much of one tool result is folded back into
// the transcript and the iteration record.
const maxFoldedResult = 2000

// Orchestrator drives tasks through the decision/execution loop: ask the
// decision service for the next actions, validate each one, execute the
// approved ones, feed the outcomes back, and stop on a terminal signal or an
// exhausted budget.
type Orchestrator struct {
	decider decision.Decider
	store   store.Store
	cfg     config.Orchestrator
	log     *slog.Logger
}

// NewOrchestrator creates an orchestrator. One instance may run many tasks,
// but each task is run exactly once and never concurrently with itself.
func NewOrchestrator(d decision.Decider, s store.Store, cfg config.Orchestrator, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{decider: d, store: s, cfg: cfg, log: log}
}

// Run executes the loop for one pending task. It owns t exclusively until a
// terminal status is reached, closes stream on the way out, and persists the
// task after every iteration. Cancellation of ctx is observed at the top of
// the loop and fails the task with the "cancelled" reason; an in-flight tool
// execution is not interrupted mid-action.
func (o *Orchestrator) Run(ctx context.Context, t *task.Task, v *policy.Validator, exec *tools.Executor, mem *conversation.Memory, stream *event.Stream) {
	defer stream.Close()
	// The run context carries the task id; context-aware handlers stamp it
	// onto every log line below, and it survives WithoutCancel derivations.
	ctx = logger.WithTaskID(ctx, t.ID)

	if err := t.Start(); err != nil {
		o.log.ErrorContext(ctx, "start task", "error", err)
		o.fail(ctx, t, stream, task.ReasonProtocol, err.Error())
		return
	}
	o.persist(ctx, t)
	o.log.InfoContext(ctx, "task started", "workspace", t.WorkspaceRoot, "max_iterations", o.cfg.MaxIterations)

	mem.Append(conversation.RoleRequester, t.OriginalRequest)

	consecutive := 0
	var stats task.Stats

	for iter := 1; iter <= o.cfg.MaxIterations; iter++ {
		if ctx.Err() != nil {
			o.log.WarnContext(ctx, "task cancelled", "iteration", iter)
			o.fail(ctx, t, stream, task.ReasonCancelled, "task cancelled")
			return
		}

		stats.Iterations = iter
		stream.Emit(ctx, event.New(event.TypeIterationStart, t.ID, event.IterationStart{Index: iter}))

		proposal, err := o.decider.Propose(ctx, decision.Request{
			Messages:      mem.Messages(),
			WorkspaceRoot: t.WorkspaceRoot,
		})
		if err != nil {
			if errors.Is(err, decision.ErrMalformed) {
				o.log.ErrorContext(ctx, "malformed decision response", "error", err)
				o.fail(ctx, t, stream, task.ReasonProtocol, err.Error())
				return
			}
			// Transport failure or timeout: recoverable, the model may be
			// back on the next iteration.
			o.log.WarnContext(ctx, "decision call failed", "iteration", iter, "error", err)
			consecutive++
			t.AppendIteration(task.IterationRecord{Index: iter})
			mem.Append(conversation.RoleSystem, "The decision service call failed: "+err.Error())
			o.persist(ctx, t)
			if consecutive >= o.cfg.MaxConsecutiveFailures {
				o.fail(ctx, t, stream, task.ReasonTooManyFailures,
					fmt.Sprintf("%d consecutive failures", consecutive))
				return
			}
			continue
		}
		if len(proposal.Actions) == 0 {
			o.log.ErrorContext(ctx, "decision service proposed no actions")
			o.fail(ctx, t, stream, task.ReasonProtocol, "decision service proposed no actions")
			return
		}

		if proposal.Reasoning != "" {
			stream.Emit(ctx, event.New(event.TypeReasoning, t.ID, event.Reasoning{Text: proposal.Reasoning}))
		}
		mem.Append(conversation.RoleDecision, proposal.Raw)

		rec := task.IterationRecord{Index: iter, Reasoning: proposal.Reasoning}
		for _, a := range proposal.Actions {
			rec.Proposed = append(rec.Proposed, task.ProposedAction{Tool: string(a.Name), Parameters: a.Raw})
		}

		for _, a := range proposal.Actions {
			stream.Emit(ctx, event.New(event.TypeActionStart, t.ID, event.ActionStart{
				Tool:       string(a.Name),
				Parameters: a.Raw,
			}))
			stats.ToolCalls++

			if err := v.Validate(a); err != nil {
				o.log.WarnContext(ctx, "action rejected", "tool", a.Name, "error", err)
				rec.Outcomes = append(rec.Outcomes, failedOutcome(a, err))
				consecutive++
				stats.Failures++
				stream.Emit(ctx, event.New(event.TypeActionFailed, t.ID, event.ActionFailed{
					Tool:      string(a.Name),
					ErrorKind: errorKind(err),
					Error:     err.Error(),
				}))
				continue
			}

			execCtx, cancel := context.WithTimeout(ctx, o.cfg.ActionTimeout)
			res, err := exec.Execute(execCtx, a)
			cancel()
			if err != nil {
				o.log.WarnContext(ctx, "action failed", "tool", a.Name, "error", err)
				rec.Outcomes = append(rec.Outcomes, failedOutcome(a, err))
				consecutive++
				stats.Failures++
				stream.Emit(ctx, event.New(event.TypeActionFailed, t.ID, event.ActionFailed{
					Tool:      string(a.Name),
					ErrorKind: errorKind(err),
					Error:     err.Error(),
				}))
				continue
			}

			consecutive = 0
			if res.Mutated {
				stats.FilesChanged++
			}
			if res.Tests != nil {
				stats.TestsPassed += res.Tests.Passed
				stats.TestsFailed += res.Tests.Failed
			}
			rec.Outcomes = append(rec.Outcomes, task.ActionOutcome{
				Tool:      string(a.Name),
				Succeeded: true,
				Result:    clip(res.Output, maxFoldedResult),
			})

			// Terminal tools end the task with their terminal event instead
			// of an action_success; the rest of the batch never executes.
			switch a.Name {
			case action.Finish:
				t.AppendIteration(rec)
				o.complete(ctx, t, stream, a.Finish, stats)
				return
			case action.ReportError:
				t.AppendIteration(rec)
				o.log.WarnContext(ctx, "agent reported error", "kind", a.ReportError.Kind, "message", a.ReportError.Message)
				o.fail(ctx, t, stream, task.ReasonReported,
					fmt.Sprintf("%s: %s", a.ReportError.Kind, a.ReportError.Message))
				return
			}

			stream.Emit(ctx, event.New(event.TypeActionSuccess, t.ID, event.ActionSuccess{
				Tool:   string(a.Name),
				Result: clip(res.Output, maxFoldedResult),
			}))
		}

		mem.Append(conversation.RoleSystem, foldOutcomes(rec.Outcomes))
		t.AppendIteration(rec)
		o.persist(ctx, t)

		if consecutive >= o.cfg.MaxConsecutiveFailures {
			o.log.WarnContext(ctx, "too many consecutive failures", "count", consecutive)
			o.fail(ctx, t, stream, task.ReasonTooManyFailures,
				fmt.Sprintf("%d consecutive failures", consecutive))
			return
		}
	}

	o.log.WarnContext(ctx, "iteration budget exhausted", "max_iterations", o.cfg.MaxIterations)
	o.fail(ctx, t, stream, task.ReasonBudgetExhausted,
		fmt.Sprintf("no finish after %d iterations", o.cfg.MaxIterations))
}

func (o *Orchestrator) complete(ctx context.Context, t *task.Task, stream *event.Stream, p *action.FinishParams, stats task.Stats) {
	res := task.Result{
		Success: p.Succeeded(),
		Message: p.Message,
		Summary: p.Summary,
		Stats:   stats,
	}
	if err := t.Complete(res); err != nil {
		o.log.ErrorContext(ctx, "complete task", "error", err)
		return
	}
	o.persist(ctx, t)
	o.log.InfoContext(ctx, "task completed",
		"iterations", stats.Iterations, "tool_calls", stats.ToolCalls, "files_changed", stats.FilesChanged)

	stream.Emit(terminalCtx(ctx), event.New(event.TypeTaskCompleted, t.ID, event.TaskCompleted{
		Message: p.Message,
		Summary: p.Summary,
		Stats:   stats,
	}))
}

func (o *Orchestrator) fail(ctx context.Context, t *task.Task, stream *event.Stream, reason, message string) {
	if err := t.Fail(reason, message); err != nil {
		o.log.ErrorContext(ctx, "fail task", "error", err)
		return
	}
	o.persist(ctx, t)

	stream.Emit(terminalCtx(ctx), event.New(event.TypeTaskFailed, t.ID, event.TaskFailed{
		Reason: reason,
		Error:  message,
	}))
}

// persist writes the current task snapshot. The store must see terminal
// states even when the task context is already cancelled.
func (o *Orchestrator) persist(ctx context.Context, t *task.Task) {
	if err := o.store.Update(context.WithoutCancel(ctx), t); err != nil {
		o.log.ErrorContext(ctx, "persist task", "error", err)
	}
}

// terminalCtx gives terminal events a short delivery window of their own:
// the task context may already be cancelled, but the terminal event is the
// one the consumer most needs to see.
func terminalCtx(ctx context.Context) context.Context {
	if ctx.Err() == nil {
		return ctx
	}
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	go func() {
		<-c.Done()
		cancel()
	}()
	return c
}

func failedOutcome(a action.Action, err error) task.ActionOutcome {
	return task.ActionOutcome{
		Tool:      string(a.Name),
		Succeeded: false,
		ErrorKind: errorKind(err),
		Error:     err.Error(),
	}
}

// errorKind maps a failure to its stable dotted code.
func errorKind(err error) string {
	var v *policy.Violation
	if errors.As(err, &v) {
		return v.Code()
	}
	var te *tools.Error
	if errors.As(err, &te) {
		return te.Code()
	}
	return "tool.io"
}

// foldOutcomes renders a batch's outcomes as the system-role summary the
// model sees on its next call.
func foldOutcomes(outcomes []task.ActionOutcome) string {
	var b strings.Builder
	b.WriteString("Tool execution results:\n")
	for _, out := range outcomes {
		if out.Succeeded {
			fmt.Fprintf(&b, "[ok] %s: %s\n", out.Tool, out.Result)
		} else {
			fmt.Fprintf(&b, "[failed] %s: %s: %s\n", out.Tool, out.ErrorKind, out.Error)
		}
	}
	b.WriteString("\nIf the request is fully satisfied, call finish with a summary. Otherwise continue with the next actions.")
	return b.String()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
