// Package tools implements the closed set of executors behind the action
// union: file I/O, listing, search, diff, test execution, command execution,
// and user interaction. Every path an executor touches is re-resolved
// through the security validator, so there is no way to reach the
// filesystem without passing confinement.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/CodeSmith/internal/config"
	"github.com/Strob0t/CodeSmith/internal/domain/action"
	"github.com/Strob0t/CodeSmith/internal/domain/policy"
	"github.com/Strob0t/CodeSmith/internal/port/cache"
	"github.com/Strob0t/CodeSmith/internal/port/interaction"
)

// TestSummary is the structured outcome of a run_tests execution.
type TestSummary struct {
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Errors  int    `json:"errors"`
	Skipped int    `json:"skipped"`
	Runner  string `json:"runner"`
}

// Result is what a successful execution hands back to the orchestrator.
// Output is the text folded into the transcript and emitted on the event
// stream; the remaining fields feed the task's machine-checkable stats.
type Result struct {
	Output string
	// Mutated marks executions that changed workspace files.
	Mutated bool
	// Tests is set by run_tests only.
	Tests *TestSummary
}

// Executor runs validated actions against one workspace. It is owned by a
// single orchestrator and shares no mutable state with other tasks; the
// cache and asker are optional collaborators.
type Executor struct {
	validator *policy.Validator
	cfg       config.Tools
	cache     cache.Cache
	asker     interaction.Asker
	log       *slog.Logger
}

// NewExecutor creates an executor confined by the given validator. cache and
// asker may be nil: reads are then uncached and ask_user fails
// deterministically.
func NewExecutor(v *policy.Validator, cfg config.Tools, c cache.Cache, asker interaction.Asker, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{validator: v, cfg: cfg, cache: c, asker: asker, log: log}
}

// Execute dispatches one approved action to its executor. Failures are
// *Error; callers must validate the action first.
func (e *Executor) Execute(ctx context.Context, a action.Action) (Result, error) {
	switch a.Name {
	case action.Read:
		return e.readFile(ctx, a.Read)
	case action.Edit:
		return e.editFile(a.Edit)
	case action.Create:
		return e.createFile(a.Create)
	case action.Delete:
		return e.deleteFile(a.Delete)
	case action.List:
		return e.listFiles(a.List)
	case action.Search:
		return e.searchCode(a.Search)
	case action.Diff:
		return e.diffContent(a.Diff)
	case action.RunTests:
		return e.runTests(ctx, a.RunTests)
	case action.RunCommand:
		return e.runCommand(ctx, a.RunCommand)
	case action.AskUser:
		return e.askUser(ctx, a.AskUser)
	case action.ReportError:
		return Result{Output: a.ReportError.Message}, nil
	case action.Finish:
		return Result{Output: a.Finish.Message}, nil
	}
	return Result{}, errf(KindInvalidParams, "no executor for tool %s", a.Name)
}

// resolve maps a workspace-relative or absolute path to its canonical
// location, re-applying confinement and the deny-list.
func (e *Executor) resolve(p string) (string, error) {
	resolved, err := e.validator.CheckPath(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return resolved, nil
}
