package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/CodeSmith/internal/domain/action"
	"github.com/Strob0t/CodeSmith/internal/port/interaction"
)

func TestRunCommandCapturesOutput(t *testing.T) {
	e, _ := newTestExecutor(t)

	res, err := e.runCommand(context.Background(), &action.RunCommandParams{Command: "echo hello world"})
	if err != nil {
		t.Fatalf("runCommand: %v", err)
	}
	if !strings.Contains(res.Output, "exit code: 0") {
		t.Fatalf("output = %q", res.Output)
	}
	if !strings.Contains(res.Output, "hello world") {
		t.Fatalf("output = %q", res.Output)
	}
}

func TestRunCommandReportsNonZeroExit(t *testing.T) {
	e, _ := newTestExecutor(t)

	// A failing command is still a successful execution; the exit code is data.
	res, err := e.runCommand(context.Background(), &action.RunCommandParams{Command: "false"})
	if err != nil {
		t.Fatalf("runCommand: %v", err)
	}
	if !strings.Contains(res.Output, "exit code: 1") {
		t.Fatalf("output = %q", res.Output)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.cfg.CommandTimeout = 100 * time.Millisecond

	_, err := e.runCommand(context.Background(), &action.RunCommandParams{Command: "sleep 5"})
	if kind := toolKind(t, err); kind != KindTimeout {
		t.Fatalf("kind = %s, want %s", kind, KindTimeout)
	}
}

func TestRunCommandMissingBinary(t *testing.T) {
	e, _ := newTestExecutor(t)

	_, err := e.runCommand(context.Background(), &action.RunCommandParams{Command: "definitely-not-a-binary-xyz"})
	if kind := toolKind(t, err); kind != KindRunnerError {
		t.Fatalf("kind = %s, want %s", kind, KindRunnerError)
	}
}

type scriptedAsker struct {
	answer string
	asked  []interaction.Prompt
}

func (a *scriptedAsker) Ask(_ context.Context, p interaction.Prompt) (string, error) {
	a.asked = append(a.asked, p)
	return a.answer, nil
}

func TestAskUserWithoutChannelFails(t *testing.T) {
	e, _ := newTestExecutor(t)

	_, err := e.askUser(context.Background(), &action.AskUserParams{Question: "continue?"})
	if kind := toolKind(t, err); kind != KindNoChannel {
		t.Fatalf("kind = %s, want %s", kind, KindNoChannel)
	}
}

func TestAskUserRelaysAnswer(t *testing.T) {
	e, _ := newTestExecutor(t)
	asker := &scriptedAsker{answer: "yes"}
	e.asker = asker

	res, err := e.askUser(context.Background(), &action.AskUserParams{
		Question: "proceed?",
		Options:  []string{"yes", "no"},
	})
	if err != nil {
		t.Fatalf("askUser: %v", err)
	}
	if res.Output != "yes" {
		t.Fatalf("answer = %q", res.Output)
	}
	if len(asker.asked) != 1 || asker.asked[0].Question != "proceed?" {
		t.Fatalf("asked = %+v", asker.asked)
	}
}
