package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/Strob0t/CodeSmith/internal/domain/action"
)

// maxCapturedOutput bounds how much process output is carried back into the
// transcript and event stream.
const maxCapturedOutput = 8 << 10

type processResult struct {
	stdout   string
	stderr   string
	exitCode int
}

// runCommand executes an allow-listed command. The string is split into an
// argv and executed directly, never through a shell, so the metacharacters
// the validator rejects could not do anything here anyway. A non-zero exit
// is a successful execution with the code reported; only timeouts and
// spawn failures are tool errors.
func (e *Executor) runCommand(ctx context.Context, p *action.RunCommandParams) (Result, error) {
	dir := e.validator.Root()
	if p.WorkingDir != "" {
		resolved, err := e.resolve(p.WorkingDir)
		if err != nil {
			return Result{}, err
		}
		dir = resolved
	}

	timeout := e.cfg.CommandTimeout
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Second
	}

	argv := strings.Fields(p.Command)
	e.log.InfoContext(ctx, "running command", "command", p.Command, "dir", dir, "timeout", timeout)

	res, err := e.runProcess(ctx, argv, dir, timeout)
	if err != nil {
		return Result{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "exit code: %d\n", res.exitCode)
	if res.stdout != "" {
		fmt.Fprintf(&b, "stdout:\n%s\n", res.stdout)
	}
	if res.stderr != "" {
		fmt.Fprintf(&b, "stderr:\n%s\n", res.stderr)
	}
	return Result{Output: strings.TrimRight(b.String(), "\n")}, nil
}

// runProcess spawns argv in its own process group and kills the whole group
// on timeout, so a test runner cannot leave orphaned children behind.
func (e *Executor) runProcess(ctx context.Context, argv []string, dir string, timeout time.Duration) (processResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...) //nolint:gosec // G204: argv passed validator approval
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()

	if runCtx.Err() != nil && ctx.Err() == nil {
		return processResult{}, errf(KindTimeout, "%s timed out after %s", argv[0], timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return processResult{}, errf(KindRunnerError, "run %s: %v", argv[0], err)
		}
	}

	return processResult{
		stdout:   truncate(stdout.String(), maxCapturedOutput),
		stderr:   truncate(stderr.String(), maxCapturedOutput),
		exitCode: cmd.ProcessState.ExitCode(),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
