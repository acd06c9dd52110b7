package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Strob0t/CodeSmith/internal/domain/action"
)

// runTests runs the project's test suite and parses the runner output into
// a structured pass/fail summary. The runner is auto-detected from
// workspace markers unless pinned in config.
func (e *Executor) runTests(ctx context.Context, p *action.RunTestsParams) (Result, error) {
	runner := e.cfg.TestRunner
	if runner == "" || runner == "auto" {
		runner = detectRunner(e.validator.Root())
	}
	if runner == "" {
		return Result{}, errf(KindRunnerError,
			"no test runner detected in workspace; expected go.mod or Python project markers")
	}

	target := ""
	if p.Path != "" {
		resolved, err := e.resolve(p.Path)
		if err != nil {
			return Result{}, err
		}
		if _, err := os.Stat(resolved); err != nil {
			return Result{}, errf(KindNotFound, "test path not found: %s", p.Path)
		}
		target = resolved
	}

	var argv []string
	switch runner {
	case "go":
		argv = goTestArgs(p.Scope, target, p.Filter)
	case "pytest":
		argv = pytestArgs(p.Scope, target, p.Filter)
	default:
		return Result{}, errf(KindRunnerError, "unknown test runner %q", runner)
	}

	timeout := e.cfg.TestTimeout
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Second
	}

	e.log.InfoContext(ctx, "running tests", "runner", runner, "scope", p.Scope, "timeout", timeout)

	res, err := e.runProcess(ctx, argv, e.validator.Root(), timeout)
	if err != nil {
		return Result{}, err
	}

	var summary TestSummary
	switch runner {
	case "go":
		summary = parseGoTestOutput(res.stdout + res.stderr)
	case "pytest":
		summary = parsePytestOutput(res.stdout)
	}
	summary.Runner = runner

	var b strings.Builder
	fmt.Fprintf(&b, "tests: %d passed, %d failed, %d errors, %d skipped (exit %d)\n",
		summary.Passed, summary.Failed, summary.Errors, summary.Skipped, res.exitCode)
	if res.stdout != "" {
		fmt.Fprintf(&b, "%s\n", res.stdout)
	}
	if res.exitCode != 0 && res.stderr != "" {
		fmt.Fprintf(&b, "stderr:\n%s\n", res.stderr)
	}

	return Result{
		Output: strings.TrimRight(b.String(), "\n"),
		Tests:  &summary,
	}, nil
}

// detectRunner picks a runner from workspace markers: go.mod wins, then the
// usual Python project files.
func detectRunner(root string) string {
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
		return "go"
	}
	for _, marker := range []string{"pytest.ini", "pyproject.toml", "setup.py", "requirements.txt", "tests"} {
		if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
			return "pytest"
		}
	}
	return ""
}

func goTestArgs(scope, target, filter string) []string {
	argv := []string{"go", "test", "-v"}
	switch scope {
	case action.ScopeDirectory:
		argv = append(argv, target+string(filepath.Separator)+"...")
	case action.ScopeFile:
		argv = append(argv, target)
	case action.ScopeFilter:
		argv = append(argv, "-run", filter, "./...")
	default:
		argv = append(argv, "./...")
	}
	return argv
}

func pytestArgs(scope, target, filter string) []string {
	argv := []string{"pytest", "-v", "--tb=short"}
	switch scope {
	case action.ScopeDirectory, action.ScopeFile:
		argv = append(argv, target)
	case action.ScopeFilter:
		argv = append(argv, "-k", filter)
	}
	return argv
}

var (
	goPassRe    = regexp.MustCompile(`(?m)^\s*--- PASS:`)
	goFailRe    = regexp.MustCompile(`(?m)^\s*--- FAIL:`)
	goSkipRe    = regexp.MustCompile(`(?m)^\s*--- SKIP:`)
	goBuildRe   = regexp.MustCompile(`(?m)^FAIL\s+\S+\s+\[(build|setup) failed\]`)
	pytestSumRe = regexp.MustCompile(`(\d+) (passed|failed|error|errors|skipped)`)
)

// parseGoTestOutput counts per-test verdicts from `go test -v` output.
// Packages that fail to build count as errors rather than test failures.
func parseGoTestOutput(out string) TestSummary {
	return TestSummary{
		Passed:  len(goPassRe.FindAllString(out, -1)),
		Failed:  len(goFailRe.FindAllString(out, -1)),
		Skipped: len(goSkipRe.FindAllString(out, -1)),
		Errors:  len(goBuildRe.FindAllString(out, -1)),
	}
}

// parsePytestOutput reads the summary line pytest prints at the end of a
// run ("3 passed, 1 failed in 0.12s").
func parsePytestOutput(out string) TestSummary {
	var s TestSummary
	for _, m := range pytestSumRe.FindAllStringSubmatch(out, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		switch m[2] {
		case "passed":
			s.Passed = n
		case "failed":
			s.Failed = n
		case "error", "errors":
			s.Errors = n
		case "skipped":
			s.Skipped = n
		}
	}
	return s
}
