package tools

import (
	"testing"
)

func TestDetectRunner(t *testing.T) {
	tests := []struct {
		name   string
		files  []string
		want   string
	}{
		{"go module", []string{"go.mod"}, "go"},
		{"pytest ini", []string{"pytest.ini"}, "pytest"},
		{"pyproject", []string{"pyproject.toml"}, "pytest"},
		{"requirements", []string{"requirements.txt"}, "pytest"},
		{"go wins over python", []string{"go.mod", "pyproject.toml"}, "go"},
		{"nothing", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, root, f, "")
			}
			if got := detectRunner(root); got != tt.want {
				t.Fatalf("detectRunner = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseGoTestOutput(t *testing.T) {
	out := `=== RUN   TestA
--- PASS: TestA (0.00s)
=== RUN   TestB
--- FAIL: TestB (0.01s)
=== RUN   TestC
--- SKIP: TestC (0.00s)
=== RUN   TestD
--- PASS: TestD (0.00s)
FAIL
FAIL	example.com/pkg	0.015s
FAIL	example.com/broken	[build failed]
`
	s := parseGoTestOutput(out)
	if s.Passed != 2 || s.Failed != 1 || s.Skipped != 1 || s.Errors != 1 {
		t.Fatalf("summary = %+v", s)
	}
}

func TestParsePytestOutput(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want TestSummary
	}{
		{
			"mixed results",
			"===== 5 passed, 2 failed, 1 error, 3 skipped in 1.23s =====",
			TestSummary{Passed: 5, Failed: 2, Errors: 1, Skipped: 3},
		},
		{
			"all passing",
			"===== 12 passed in 0.45s =====",
			TestSummary{Passed: 12},
		},
		{
			"no summary line",
			"collected 0 items",
			TestSummary{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parsePytestOutput(tt.out); got != tt.want {
				t.Fatalf("summary = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGoTestArgs(t *testing.T) {
	argv := goTestArgs("filter", "", "TestEdit")
	want := []string{"go", "test", "-v", "-run", "TestEdit", "./..."}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v", argv)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Fatalf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}
