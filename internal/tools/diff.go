package tools

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Strob0t/CodeSmith/internal/domain/action"
)

// diffContent renders a unified-style line diff between two content
// versions of a file. The tool is pure: it never touches the workspace, the
// path is only a label.
func (e *Executor) diffContent(p *action.DiffParams) (Result, error) {
	if p.OldContent == p.NewContent {
		return Result{Output: fmt.Sprintf("no changes in %s", p.Path)}, nil
	}

	dmp := diffmatchpatch.New()
	oldChars, newChars, lines := dmp.DiffLinesToChars(p.OldContent, p.NewContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(oldChars, newChars, false), lines)

	added, removed := 0, 0
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", p.Path, p.Path)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range splitLines(d.Text) {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteByte('\n')
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				added++
			case diffmatchpatch.DiffDelete:
				removed++
			}
		}
	}
	fmt.Fprintf(&b, "+%d -%d lines", added, removed)

	return Result{Output: b.String()}, nil
}

// splitLines splits diff text into lines, dropping the empty tail a trailing
// newline produces.
func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
