package tools

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Strob0t/CodeSmith/internal/domain/action"
)

type match struct {
	file    string
	line    int
	content string
}

// searchCode greps the workspace for a pattern. Literal patterns are quoted
// into the regexp engine so both modes share one matcher. Results are capped
// by the configured limit; deny-listed subtrees and binary files are
// skipped.
func (e *Executor) searchCode(p *action.SearchParams) (Result, error) {
	resolved, err := e.resolve(p.Path)
	if err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(resolved); err != nil {
		return Result{}, errf(KindNotFound, "path not found: %s", p.Path)
	}

	expr := p.Pattern
	if !p.Regex {
		expr = regexp.QuoteMeta(p.Pattern)
	}
	if p.IgnoreCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Result{}, errf(KindInvalidPattern, "invalid pattern %q: %v", p.Pattern, err)
	}

	limit := e.cfg.SearchLimit
	if limit <= 0 {
		limit = 100
	}

	var matches []match
	truncated := false

	searchFile := func(path string) error {
		rel, err := filepath.Rel(e.validator.Root(), path)
		if err != nil {
			rel = path
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer func() { _ = f.Close() }()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			if strings.ContainsRune(line, '\x00') {
				return nil // binary file
			}
			if re.MatchString(line) {
				matches = append(matches, match{file: rel, line: lineNum, content: line})
				if len(matches) >= limit {
					truncated = true
					return filepath.SkipAll
				}
			}
		}
		return nil
	}

	info, _ := os.Stat(resolved)
	if info != nil && !info.IsDir() {
		_ = searchFile(resolved)
	} else {
		err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if e.validator.Blocked(d.Name()) && path != resolved {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if p.FilePattern != "" {
				if ok, err := filepath.Match(p.FilePattern, d.Name()); err != nil || !ok {
					return nil
				}
			}
			return searchFile(path)
		})
		if err != nil && err != filepath.SkipAll {
			return Result{}, errf(KindIO, "search %s: %v", p.Path, err)
		}
	}

	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "%s:%d: %s\n", m.file, m.line, m.content)
	}
	if truncated {
		fmt.Fprintf(&b, "%d matches (limit reached)", len(matches))
	} else {
		fmt.Fprintf(&b, "%d matches", len(matches))
	}

	e.log.Debug("searched", "pattern", p.Pattern, "matches", len(matches))
	return Result{Output: b.String()}, nil
}
