package tools

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Strob0t/CodeSmith/internal/domain/action"
)

type listEntry struct {
	path  string
	isDir bool
	size  int64
}

// listFiles enumerates a directory, optionally filtered by a basename glob
// and optionally recursive. Deny-listed segments are pruned, so the model
// never discovers paths it would not be allowed to touch.
func (e *Executor) listFiles(p *action.ListParams) (Result, error) {
	resolved, err := e.resolve(p.Path)
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return Result{}, errf(KindNotFound, "directory not found: %s", p.Path)
	}
	if !info.IsDir() {
		return Result{}, errf(KindNotFound, "not a directory: %s", p.Path)
	}

	var entries []listEntry
	collect := func(path string, d fs.DirEntry) {
		if p.Pattern != "" {
			if ok, err := filepath.Match(p.Pattern, d.Name()); err != nil || !ok {
				return
			}
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return
		}
		var size int64
		if fi, err := d.Info(); err == nil && !d.IsDir() {
			size = fi.Size()
		}
		entries = append(entries, listEntry{path: rel, isDir: d.IsDir(), size: size})
	}

	if p.Recursive {
		err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if path == resolved {
				return nil
			}
			if e.validator.Blocked(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			collect(path, d)
			return nil
		})
		if err != nil {
			return Result{}, errf(KindIO, "list %s: %v", p.Path, err)
		}
	} else {
		dirEntries, err := os.ReadDir(resolved)
		if err != nil {
			return Result{}, errf(KindIO, "list %s: %v", p.Path, err)
		}
		for _, d := range dirEntries {
			if e.validator.Blocked(d.Name()) {
				continue
			}
			collect(filepath.Join(resolved, d.Name()), d)
		}
	}

	// Directories first, then lexical.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return entries[i].isDir
		}
		return entries[i].path < entries[j].path
	})

	var b strings.Builder
	for _, en := range entries {
		if en.isDir {
			fmt.Fprintf(&b, "%s/\n", en.path)
		} else {
			fmt.Fprintf(&b, "%s (%d bytes)\n", en.path, en.size)
		}
	}
	fmt.Fprintf(&b, "%d entries", len(entries))

	return Result{Output: b.String()}, nil
}
