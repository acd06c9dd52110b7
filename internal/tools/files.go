package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/CodeSmith/internal/domain/action"
)

// readFile returns the file's contents. Recently read files are served from
// the byte cache; the key includes mtime and size, so a changed file misses
// naturally and stale entries age out without invalidation.
func (e *Executor) readFile(ctx context.Context, p *action.ReadParams) (Result, error) {
	resolved, err := e.resolve(p.Path)
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return Result{}, errf(KindNotFound, "file not found: %s", p.Path)
	}
	if !info.Mode().IsRegular() {
		return Result{}, errf(KindNotFound, "not a regular file: %s", p.Path)
	}

	key := cacheKey(resolved, info.ModTime(), info.Size())
	if e.cache != nil {
		if data, ok, _ := e.cache.Get(ctx, key); ok {
			return Result{Output: string(data)}, nil
		}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return Result{}, errf(KindIO, "read %s: %v", p.Path, err)
	}
	if !utf8.Valid(data) {
		return Result{}, errf(KindIO, "cannot read binary file: %s", p.Path)
	}

	if e.cache != nil {
		_ = e.cache.Set(ctx, key, data, e.cfg.CacheTTL)
	}

	e.log.DebugContext(ctx, "read file", "path", p.Path, "bytes", len(data))
	return Result{Output: string(data)}, nil
}

// editFile replaces old_text with new_text. The match must be unique:
// ambiguity is a caller error, never silently resolved.
func (e *Executor) editFile(p *action.EditParams) (Result, error) {
	resolved, err := e.resolve(p.Path)
	if err != nil {
		return Result{}, err
	}

	if p.OldText == p.NewText {
		return Result{}, errf(KindInvalidParams, "old_text and new_text are identical")
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return Result{}, errf(KindNotFound, "file not found: %s", p.Path)
	}
	if !info.Mode().IsRegular() {
		return Result{}, errf(KindNotFound, "not a regular file: %s", p.Path)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return Result{}, errf(KindIO, "read %s: %v", p.Path, err)
	}
	content := string(data)

	switch n := strings.Count(content, p.OldText); {
	case n == 0:
		return Result{}, errf(KindNotFound,
			"old_text not found in %s; it must match exactly, including whitespace", p.Path)
	case n > 1:
		return Result{}, errf(KindAmbiguousMatch,
			"old_text appears %d times in %s; add surrounding context to make it unique", n, p.Path)
	}

	updated := strings.Replace(content, p.OldText, p.NewText, 1)
	if err := os.WriteFile(resolved, []byte(updated), info.Mode().Perm()); err != nil {
		return Result{}, errf(KindIO, "write %s: %v", p.Path, err)
	}

	e.log.Info("edited file", "path", p.Path, "old_bytes", len(content), "new_bytes", len(updated))
	return Result{
		Output:  fmt.Sprintf("edited %s: 1 change (%d -> %d bytes)", p.Path, len(content), len(updated)),
		Mutated: true,
	}, nil
}

// createFile writes a new file, creating parent directories as needed. An
// existing file is never overwritten.
func (e *Executor) createFile(p *action.CreateParams) (Result, error) {
	resolved, err := e.resolve(p.Path)
	if err != nil {
		return Result{}, err
	}

	if _, err := os.Stat(resolved); err == nil {
		return Result{}, errf(KindAlreadyExists, "file already exists: %s; use edit to modify it", p.Path)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return Result{}, errf(KindIO, "create parent directories for %s: %v", p.Path, err)
	}
	if err := os.WriteFile(resolved, []byte(p.Content), 0o644); err != nil {
		return Result{}, errf(KindIO, "create %s: %v", p.Path, err)
	}

	e.log.Info("created file", "path", p.Path, "bytes", len(p.Content))
	return Result{
		Output:  fmt.Sprintf("created %s (%d bytes)", p.Path, len(p.Content)),
		Mutated: true,
	}, nil
}

// deleteFile relocates the file to a .deleted sibling and returns the backup
// location. Nothing is destroyed irrecoverably, and the confirm flag is
// mandatory.
func (e *Executor) deleteFile(p *action.DeleteParams) (Result, error) {
	if !p.Confirm {
		return Result{}, errf(KindConfirmRequired, "delete requires confirm=true")
	}

	resolved, err := e.resolve(p.Path)
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return Result{}, errf(KindNotFound, "file not found: %s", p.Path)
	}
	if !info.Mode().IsRegular() {
		return Result{}, errf(KindNotFound, "not a regular file: %s", p.Path)
	}

	backup := resolved + ".deleted"
	if _, err := os.Stat(backup); err == nil {
		backup = fmt.Sprintf("%s.deleted.%s", resolved, time.Now().UTC().Format("20060102_150405"))
	}

	if err := os.Rename(resolved, backup); err != nil {
		return Result{}, errf(KindIO, "delete %s: %v", p.Path, err)
	}

	e.log.Warn("deleted file", "path", p.Path, "backup", backup)
	return Result{
		Output:  fmt.Sprintf("deleted %s (backup: %s)", p.Path, backup),
		Mutated: true,
	}, nil
}

func cacheKey(resolved string, mtime time.Time, size int64) string {
	return fmt.Sprintf("%s|%d|%d", resolved, mtime.UnixNano(), size)
}
