package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/CodeSmith/internal/config"
	"github.com/Strob0t/CodeSmith/internal/domain"
)

// Workspaces provisions managed session directories for tasks submitted
// without an explicit workspace root. Sessions expire after a TTL of
// inactivity; a janitor loop sweeps them out.
type Workspaces struct {
	base string
	ttl  time.Duration
	log  *slog.Logger

	mu         sync.Mutex
	lastAccess map[string]time.Time

	janitorInterval time.Duration
}

// NewWorkspaces creates a session workspace manager rooted at the configured
// base directory.
func NewWorkspaces(cfg config.Workspace, log *slog.Logger) *Workspaces {
	if log == nil {
		log = slog.Default()
	}
	return &Workspaces{
		base:            cfg.SessionBase,
		ttl:             cfg.SessionTTL,
		janitorInterval: cfg.JanitorInterval,
		log:             log,
		lastAccess:      make(map[string]time.Time),
	}
}

// Provision creates a fresh session directory and returns its path.
func (w *Workspaces) Provision() (string, error) {
	if err := os.MkdirAll(w.base, 0o755); err != nil {
		return "", fmt.Errorf("create session base %s: %w", w.base, err)
	}

	name := "sess-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	dir := filepath.Join(w.base, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session workspace %s: %w", dir, err)
	}

	w.mu.Lock()
	w.lastAccess[dir] = time.Now()
	w.mu.Unlock()

	w.log.Info("provisioned session workspace", "dir", dir)
	return dir, nil
}

// Touch records activity on a session so the janitor leaves it alone.
// Unknown directories (explicit user workspaces) are ignored.
func (w *Workspaces) Touch(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.lastAccess[dir]; ok {
		w.lastAccess[dir] = time.Now()
	}
}

// Remove deletes a session workspace and its tracking entry. Only
// directories under the session base may be removed.
func (w *Workspaces) Remove(dir string) error {
	rel, err := filepath.Rel(w.base, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("remove workspace %s: not a session directory: %w", dir, domain.ErrInvalid)
	}

	w.mu.Lock()
	_, tracked := w.lastAccess[dir]
	delete(w.lastAccess, dir)
	w.mu.Unlock()

	if !tracked {
		return fmt.Errorf("remove workspace %s: %w", dir, domain.ErrNotFound)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", dir, err)
	}

	w.log.Info("removed session workspace", "dir", dir)
	return nil
}

// Sweep removes sessions idle past the TTL and returns how many went.
func (w *Workspaces) Sweep(now time.Time) int {
	w.mu.Lock()
	var expired []string
	for dir, at := range w.lastAccess {
		if now.Sub(at) > w.ttl {
			expired = append(expired, dir)
			delete(w.lastAccess, dir)
		}
	}
	w.mu.Unlock()

	for _, dir := range expired {
		if err := os.RemoveAll(dir); err != nil {
			w.log.Warn("sweep failed", "dir", dir, "error", err)
			continue
		}
		w.log.Info("swept expired session workspace", "dir", dir)
	}
	return len(expired)
}

// StartJanitor launches the sweep loop. It stops when ctx is cancelled.
func (w *Workspaces) StartJanitor(ctx context.Context) {
	interval := w.janitorInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Sweep(time.Now())
			}
		}
	}()
}
