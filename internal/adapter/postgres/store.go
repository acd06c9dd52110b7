package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CodeSmith/internal/domain"
	"github.com/Strob0t/CodeSmith/internal/domain/task"
)

// Store implements store.Store using PostgreSQL. Task snapshots are written
// whole: the iteration log and result live in JSONB columns so the table
// schema stays stable as the record shape evolves.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const taskColumns = `id, original_request, workspace_root, status, fail_reason, error,
	iteration_log, result, created_at, started_at, finished_at`

func (s *Store) Create(ctx context.Context, t *task.Task) error {
	iterJSON, resultJSON, err := marshalTaskBlobs(t)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, original_request, workspace_root, status, fail_reason, error,
		   iteration_log, result, created_at, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, t.OriginalRequest, t.WorkspaceRoot, t.Status, t.FailReason, t.Error,
		iterJSON, resultJSON, t.CreatedAt, t.StartedAt, t.FinishedAt)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create task %s: %w", t.ID, domain.ErrConflict)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get task %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

func (s *Store) List(ctx context.Context) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) Update(ctx context.Context, t *task.Task) error {
	iterJSON, resultJSON, err := marshalTaskBlobs(t)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $2, fail_reason = $3, error = $4,
		   iteration_log = $5, result = $6, started_at = $7, finished_at = $8
		 WHERE id = $1`,
		t.ID, t.Status, t.FailReason, t.Error,
		iterJSON, resultJSON, t.StartedAt, t.FinishedAt)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task %s: %w", t.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// marshalTaskBlobs serializes the JSONB columns. A nil iteration log is
// stored as an empty array so scans never see SQL NULL.
func marshalTaskBlobs(t *task.Task) (iterJSON, resultJSON []byte, err error) {
	iters := t.Iterations
	if iters == nil {
		iters = []task.IterationRecord{}
	}
	iterJSON, err = json.Marshal(iters)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal iteration log: %w", err)
	}
	if t.Result != nil {
		resultJSON, err = json.Marshal(t.Result)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal result: %w", err)
		}
	}
	return iterJSON, resultJSON, nil
}

func scanTask(row scannable) (task.Task, error) {
	var t task.Task
	var iterJSON, resultJSON []byte
	err := row.Scan(&t.ID, &t.OriginalRequest, &t.WorkspaceRoot, &t.Status, &t.FailReason, &t.Error,
		&iterJSON, &resultJSON, &t.CreatedAt, &t.StartedAt, &t.FinishedAt)
	if err != nil {
		return t, err
	}
	if len(iterJSON) > 0 {
		if err := json.Unmarshal(iterJSON, &t.Iterations); err != nil {
			return t, fmt.Errorf("unmarshal iteration log: %w", err)
		}
		if len(t.Iterations) == 0 {
			t.Iterations = nil
		}
	}
	if len(resultJSON) > 0 {
		var r task.Result
		if err := json.Unmarshal(resultJSON, &r); err != nil {
			return t, fmt.Errorf("unmarshal result: %w", err)
		}
		t.Result = &r
	}
	return t, nil
}
