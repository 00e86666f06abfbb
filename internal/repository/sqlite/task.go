package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/repository"
)

var _ repository.TaskRepository = (*DB)(nil)

const taskColumns = `id, user_id, title, description, priority, status, due_date, created_at, updated_at`

// CreateTask inserts a task. ID and timestamps are set on the struct.
func (db *DB) CreateTask(ctx context.Context, t *model.Task) error {
	now := time.Now()
	t.ID = xid.New().String()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.UserID,
		t.Title,
		t.Description,
		string(t.Priority),
		string(t.Status),
		nullableMillis(t.DueDate),
		toMillis(t.CreatedAt),
		toMillis(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting task: %w", err)
	}
	return nil
}

// GetTaskByID returns apperror.ErrNotFound for an unknown id.
func (db *DB) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("task", id)
		}
		return nil, fmt.Errorf("sqlite: getting task %s: %w", id, err)
	}
	return t, nil
}

// ListTasks returns the tasks matching filter.
// It returns an empty (non-nil) slice when nothing matches, so the JSON
// encoding is [] rather than null.
func (db *DB) ListTasks(ctx context.Context, f repository.TaskFilter) ([]model.Task, error) {
	where, args := taskWhere(f)

	query := `SELECT ` + taskColumns + ` FROM tasks` + where
	switch f.OrderBy {
	case repository.TasksByDueDate:
		query += ` ORDER BY due_date ASC, created_at ASC`
	default:
		query += ` ORDER BY created_at DESC, rowid DESC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tasks: %w", err)
	}
	return tasks, nil
}

// CountTasks counts the tasks matching filter. Limit and OrderBy are ignored.
func (db *DB) CountTasks(ctx context.Context, f repository.TaskFilter) (int, error) {
	where, args := taskWhere(f)

	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting tasks: %w", err)
	}
	return n, nil
}

// UpdateTaskOwned applies patch to the task only if ownerID owns it.
//
// ATOMIC CONDITIONAL UPDATE:
// The ownership check and the write are one statement
// (WHERE id = ? AND user_id = ?), so there is no window between "check the
// owner" and "write" for another request to slip into. COALESCE(?, col)
// keeps a column unchanged when its patch field is nil.
// RETURNING hands back the updated row in the same round trip.
//
// When no row matches, repository.ErrNotMatched is returned and the caller
// works out whether the task is missing or owned by someone else.
func (db *DB) UpdateTaskOwned(ctx context.Context, id, ownerID string, p repository.TaskPatch) (*model.Task, error) {
	row := db.conn.QueryRowContext(ctx,
		`UPDATE tasks SET
			title       = COALESCE(?, title),
			description = COALESCE(?, description),
			priority    = COALESCE(?, priority),
			status      = COALESCE(?, status),
			due_date    = COALESCE(?, due_date),
			updated_at  = ?
		 WHERE id = ? AND user_id = ?
		 RETURNING `+taskColumns,
		stringArg(p.Title),
		stringArg(p.Description),
		priorityArg(p.Priority),
		taskStatusArg(p.Status),
		nullableMillis(p.DueDate),
		toMillis(time.Now()),
		id,
		ownerID,
	)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotMatched
		}
		return nil, fmt.Errorf("sqlite: updating task %s: %w", id, err)
	}
	return t, nil
}

// DeleteTaskOwned deletes the task only if ownerID owns it.
// repository.ErrNotMatched means nothing was deleted.
func (db *DB) DeleteTaskOwned(ctx context.Context, id, ownerID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotMatched
	}
	return nil
}

// taskWhere renders the WHERE clause for a filter. Only parameter
// placeholders carry values; column names are fixed strings.
func taskWhere(f repository.TaskFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.ExcludeStatus != "" {
		conds = append(conds, "status <> ?")
		args = append(args, string(f.ExcludeStatus))
	}
	if len(f.Priorities) > 0 {
		conds = append(conds, "priority IN ("+placeholders(len(f.Priorities))+")")
		for _, p := range f.Priorities {
			args = append(args, string(p))
		}
	}
	if f.DueFrom != nil {
		conds = append(conds, "due_date >= ?")
		args = append(args, toMillis(*f.DueFrom))
	}
	if f.DueBefore != nil {
		conds = append(conds, "due_date < ?")
		args = append(args, toMillis(*f.DueBefore))
	}
	if f.UpdatedFrom != nil {
		conds = append(conds, "updated_at >= ?")
		args = append(args, toMillis(*f.UpdatedFrom))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanTask(s scanner) (*model.Task, error) {
	var (
		t                model.Task
		priority, status string
		due              sql.NullInt64
		created, updated int64
	)
	err := s.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&priority,
		&status,
		&due,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	t.Priority = model.Priority(priority)
	t.Status = model.TaskStatus(status)
	t.DueDate = fromNullMillis(due)
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	return &t, nil
}

// The *Arg helpers turn optional patch fields into driver values:
// nil becomes SQL NULL, which COALESCE then skips.

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func priorityArg(p *model.Priority) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func taskStatusArg(s *model.TaskStatus) any {
	if s == nil {
		return nil
	}
	return string(*s)
}
