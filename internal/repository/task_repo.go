package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
	"taskboard/pkg/otel"
)

const taskColumns = `id, project_id, title, description, assignee, status, position,
        due_date, comments, attachments, created_at`

type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Title,
		&t.Description,
		&t.Assignee,
		&t.Status,
		&t.Position,
		&t.DueDate,
		&t.Comments,
		&t.Attachments,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NextPosition returns the tail position of a column.
func (r *TaskRepository) NextPosition(ctx context.Context, projectID uuid.UUID, status model.Status) (int, error) {
	// bigint: MAX(position) + 1 overflows int4 when the tail is at MaxInt32.
	var next int64
	err := r.db.QueryRow(ctx, `
        SELECT COALESCE(MAX(position)::bigint + 1, 0)
        FROM tasks
        WHERE project_id = $1 AND status = $2
    `, projectID, status).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	return int(next), nil
}

func (r *TaskRepository) Insert(ctx context.Context, t *model.Task) error {
	comments, attachments := t.Comments, t.Attachments
	if comments == nil {
		comments = []model.Comment{}
	}
	if attachments == nil {
		attachments = []model.Attachment{}
	}

	query := `
        INSERT INTO tasks (id, project_id, title, description, assignee, status, position,
                           due_date, comments, attachments, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `
	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.ProjectID,
		t.Title,
		t.Description,
		t.Assignee,
		t.Status,
		t.Position,
		t.DueDate,
		comments,
		attachments,
		t.CreatedAt,
	)
	return mapErr(err, "task")
}

// FindByID returns the task only if it belongs to projectID.
func (r *TaskRepository) FindByID(ctx context.Context, projectID, id uuid.UUID) (*model.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND project_id = $2`, id, projectID))
	if err != nil {
		return nil, mapErr(err, "task")
	}
	return t, nil
}

// ListByProject returns the project's tasks in storage order; the board
// sorts them.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Task, error) {
	rows, err := r.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TaskRepository) Update(ctx context.Context, projectID, id uuid.UUID, patch model.TaskPatch, position *int) (*model.Task, error) {
	var updated *model.Task
	err := otel.WithDBSpan(ctx, "task.update", func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		t, err := scanTask(tx.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND project_id = $2 FOR UPDATE`, id, projectID))
		if err != nil {
			return mapErr(err, "task")
		}
		applyTaskPatch(t, patch, position)

		_, err = tx.Exec(ctx, `
            UPDATE tasks
            SET title = $2, description = $3, assignee = $4, status = $5, position = $6,
                due_date = $7, attachments = $8
            WHERE id = $1
        `, id, t.Title, t.Description, t.Assignee, t.Status, t.Position, t.DueDate, t.Attachments)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		updated = t
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyTaskPatch(t *model.Task, patch model.TaskPatch, position *int) {
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.ClearAssignee {
		t.Assignee = nil
	} else if patch.Assignee != nil {
		t.Assignee = patch.Assignee
	}
	if patch.ClearDueDate {
		t.DueDate = nil
	} else if patch.DueDate != nil {
		t.DueDate = patch.DueDate
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Attachments != nil {
		t.Attachments = *patch.Attachments
	}
	if t.Attachments == nil {
		t.Attachments = []model.Attachment{}
	}
	if position != nil {
		t.Position = *position
	}
}

// Move sets status and position; no other column is written.
func (r *TaskRepository) Move(ctx context.Context, projectID uuid.UUID, m model.TaskMove) (*model.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, `
        UPDATE tasks SET status = $3, position = $4
        WHERE id = $1 AND project_id = $2
        RETURNING `+taskColumns, m.ID, projectID, m.Status, m.Position))
	if err != nil {
		return nil, mapErr(err, "task")
	}
	return t, nil
}

// MoveMany applies every move in one transaction; an id outside the
// project rolls all of them back.
func (r *TaskRepository) MoveMany(ctx context.Context, projectID uuid.UUID, moves []model.TaskMove) error {
	return otel.WithDBSpan(ctx, "task.move_many", func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for _, m := range moves {
			batch.Queue(`
                UPDATE tasks SET status = $3, position = $4
                WHERE id = $1 AND project_id = $2
            `, m.ID, projectID, m.Status, m.Position)
		}

		results := tx.SendBatch(ctx, batch)
		for range moves {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return fmt.Errorf("move task: %w", err)
			}
			if tag.RowsAffected() == 0 {
				results.Close()
				return apperr.NotFound("task not found")
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("move tasks: %w", err)
		}
		return tx.Commit(ctx)
	})
}

func (r *TaskRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("task not found")
	}
	return nil
}

func (r *TaskRepository) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete project tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOrphans removes tasks whose project row is gone.
func (r *TaskRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        DELETE FROM tasks t
        WHERE NOT EXISTS (SELECT 1 FROM projects p WHERE p.id = t.project_id)
    `)
	if err != nil {
		return 0, fmt.Errorf("delete orphan tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AppendComment appends c atomically and returns the whole thread.
func (r *TaskRepository) AppendComment(ctx context.Context, projectID, id uuid.UUID, c model.Comment) ([]model.Comment, error) {
	var thread []model.Comment
	err := r.db.QueryRow(ctx, `
        UPDATE tasks SET comments = comments || jsonb_build_array($3::jsonb)
        WHERE id = $1 AND project_id = $2
        RETURNING comments
    `, id, projectID, c).Scan(&thread)
	if err != nil {
		return nil, mapErr(err, "task")
	}
	return thread, nil
}
