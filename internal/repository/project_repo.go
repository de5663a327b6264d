package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontracts "taskboard/contracts/mq"
	"taskboard/internal/apperr"
	"taskboard/internal/model"
	"taskboard/pkg/otel"
	"taskboard/pkg/outbox"
	"taskboard/pkg/trace"
)

const projectColumns = `id, title, description, color, created_by, members, created_at, deleting_at`

type ProjectRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

// NewProjectRepository creates the project store. With a nil outbox the
// project.deleted event is not recorded.
func NewProjectRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, outbox: outboxRepo, logger: logger}
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Color,
		&p.CreatedBy,
		&p.Members,
		&p.CreatedAt,
		&p.DeletingAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) Insert(ctx context.Context, p *model.Project) error {
	query := `
        INSERT INTO projects (id, title, description, color, created_by, members, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.db.Exec(ctx, query, p.ID, p.Title, p.Description, p.Color, p.CreatedBy, p.Members, p.CreatedAt)
	return mapErr(err, "project")
}

// FindByID returns the project, tombstoned or not.
func (r *ProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "project")
	}
	return p, nil
}

// ListByMember returns the live projects userID belongs to, newest first.
func (r *ProjectRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]model.Project, error) {
	query := `
        SELECT ` + projectColumns + `
        FROM projects
        WHERE $1 = ANY(members) AND deleting_at IS NULL
        ORDER BY created_at DESC, id ASC
    `
	return r.queryProjects(ctx, query, userID)
}

// ListDeleting returns projects tombstoned before olderThan.
func (r *ProjectRepository) ListDeleting(ctx context.Context, olderThan time.Time) ([]model.Project, error) {
	query := `
        SELECT ` + projectColumns + `
        FROM projects
        WHERE deleting_at IS NOT NULL AND deleting_at < $1
        ORDER BY created_at DESC, id ASC
    `
	return r.queryProjects(ctx, query, olderThan)
}

func (r *ProjectRepository) queryProjects(ctx context.Context, query string, args ...any) ([]model.Project, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	out := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// lockLive loads the project FOR UPDATE and checks it is live and actor is
// still a member.
func lockLive(ctx context.Context, tx pgx.Tx, id, actor uuid.UUID) (*model.Project, error) {
	p, err := scanProject(tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(err, "project")
	}
	if p.Deleting() {
		return nil, apperr.NotFound("project not found")
	}
	if !p.HasMember(actor) {
		return nil, apperr.Forbidden("Not a project member")
	}
	return p, nil
}

func (r *ProjectRepository) Update(ctx context.Context, id, actor uuid.UUID, patch model.ProjectPatch) (*model.Project, error) {
	var updated model.Project
	err := otel.WithDBSpan(ctx, "project.update", func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		p, err := lockLive(ctx, tx, id, actor)
		if err != nil {
			return err
		}
		updated = patch.Apply(*p)

		_, err = tx.Exec(ctx, `
            UPDATE projects
            SET title = $2, description = $3, color = $4, members = $5
            WHERE id = $1
        `, id, updated.Title, updated.Description, updated.Color, updated.Members)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *ProjectRepository) AddMember(ctx context.Context, id, actor, newUser uuid.UUID) (*model.Project, error) {
	var updated *model.Project
	err := otel.WithDBSpan(ctx, "project.add_member", func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		p, err := lockLive(ctx, tx, id, actor)
		if err != nil {
			return err
		}
		if p.HasMember(newUser) {
			return apperr.Conflict("User is already a project member")
		}

		updated, err = scanProject(tx.QueryRow(ctx, `
            UPDATE projects SET members = array_append(members, $2)
            WHERE id = $1
            RETURNING `+projectColumns, id, newUser))
		if err != nil {
			return mapErr(err, "project")
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkDeleting tombstones the project. A second call keeps the first timestamp.
func (r *ProjectRepository) MarkDeleting(ctx context.Context, id, actor uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE projects SET deleting_at = COALESCE(deleting_at, $3)
        WHERE id = $1 AND created_by = $2
    `, id, actor, at)
	if err != nil {
		return fmt.Errorf("mark project deleting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("project not found")
	}
	return nil
}

// Purge deletes the remaining tasks and the project row and records
// project.deleted, all in one transaction.
func (r *ProjectRepository) Purge(ctx context.Context, id, deletedBy uuid.UUID) error {
	return otel.WithDBSpan(ctx, "project.purge", func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, id); err != nil {
			return fmt.Errorf("delete project tasks: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		if r.outbox != nil {
			payload := mqcontracts.ProjectDeletedPayload{
				ProjectID: id.String(),
				DeletedBy: deletedBy.String(),
				TraceID:   trace.FromContext(ctx),
				DeletedAt: time.Now().UTC(),
			}
			if err := outbox.InsertEventInTx(ctx, tx, r.outbox, "project", id.String(), mqcontracts.RoutingProjectDeleted, payload); err != nil {
				r.logger.Error("Failed to insert project.deleted to outbox", zap.Error(err))
				return err
			}
		}

		return tx.Commit(ctx)
	})
}
