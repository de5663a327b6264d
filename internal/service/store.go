package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/model"
)

// Store implementations report missing rows as apperr NotFound and
// uniqueness violations as apperr Conflict; any other error is treated
// as Internal by the services.

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// UserDirectory resolves user references to display attributes.
// Unknown ids are absent from the result.
type UserDirectory interface {
	Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.UserSummary, error)
}

type ProjectStore interface {
	Insert(ctx context.Context, p *model.Project) error
	// FindByID returns tombstoned projects too; callers check Deleting.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	// ListByMember returns live projects, newest first.
	ListByMember(ctx context.Context, userID uuid.UUID) ([]model.Project, error)
	// Update applies patch only while the project is live and actor is a member.
	Update(ctx context.Context, id, actor uuid.UUID, patch model.ProjectPatch) (*model.Project, error)
	// AddMember appends newUser while the project is live and actor is a member.
	// It fails with Conflict if newUser is already a member.
	AddMember(ctx context.Context, id, actor, newUser uuid.UUID) (*model.Project, error)
	// MarkDeleting tombstones the project if actor is its creator. Idempotent.
	MarkDeleting(ctx context.Context, id, actor uuid.UUID, at time.Time) error
	// Purge removes the project row, its remaining tasks and records a
	// project.deleted event atomically. Purging a missing project is a no-op.
	Purge(ctx context.Context, id, deletedBy uuid.UUID) error
	// ListDeleting returns projects tombstoned before olderThan.
	ListDeleting(ctx context.Context, olderThan time.Time) ([]model.Project, error)
}

type TaskStore interface {
	// NextPosition returns max(position)+1 for the column, or 0 when empty.
	NextPosition(ctx context.Context, projectID uuid.UUID, status model.Status) (int, error)
	Insert(ctx context.Context, t *model.Task) error
	// FindByID fails with NotFound if the task is missing or belongs to another project.
	FindByID(ctx context.Context, projectID, id uuid.UUID) (*model.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Task, error)
	// Update applies patch; a non-nil position is stored with it.
	Update(ctx context.Context, projectID, id uuid.UUID, patch model.TaskPatch, position *int) (*model.Task, error)
	// Move sets status and position and nothing else.
	Move(ctx context.Context, projectID uuid.UUID, m model.TaskMove) (*model.Task, error)
	// MoveMany applies every move or none of them.
	MoveMany(ctx context.Context, projectID uuid.UUID, moves []model.TaskMove) error
	Delete(ctx context.Context, projectID, id uuid.UUID) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
	// DeleteOrphans removes tasks whose project no longer exists.
	DeleteOrphans(ctx context.Context) (int64, error)
	// AppendComment appends c and returns the whole thread.
	AppendComment(ctx context.Context, projectID, id uuid.UUID, c model.Comment) ([]model.Comment, error)
}

// Notifier records board activity. Failures never fail the request.
type Notifier interface {
	Notify(ctx context.Context, routingKey string, aggregateID uuid.UUID, payload any) error
}
