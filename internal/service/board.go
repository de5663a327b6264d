package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/contracts/mq"
	"taskboard/internal/apperr"
	"taskboard/internal/model"
	"taskboard/pkg/logger"
	"taskboard/pkg/rbac"
)

// BoardService owns tasks within a project: tail-position creation,
// status and position transitions, and comment threads.
//
// Positions are advisory. create appends at the tail of its column, move
// persists the caller's status and position verbatim, and nothing ever
// renumbers siblings. Ties are allowed and listing breaks them by creation
// time, newest first.
type BoardService struct {
	tasks    TaskStore
	guard    *Guard
	resolve  resolver
	notifier Notifier
	logger   *zap.Logger
	now      clock
}

func NewBoardService(tasks TaskStore, dir UserDirectory, guard *Guard, notifier Notifier, logger *zap.Logger) *BoardService {
	return &BoardService{
		tasks:    tasks,
		guard:    guard,
		resolve:  resolver{dir: dir},
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (s *BoardService) WithClock(now func() time.Time) *BoardService {
	s.now = now
	return s
}

// List returns the project's tasks grouped into ordered status columns.
func (s *BoardService) List(ctx context.Context, userID, projectID uuid.UUID) (board *model.Board, err error) {
	defer func() { record("task.list", err) }()

	if _, err := s.guard.Authorize(ctx, userID, projectID, rbac.PermissionReadTask); err != nil {
		return nil, err
	}
	return s.board(ctx, projectID)
}

func (s *BoardService) board(ctx context.Context, projectID uuid.UUID) (*model.Board, error) {
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal("failed to list tasks", err)
	}
	views, err := s.resolve.tasks(ctx, tasks)
	if err != nil {
		return nil, err
	}
	b := Partition(views)
	return &b, nil
}

// Create adds a task at the tail of its status column.
func (s *BoardService) Create(ctx context.Context, userID, projectID uuid.UUID, in model.NewTask) (view *model.TaskView, err error) {
	defer func() { record("task.create", err) }()

	p, err := s.guard.Authorize(ctx, userID, projectID, rbac.PermissionWriteTask)
	if err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.Validation("Validation failed",
			apperr.FieldError{Field: "title", Message: "Task title is required"})
	}
	if in.Status == "" {
		in.Status = model.StatusTodo
	}
	if err := validateStatus(in.Status); err != nil {
		return nil, err
	}
	if err := validateAssignee(p, in.Assignee); err != nil {
		return nil, err
	}

	// Read-then-write: concurrent creates may land on the same position.
	pos, err := s.tail(ctx, projectID, in.Status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &model.Task{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Assignee:    in.Assignee,
		Status:      in.Status,
		Position:    pos,
		DueDate:     in.DueDate,
		Comments:    []model.Comment{},
		Attachments: stampAttachments(in.Attachments, now),
		CreatedAt:   now,
	}
	if err := s.tasks.Insert(ctx, t); err != nil {
		return nil, apperr.Internal("failed to create task", err)
	}

	logger.WithTrace(ctx, s.logger).Info("Task created",
		zap.String("project_id", projectID.String()),
		zap.String("task_id", t.ID.String()),
		zap.String("status", string(t.Status)),
		zap.Int("position", t.Position),
	)
	notify(ctx, s.notifier, s.logger, mq.RoutingTaskCreated, t.ID, s.activity(ctx, t, userID))

	return s.resolve.task(ctx, t)
}

// Update patches task fields. A status change places the task at the tail
// of the target column; an unchanged status leaves the position alone.
func (s *BoardService) Update(ctx context.Context, userID, projectID, taskID uuid.UUID, patch model.TaskPatch) (view *model.TaskView, err error) {
	defer func() { record("task.update", err) }()

	p, err := s.guard.Authorize(ctx, userID, projectID, rbac.PermissionWriteTask)
	if err != nil {
		return nil, err
	}

	current, err := s.tasks.FindByID(ctx, projectID, taskID)
	if err != nil {
		return nil, storeErr(err, "Task not found", "load task")
	}

	patch.Title = trimmed(patch.Title)
	patch.Description = trimmed(patch.Description)
	if patch.Title != nil && *patch.Title == "" {
		return nil, apperr.Validation("Validation failed",
			apperr.FieldError{Field: "title", Message: "Task title is required"})
	}
	if patch.Status != nil {
		if err := validateStatus(*patch.Status); err != nil {
			return nil, err
		}
	}
	if err := validateAssignee(p, patch.Assignee); err != nil {
		return nil, err
	}
	if patch.Attachments != nil {
		stamped := stampAttachments(*patch.Attachments, s.now())
		patch.Attachments = &stamped
	}

	var position *int
	if patch.Status != nil && *patch.Status != current.Status {
		pos, err := s.tail(ctx, projectID, *patch.Status)
		if err != nil {
			return nil, err
		}
		position = &pos
	}

	updated, err := s.tasks.Update(ctx, projectID, taskID, patch, position)
	if err != nil {
		return nil, storeErr(err, "Task not found", "update task")
	}

	routingKey := mq.RoutingTaskUpdated
	if position != nil {
		routingKey = mq.RoutingTaskMoved
	}
	notify(ctx, s.notifier, s.logger, routingKey, taskID, s.activity(ctx, updated, userID))

	return s.resolve.task(ctx, updated)
}

// Move sets exactly the task's status and position. Siblings are untouched.
func (s *BoardService) Move(ctx context.Context, userID, projectID, taskID uuid.UUID, status model.Status, position int) (view *model.TaskView, err error) {
	defer func() { record("task.move", err) }()

	if _, err := s.guard.Authorize(ctx, userID, projectID, rbac.PermissionWriteTask); err != nil {
		return nil, err
	}
	if err := validateMove(status, position); err != nil {
		return nil, err
	}

	moved, err := s.tasks.Move(ctx, projectID, model.TaskMove{ID: taskID, Status: status, Position: position})
	if err != nil {
		return nil, storeErr(err, "Task not found", "move task")
	}

	notify(ctx, s.notifier, s.logger, mq.RoutingTaskMoved, taskID, s.activity(ctx, moved, userID))
	return s.resolve.task(ctx, moved)
}

// BulkMove applies several moves atomically and returns the regrouped board.
func (s *BoardService) BulkMove(ctx context.Context, userID, projectID uuid.UUID, moves []model.TaskMove) (board *model.Board, err error) {
	defer func() { record("task.bulk_move", err) }()

	if _, err := s.guard.Authorize(ctx, userID, projectID, rbac.PermissionWriteTask); err != nil {
		return nil, err
	}
	if len(moves) == 0 {
		return nil, apperr.Validation("Validation failed",
			apperr.FieldError{Field: "tasks", Message: "at least one task is required"})
	}
	seen := make(map[uuid.UUID]struct{}, len(moves))
	for _, m := range moves {
		if _, dup := seen[m.ID]; dup {
			return nil, apperr.Validation("Validation failed",
				apperr.FieldError{Field: "tasks", Message: "duplicate task " + m.ID.String()})
		}
		seen[m.ID] = struct{}{}
		if err := validateMove(m.Status, m.Position); err != nil {
			return nil, err
		}
	}

	if err := s.tasks.MoveMany(ctx, projectID, moves); err != nil {
		return nil, storeErr(err, "Task not found", "reorder tasks")
	}

	notify(ctx, s.notifier, s.logger, mq.RoutingTasksReordered, projectID, mq.BoardActivityPayload{
		ProjectID:  projectID.String(),
		ActorID:    userID.String(),
		Count:      len(moves),
		TraceID:    traceID(ctx),
		OccurredAt: s.now(),
	})
	return s.board(ctx, projectID)
}

// Delete removes a task. Remaining positions keep their gaps.
func (s *BoardService) Delete(ctx context.Context, userID, projectID, taskID uuid.UUID) (err error) {
	defer func() { record("task.delete", err) }()

	if _, err := s.guard.Authorize(ctx, userID, projectID, rbac.PermissionWriteTask); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, projectID, taskID); err != nil {
		return storeErr(err, "Task not found", "delete task")
	}

	notify(ctx, s.notifier, s.logger, mq.RoutingTaskDeleted, taskID, mq.BoardActivityPayload{
		ProjectID:  projectID.String(),
		TaskID:     taskID.String(),
		ActorID:    userID.String(),
		TraceID:    traceID(ctx),
		OccurredAt: s.now(),
	})
	return nil
}

// AddComment appends a comment and returns the whole resolved thread.
func (s *BoardService) AddComment(ctx context.Context, userID, projectID, taskID uuid.UUID, text string) (views []model.CommentView, err error) {
	defer func() { record("task.comment", err) }()

	if _, err := s.guard.Authorize(ctx, userID, projectID, rbac.PermissionWriteTask); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("Comment text is required",
			apperr.FieldError{Field: "text", Message: "Comment text is required"})
	}

	thread, err := s.tasks.AppendComment(ctx, projectID, taskID, model.Comment{
		ID:        uuid.New(),
		AuthorID:  userID,
		Text:      text,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, storeErr(err, "Task not found", "add comment")
	}

	notify(ctx, s.notifier, s.logger, mq.RoutingCommentAdded, taskID, mq.BoardActivityPayload{
		ProjectID:  projectID.String(),
		TaskID:     taskID.String(),
		ActorID:    userID.String(),
		TraceID:    traceID(ctx),
		OccurredAt: s.now(),
	})
	return s.resolve.comments(ctx, thread)
}

func (s *BoardService) activity(ctx context.Context, t *model.Task, actor uuid.UUID) mq.BoardActivityPayload {
	pos := t.Position
	return mq.BoardActivityPayload{
		ProjectID:  t.ProjectID.String(),
		TaskID:     t.ID.String(),
		ActorID:    actor.String(),
		Status:     string(t.Status),
		Position:   &pos,
		TraceID:    traceID(ctx),
		OccurredAt: s.now(),
	}
}

// tail returns the append position of a column.
func (s *BoardService) tail(ctx context.Context, projectID uuid.UUID, status model.Status) (int, error) {
	pos, err := s.tasks.NextPosition(ctx, projectID, status)
	if err != nil {
		return 0, apperr.Internal("failed to compute position", err)
	}
	if !model.TailFits(pos) {
		return 0, apperr.Conflict("Column has no free position; move its last task first")
	}
	return pos, nil
}

func validateStatus(status model.Status) error {
	if !status.Valid() {
		return apperr.Validation("Validation failed",
			apperr.FieldError{Field: "status", Message: "status must be one of todo, inprogress, done"})
	}
	return nil
}

func validateMove(status model.Status, position int) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	if position < 0 || position > model.MaxPosition {
		return apperr.Validation("Validation failed",
			apperr.FieldError{Field: "position", Message: fmt.Sprintf("position must be between 0 and %d", model.MaxPosition)})
	}
	return nil
}

func validateAssignee(p *model.Project, assignee *uuid.UUID) error {
	if assignee != nil && !p.HasMember(*assignee) {
		return apperr.Validation("Validation failed",
			apperr.FieldError{Field: "assignee", Message: "assignee must be a project member"})
	}
	return nil
}

func stampAttachments(in []model.Attachment, now time.Time) []model.Attachment {
	out := make([]model.Attachment, 0, len(in))
	for _, a := range in {
		if a.UploadedAt.IsZero() {
			a.UploadedAt = now
		}
		out = append(out, a)
	}
	return out
}
