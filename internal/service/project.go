package service

import (
	"context"
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

type NewProject struct {
	Title       string
	Description string
	Color       string
}

// ProjectService owns the project lifecycle and its membership roster.
type ProjectService struct {
	projects ProjectStore
	tasks    TaskStore
	users    UserStore
	guard    *Guard
	resolve  resolver
	notifier Notifier
	logger   *zap.Logger
	now      clock
}

func NewProjectService(
	projects ProjectStore,
	tasks TaskStore,
	users UserStore,
	dir UserDirectory,
	guard *Guard,
	notifier Notifier,
	logger *zap.Logger,
) *ProjectService {
	return &ProjectService{
		projects: projects,
		tasks:    tasks,
		users:    users,
		guard:    guard,
		resolve:  resolver{dir: dir},
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (s *ProjectService) WithClock(now func() time.Time) *ProjectService {
	s.now = now
	return s
}

// List returns the projects userID belongs to, newest first.
func (s *ProjectService) List(ctx context.Context, userID uuid.UUID) (views []model.ProjectView, err error) {
	defer func() { record("project.list", err) }()

	projects, err := s.projects.ListByMember(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list projects", err)
	}
	return s.resolve.projects(ctx, projects)
}

// Create makes userID the creator and sole member of a new project.
func (s *ProjectService) Create(ctx context.Context, userID uuid.UUID, in NewProject) (view *model.ProjectView, err error) {
	defer func() { record("project.create", err) }()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("Validation failed",
			apperr.FieldError{Field: "title", Message: "Project title is required"})
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = model.DefaultProjectColor
	}

	p := &model.Project{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Color:       color,
		CreatedBy:   userID,
		Members:     []uuid.UUID{userID},
		CreatedAt:   s.now(),
	}
	if err := s.projects.Insert(ctx, p); err != nil {
		return nil, apperr.Internal("failed to create project", err)
	}

	logger.WithTrace(ctx, s.logger).Info("Project created",
		zap.String("project_id", p.ID.String()),
		zap.String("user_id", userID.String()),
	)
	notify(ctx, s.notifier, s.logger, mq.RoutingProjectCreated, p.ID, s.activity(ctx, p.ID, userID))

	return s.resolve.project(ctx, p)
}

// Update applies patch. The creator can never be patched away.
func (s *ProjectService) Update(ctx context.Context, projectID, userID uuid.UUID, patch model.ProjectPatch) (view *model.ProjectView, err error) {
	defer func() { record("project.update", err) }()

	p, err := s.guard.Authorize(ctx, userID, projectID, rbac.PermissionUpdateProject)
	if err != nil {
		return nil, err
	}

	patch.Title = trimmed(patch.Title)
	patch.Description = trimmed(patch.Description)
	patch.Color = trimmed(patch.Color)
	if patch.Title != nil && *patch.Title == "" {
		return nil, apperr.Validation("Validation failed",
			apperr.FieldError{Field: "title", Message: "Project title is required"})
	}
	if patch.Color != nil && *patch.Color == "" {
		c := model.DefaultProjectColor
		patch.Color = &c
	}
	if patch.Members != nil {
		members, err := s.checkMembers(ctx, p, *patch.Members)
		if err != nil {
			return nil, err
		}
		patch.Members = &members
	}

	if patch.Empty() {
		return s.resolve.project(ctx, p)
	}

	updated, err := s.projects.Update(ctx, projectID, userID, patch)
	if err != nil {
		return nil, storeErr(err, "Project not found", "update project")
	}

	notify(ctx, s.notifier, s.logger, mq.RoutingProjectUpdated, projectID, s.activity(ctx, projectID, userID))
	return s.resolve.project(ctx, updated)
}

// checkMembers de-duplicates the roster and enforces creator retention.
func (s *ProjectService) checkMembers(ctx context.Context, p *model.Project, members []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(members))
	out := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}

	if _, ok := seen[p.CreatedBy]; !ok {
		return nil, apperr.Validation("project creator cannot be removed",
			apperr.FieldError{Field: "members", Message: "must include the project creator"})
	}

	known, err := s.resolve.lookup(ctx, out)
	if err != nil {
		return nil, err
	}
	for _, m := range out {
		if _, ok := known[m]; !ok {
			return nil, apperr.Validation("Validation failed",
				apperr.FieldError{Field: "members", Message: "unknown user " + m.String()})
		}
	}
	return out, nil
}

// Delete removes the project and all its tasks. Only the creator may delete.
//
// The cascade runs in two phases: the project is tombstoned first, so the
// guard stops admitting requests, then tasks are removed and the project row
// is purged together with its project.deleted event. Re-issuing the delete
// or running the reconciler completes an interrupted cascade.
func (s *ProjectService) Delete(ctx context.Context, projectID, userID uuid.UUID) (err error) {
	defer func() { record("project.delete", err) }()
	log := logger.WithTrace(ctx, s.logger).With(
		zap.String("project_id", projectID.String()),
		zap.String("user_id", userID.String()),
	)

	p, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return storeErr(err, "Project not found", "load project")
	}
	if p.Deleting() {
		if !p.IsCreator(userID) {
			return apperr.NotFound("Project not found")
		}
		log.Info("Resuming interrupted project delete")
	} else if err := checkRole(p, userID, rbac.PermissionDeleteProject); err != nil {
		return err
	}

	if err := s.projects.MarkDeleting(ctx, projectID, userID, s.now()); err != nil {
		return storeErr(err, "Project not found", "mark project deleting")
	}

	removed, err := s.tasks.DeleteByProject(ctx, projectID)
	if err != nil {
		log.Error("Cascade interrupted after tombstone", zap.Error(err))
		return apperr.Internal("failed to delete project tasks", err)
	}

	if err := s.projects.Purge(ctx, projectID, userID); err != nil {
		log.Error("Cascade interrupted before purge", zap.Int64("tasks_removed", removed), zap.Error(err))
		return apperr.Internal("failed to delete project", err)
	}

	log.Info("Project deleted", zap.Int64("tasks_removed", removed))
	return nil
}

// AddMember appends newUserID to the roster and returns the resolved project.
func (s *ProjectService) AddMember(ctx context.Context, projectID, requesterID, newUserID uuid.UUID) (view *model.ProjectView, err error) {
	defer func() { record("project.add_member", err) }()

	p, err := s.guard.Authorize(ctx, requesterID, projectID, rbac.PermissionAddMember)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindByID(ctx, newUserID); err != nil {
		return nil, storeErr(err, "User not found", "load user")
	}
	if p.HasMember(newUserID) {
		return nil, apperr.Conflict("User is already a project member")
	}

	updated, err := s.projects.AddMember(ctx, projectID, requesterID, newUserID)
	if err != nil {
		return nil, storeErr(err, "Project not found", "add member")
	}

	payload := s.activity(ctx, projectID, requesterID)
	payload.MemberID = newUserID.String()
	notify(ctx, s.notifier, s.logger, mq.RoutingProjectMemberAdded, projectID, payload)

	return s.resolve.project(ctx, updated)
}

func (s *ProjectService) activity(ctx context.Context, projectID, actor uuid.UUID) mq.BoardActivityPayload {
	return mq.BoardActivityPayload{
		ProjectID:  projectID.String(),
		ActorID:    actor.String(),
		TraceID:    traceID(ctx),
		OccurredAt: s.now(),
	}
}
