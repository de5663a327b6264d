package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
	"taskboard/pkg/rbac"
)

// Guard decides whether a user may act within a project's scope.
// It is a read-only, optimistic check: stores re-validate on write.
type Guard struct {
	projects ProjectStore
	logger   *zap.Logger
}

func NewGuard(projects ProjectStore, logger *zap.Logger) *Guard {
	return &Guard{projects: projects, logger: logger}
}

// Authorize loads the project and checks that userID holds permission in it.
// A tombstoned project is reported as NotFound.
func (g *Guard) Authorize(ctx context.Context, userID, projectID uuid.UUID, permission string) (*model.Project, error) {
	p, err := g.projects.FindByID(ctx, projectID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Project not found")
		}
		return nil, apperr.Internal("failed to load project", err)
	}
	if p.Deleting() {
		return nil, apperr.NotFound("Project not found")
	}

	if err := checkRole(p, userID, permission); err != nil {
		g.logger.Debug("Project access denied",
			zap.String("project_id", projectID.String()),
			zap.String("user_id", userID.String()),
			zap.String("permission", permission),
		)
		return nil, err
	}
	return p, nil
}

func checkRole(p *model.Project, userID uuid.UUID, permission string) error {
	role := rbac.RoleFor(p.IsCreator(userID), p.HasMember(userID))
	if role == rbac.RoleNone {
		return apperr.Forbidden("Not a project member")
	}

	err := rbac.CheckPermission(role, permission)
	var denied *rbac.PermissionDeniedError
	if errors.As(err, &denied) {
		if denied.Permission == rbac.PermissionDeleteProject {
			return apperr.Forbidden("Only project creator can delete project")
		}
		return apperr.Forbidden("Access denied")
	}
	return err
}
