package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
	"taskboard/internal/service"
)

type ProjectService interface {
	List(ctx context.Context, userID uuid.UUID) ([]model.ProjectView, error)
	Create(ctx context.Context, userID uuid.UUID, in service.NewProject) (*model.ProjectView, error)
	Update(ctx context.Context, projectID, userID uuid.UUID, patch model.ProjectPatch) (*model.ProjectView, error)
	Delete(ctx context.Context, projectID, userID uuid.UUID) error
	AddMember(ctx context.Context, projectID, requesterID, newUserID uuid.UUID) (*model.ProjectView, error)
}

type ProjectHandler struct {
	projects ProjectService
	logger   *zap.Logger
}

func NewProjectHandler(projects ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

type createProjectRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// updateProjectRequest leaves omitted fields unchanged; created_by is not accepted.
type updateProjectRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Color       *string   `json:"color"`
	Members     *[]string `json:"members"`
}

type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// List handles GET /projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, h.logger, err, "Error fetching projects")
		return
	}
	ok(c, http.StatusOK, projects)
}

// Create handles POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	project, err := h.projects.Create(c.Request.Context(), currentUser(c), service.NewProject{
		Title:       req.Title,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		fail(c, h.logger, err, "Error creating project")
		return
	}
	ok(c, http.StatusCreated, project)
}

// Update handles PUT /projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	projectID, found := pathID(c, "id", "Project not found")
	if !found {
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	patch := model.ProjectPatch{Title: req.Title, Description: req.Description, Color: req.Color}
	if req.Members != nil {
		members, err := parseIDs(*req.Members, "members")
		if err != nil {
			fail(c, h.logger, err, "Error updating project")
			return
		}
		patch.Members = &members
	}

	project, err := h.projects.Update(c.Request.Context(), projectID, currentUser(c), patch)
	if err != nil {
		fail(c, h.logger, err, "Error updating project")
		return
	}
	ok(c, http.StatusOK, project)
}

// Delete handles DELETE /projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	projectID, found := pathID(c, "id", "Project not found")
	if !found {
		return
	}

	if err := h.projects.Delete(c.Request.Context(), projectID, currentUser(c)); err != nil {
		fail(c, h.logger, err, "Error deleting project")
		return
	}
	message(c, "Project deleted successfully")
}

// AddMember handles POST /projects/:id/members
func (h *ProjectHandler) AddMember(c *gin.Context) {
	projectID, found := pathID(c, "id", "Project not found")
	if !found {
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	newUserID, err := uuid.Parse(req.UserID)
	if err != nil {
		fail(c, h.logger, apperr.NotFound("User not found"), "Error adding member to project")
		return
	}

	project, err := h.projects.AddMember(c.Request.Context(), projectID, currentUser(c), newUserID)
	if err != nil {
		fail(c, h.logger, err, "Error adding member to project")
		return
	}
	ok(c, http.StatusOK, project)
}

func parseIDs(raw []string, field string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, apperr.Validation("Validation failed",
				apperr.FieldError{Field: field, Message: "invalid user id " + s})
		}
		ids = append(ids, id)
	}
	return ids, nil
}
