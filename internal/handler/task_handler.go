package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
)

type BoardService interface {
	List(ctx context.Context, userID, projectID uuid.UUID) (*model.Board, error)
	Create(ctx context.Context, userID, projectID uuid.UUID, in model.NewTask) (*model.TaskView, error)
	Update(ctx context.Context, userID, projectID, taskID uuid.UUID, patch model.TaskPatch) (*model.TaskView, error)
	Move(ctx context.Context, userID, projectID, taskID uuid.UUID, status model.Status, position int) (*model.TaskView, error)
	BulkMove(ctx context.Context, userID, projectID uuid.UUID, moves []model.TaskMove) (*model.Board, error)
	Delete(ctx context.Context, userID, projectID, taskID uuid.UUID) error
	AddComment(ctx context.Context, userID, projectID, taskID uuid.UUID, text string) ([]model.CommentView, error)
}

type TaskHandler struct {
	board  BoardService
	logger *zap.Logger
}

func NewTaskHandler(board BoardService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{board: board, logger: logger}
}

type createTaskRequest struct {
	Title       string             `json:"title" binding:"required"`
	Description string             `json:"description"`
	Assignee    string             `json:"assignee"`
	DueDate     string             `json:"due_date"`
	Status      model.Status       `json:"status"`
	Attachments []model.Attachment `json:"attachments"`
}

// updateTaskRequest: an empty assignee or due_date clears it.
type updateTaskRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Assignee    *string             `json:"assignee"`
	DueDate     *string             `json:"due_date"`
	Status      *model.Status       `json:"status"`
	Attachments *[]model.Attachment `json:"attachments"`
}

type moveRequest struct {
	Status   model.Status `json:"status" binding:"required"`
	Position *int         `json:"position" binding:"required,gte=0,lte=2147483646"`
}

type bulkMoveRequest struct {
	Tasks []bulkMoveItem `json:"tasks" binding:"required,min=1,dive"`
}

type bulkMoveItem struct {
	ID       string       `json:"id" binding:"required"`
	Status   model.Status `json:"status" binding:"required"`
	Position *int         `json:"position" binding:"required,gte=0,lte=2147483646"`
}

type commentRequest struct {
	Text string `json:"text"`
}

func (h *TaskHandler) ids(c *gin.Context) (projectID, taskID uuid.UUID, found bool) {
	if projectID, found = pathID(c, "id", "Project not found"); !found {
		return
	}
	taskID, found = pathID(c, "tid", "Task not found")
	return
}

// List handles GET /projects/:id/tasks
func (h *TaskHandler) List(c *gin.Context) {
	projectID, found := pathID(c, "id", "Project not found")
	if !found {
		return
	}

	board, err := h.board.List(c.Request.Context(), currentUser(c), projectID)
	if err != nil {
		fail(c, h.logger, err, "Error fetching tasks")
		return
	}
	ok(c, http.StatusOK, board)
}

// Create handles POST /projects/:id/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	projectID, found := pathID(c, "id", "Project not found")
	if !found {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	in := model.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Attachments: req.Attachments,
	}
	var err error
	if in.Assignee, err = parseAssignee(req.Assignee); err != nil {
		fail(c, h.logger, err, "Error creating task")
		return
	}
	if in.DueDate, err = parseDueDate(req.DueDate); err != nil {
		fail(c, h.logger, err, "Error creating task")
		return
	}

	task, err := h.board.Create(c.Request.Context(), currentUser(c), projectID, in)
	if err != nil {
		fail(c, h.logger, err, "Error creating task")
		return
	}
	ok(c, http.StatusCreated, task)
}

// Update handles PUT /projects/:id/tasks/:tid
func (h *TaskHandler) Update(c *gin.Context) {
	projectID, taskID, found := h.ids(c)
	if !found {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	patch := model.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Attachments: req.Attachments,
	}
	if req.Assignee != nil {
		assignee, err := parseAssignee(*req.Assignee)
		if err != nil {
			fail(c, h.logger, err, "Error updating task")
			return
		}
		patch.Assignee = assignee
		patch.ClearAssignee = assignee == nil
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			fail(c, h.logger, err, "Error updating task")
			return
		}
		patch.DueDate = due
		patch.ClearDueDate = due == nil
	}

	task, err := h.board.Update(c.Request.Context(), currentUser(c), projectID, taskID, patch)
	if err != nil {
		fail(c, h.logger, err, "Error updating task")
		return
	}
	ok(c, http.StatusOK, task)
}

// Move handles PUT/PATCH /projects/:id/tasks/:tid/position
func (h *TaskHandler) Move(c *gin.Context) {
	projectID, taskID, found := h.ids(c)
	if !found {
		return
	}

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	task, err := h.board.Move(c.Request.Context(), currentUser(c), projectID, taskID, req.Status, *req.Position)
	if err != nil {
		fail(c, h.logger, err, "Error updating task position")
		return
	}
	ok(c, http.StatusOK, task)
}

// Bulk handles POST /projects/:id/tasks/bulk
func (h *TaskHandler) Bulk(c *gin.Context) {
	projectID, found := pathID(c, "id", "Project not found")
	if !found {
		return
	}

	var req bulkMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	moves := make([]model.TaskMove, 0, len(req.Tasks))
	for _, item := range req.Tasks {
		id, err := uuid.Parse(item.ID)
		if err != nil {
			fail(c, h.logger, apperr.NotFound("Task not found"), "Error updating tasks")
			return
		}
		moves = append(moves, model.TaskMove{ID: id, Status: item.Status, Position: *item.Position})
	}

	board, err := h.board.BulkMove(c.Request.Context(), currentUser(c), projectID, moves)
	if err != nil {
		fail(c, h.logger, err, "Error updating tasks")
		return
	}
	ok(c, http.StatusOK, board)
}

// Delete handles DELETE /projects/:id/tasks/:tid
func (h *TaskHandler) Delete(c *gin.Context) {
	projectID, taskID, found := h.ids(c)
	if !found {
		return
	}

	if err := h.board.Delete(c.Request.Context(), currentUser(c), projectID, taskID); err != nil {
		fail(c, h.logger, err, "Error deleting task")
		return
	}
	message(c, "Task deleted successfully")
}

// AddComment handles POST /projects/:id/tasks/:tid/comments
func (h *TaskHandler) AddComment(c *gin.Context) {
	projectID, taskID, found := h.ids(c)
	if !found {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	comments, err := h.board.AddComment(c.Request.Context(), currentUser(c), projectID, taskID, req.Text)
	if err != nil {
		fail(c, h.logger, err, "Error adding comment")
		return
	}
	ok(c, http.StatusOK, comments)
}

func parseAssignee(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("Validation failed",
			apperr.FieldError{Field: "assignee", Message: "assignee must be a user id"})
	}
	return &id, nil
}

// parseDueDate accepts RFC 3339 timestamps and plain dates.
func parseDueDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("Validation failed",
		apperr.FieldError{Field: "due_date", Message: "due_date must be a date (YYYY-MM-DD) or RFC 3339 timestamp"})
}
