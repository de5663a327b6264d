package mq

import "time"

// Routing keys published on the board.events exchange.
const (
	RoutingProjectCreated     = "project.created"
	RoutingProjectUpdated     = "project.updated"
	RoutingProjectMemberAdded = "project.member_added"
	RoutingProjectDeleted     = "project.deleted"

	RoutingTaskCreated    = "task.created"
	RoutingTaskUpdated    = "task.updated"
	RoutingTaskMoved      = "task.moved"
	RoutingTaskDeleted    = "task.deleted"
	RoutingCommentAdded   = "comment.added"
	RoutingTasksReordered = "task.reordered"
)

// BoardActivityPayload describes one change on a board.
type BoardActivityPayload struct {
	ProjectID  string    `json:"project_id"`
	TaskID     string    `json:"task_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Status     string    `json:"status,omitempty"`
	Position   *int      `json:"position,omitempty"`
	MemberID   string    `json:"member_id,omitempty"`
	Count      int       `json:"count,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProjectDeletedPayload is written in the same transaction that removes the project row.
type ProjectDeletedPayload struct {
	ProjectID string    `json:"project_id"`
	DeletedBy string    `json:"deleted_by"`
	TraceID   string    `json:"trace_id,omitempty"`
	DeletedAt time.Time `json:"deleted_at"`
}
