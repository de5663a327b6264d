package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusDone       Status = "done"
)

// MaxPosition is the largest position a caller may set. The tail after it
// still fits the int4 position column.
const MaxPosition = math.MaxInt32 - 1

// maxTail is the largest position NextPosition may hand out.
const maxTail = math.MaxInt32

// TailFits reports whether a computed tail position can be stored.
func TailFits(pos int) bool { return pos <= maxTail }

var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Task struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	Title       string
	Description string
	Assignee    *uuid.UUID
	Status      Status
	Position    int
	DueDate     *time.Time
	Comments    []Comment
	Attachments []Attachment
	CreatedAt   time.Time
}

type Comment struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Attachment struct {
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TaskView is a task with assignee and comment authors resolved.
type TaskView struct {
	ID          uuid.UUID     `json:"id"`
	ProjectID   uuid.UUID     `json:"project"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Assignee    *UserSummary  `json:"assignee"`
	Status      Status        `json:"status"`
	Position    int           `json:"position"`
	DueDate     *time.Time    `json:"due_date"`
	Comments    []CommentView `json:"comments"`
	Attachments []Attachment  `json:"attachments"`
	CreatedAt   time.Time     `json:"created_at"`
}

type CommentView struct {
	ID        uuid.UUID    `json:"id"`
	User      *UserSummary `json:"user"`
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"created_at"`
}

// Board is the list view: one ordered column per status.
type Board struct {
	Todo       []TaskView `json:"todo"`
	InProgress []TaskView `json:"inprogress"`
	Done       []TaskView `json:"done"`
}

// TaskPatch carries the patchable task fields; nil means unchanged.
// ClearAssignee and ClearDueDate remove the value.
type TaskPatch struct {
	Title         *string
	Description   *string
	Assignee      *uuid.UUID
	ClearAssignee bool
	DueDate       *time.Time
	ClearDueDate  bool
	Status        *Status
	Attachments   *[]Attachment
}

// NewTask holds the inputs of a task creation.
type NewTask struct {
	Title       string
	Description string
	Assignee    *uuid.UUID
	DueDate     *time.Time
	Status      Status
	Attachments []Attachment
}

// TaskMove is one explicit status/position placement.
type TaskMove struct {
	ID       uuid.UUID
	Status   Status
	Position int
}
