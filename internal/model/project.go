package model

import (
	"time"

	"github.com/google/uuid"
)

const DefaultProjectColor = "#3498db"

type Project struct {
	ID          uuid.UUID
	Title       string
	Description string
	Color       string
	CreatedBy   uuid.UUID
	Members     []uuid.UUID
	CreatedAt   time.Time
	// DeletingAt is set by the first phase of a cascade delete.
	DeletingAt *time.Time
}

func (p *Project) HasMember(userID uuid.UUID) bool {
	for _, m := range p.Members {
		if m == userID {
			return true
		}
	}
	return false
}

func (p *Project) IsCreator(userID uuid.UUID) bool {
	return p.CreatedBy == userID
}

func (p *Project) Deleting() bool {
	return p.DeletingAt != nil
}

// ProjectView is a project with its user references resolved.
type ProjectView struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Color       string        `json:"color"`
	CreatedBy   UserSummary   `json:"created_by"`
	Members     []UserSummary `json:"members"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ProjectPatch carries the patchable fields; nil means unchanged.
// CreatedBy is not patchable.
type ProjectPatch struct {
	Title       *string
	Description *string
	Color       *string
	Members     *[]uuid.UUID
}

func (p ProjectPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Color == nil && p.Members == nil
}

// Apply returns a copy of project with the patch applied.
func (p ProjectPatch) Apply(project Project) Project {
	if p.Title != nil {
		project.Title = *p.Title
	}
	if p.Description != nil {
		project.Description = *p.Description
	}
	if p.Color != nil {
		project.Color = *p.Color
	}
	if p.Members != nil {
		project.Members = append([]uuid.UUID(nil), (*p.Members)...)
	}
	return project
}
