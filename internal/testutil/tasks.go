package testutil

import (
	"context"

	"github.com/google/uuid"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
)

type TaskRepo struct {
	s *Store
}

func (r *TaskRepo) NextPosition(_ context.Context, projectID uuid.UUID, status model.Status) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.injected("Tasks.NextPosition"); err != nil {
		return 0, err
	}
	next := 0
	for _, t := range r.s.tasks {
		if t.ProjectID == projectID && t.Status == status && t.Position+1 > next {
			next = t.Position + 1
		}
	}
	return next, nil
}

func (r *TaskRepo) Insert(_ context.Context, t *model.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Tasks.Insert"); err != nil {
		return err
	}
	r.s.tasks[t.ID] = copyTask(*t)
	return nil
}

// scoped must be called with r.s.mu held.
func (r *TaskRepo) scoped(projectID, id uuid.UUID) (model.Task, error) {
	t, ok := r.s.tasks[id]
	if !ok || t.ProjectID != projectID {
		return model.Task{}, apperr.NotFound("task not found")
	}
	return t, nil
}

func (r *TaskRepo) FindByID(_ context.Context, projectID, id uuid.UUID) (*model.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.injected("Tasks.FindByID"); err != nil {
		return nil, err
	}
	t, err := r.scoped(projectID, id)
	if err != nil {
		return nil, err
	}
	t = copyTask(t)
	return &t, nil
}

func (r *TaskRepo) ListByProject(_ context.Context, projectID uuid.UUID) ([]model.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.injected("Tasks.ListByProject"); err != nil {
		return nil, err
	}
	var out []model.Task
	for _, t := range r.s.tasks {
		if t.ProjectID == projectID {
			out = append(out, copyTask(t))
		}
	}
	return out, nil
}

func (r *TaskRepo) Update(_ context.Context, projectID, id uuid.UUID, patch model.TaskPatch, position *int) (*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Tasks.Update"); err != nil {
		return nil, err
	}
	t, err := r.scoped(projectID, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.ClearAssignee {
		t.Assignee = nil
	} else if patch.Assignee != nil {
		a := *patch.Assignee
		t.Assignee = &a
	}
	if patch.ClearDueDate {
		t.DueDate = nil
	} else if patch.DueDate != nil {
		d := *patch.DueDate
		t.DueDate = &d
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Attachments != nil {
		t.Attachments = append([]model.Attachment{}, (*patch.Attachments)...)
	}
	if position != nil {
		t.Position = *position
	}

	r.s.tasks[id] = copyTask(t)
	return &t, nil
}

func (r *TaskRepo) Move(_ context.Context, projectID uuid.UUID, m model.TaskMove) (*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Tasks.Move"); err != nil {
		return nil, err
	}
	t, err := r.scoped(projectID, m.ID)
	if err != nil {
		return nil, err
	}
	t.Status = m.Status
	t.Position = m.Position
	r.s.tasks[m.ID] = copyTask(t)
	return &t, nil
}

func (r *TaskRepo) MoveMany(_ context.Context, projectID uuid.UUID, moves []model.TaskMove) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Tasks.MoveMany"); err != nil {
		return err
	}
	for _, m := range moves {
		if _, err := r.scoped(projectID, m.ID); err != nil {
			return err
		}
	}
	for _, m := range moves {
		t := r.s.tasks[m.ID]
		t.Status = m.Status
		t.Position = m.Position
		r.s.tasks[m.ID] = t
	}
	return nil
}

func (r *TaskRepo) Delete(_ context.Context, projectID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Tasks.Delete"); err != nil {
		return err
	}
	if _, err := r.scoped(projectID, id); err != nil {
		return err
	}
	delete(r.s.tasks, id)
	return nil
}

func (r *TaskRepo) DeleteByProject(_ context.Context, projectID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Tasks.DeleteByProject"); err != nil {
		return 0, err
	}
	var n int64
	for id, t := range r.s.tasks {
		if t.ProjectID == projectID {
			delete(r.s.tasks, id)
			n++
		}
	}
	return n, nil
}

func (r *TaskRepo) DeleteOrphans(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Tasks.DeleteOrphans"); err != nil {
		return 0, err
	}
	var n int64
	for id, t := range r.s.tasks {
		if _, ok := r.s.projects[t.ProjectID]; !ok {
			delete(r.s.tasks, id)
			n++
		}
	}
	return n, nil
}

func (r *TaskRepo) AppendComment(_ context.Context, projectID, id uuid.UUID, c model.Comment) ([]model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Tasks.AppendComment"); err != nil {
		return nil, err
	}
	t, err := r.scoped(projectID, id)
	if err != nil {
		return nil, err
	}
	t.Comments = append(t.Comments, c)
	r.s.tasks[id] = copyTask(t)
	return append([]model.Comment{}, t.Comments...), nil
}
