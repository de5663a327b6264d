package testutil

import (
	"context"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
)

type ProjectRepo struct {
	s *Store
}

func (r *ProjectRepo) Insert(_ context.Context, p *model.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Projects.Insert"); err != nil {
		return err
	}
	r.s.projects[p.ID] = copyProject(*p)
	return nil
}

func (r *ProjectRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.injected("Projects.FindByID"); err != nil {
		return nil, err
	}
	p, ok := r.s.projects[id]
	if !ok {
		return nil, apperr.NotFound("project not found")
	}
	p = copyProject(p)
	return &p, nil
}

func (r *ProjectRepo) ListByMember(_ context.Context, userID uuid.UUID) ([]model.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.injected("Projects.ListByMember"); err != nil {
		return nil, err
	}
	out := []model.Project{}
	for _, p := range r.s.projects {
		if !p.Deleting() && p.HasMember(userID) {
			out = append(out, copyProject(p))
		}
	}
	sortProjects(out)
	return out, nil
}

// live returns the project if it exists, is not tombstoned and actor is a member.
func (r *ProjectRepo) live(id, actor uuid.UUID) (model.Project, error) {
	p, ok := r.s.projects[id]
	if !ok || p.Deleting() {
		return model.Project{}, apperr.NotFound("project not found")
	}
	if !p.HasMember(actor) {
		return model.Project{}, apperr.Forbidden("Not a project member")
	}
	return p, nil
}

func (r *ProjectRepo) Update(_ context.Context, id, actor uuid.UUID, patch model.ProjectPatch) (*model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Projects.Update"); err != nil {
		return nil, err
	}
	p, err := r.live(id, actor)
	if err != nil {
		return nil, err
	}
	p = patch.Apply(p)
	r.s.projects[id] = copyProject(p)
	return &p, nil
}

func (r *ProjectRepo) AddMember(_ context.Context, id, actor, newUser uuid.UUID) (*model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Projects.AddMember"); err != nil {
		return nil, err
	}
	p, err := r.live(id, actor)
	if err != nil {
		return nil, err
	}
	if p.HasMember(newUser) {
		return nil, apperr.Conflict("User is already a project member")
	}
	p.Members = append(p.Members, newUser)
	r.s.projects[id] = copyProject(p)
	return &p, nil
}

func (r *ProjectRepo) MarkDeleting(_ context.Context, id, actor uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Projects.MarkDeleting"); err != nil {
		return err
	}
	p, ok := r.s.projects[id]
	if !ok || !p.IsCreator(actor) {
		return apperr.NotFound("project not found")
	}
	if p.DeletingAt == nil {
		p.DeletingAt = &at
		r.s.projects[id] = p
	}
	return nil
}

func (r *ProjectRepo) Purge(_ context.Context, id, _ uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Projects.Purge"); err != nil {
		return err
	}
	if _, ok := r.s.projects[id]; !ok {
		return nil
	}
	for tid, t := range r.s.tasks {
		if t.ProjectID == id {
			delete(r.s.tasks, tid)
		}
	}
	delete(r.s.projects, id)
	r.s.purged = append(r.s.purged, id)
	return nil
}

func (r *ProjectRepo) ListDeleting(_ context.Context, olderThan time.Time) ([]model.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.injected("Projects.ListDeleting"); err != nil {
		return nil, err
	}
	var out []model.Project
	for _, p := range r.s.projects {
		if p.DeletingAt != nil && p.DeletingAt.Before(olderThan) {
			out = append(out, copyProject(p))
		}
	}
	sortProjects(out)
	return out, nil
}
