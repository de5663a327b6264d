package testutil

import (
	"context"

	"github.com/google/uuid"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
)

type UserRepo struct {
	s *Store
}

func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Users.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return apperr.Conflict("User already exists")
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.injected("Users.FindByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (r *UserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.injected("Users.FindByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return &u, nil
}

func (r *UserRepo) Summaries(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]model.UserSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.injected("Users.Summaries"); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]model.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}
