// Package testutil provides in-memory implementations of the service
// stores for tests.
package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/model"
)

// Store holds the shared in-memory state. Users, Projects and Tasks are
// views over it implementing service.UserStore (plus UserDirectory),
// service.ProjectStore and service.TaskStore.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]model.User
	projects map[uuid.UUID]model.Project
	tasks    map[uuid.UUID]model.Task
	failures map[string]error

	// purged records the ids passed to a successful Purge.
	purged []uuid.UUID

	Users    *UserRepo
	Projects *ProjectRepo
	Tasks    *TaskRepo
}

func NewStore() *Store {
	s := &Store{
		users:    map[uuid.UUID]model.User{},
		projects: map[uuid.UUID]model.Project{},
		tasks:    map[uuid.UUID]model.Task{},
		failures: map[string]error{},
	}
	s.Users = &UserRepo{s: s}
	s.Projects = &ProjectRepo{s: s}
	s.Tasks = &TaskRepo{s: s}
	return s
}

// Fail makes every later call of method (e.g. "Tasks.DeleteByProject")
// return err; a nil err clears it.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// injected must be called with s.mu held.
func (s *Store) injected(method string) error {
	return s.failures[method]
}

// AddUser seeds a user and returns it.
func (s *Store) AddUser(name, email string) model.User {
	u := model.User{ID: uuid.New(), Name: name, Email: email, CreatedAt: time.Now()}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return u
}

// PutProject stores p as is.
func (s *Store) PutProject(p model.Project) {
	s.mu.Lock()
	s.projects[p.ID] = copyProject(p)
	s.mu.Unlock()
}

// PutTask stores t as is, without checking its project.
func (s *Store) PutTask(t model.Task) {
	s.mu.Lock()
	s.tasks[t.ID] = copyTask(t)
	s.mu.Unlock()
}

// TaskCount returns the number of stored tasks of projectID.
func (s *Store) TaskCount(projectID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			n++
		}
	}
	return n
}

// Purged returns the ids of purged projects in order.
func (s *Store) Purged() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uuid.UUID(nil), s.purged...)
}

func copyProject(p model.Project) model.Project {
	p.Members = append([]uuid.UUID(nil), p.Members...)
	if p.DeletingAt != nil {
		at := *p.DeletingAt
		p.DeletingAt = &at
	}
	return p
}

func copyTask(t model.Task) model.Task {
	t.Comments = append([]model.Comment{}, t.Comments...)
	t.Attachments = append([]model.Attachment{}, t.Attachments...)
	if t.Assignee != nil {
		a := *t.Assignee
		t.Assignee = &a
	}
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}

func sortProjects(ps []model.Project) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.After(ps[j].CreatedAt)
		}
		return ps[i].ID.String() < ps[j].ID.String()
	})
}
