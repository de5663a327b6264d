package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
	"taskboard/internal/service"
	"taskboard/internal/testutil"
)

type fixture struct {
	ctx      context.Context
	store    *testutil.Store
	notes    *testutil.Recorder
	clock    *testutil.Clock
	auth     *service.AuthService
	projects *service.ProjectService
	board    *service.BoardService

	alice model.User
	bob   model.User
	carol model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := testutil.NewStore()
	notes := &testutil.Recorder{}
	clock := testutil.NewClock()
	log := zap.NewNop()
	guard := service.NewGuard(store.Projects, log)

	return &fixture{
		ctx:   context.Background(),
		store: store,
		notes: notes,
		clock: clock,
		auth:  service.NewAuthService(store.Users, "test-secret", time.Hour, log),
		projects: service.NewProjectService(store.Projects, store.Tasks, store.Users, store.Users, guard, notes, log).
			WithClock(clock.Now),
		board: service.NewBoardService(store.Tasks, store.Users, guard, notes, log).
			WithClock(clock.Now),
		alice: store.AddUser("Alice", "alice@example.com"),
		bob:   store.AddUser("Bob", "bob@example.com"),
		carol: store.AddUser("Carol", "carol@example.com"),
	}
}

func (f *fixture) project(t *testing.T, owner model.User, title string) *model.ProjectView {
	t.Helper()
	p, err := f.projects.Create(f.ctx, owner.ID, service.NewProject{Title: title})
	if err != nil {
		t.Fatalf("create project %q: %v", title, err)
	}
	return p
}

func (f *fixture) task(t *testing.T, actor model.User, projectID uuid.UUID, title string, status model.Status) *model.TaskView {
	t.Helper()
	v, err := f.board.Create(f.ctx, actor.ID, projectID, model.NewTask{Title: title, Status: status})
	if err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return v
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("expected %v error, got %v (%v)", kind, got, err)
	}
}

func titles(tasks []model.TaskView) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
