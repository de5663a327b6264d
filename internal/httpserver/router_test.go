package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/events"
	"taskboard/internal/handler"
	"taskboard/internal/httpserver"
	"taskboard/internal/service"
	"taskboard/internal/testutil"
	"taskboard/pkg/trace"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	User    json.RawMessage `json:"user"`
	Token   string          `json:"token"`
	Message string          `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type api struct {
	t      *testing.T
	engine *gin.Engine
}

func newAPI(t *testing.T, checks ...httpserver.ReadinessCheck) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	store := testutil.NewStore()
	guard := service.NewGuard(store.Projects, log)
	auth := service.NewAuthService(store.Users, "test-secret", time.Hour, log)
	projects := service.NewProjectService(store.Projects, store.Tasks, store.Users, store.Users, guard, events.Nop{}, log)
	board := service.NewBoardService(store.Tasks, store.Users, guard, events.Nop{}, log)

	r := httpserver.NewRouter(
		handler.NewAuthHandler(auth, log),
		handler.NewProjectHandler(projects, log),
		handler.NewTaskHandler(board, log),
		auth,
		log,
		checks...,
	)
	return &api{t: t, engine: r.Engine}
}

func (a *api) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, env
}

func (a *api) register(name, email string) (token, id string) {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/auth/register", "", gin.H{"name": name, "email": email, "password": "secret1"})
	if code != http.StatusCreated || !env.Success {
		a.t.Fatalf("register %s: %d %+v", email, code, env)
	}
	var u struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.User, &u)
	return env.Token, u.ID
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

type taskJSON struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Position int    `json:"position"`
}

type boardJSON struct {
	Todo       []taskJSON `json:"todo"`
	InProgress []taskJSON `json:"inprogress"`
	Done       []taskJSON `json:"done"`
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	token, id := a.register("Alice", "alice@example.com")

	code, env := a.do(http.MethodGet, "/auth/me", token, nil)
	if code != http.StatusOK {
		t.Fatalf("me: %d %+v", code, env)
	}
	me := decode[map[string]any](t, env.User)
	if me["id"] != id {
		t.Errorf("me returned %v", me)
	}
	if _, leaked := me["password_hash"]; leaked {
		t.Error("password hash serialized")
	}

	code, env = a.do(http.MethodPost, "/auth/register", "", gin.H{"email": "alice@example.com", "password": "secret1"})
	if code != http.StatusConflict || env.Message != "User already exists" {
		t.Errorf("duplicate register: %d %+v", code, env)
	}

	code, env = a.do(http.MethodPost, "/auth/register", "", gin.H{"email": "nope", "password": "123"})
	if code != http.StatusBadRequest || len(env.Errors) != 2 {
		t.Errorf("invalid register: %d %+v", code, env)
	}

	code, env = a.do(http.MethodPost, "/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong!"})
	if code != http.StatusUnauthorized || env.Success {
		t.Errorf("bad login: %d %+v", code, env)
	}

	code, env = a.do(http.MethodPost, "/auth/login", "", gin.H{"email": "ALICE@example.com", "password": "secret1"})
	if code != http.StatusOK || env.Token == "" {
		t.Errorf("login: %d %+v", code, env)
	}
}

func TestAuthMiddleware(t *testing.T) {
	a := newAPI(t)

	code, env := a.do(http.MethodGet, "/projects", "", nil)
	if code != http.StatusUnauthorized || env.Message != "No token, authorization denied" {
		t.Errorf("missing token: %d %+v", code, env)
	}

	code, env = a.do(http.MethodGet, "/projects", "garbage", nil)
	if code != http.StatusUnauthorized || env.Success {
		t.Errorf("bad token: %d %+v", code, env)
	}
}

func TestBoardOverHTTP(t *testing.T) {
	a := newAPI(t)
	alice, _ := a.register("Alice", "alice@example.com")
	bob, bobID := a.register("Bob", "bob@example.com")

	code, env := a.do(http.MethodPost, "/projects", alice, gin.H{"title": "Launch"})
	if code != http.StatusCreated {
		t.Fatalf("create project: %d %+v", code, env)
	}
	project := decode[map[string]any](t, env.Data)
	if project["color"] != "#3498db" {
		t.Errorf("default color = %v", project["color"])
	}
	base := "/projects/" + project["id"].(string)

	code, env = a.do(http.MethodPost, base+"/tasks", alice, gin.H{"title": "Write spec"})
	if code != http.StatusCreated {
		t.Fatalf("create task: %d %+v", code, env)
	}
	spec := decode[taskJSON](t, env.Data)
	_, env = a.do(http.MethodPost, base+"/tasks", alice, gin.H{"title": "Review", "status": "todo"})
	review := decode[taskJSON](t, env.Data)
	if spec.Position != 0 || review.Position != 1 {
		t.Fatalf("positions %d, %d", spec.Position, review.Position)
	}

	code, env = a.do(http.MethodPatch, base+"/tasks/"+review.ID+"/position", alice, gin.H{"status": "todo", "position": 0})
	if code != http.StatusOK {
		t.Fatalf("move: %d %+v", code, env)
	}

	_, env = a.do(http.MethodGet, base+"/tasks", alice, nil)
	board := decode[boardJSON](t, env.Data)
	if len(board.Todo) != 2 || board.Todo[0].Title != "Review" || board.Todo[1].Title != "Write spec" {
		t.Errorf("unexpected todo column %+v", board.Todo)
	}
	if board.InProgress == nil || board.Done == nil {
		t.Error("empty columns must serialize as arrays")
	}

	code, env = a.do(http.MethodPost, base+"/tasks/"+spec.ID+"/comments", alice, gin.H{"text": "   "})
	if code != http.StatusBadRequest || env.Message != "Comment text is required" {
		t.Errorf("blank comment: %d %+v", code, env)
	}

	// Bob is not a member yet.
	code, env = a.do(http.MethodGet, base+"/tasks", bob, nil)
	if code != http.StatusForbidden || env.Data != nil {
		t.Errorf("non-member list: %d %+v", code, env)
	}

	code, _ = a.do(http.MethodPost, base+"/members", alice, gin.H{"user_id": bobID})
	if code != http.StatusOK {
		t.Fatalf("add member: %d", code)
	}
	code, env = a.do(http.MethodPost, base+"/members", alice, gin.H{"user_id": bobID})
	if code != http.StatusConflict {
		t.Errorf("duplicate member: %d %+v", code, env)
	}

	code, env = a.do(http.MethodPost, base+"/tasks/bulk", bob, gin.H{"tasks": []gin.H{
		{"id": spec.ID, "status": "done", "position": 0},
		{"id": review.ID, "status": "inprogress", "position": 4},
	}})
	if code != http.StatusOK {
		t.Fatalf("bulk: %d %+v", code, env)
	}
	board = decode[boardJSON](t, env.Data)
	if len(board.Done) != 1 || len(board.InProgress) != 1 || board.InProgress[0].Position != 4 {
		t.Errorf("unexpected board after bulk %+v", board)
	}

	code, env = a.do(http.MethodDelete, base, bob, nil)
	if code != http.StatusForbidden || env.Message != "Only project creator can delete project" {
		t.Errorf("member delete: %d %+v", code, env)
	}
	code, env = a.do(http.MethodDelete, base, alice, nil)
	if code != http.StatusOK || env.Message != "Project deleted successfully" {
		t.Fatalf("delete: %d %+v", code, env)
	}
	for _, id := range []string{spec.ID, review.ID} {
		code, _ = a.do(http.MethodPut, base+"/tasks/"+id, alice, gin.H{"title": "x"})
		if code != http.StatusNotFound {
			t.Errorf("task %s after delete: %d", id, code)
		}
	}
}

func TestMalformedRequests(t *testing.T) {
	a := newAPI(t)
	alice, _ := a.register("Alice", "alice@example.com")

	code, _ := a.do(http.MethodGet, "/projects/not-a-uuid/tasks", alice, nil)
	if code != http.StatusNotFound {
		t.Errorf("bad project id: %d", code)
	}

	_, env := a.do(http.MethodPost, "/projects", alice, gin.H{"title": "P"})
	base := "/projects/" + decode[map[string]any](t, env.Data)["id"].(string)

	code, env = a.do(http.MethodPut, base+"/tasks/xyz/position", alice, gin.H{"status": "todo", "position": 0})
	if code != http.StatusNotFound || env.Message != "Task not found" {
		t.Errorf("bad task id: %d %+v", code, env)
	}

	code, env = a.do(http.MethodPost, base+"/tasks", alice, gin.H{"description": "no title"})
	if code != http.StatusBadRequest || len(env.Errors) != 1 || env.Errors[0].Field != "title" {
		t.Errorf("missing title: %d %+v", code, env)
	}

	_, env = a.do(http.MethodPost, base+"/tasks", alice, gin.H{"title": "t"})
	task := decode[taskJSON](t, env.Data)
	code, env = a.do(http.MethodPut, base+"/tasks/"+task.ID+"/position", alice, gin.H{"status": "todo", "position": -1})
	if code != http.StatusBadRequest {
		t.Errorf("negative position: %d %+v", code, env)
	}
	code, env = a.do(http.MethodPut, base+"/tasks/"+task.ID+"/position", alice, gin.H{"status": "todo", "position": 3000000000})
	if code != http.StatusBadRequest || len(env.Errors) != 1 || env.Errors[0].Field != "position" {
		t.Errorf("position beyond int4: %d %+v", code, env)
	}
	code, env = a.do(http.MethodPost, base+"/tasks/bulk", alice, gin.H{"tasks": []gin.H{
		{"id": task.ID, "status": "done", "position": 2147483647},
	}})
	if code != http.StatusBadRequest {
		t.Errorf("bulk position beyond limit: %d %+v", code, env)
	}
	code, _ = a.do(http.MethodPut, base+"/tasks/"+task.ID+"/position", alice, gin.H{"status": "blocked", "position": 1})
	if code != http.StatusBadRequest {
		t.Errorf("unknown status: %d", code)
	}
	code, _ = a.do(http.MethodPut, base+"/tasks/"+task.ID, alice, gin.H{"due_date": "next week"})
	if code != http.StatusBadRequest {
		t.Errorf("bad due date: %d", code)
	}
}

func TestHealthAndTrace(t *testing.T) {
	a := newAPI(t, httpserver.ReadinessCheck{Name: "db", Check: func(context.Context) error {
		return errors.New("connection refused")
	}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName, "abc123")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("healthz: %d", w.Code)
	}
	if got := w.Header().Get(trace.HeaderName); got != "abc123" {
		t.Errorf("trace id not echoed: %q", got)
	}

	w = httptest.NewRecorder()
	a.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing db: %d", w.Code)
	}

	w = httptest.NewRecorder()
	a.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("metrics: %d", w.Code)
	}
}
