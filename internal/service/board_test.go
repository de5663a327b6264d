package service_test

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskboard/contracts/mq"
	"taskboard/internal/apperr"
	"taskboard/internal/model"
)

func TestLaunchScenarioMoveDoesNotRenumber(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")

	spec := f.task(t, f.alice, p.ID, "Write spec", model.StatusTodo)
	review := f.task(t, f.alice, p.ID, "Review", model.StatusTodo)
	if spec.Position != 0 || review.Position != 1 {
		t.Fatalf("expected tail positions 0 and 1, got %d and %d", spec.Position, review.Position)
	}

	if _, err := f.board.Move(f.ctx, f.alice.ID, p.ID, review.ID, model.StatusTodo, 0); err != nil {
		t.Fatalf("Move: %v", err)
	}

	board, err := f.board.List(f.ctx, f.alice.ID, p.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := titles(board.Todo); !reflect.DeepEqual(got, []string{"Review", "Write spec"}) {
		t.Fatalf("unexpected todo order %v", got)
	}
	if board.Todo[1].Position != 0 {
		// Write spec keeps position 0; Review ties with it and is newer.
		t.Errorf("Write spec was renumbered to %d", board.Todo[1].Position)
	}
	if board.Todo[0].Position != 0 {
		t.Errorf("Review position = %d, want 0", board.Todo[0].Position)
	}
}

func TestCreateAppendsAtTailPerColumn(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")

	a := f.task(t, f.alice, p.ID, "a", model.StatusTodo)
	b := f.task(t, f.alice, p.ID, "b", "")
	c := f.task(t, f.alice, p.ID, "c", model.StatusDone)

	if a.Position != 0 || b.Position != 1 {
		t.Errorf("todo positions = %d, %d", a.Position, b.Position)
	}
	if b.Status != model.StatusTodo {
		t.Errorf("default status = %q", b.Status)
	}
	if c.Position != 0 {
		t.Errorf("first done task position = %d", c.Position)
	}

	// Gaps from deletes are kept; the tail is max+1.
	if err := f.board.Delete(f.ctx, f.alice.ID, p.ID, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	d := f.task(t, f.alice, p.ID, "d", model.StatusTodo)
	if d.Position != 2 {
		t.Errorf("expected position 2 after delete, got %d", d.Position)
	}
}

func TestListOrderIsTotalWithTies(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	first := uuid.MustParse("00000000-0000-4000-8000-000000000001")
	second := uuid.MustParse("00000000-0000-4000-8000-000000000002")
	for _, tk := range []model.Task{
		{ID: uuid.New(), ProjectID: p.ID, Title: "old zero", Status: model.StatusTodo, Position: 0, CreatedAt: base},
		{ID: uuid.New(), ProjectID: p.ID, Title: "new zero", Status: model.StatusTodo, Position: 0, CreatedAt: base.Add(time.Minute)},
		{ID: second, ProjectID: p.ID, Title: "same b", Status: model.StatusTodo, Position: 1, CreatedAt: base},
		{ID: first, ProjectID: p.ID, Title: "same a", Status: model.StatusTodo, Position: 1, CreatedAt: base},
		{ID: uuid.New(), ProjectID: p.ID, Title: "doing", Status: model.StatusInProgress, Position: 5, CreatedAt: base},
	} {
		f.store.PutTask(tk)
	}

	for i := 0; i < 3; i++ {
		board, err := f.board.List(f.ctx, f.alice.ID, p.ID)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		want := []string{"new zero", "old zero", "same a", "same b"}
		if got := titles(board.Todo); !reflect.DeepEqual(got, want) {
			t.Fatalf("todo order %v, want %v", got, want)
		}
		if len(board.InProgress) != 1 || len(board.Done) != 0 {
			t.Fatalf("unexpected partition: %d in progress, %d done", len(board.InProgress), len(board.Done))
		}
	}
}

func TestMoveChangesOnlyStatusAndPosition(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")
	if _, err := f.projects.AddMember(f.ctx, p.ID, f.alice.ID, f.bob.ID); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	task, err := f.board.Create(f.ctx, f.alice.ID, p.ID, model.NewTask{
		Title:       "Ship",
		Description: "v1",
		Assignee:    &f.bob.ID,
		DueDate:     &due,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sibling := f.task(t, f.alice, p.ID, "Sibling", model.StatusTodo)
	if _, err := f.board.AddComment(f.ctx, f.alice.ID, p.ID, task.ID, "looks good"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	before, _ := f.store.Tasks.FindByID(f.ctx, p.ID, task.ID)

	moved, err := f.board.Move(f.ctx, f.bob.ID, p.ID, task.ID, model.StatusDone, 7)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if moved.Status != model.StatusDone || moved.Position != 7 {
		t.Fatalf("unexpected placement %s/%d", moved.Status, moved.Position)
	}

	after, _ := f.store.Tasks.FindByID(f.ctx, p.ID, task.ID)
	before.Status, before.Position = model.StatusDone, 7
	if !reflect.DeepEqual(before, after) {
		t.Errorf("move touched other fields:\nbefore %+v\nafter  %+v", before, after)
	}
	sib, _ := f.store.Tasks.FindByID(f.ctx, p.ID, sibling.ID)
	if sib.Position != sibling.Position || sib.Status != sibling.Status {
		t.Errorf("sibling changed to %s/%d", sib.Status, sib.Position)
	}
}

func TestMoveValidation(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")
	task := f.task(t, f.alice, p.ID, "x", model.StatusTodo)

	_, err := f.board.Move(f.ctx, f.alice.ID, p.ID, task.ID, "blocked", 0)
	wantKind(t, err, apperr.KindValidation)
	_, err = f.board.Move(f.ctx, f.alice.ID, p.ID, task.ID, model.StatusDone, -1)
	wantKind(t, err, apperr.KindValidation)
	_, err = f.board.Move(f.ctx, f.alice.ID, p.ID, uuid.New(), model.StatusDone, 0)
	wantKind(t, err, apperr.KindNotFound)
}

func TestMovePositionLimits(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")
	task := f.task(t, f.alice, p.ID, "x", model.StatusTodo)

	_, err := f.board.Move(f.ctx, f.alice.ID, p.ID, task.ID, model.StatusTodo, model.MaxPosition+1)
	wantKind(t, err, apperr.KindValidation)
	_, err = f.board.BulkMove(f.ctx, f.alice.ID, p.ID, []model.TaskMove{
		{ID: task.ID, Status: model.StatusDone, Position: math.MaxInt32},
	})
	wantKind(t, err, apperr.KindValidation)

	last, err := f.board.Move(f.ctx, f.alice.ID, p.ID, task.ID, model.StatusTodo, model.MaxPosition)
	if err != nil {
		t.Fatalf("Move to MaxPosition: %v", err)
	}
	if last.Position != model.MaxPosition {
		t.Fatalf("expected position %d, got %d", model.MaxPosition, last.Position)
	}

	// The column still accepts one more task at the int4 ceiling.
	next := f.task(t, f.alice, p.ID, "y", model.StatusTodo)
	if next.Position != math.MaxInt32 {
		t.Fatalf("expected tail %d, got %d", math.MaxInt32, next.Position)
	}

	_, err = f.board.Create(f.ctx, f.alice.ID, p.ID, model.NewTask{Title: "z", Status: model.StatusTodo})
	wantKind(t, err, apperr.KindConflict)
	other := f.task(t, f.alice, p.ID, "w", model.StatusDone)
	_, err = f.board.Update(f.ctx, f.alice.ID, p.ID, other.ID, model.TaskPatch{Status: ptr(model.StatusTodo)})
	wantKind(t, err, apperr.KindConflict)

	// Moving the last task away frees the column again.
	if _, err := f.board.Move(f.ctx, f.alice.ID, p.ID, next.ID, model.StatusInProgress, 0); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := f.board.Update(f.ctx, f.alice.ID, p.ID, other.ID, model.TaskPatch{Status: ptr(model.StatusTodo)}); err != nil {
		t.Fatalf("Update after freeing the tail: %v", err)
	}
}

func TestUpdateStatusChangeLandsAtTail(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")
	f.task(t, f.alice, p.ID, "done 0", model.StatusDone)
	f.task(t, f.alice, p.ID, "done 1", model.StatusDone)
	task := f.task(t, f.alice, p.ID, "todo", model.StatusTodo)
	f.task(t, f.alice, p.ID, "todo 2", model.StatusTodo)

	same, err := f.board.Update(f.ctx, f.alice.ID, p.ID, task.ID, model.TaskPatch{
		Title:  ptr("renamed"),
		Status: ptr(model.StatusTodo),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if same.Position != 0 || same.Title != "renamed" {
		t.Errorf("unchanged status must keep position: %+v", same)
	}

	moved, err := f.board.Update(f.ctx, f.alice.ID, p.ID, task.ID, model.TaskPatch{Status: ptr(model.StatusDone)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if moved.Status != model.StatusDone || moved.Position != 2 {
		t.Errorf("expected tail of done (2), got %s/%d", moved.Status, moved.Position)
	}
	if keys := f.notes.Keys(); keys[len(keys)-1] != mq.RoutingTaskMoved {
		t.Errorf("expected task.moved activity, got %v", keys)
	}
}

func TestUpdateFields(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")
	task := f.task(t, f.alice, p.ID, "x", model.StatusTodo)

	_, err := f.board.Update(f.ctx, f.alice.ID, p.ID, task.ID, model.TaskPatch{Assignee: &f.bob.ID})
	wantKind(t, err, apperr.KindValidation)

	_, err = f.board.Update(f.ctx, f.alice.ID, p.ID, task.ID, model.TaskPatch{Title: ptr(" ")})
	wantKind(t, err, apperr.KindValidation)

	_, err = f.board.Update(f.ctx, f.alice.ID, p.ID, task.ID, model.TaskPatch{Status: ptr(model.Status("later"))})
	wantKind(t, err, apperr.KindValidation)

	v, err := f.board.Update(f.ctx, f.alice.ID, p.ID, task.ID, model.TaskPatch{
		Assignee:    &f.alice.ID,
		Attachments: &[]model.Attachment{{Filename: "spec.pdf", URL: "https://files.example.com/spec.pdf"}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v.Assignee == nil || v.Assignee.Name != "Alice" {
		t.Errorf("assignee not resolved: %+v", v.Assignee)
	}
	if len(v.Attachments) != 1 || v.Attachments[0].UploadedAt.IsZero() {
		t.Errorf("attachment not stamped: %+v", v.Attachments)
	}

	cleared, err := f.board.Update(f.ctx, f.alice.ID, p.ID, task.ID, model.TaskPatch{ClearAssignee: true})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cleared.Assignee != nil {
		t.Errorf("expected assignee cleared, got %+v", cleared.Assignee)
	}
}

func TestCreateRejectsNonMemberAssignee(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")

	_, err := f.board.Create(f.ctx, f.alice.ID, p.ID, model.NewTask{Title: "x", Assignee: &f.carol.ID})
	wantKind(t, err, apperr.KindValidation)
	_, err = f.board.Create(f.ctx, f.alice.ID, p.ID, model.NewTask{Title: ""})
	wantKind(t, err, apperr.KindValidation)
}

func TestAddComment(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")
	f.projects.AddMember(f.ctx, p.ID, f.alice.ID, f.bob.ID)
	task := f.task(t, f.alice, p.ID, "x", model.StatusTodo)

	if _, err := f.board.AddComment(f.ctx, f.alice.ID, p.ID, task.ID, "first"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	_, err := f.board.AddComment(f.ctx, f.bob.ID, p.ID, task.ID, " \n\t ")
	wantKind(t, err, apperr.KindValidation)
	stored, _ := f.store.Tasks.FindByID(f.ctx, p.ID, task.ID)
	if len(stored.Comments) != 1 {
		t.Fatalf("whitespace comment changed the thread: %d comments", len(stored.Comments))
	}

	thread, err := f.board.AddComment(f.ctx, f.bob.ID, p.ID, task.ID, "  second  ")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(thread) != 2 {
		t.Fatalf("expected whole thread, got %d comments", len(thread))
	}
	if thread[0].User.Name != "Alice" || thread[1].User.Name != "Bob" || thread[1].Text != "second" {
		t.Errorf("unexpected thread %+v", thread)
	}
}

func TestNonMemberCannotReachTasks(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")
	task := f.task(t, f.alice, p.ID, "secret", model.StatusTodo)
	bob := f.bob.ID

	ops := map[string]func() error{
		"list": func() error { _, err := f.board.List(f.ctx, bob, p.ID); return err },
		"create": func() error {
			_, err := f.board.Create(f.ctx, bob, p.ID, model.NewTask{Title: "x"})
			return err
		},
		"update": func() error {
			_, err := f.board.Update(f.ctx, bob, p.ID, task.ID, model.TaskPatch{Title: ptr("x")})
			return err
		},
		"move": func() error {
			_, err := f.board.Move(f.ctx, bob, p.ID, task.ID, model.StatusDone, 0)
			return err
		},
		"bulk": func() error {
			_, err := f.board.BulkMove(f.ctx, bob, p.ID, []model.TaskMove{{ID: task.ID, Status: model.StatusDone}})
			return err
		},
		"delete":  func() error { return f.board.Delete(f.ctx, bob, p.ID, task.ID) },
		"comment": func() error { _, err := f.board.AddComment(f.ctx, bob, p.ID, task.ID, "hi"); return err },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			wantKind(t, op(), apperr.KindForbidden)
		})
	}

	stored, _ := f.store.Tasks.FindByID(f.ctx, p.ID, task.ID)
	if stored.Title != "secret" || len(stored.Comments) != 0 {
		t.Errorf("non-member mutated the task: %+v", stored)
	}
}

func TestTaskOfAnotherProjectIsNotFound(t *testing.T) {
	f := newFixture(t)
	mine := f.project(t, f.alice, "Mine")
	theirs := f.project(t, f.bob, "Theirs")
	foreign := f.task(t, f.bob, theirs.ID, "foreign", model.StatusTodo)

	_, err := f.board.Update(f.ctx, f.alice.ID, mine.ID, foreign.ID, model.TaskPatch{Title: ptr("hijack")})
	wantKind(t, err, apperr.KindNotFound)
	_, err = f.board.Move(f.ctx, f.alice.ID, mine.ID, foreign.ID, model.StatusDone, 0)
	wantKind(t, err, apperr.KindNotFound)
	wantKind(t, f.board.Delete(f.ctx, f.alice.ID, mine.ID, foreign.ID), apperr.KindNotFound)
	_, err = f.board.AddComment(f.ctx, f.alice.ID, mine.ID, foreign.ID, "hi")
	wantKind(t, err, apperr.KindNotFound)

	if n := f.store.TaskCount(theirs.ID); n != 1 {
		t.Errorf("foreign task deleted")
	}
}

func TestBulkMoveIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")
	a := f.task(t, f.alice, p.ID, "a", model.StatusTodo)
	b := f.task(t, f.alice, p.ID, "b", model.StatusTodo)

	_, err := f.board.BulkMove(f.ctx, f.alice.ID, p.ID, []model.TaskMove{
		{ID: a.ID, Status: model.StatusDone, Position: 0},
		{ID: uuid.New(), Status: model.StatusDone, Position: 1},
	})
	wantKind(t, err, apperr.KindNotFound)
	stored, _ := f.store.Tasks.FindByID(f.ctx, p.ID, a.ID)
	if stored.Status != model.StatusTodo {
		t.Fatal("partial bulk move applied")
	}

	_, err = f.board.BulkMove(f.ctx, f.alice.ID, p.ID, []model.TaskMove{
		{ID: a.ID, Status: model.StatusDone},
		{ID: a.ID, Status: model.StatusTodo},
	})
	wantKind(t, err, apperr.KindValidation)

	board, err := f.board.BulkMove(f.ctx, f.alice.ID, p.ID, []model.TaskMove{
		{ID: a.ID, Status: model.StatusInProgress, Position: 3},
		{ID: b.ID, Status: model.StatusTodo, Position: 9},
	})
	if err != nil {
		t.Fatalf("BulkMove: %v", err)
	}
	if len(board.InProgress) != 1 || board.InProgress[0].Position != 3 || board.Todo[0].Position != 9 {
		t.Errorf("unexpected board %+v", board)
	}
}

func TestActivityFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")
	f.notes.Err = errors.New("outbox unavailable")

	if _, err := f.board.Create(f.ctx, f.alice.ID, p.ID, model.NewTask{Title: "x"}); err != nil {
		t.Fatalf("Create failed because of activity recording: %v", err)
	}
}

func TestStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, f.alice, "Launch")
	f.store.Fail("Tasks.ListByProject", errors.New("connection refused"))

	_, err := f.board.List(f.ctx, f.alice.ID, p.ID)
	wantKind(t, err, apperr.KindInternal)
}
