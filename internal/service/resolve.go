package service

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
	"taskboard/pkg/metrics"
)

// resolver populates user references with one directory lookup per call.
type resolver struct {
	dir UserDirectory
}

func (r resolver) lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.UserSummary, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]model.UserSummary{}, nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	users, err := r.dir.Summaries(ctx, unique)
	if err != nil {
		return nil, apperr.Internal("failed to resolve users", err)
	}
	return users, nil
}

func summaryOf(users map[uuid.UUID]model.UserSummary, id uuid.UUID) model.UserSummary {
	if u, ok := users[id]; ok {
		return u
	}
	return model.UserSummary{ID: id}
}

func (r resolver) projects(ctx context.Context, projects []model.Project) ([]model.ProjectView, error) {
	var ids []uuid.UUID
	for _, p := range projects {
		ids = append(ids, p.CreatedBy)
		ids = append(ids, p.Members...)
	}
	users, err := r.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]model.ProjectView, 0, len(projects))
	for _, p := range projects {
		v := model.ProjectView{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			Color:       p.Color,
			CreatedBy:   summaryOf(users, p.CreatedBy),
			Members:     make([]model.UserSummary, 0, len(p.Members)),
			CreatedAt:   p.CreatedAt,
		}
		for _, m := range p.Members {
			v.Members = append(v.Members, summaryOf(users, m))
		}
		views = append(views, v)
	}
	return views, nil
}

func (r resolver) project(ctx context.Context, p *model.Project) (*model.ProjectView, error) {
	views, err := r.projects(ctx, []model.Project{*p})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (r resolver) tasks(ctx context.Context, tasks []model.Task) ([]model.TaskView, error) {
	var ids []uuid.UUID
	for _, t := range tasks {
		if t.Assignee != nil {
			ids = append(ids, *t.Assignee)
		}
		for _, c := range t.Comments {
			ids = append(ids, c.AuthorID)
		}
	}
	users, err := r.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]model.TaskView, 0, len(tasks))
	for _, t := range tasks {
		v := model.TaskView{
			ID:          t.ID,
			ProjectID:   t.ProjectID,
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			Position:    t.Position,
			DueDate:     t.DueDate,
			Comments:    commentViews(users, t.Comments),
			Attachments: t.Attachments,
			CreatedAt:   t.CreatedAt,
		}
		if v.Attachments == nil {
			v.Attachments = []model.Attachment{}
		}
		if t.Assignee != nil {
			if u, ok := users[*t.Assignee]; ok {
				v.Assignee = &u
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func (r resolver) task(ctx context.Context, t *model.Task) (*model.TaskView, error) {
	views, err := r.tasks(ctx, []model.Task{*t})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (r resolver) comments(ctx context.Context, comments []model.Comment) ([]model.CommentView, error) {
	ids := make([]uuid.UUID, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	users, err := r.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	return commentViews(users, comments), nil
}

func commentViews(users map[uuid.UUID]model.UserSummary, comments []model.Comment) []model.CommentView {
	views := make([]model.CommentView, 0, len(comments))
	for _, c := range comments {
		v := model.CommentView{ID: c.ID, Text: c.Text, CreatedAt: c.CreatedAt}
		if u, ok := users[c.AuthorID]; ok {
			v.User = &u
		}
		views = append(views, v)
	}
	return views
}

// SortColumn orders tasks by position ascending, then newest first, then id.
func SortColumn(tasks []model.TaskView) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// Partition splits the tasks into the three status columns, each sorted by SortColumn.
func Partition(tasks []model.TaskView) model.Board {
	board := model.Board{
		Todo:       []model.TaskView{},
		InProgress: []model.TaskView{},
		Done:       []model.TaskView{},
	}
	for _, t := range tasks {
		switch t.Status {
		case model.StatusInProgress:
			board.InProgress = append(board.InProgress, t)
		case model.StatusDone:
			board.Done = append(board.Done, t)
		default:
			board.Todo = append(board.Todo, t)
		}
	}

	ties := 0
	for _, column := range [][]model.TaskView{board.Todo, board.InProgress, board.Done} {
		SortColumn(column)
		for i := 1; i < len(column); i++ {
			if column[i-1].Position == column[i].Position {
				ties++
			}
		}
	}
	metrics.AddPositionTies(ties)
	return board
}
