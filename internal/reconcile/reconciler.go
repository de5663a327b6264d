// Package reconcile finishes project deletes that were interrupted between
// the tombstone and the purge, and removes tasks whose project is gone.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/pkg/metrics"
	"taskboard/pkg/otel"
)

const lockName = "reconcile"

type ProjectStore interface {
	ListDeleting(ctx context.Context, olderThan time.Time) ([]model.Project, error)
	Purge(ctx context.Context, id, deletedBy uuid.UUID) error
}

type TaskStore interface {
	DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

// Locker keeps sweeps single-flight across instances.
type Locker interface {
	TryLock(ctx context.Context, name string) (bool, error)
	Unlock(ctx context.Context, name string)
}

// Result summarises one sweep.
type Result struct {
	Projects     int
	Tasks        int64
	OrphanTasks  int64
	Skipped      bool
	FailedPurges int
}

type Reconciler struct {
	projects ProjectStore
	tasks    TaskStore
	locker   Locker
	grace    time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewReconciler(projects ProjectStore, tasks TaskStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		projects: projects,
		tasks:    tasks,
		grace:    time.Minute,
		interval: 5 * time.Minute,
		now:      time.Now,
		logger:   logger,
	}
}

// WithLocker enables the cross-instance lock.
func (r *Reconciler) WithLocker(l Locker) *Reconciler {
	r.locker = l
	return r
}

// WithGrace sets how old a tombstone must be before a sweep completes it.
// In-flight deletes finish on their own within the grace period.
func (r *Reconciler) WithGrace(grace time.Duration) *Reconciler {
	r.grace = grace
	return r
}

func (r *Reconciler) WithInterval(interval time.Duration) *Reconciler {
	if interval > 0 {
		r.interval = interval
	}
	return r
}

func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Run sweeps on every tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Reconciler started", zap.Duration("interval", r.interval), zap.Duration("grace", r.grace))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("Reconcile sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep completes stale tombstoned deletes, then purges orphan tasks.
// A failed purge is logged and retried by the next sweep.
func (r *Reconciler) Sweep(ctx context.Context) (Result, error) {
	var res Result

	if r.locker != nil {
		ok, err := r.locker.TryLock(ctx, lockName)
		if err != nil {
			r.logger.Warn("Reconcile lock unavailable, sweeping without it", zap.Error(err))
		} else if !ok {
			r.logger.Debug("Reconcile sweep already running elsewhere")
			res.Skipped = true
			return res, nil
		} else {
			defer r.locker.Unlock(context.WithoutCancel(ctx), lockName)
		}
	}

	ctx, span := otel.Tracer().Start(ctx, "reconcile.sweep")
	defer span.End()

	stale, err := r.projects.ListDeleting(ctx, r.now().Add(-r.grace))
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("list tombstoned projects: %w", err)
	}

	for _, p := range stale {
		log := r.logger.With(zap.String("project_id", p.ID.String()))

		removed, err := r.tasks.DeleteByProject(ctx, p.ID)
		if err != nil {
			log.Error("Failed to purge tasks of tombstoned project", zap.Error(err))
			res.FailedPurges++
			continue
		}
		if err := r.projects.Purge(ctx, p.ID, p.CreatedBy); err != nil {
			log.Error("Failed to purge tombstoned project", zap.Error(err))
			res.FailedPurges++
			continue
		}

		res.Projects++
		res.Tasks += removed
		log.Info("Completed interrupted project delete", zap.Int64("tasks_removed", removed))
	}

	orphans, err := r.tasks.DeleteOrphans(ctx)
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("delete orphan tasks: %w", err)
	}
	res.OrphanTasks = orphans

	metrics.AddReconciled("project", int64(res.Projects))
	metrics.AddReconciled("task", res.Tasks)
	metrics.AddReconciled("orphan_task", res.OrphanTasks)

	if res.Projects > 0 || res.OrphanTasks > 0 || res.FailedPurges > 0 {
		r.logger.Info("Reconcile sweep finished",
			zap.Int("projects", res.Projects),
			zap.Int64("tasks", res.Tasks),
			zap.Int64("orphan_tasks", res.OrphanTasks),
			zap.Int("failed", res.FailedPurges),
		)
	}
	return res, nil
}
