package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "taskboard/contracts/mq"
	"taskboard/pkg/logger"
)

const (
	projectDeletedHandlerName = "project_deleted_purge"
	defaultMaxRetries         = 5
)

// ErrRetriesExhausted is returned once a message has failed too often; the
// consumer treats it as non-retryable and dead-letters the message.
var ErrRetriesExhausted = errors.New("retries exhausted")

// TaskPurger removes every task of a project.
type TaskPurger interface {
	DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
}

// Deduper guards against redelivered messages.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, key string) bool
	Release(ctx context.Context, handler, key string)
}

// RetryCounter counts failed deliveries of one message.
type RetryCounter interface {
	IncrementAndGet(ctx context.Context, handler, key string) (int64, error)
	Reset(ctx context.Context, handler, key string) error
}

// ProjectDeletedHandler purges tasks created by requests that passed the
// membership check just before the project was tombstoned.
type ProjectDeletedHandler struct {
	tasks      TaskPurger
	deduper    Deduper
	retries    RetryCounter
	maxRetries int64
	logger     *zap.Logger
}

func NewProjectDeletedHandler(tasks TaskPurger, deduper Deduper, logger *zap.Logger) *ProjectDeletedHandler {
	return &ProjectDeletedHandler{
		tasks:      tasks,
		deduper:    deduper,
		maxRetries: defaultMaxRetries,
		logger:     logger,
	}
}

// WithRetryCounter caps redeliveries of a failing message at max attempts.
func (h *ProjectDeletedHandler) WithRetryCounter(rc RetryCounter, max int) *ProjectDeletedHandler {
	h.retries = rc
	if max > 0 {
		h.maxRetries = int64(max)
	}
	return h
}

// Handle is an mq.MessageHandler for project.deleted.
func (h *ProjectDeletedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.ProjectDeletedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal project deleted payload", zap.Error(err))
		return err
	}
	projectID, err := uuid.Parse(p.ProjectID)
	if err != nil {
		return fmt.Errorf("invalid project id %q: %w", p.ProjectID, err)
	}

	log := logger.WithTrace(ctx, h.logger).With(zap.String("project_id", p.ProjectID))

	if h.deduper != nil && !h.deduper.AcquireOnce(ctx, projectDeletedHandlerName, p.ProjectID) {
		return nil
	}

	removed, err := h.tasks.DeleteByProject(ctx, projectID)
	if err != nil {
		if h.deduper != nil {
			h.deduper.Release(ctx, projectDeletedHandlerName, p.ProjectID)
		}
		log.Error("Failed to purge tasks of deleted project", zap.Error(err))
		return h.checkRetries(ctx, log, p.ProjectID, err)
	}
	if h.retries != nil {
		if err := h.retries.Reset(ctx, projectDeletedHandlerName, p.ProjectID); err != nil {
			log.Warn("Failed to reset retry counter", zap.Error(err))
		}
	}

	if removed > 0 {
		log.Warn("Purged tasks left behind by project delete", zap.Int64("tasks_removed", removed))
	} else {
		log.Info("Project deleted event processed")
	}
	return nil
}

func (h *ProjectDeletedHandler) checkRetries(ctx context.Context, log *zap.Logger, key string, cause error) error {
	if h.retries == nil {
		return cause
	}
	n, err := h.retries.IncrementAndGet(ctx, projectDeletedHandlerName, key)
	if err != nil {
		log.Warn("Failed to count retry", zap.Error(err))
		return cause
	}
	if n >= h.maxRetries {
		log.Error("Giving up on project deleted event", zap.Int64("attempts", n))
		// cause 不再包装：分类器需将其视为不可重试
		return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, n, cause)
	}
	return cause
}
