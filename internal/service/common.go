package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/apperr"
	"taskboard/pkg/logger"
	"taskboard/pkg/metrics"
	"taskboard/pkg/trace"
)

// record counts the outcome of a board operation.
func record(op string, err error) {
	metrics.IncrementBoardOperation(op, outcome(err))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "validation"
	case apperr.KindUnauthorized:
		return "unauthorized"
	case apperr.KindForbidden:
		return "forbidden"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindConflict:
		return "conflict"
	default:
		return "error"
	}
}

// storeErr keeps NotFound/Conflict from the store with the caller's message
// and turns everything else into Internal.
func storeErr(err error, notFoundMsg, action string) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return apperr.NotFound(notFoundMsg)
	case apperr.KindConflict, apperr.KindForbidden, apperr.KindValidation:
		return err
	default:
		return apperr.Internal("failed to "+action, err)
	}
}

// notify records activity; a failure is logged and swallowed.
func notify(ctx context.Context, n Notifier, log *zap.Logger, routingKey string, aggregateID uuid.UUID, payload any) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, routingKey, aggregateID, payload); err != nil {
		logger.WithTrace(ctx, log).Warn("Failed to record board activity",
			zap.String("routing_key", routingKey),
			zap.String("aggregate_id", aggregateID.String()),
			zap.Error(err),
		)
	}
}

func traceID(ctx context.Context) string {
	return trace.FromContext(ctx)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

type clock func() time.Time
