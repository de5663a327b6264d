// Package events records board activity as outbox events.
package events

import (
	"context"
	"strings"

	"github.com/google/uuid"

	mqcontracts "taskboard/contracts/mq"
	"taskboard/pkg/outbox"
)

// OutboxNotifier writes activity to the outbox; the dispatcher publishes it.
type OutboxNotifier struct {
	repo *outbox.Repository
}

func NewOutboxNotifier(repo *outbox.Repository) *OutboxNotifier {
	return &OutboxNotifier{repo: repo}
}

func (n *OutboxNotifier) Notify(ctx context.Context, routingKey string, aggregateID uuid.UUID, payload any) error {
	return outbox.InsertEventInTx(ctx, nil, n.repo, AggregateType(routingKey), aggregateID.String(), routingKey, payload)
}

// AggregateType derives the aggregate from a routing key ("task.moved" -> "task").
// Comments belong to their task; a bulk reorder is keyed by its project.
func AggregateType(routingKey string) string {
	switch routingKey {
	case mqcontracts.RoutingCommentAdded:
		return "task"
	case mqcontracts.RoutingTasksReordered:
		return "project"
	}
	kind, _, _ := strings.Cut(routingKey, ".")
	return kind
}

// Nop discards activity; used when messaging is disabled.
type Nop struct{}

func (Nop) Notify(context.Context, string, uuid.UUID, any) error { return nil }
