package outbox

import (
	"context"
	"encoding/json"
	"fmt"
)

// InsertEventInTx 序列化 payload 并插入 outbox（辅助函数）
func InsertEventInTx(
	ctx context.Context,
	exec Executor,
	repo *Repository,
	aggregateType string,
	aggregateID string,
	routingKey string,
	payload interface{},
) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", routingKey, err)
	}

	event := &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}

	return repo.InsertEvent(ctx, exec, event)
}
