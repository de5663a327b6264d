package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Notification is one recorded Notify call.
type Notification struct {
	RoutingKey  string
	AggregateID uuid.UUID
	Payload     any
}

// Recorder is a service.Notifier that keeps every notification.
type Recorder struct {
	mu    sync.Mutex
	Err   error
	items []Notification
}

func (r *Recorder) Notify(_ context.Context, routingKey string, aggregateID uuid.UUID, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.items = append(r.items, Notification{RoutingKey: routingKey, AggregateID: aggregateID, Payload: payload})
	return nil
}

// Keys returns the recorded routing keys in order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.items))
	for _, n := range r.items {
		keys = append(keys, n.RoutingKey)
	}
	return keys
}
