package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "taskboard/contracts/mq"
	"taskboard/pkg/util"
)

type fakePurger struct {
	calls []uuid.UUID
	err   error
}

func (f *fakePurger) DeleteByProject(_ context.Context, id uuid.UUID) (int64, error) {
	f.calls = append(f.calls, id)
	return 2, f.err
}

type memDeduper struct {
	seen     map[string]bool
	released []string
}

func (d *memDeduper) AcquireOnce(_ context.Context, handler, key string) bool {
	k := handler + ":" + key
	if d.seen[k] {
		return false
	}
	d.seen[k] = true
	return true
}

func (d *memDeduper) Release(_ context.Context, handler, key string) {
	delete(d.seen, handler+":"+key)
	d.released = append(d.released, key)
}

type memRetries map[string]int64

func (m memRetries) IncrementAndGet(_ context.Context, handler, key string) (int64, error) {
	m[handler+":"+key]++
	return m[handler+":"+key], nil
}

func (m memRetries) Reset(_ context.Context, handler, key string) error {
	delete(m, handler+":"+key)
	return nil
}

func payload(t *testing.T, projectID string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(mqcontracts.ProjectDeletedPayload{ProjectID: projectID})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestProjectDeletedHandlerPurgesOnce(t *testing.T) {
	purger := &fakePurger{}
	dedup := &memDeduper{seen: map[string]bool{}}
	h := NewProjectDeletedHandler(purger, dedup, zap.NewNop())
	id := uuid.New()

	for i := 0; i < 2; i++ {
		if err := h.Handle(context.Background(), payload(t, id.String())); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	if len(purger.calls) != 1 || purger.calls[0] != id {
		t.Errorf("expected a single purge of %s, got %v", id, purger.calls)
	}
}

func TestProjectDeletedHandlerReleasesOnFailure(t *testing.T) {
	purger := &fakePurger{err: errors.New("db down")}
	dedup := &memDeduper{seen: map[string]bool{}}
	h := NewProjectDeletedHandler(purger, dedup, zap.NewNop())
	id := uuid.New().String()

	if err := h.Handle(context.Background(), payload(t, id)); err == nil {
		t.Fatal("expected error")
	}
	if len(dedup.released) != 1 {
		t.Fatal("dedup marker kept after failure; redelivery would be skipped")
	}

	purger.err = nil
	if err := h.Handle(context.Background(), payload(t, id)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(purger.calls) != 2 {
		t.Errorf("expected retry to purge again, got %d calls", len(purger.calls))
	}
}

func TestProjectDeletedHandlerRejectsBadPayload(t *testing.T) {
	h := NewProjectDeletedHandler(&fakePurger{}, nil, zap.NewNop())

	if err := h.Handle(context.Background(), json.RawMessage(`{`)); err == nil {
		t.Error("expected unmarshal error")
	}
	if err := h.Handle(context.Background(), payload(t, "not-a-uuid")); err == nil {
		t.Error("expected invalid id error")
	}
}

func TestProjectDeletedHandlerGivesUpAfterMaxRetries(t *testing.T) {
	purger := &fakePurger{err: context.DeadlineExceeded}
	retries := memRetries{}
	h := NewProjectDeletedHandler(purger, nil, zap.NewNop()).WithRetryCounter(retries, 3)
	id := uuid.New().String()

	for i := 1; i <= 2; i++ {
		err := h.Handle(context.Background(), payload(t, id))
		if retryable, _ := util.IsRetryableError(err); !retryable {
			t.Fatalf("attempt %d: expected retryable error, got %v", i, err)
		}
	}

	err := h.Handle(context.Background(), payload(t, id))
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if retryable, _ := util.IsRetryableError(err); retryable {
		t.Error("exhausted message must be dead-lettered, not requeued")
	}
}

func TestProjectDeletedHandlerResetsRetriesOnSuccess(t *testing.T) {
	purger := &fakePurger{err: errors.New("db down")}
	retries := memRetries{}
	h := NewProjectDeletedHandler(purger, nil, zap.NewNop()).WithRetryCounter(retries, 3)
	id := uuid.New().String()

	_ = h.Handle(context.Background(), payload(t, id))
	purger.err = nil
	if err := h.Handle(context.Background(), payload(t, id)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(retries) != 0 {
		t.Errorf("expected counter reset, got %v", retries)
	}
}
