package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"triconnect/contracts/mq"
	"triconnect/internal/model"
)

type fakeEventStore struct {
	events map[int64]*model.Event
	err    error
}

func (f *fakeEventStore) FindByID(_ context.Context, id int64) (*model.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.events[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

type fakeAnnouncer struct {
	calls int
	err   error
}

func (f *fakeAnnouncer) Announce(_ context.Context, _ *model.Event) error {
	f.calls++
	return f.err
}

type fakeDeduper struct {
	held     map[string]bool
	released []string
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{held: make(map[string]bool)}
}

func (f *fakeDeduper) AcquireOnce(_ context.Context, key string) bool {
	if f.held[key] {
		return false
	}
	f.held[key] = true
	return true
}

func (f *fakeDeduper) Release(_ context.Context, key string) {
	delete(f.held, key)
	f.released = append(f.released, key)
}

type fakeRetryCounter struct {
	counts map[string]int64
	resets []string
}

func newFakeRetryCounter() *fakeRetryCounter {
	return &fakeRetryCounter{counts: make(map[string]int64)}
}

func (f *fakeRetryCounter) IncrementAndGet(_ context.Context, key string) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRetryCounter) Reset(_ context.Context, key string) error {
	delete(f.counts, key)
	f.resets = append(f.resets, key)
	return nil
}

func payloadBytes(t *testing.T, eventID int64) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(mq.EventCreatedPayload{
		EventID:   eventID,
		Title:     "Expo",
		Sector:    model.SectorIndustry,
		EventDate: time.Now().Add(48 * time.Hour),
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newHandler(es *fakeEventStore, an *fakeAnnouncer, dd *fakeDeduper, rc *fakeRetryCounter) *EventCreatedHandler {
	return NewEventCreatedHandler(es, an, dd, rc, 3, zap.NewNop())
}

func TestHandleTriggersFanout(t *testing.T) {
	es := &fakeEventStore{events: map[int64]*model.Event{
		42: {ID: 42, Title: "Expo", Sector: model.SectorIndustry},
	}}
	an := &fakeAnnouncer{}
	h := newHandler(es, an, newFakeDeduper(), newFakeRetryCounter())

	if err := h.Handle(context.Background(), payloadBytes(t, 42)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if an.calls != 1 {
		t.Fatalf("Announce called %d times, want 1", an.calls)
	}
}

func TestHandleAcksMalformedMessage(t *testing.T) {
	an := &fakeAnnouncer{}
	h := newHandler(&fakeEventStore{}, an, newFakeDeduper(), newFakeRetryCounter())

	if err := h.Handle(context.Background(), json.RawMessage(`{not json`)); err != nil {
		t.Fatalf("malformed message should be acked, got error %v", err)
	}
	if an.calls != 0 {
		t.Fatal("Announce should not run for malformed message")
	}
}

func TestHandleSkipsDuplicate(t *testing.T) {
	es := &fakeEventStore{events: map[int64]*model.Event{
		42: {ID: 42, Sector: model.SectorIndustry},
	}}
	an := &fakeAnnouncer{}
	h := newHandler(es, an, newFakeDeduper(), newFakeRetryCounter())

	if err := h.Handle(context.Background(), payloadBytes(t, 42)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if err := h.Handle(context.Background(), payloadBytes(t, 42)); err != nil {
		t.Fatalf("duplicate Handle() error = %v", err)
	}
	if an.calls != 1 {
		t.Fatalf("Announce called %d times for duplicate delivery, want 1", an.calls)
	}
}

func TestHandleAcksMissingEvent(t *testing.T) {
	an := &fakeAnnouncer{}
	h := newHandler(&fakeEventStore{events: map[int64]*model.Event{}}, an, newFakeDeduper(), newFakeRetryCounter())

	if err := h.Handle(context.Background(), payloadBytes(t, 99)); err != nil {
		t.Fatalf("missing event should be acked, got error %v", err)
	}
	if an.calls != 0 {
		t.Fatal("Announce should not run for missing event")
	}
}

func TestHandleRetryableFailureNacksAndReleasesDedup(t *testing.T) {
	es := &fakeEventStore{events: map[int64]*model.Event{
		42: {ID: 42, Sector: model.SectorIndustry},
	}}
	an := &fakeAnnouncer{err: errors.New("connection refused")}
	dd := newFakeDeduper()
	h := newHandler(es, an, dd, newFakeRetryCounter())

	if err := h.Handle(context.Background(), payloadBytes(t, 42)); err == nil {
		t.Fatal("retryable failure should return an error to trigger nack")
	}
	if len(dd.released) != 1 {
		t.Fatalf("dedup key should be released for requeue, released %d keys", len(dd.released))
	}

	// 重投后应能再次处理
	an.err = nil
	if err := h.Handle(context.Background(), payloadBytes(t, 42)); err != nil {
		t.Fatalf("redelivery Handle() error = %v", err)
	}
	if an.calls != 2 {
		t.Fatalf("Announce called %d times, want 2", an.calls)
	}
}

func TestHandleGivesUpAfterMaxRetries(t *testing.T) {
	es := &fakeEventStore{events: map[int64]*model.Event{
		42: {ID: 42, Sector: model.SectorIndustry},
	}}
	an := &fakeAnnouncer{err: errors.New("connection refused")}
	dd := newFakeDeduper()
	rc := newFakeRetryCounter()
	h := newHandler(es, an, dd, rc)

	var lastErr error
	for i := 0; i < 4; i++ {
		lastErr = h.Handle(context.Background(), payloadBytes(t, 42))
		if lastErr != nil {
			// nack 路径释放了去重键，模拟重投
			continue
		}
	}
	if lastErr != nil {
		t.Fatalf("expected final attempt to be acked after max retries, got %v", lastErr)
	}
}

func TestHandlePermanentFailureAcksImmediately(t *testing.T) {
	es := &fakeEventStore{events: map[int64]*model.Event{
		42: {ID: 42, Sector: model.SectorIndustry},
	}}
	an := &fakeAnnouncer{err: errors.New("provider not configured")}
	h := newHandler(es, an, newFakeDeduper(), newFakeRetryCounter())

	if err := h.Handle(context.Background(), payloadBytes(t, 42)); err != nil {
		t.Fatalf("permanent failure should be acked, got %v", err)
	}
	if an.calls != 1 {
		t.Fatalf("Announce called %d times, want 1", an.calls)
	}
}
