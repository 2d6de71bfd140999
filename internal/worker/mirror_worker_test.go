package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"moneytrack/internal/amqp"
	"moneytrack/internal/core"
	"moneytrack/internal/ports"
	"moneytrack/internal/storage/memory"
)

type fakeMirror struct {
	mu       sync.Mutex
	rows     map[string]core.Transaction
	replaced int
	failNext error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{rows: map[string]core.Transaction{}}
}

func (m *fakeMirror) takeErr() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *fakeMirror) Upsert(_ context.Context, t core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	m.rows[t.ID] = t
	return nil
}

func (m *fakeMirror) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	delete(m.rows, id)
	return nil
}

func (m *fakeMirror) Replace(_ context.Context, ts []core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	m.rows = map[string]core.Transaction{}
	for _, t := range ts {
		m.rows[t.ID] = t
	}
	m.replaced++
	return nil
}

func (m *fakeMirror) snapshot() (map[string]core.Transaction, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]core.Transaction, len(m.rows))
	for k, v := range m.rows {
		out[k] = v
	}
	return out, m.replaced
}

func seed(t *testing.T, s *memory.Store, desc string) core.Transaction {
	t.Helper()
	amount := decimal.NewFromInt(10)
	typ := core.Expense
	tx, err := s.Create(context.Background(), core.Draft{Description: &desc, Amount: &amount, Type: &typ})
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mirror := newFakeMirror()
	w := NewMirrorWorker(store, mirror, 0, nil)

	tx := seed(t, store, "Coffee")
	if err := w.HandleEvent(ctx, &amqp.TransactionEvent{ID: tx.ID, Op: ports.OpCreated}); err != nil {
		t.Fatalf("created: %v", err)
	}
	rows, _ := mirror.snapshot()
	if rows[tx.ID].Description != "Coffee" {
		t.Fatalf("row not upserted: %+v", rows)
	}

	// Update events re-read the record, so the mirror sees the current value.
	desc := "Espresso"
	if _, err := store.Update(ctx, tx.ID, core.Patch{Description: &desc}); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleEvent(ctx, &amqp.TransactionEvent{ID: tx.ID, Op: ports.OpUpdated}); err != nil {
		t.Fatalf("updated: %v", err)
	}
	rows, _ = mirror.snapshot()
	if rows[tx.ID].Description != "Espresso" {
		t.Fatalf("row not updated: %+v", rows[tx.ID])
	}

	if err := w.HandleEvent(ctx, &amqp.TransactionEvent{ID: tx.ID, Op: ports.OpDeleted}); err != nil {
		t.Fatalf("deleted: %v", err)
	}
	rows, _ = mirror.snapshot()
	if _, ok := rows[tx.ID]; ok {
		t.Fatal("row not removed")
	}
}

func TestHandleEventForVanishedRecordRemovesRow(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mirror := newFakeMirror()
	w := NewMirrorWorker(store, mirror, 0, nil)

	mirror.rows["gone"] = core.Transaction{ID: "gone"}
	if err := w.HandleEvent(ctx, &amqp.TransactionEvent{ID: "gone", Op: ports.OpUpdated}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if rows, _ := mirror.snapshot(); len(rows) != 0 {
		t.Fatalf("stale row kept: %+v", rows)
	}
}

func TestHandleEventMirrorFailureRequestsRetry(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mirror := newFakeMirror()
	w := NewMirrorWorker(store, mirror, 0, nil)
	tx := seed(t, store, "Rent")

	mirror.failNext = errors.New("quota exceeded")
	if err := w.HandleEvent(ctx, &amqp.TransactionEvent{ID: tx.ID, Op: ports.OpCreated}); err == nil {
		t.Fatal("expected error so the event is requeued")
	}
	if err := w.HandleEvent(ctx, &amqp.TransactionEvent{ID: tx.ID, Op: ports.OpCreated}); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestResync(t *testing.T) {
	store := memory.New()
	a := seed(t, store, "A")
	b := seed(t, store, "B")
	mirror := newFakeMirror()
	mirror.rows["stale"] = core.Transaction{ID: "stale"}

	w := NewMirrorWorker(store, mirror, 0, nil)
	if err := w.Resync(context.Background()); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	rows, n := mirror.snapshot()
	if n != 1 || len(rows) != 2 {
		t.Fatalf("unexpected mirror %+v (replaced %d)", rows, n)
	}
	if _, ok := rows[a.ID]; !ok {
		t.Fatal("missing A")
	}
	if _, ok := rows[b.ID]; !ok {
		t.Fatal("missing B")
	}
}

type chanSource struct {
	events chan *amqp.TransactionEvent
	err    error
}

func (s *chanSource) ConsumeTransactionEvents(ctx context.Context, h amqp.EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-s.events:
			if !ok {
				return s.err
			}
			_ = h(ctx, e)
		}
	}
}

func TestRunConsumesAndResyncs(t *testing.T) {
	store := memory.New()
	tx := seed(t, store, "Salary")
	mirror := newFakeMirror()
	w := NewMirrorWorker(store, mirror, 10*time.Millisecond, nil)

	src := &chanSource{events: make(chan *amqp.TransactionEvent, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, src) }()

	src.events <- &amqp.TransactionEvent{ID: tx.ID, Op: ports.OpCreated}

	deadline := time.After(2 * time.Second)
	for {
		rows, n := mirror.snapshot()
		if _, ok := rows[tx.ID]; ok && n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker made no progress: rows=%v replaced=%d", rows, n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunStopsWhenConsumerFails(t *testing.T) {
	w := NewMirrorWorker(memory.New(), newFakeMirror(), time.Hour, nil)
	boom := errors.New("queue deleted")
	src := &chanSource{events: make(chan *amqp.TransactionEvent), err: boom}
	close(src.events)

	if err := w.Run(context.Background(), src); !errors.Is(err, boom) {
		t.Fatalf("Run = %v, want %v", err, boom)
	}
}
