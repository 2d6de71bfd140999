package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
	"moneytrack/internal/ledger"
	"moneytrack/internal/ports"
	"moneytrack/internal/storage/memory"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []ports.Change
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, c ports.Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
	return n.err
}

func (n *recordingNotifier) got() []ports.Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ports.Change(nil), n.changes...)
}

func draft(desc, amount string, typ core.Type) core.Draft {
	a := decimal.RequireFromString(amount)
	return core.Draft{Description: &desc, Amount: &a, Type: &typ}
}

func TestTransactionService_SalaryRentScenario(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	svc := NewTransactionService(memory.New(), nil, n)

	salary, err := svc.Create(ctx, draft("Salary", "3000", core.Income))
	if err != nil {
		t.Fatalf("create salary: %v", err)
	}
	rent, err := svc.Create(ctx, draft("Rent", "1200", core.Expense))
	if err != nil {
		t.Fatalf("create rent: %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %v %v", list, err)
	}
	if got := ledger.AvailableBalance(list); !got.Equal(decimal.NewFromInt(1800)) {
		t.Fatalf("balance = %s, want 1800", got)
	}

	amount := decimal.NewFromInt(1500)
	if _, err := svc.Update(ctx, rent.ID, core.Patch{Amount: &amount}); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, _ = svc.List(ctx)
	if got := ledger.AvailableBalance(list); !got.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("balance = %s, want 1500", got)
	}

	if err := svc.Delete(ctx, salary.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = svc.List(ctx)
	if got := ledger.AvailableBalance(list); !got.Equal(decimal.NewFromInt(-1500)) {
		t.Fatalf("balance = %s, want -1500", got)
	}

	want := []ports.Change{
		{Op: ports.OpCreated, ID: salary.ID},
		{Op: ports.OpCreated, ID: rent.ID},
		{Op: ports.OpUpdated, ID: rent.ID},
		{Op: ports.OpDeleted, ID: salary.ID},
	}
	got := n.got()
	if len(got) != len(want) {
		t.Fatalf("changes = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTransactionService_FailuresDoNotNotify(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	svc := NewTransactionService(memory.New(), nil, n)

	if _, err := svc.Create(ctx, core.Draft{}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Update(ctx, core.NewID(), core.Patch{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(ctx, core.NewID()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(n.got()) != 0 {
		t.Fatalf("failed mutations must not notify: %+v", n.got())
	}
}

func TestTransactionService_EmptyPatchReturnsRecordWithoutChange(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	svc := NewTransactionService(memory.New(), nil, n)

	created, err := svc.Create(ctx, draft("Coffee", "3.50", core.Expense))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := svc.Update(ctx, created.ID, core.Patch{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ID != created.ID || got.Description != "Coffee" || !got.Amount.Equal(created.Amount) || !got.Date.Equal(created.Date) {
		t.Fatalf("empty patch changed the record: %+v", got)
	}
	if changes := n.got(); len(changes) != 1 || changes[0].Op != ports.OpCreated {
		t.Fatalf("empty patch must not announce a change: %+v", changes)
	}
}

func TestTransactionService_NotifierErrorDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	broken := &recordingNotifier{err: errors.New("broker down")}
	after := &recordingNotifier{}
	svc := NewTransactionService(memory.New(), nil, broken)
	svc.AddNotifier(after)

	if _, err := svc.Create(ctx, draft("Coffee", "3.50", core.Expense)); err != nil {
		t.Fatalf("create should succeed despite notifier error: %v", err)
	}
	if len(after.got()) != 1 {
		t.Fatal("later notifiers must still be called")
	}
}

// slowStore blocks List until released so concurrent callers overlap.
type slowStore struct {
	ports.TransactionStore
	calls   atomic.Int32
	release chan struct{}
}

func (s *slowStore) List(ctx context.Context) ([]core.Transaction, error) {
	s.calls.Add(1)
	<-s.release
	return s.TransactionStore.List(ctx)
}

func TestTransactionService_ListCoalescesConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	if _, err := base.Create(ctx, draft("Salary", "10", core.Income)); err != nil {
		t.Fatal(err)
	}
	store := &slowStore{TransactionStore: base, release: make(chan struct{})}
	svc := NewTransactionService(store, nil)

	const callers = 5
	results := make(chan []core.Transaction, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := svc.List(ctx)
			if err != nil {
				t.Error(err)
			}
			results <- list
		}()
	}

	// Let every goroutine reach the in-flight call before releasing it.
	deadline := time.After(2 * time.Second)
	for store.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("List never reached the store")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()
	close(results)

	if n := store.calls.Load(); n >= callers {
		t.Errorf("store List called %d times, want fewer than %d", n, callers)
	}
	var first []core.Transaction
	for list := range results {
		if len(list) != 1 {
			t.Fatalf("unexpected list %+v", list)
		}
		if first == nil {
			first = list
			continue
		}
		list[0].Description = "mutated"
		if first[0].Description != "Salary" {
			t.Fatal("callers must not share the result slice")
		}
	}
}
