package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
	"moneytrack/internal/ports"
)

var _ ports.TransactionStore = (*Store)(nil)

// Store keeps transactions in insertion order. It is the default backend for
// tests and for running without any database.
type Store struct {
	mu    sync.Mutex
	items []core.Transaction
	index map[string]int
	now   func() time.Time
	newID func() string
}

func New() *Store {
	return &Store{
		index: make(map[string]int),
		now:   core.Now,
		newID: core.NewID,
	}
}

type seedRecord struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        core.Type       `json:"type"`
	Date        time.Time       `json:"date"`
}

// NewFromFile seeds the store from a JSON array of records. A missing file
// yields an empty store; a malformed one is an error.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed []seedRecord
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	for i, r := range seed {
		t := core.Transaction{
			ID:          r.ID,
			Description: r.Description,
			Amount:      r.Amount,
			Type:        r.Type,
			Date:        r.Date.UTC(),
		}
		if t.ID == "" {
			t.ID = s.newID()
		} else if id, err := core.ParseID(t.ID); err != nil {
			return nil, fmt.Errorf("seed record %d: %w: %s", i, err, t.ID)
		} else {
			t.ID = id
		}
		if t.Date.IsZero() {
			t.Date = s.now()
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("seed record %d: %w", i, err)
		}
		if _, dup := s.index[t.ID]; dup {
			return nil, fmt.Errorf("seed record %d: duplicate id %s", i, t.ID)
		}
		s.index[t.ID] = len(s.items)
		s.items = append(s.items, t)
	}
	return s, nil
}

func (s *Store) List(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...), nil
}

func (s *Store) Create(_ context.Context, d core.Draft) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	for {
		if _, taken := s.index[id]; !taken {
			break
		}
		id = s.newID()
	}
	t, err := d.Build(id, s.now())
	if err != nil {
		return core.Transaction{}, err
	}
	s.index[t.ID] = len(s.items)
	s.items = append(s.items, t)
	return t, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return s.items[i], nil
}

func (s *Store) Update(_ context.Context, id string, p core.Patch) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	t, err := p.Apply(s.items[i])
	if err != nil {
		return core.Transaction{}, err
	}
	s.items[i] = t
	return t, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return core.ErrNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ID] = j
	}
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }
