// Package memory provides a sheets.Mirror kept in process memory. The worker
// uses it when no spreadsheet is configured, so the event and resync path
// can run locally without Google credentials.
package memory

import (
	"context"
	"slices"
	"sync"

	"moneytrack/internal/core"
	"moneytrack/internal/log"
	"moneytrack/internal/sheets"
)

var _ sheets.Mirror = (*Mirror)(nil)

// Mirror holds the replicated rows in sheet order.
type Mirror struct {
	mu     sync.Mutex
	rows   []core.Transaction
	logger *log.Logger
}

func New(logger *log.Logger) *Mirror {
	if logger == nil {
		logger = log.Discard()
	}
	return &Mirror{logger: logger.WithComponent(log.ComponentSheets)}
}

func (m *Mirror) index(id string) int {
	return slices.IndexFunc(m.rows, func(t core.Transaction) bool { return t.ID == id })
}

// Upsert overwrites the row for t.ID in place or appends a new one.
func (m *Mirror) Upsert(ctx context.Context, t core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(t.ID); i >= 0 {
		m.rows[i] = t
	} else {
		m.rows = append(m.rows, t)
	}
	m.logger.DebugContext(ctx, "Mirrored row",
		log.FieldTransactionID, t.ID,
		log.FieldAmount, core.FormatAmount(t.Amount))
	return nil
}

func (m *Mirror) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		m.rows = slices.Delete(m.rows, i, i+1)
		m.logger.DebugContext(ctx, "Removed mirrored row", log.FieldTransactionID, id)
	}
	return nil
}

func (m *Mirror) Replace(ctx context.Context, ts []core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = slices.Clone(ts)
	m.logger.DebugContext(ctx, "Replaced mirror", log.FieldCount, len(ts))
	return nil
}

// Rows returns a copy of the current rows in order.
func (m *Mirror) Rows() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rows)
}
