package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"moneytrack/internal/core"
	"moneytrack/internal/log"
	"moneytrack/internal/ports"
)

// TransactionService is the single entry point for reading and mutating
// transactions. Every confirmed mutation is announced to the notifiers.
type TransactionService struct {
	store     ports.TransactionStore
	notifiers []ports.ChangeNotifier
	logger    *log.Logger
	events    *log.StructuredLogger
	lists     singleflight.Group
}

func NewTransactionService(store ports.TransactionStore, logger *log.Logger, notifiers ...ports.ChangeNotifier) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentTransaction)
	return &TransactionService{
		store:     store,
		notifiers: notifiers,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
	}
}

// AddNotifier registers n for every later mutation. Not safe to call while serving.
func (s *TransactionService) AddNotifier(n ports.ChangeNotifier) {
	if n != nil {
		s.notifiers = append(s.notifiers, n)
	}
}

// List returns every transaction in storage order. Concurrent calls share one
// store round trip; each caller gets its own slice.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	v, err, _ := s.lists.Do("list", func() (any, error) {
		return s.store.List(ctx)
	})
	if err != nil {
		s.logError(ctx, "List transactions failed", err, log.OpList)
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	shared := v.([]core.Transaction)
	return append(make([]core.Transaction, 0, len(shared)), shared...), nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *TransactionService) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	t, err := s.store.Create(ctx, d)
	if err != nil {
		s.logError(ctx, "Create transaction failed", err, log.OpCreate)
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.events.LogTransaction(ctx, log.OpCreate, t.ID, t.Description, t.Amount.String(), t.Type.String())
	s.notify(ctx, ports.Change{Op: ports.OpCreated, ID: t.ID})
	return t, nil
}

func (s *TransactionService) Update(ctx context.Context, id string, p core.Patch) (core.Transaction, error) {
	// Nothing to change: report the stored record without a change event.
	if p.IsEmpty() {
		return s.Get(ctx, id)
	}
	t, err := s.store.Update(ctx, id, p)
	if err != nil {
		s.logError(ctx, "Update transaction failed", err, log.OpUpdate, log.FieldTransactionID, id)
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.events.LogTransaction(ctx, log.OpUpdate, t.ID, t.Description, t.Amount.String(), t.Type.String())
	s.notify(ctx, ports.Change{Op: ports.OpUpdated, ID: t.ID})
	return t, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.logError(ctx, "Delete transaction failed", err, log.OpDelete, log.FieldTransactionID, id)
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTransactionID, id)
	s.notify(ctx, ports.Change{Op: ports.OpDeleted, ID: id})
	return nil
}

// Ping reports whether the store is reachable.
func (s *TransactionService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *TransactionService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

func (s *TransactionService) notify(ctx context.Context, c ports.Change) {
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, c); err != nil {
			// The mutation is already persisted; listeners catch up on the next resync.
			s.logger.WarnContext(ctx, "Change notification failed",
				log.FieldError, err,
				log.FieldOperation, string(c.Op),
				log.FieldTransactionID, c.ID)
		}
	}
}

func (s *TransactionService) logError(ctx context.Context, msg string, err error, op string, args ...any) {
	fields := log.NewFields().With(args...)
	errType := log.ErrorTypeInternal
	switch {
	case errors.Is(err, core.ErrValidation):
		errType = log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		errType = log.ErrorTypeNotFound
	case errors.Is(err, core.ErrStoreUnavailable):
		errType = log.ErrorTypeDatabase
	}
	fields = fields.WithError(err, errType).WithOperation(op)

	if errType == log.ErrorTypeValidation || errType == log.ErrorTypeNotFound {
		s.logger.WarnContext(ctx, msg, fields...)
		return
	}
	s.logger.ErrorContext(ctx, msg, fields...)
}
