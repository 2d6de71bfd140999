package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"moneytrack/internal/amqp"
	"moneytrack/internal/core"
	"moneytrack/internal/log"
	"moneytrack/internal/ports"
	"moneytrack/internal/sheets"
)

// RecordReader is the read side of the record store.
type RecordReader interface {
	List(ctx context.Context) ([]core.Transaction, error)
	Get(ctx context.Context, id string) (core.Transaction, error)
}

// EventSource delivers transaction events until ctx ends.
type EventSource interface {
	ConsumeTransactionEvents(ctx context.Context, handler amqp.EventHandler) error
}

// MirrorWorker keeps a sheets.Mirror in step with the record store. Events
// carry only ids, so every write reads the current record first; a record
// that no longer exists is removed from the mirror whatever the event said.
type MirrorWorker struct {
	store    RecordReader
	mirror   sheets.Mirror
	interval time.Duration
	logger   *log.Logger
}

func NewMirrorWorker(store RecordReader, mirror sheets.Mirror, interval time.Duration, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		store:    store,
		mirror:   mirror,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent applies one event. A returned error asks for redelivery.
func (w *MirrorWorker) HandleEvent(ctx context.Context, e *amqp.TransactionEvent) error {
	if e.Op == ports.OpDeleted {
		return w.remove(ctx, e.ID)
	}

	t, err := w.store.Get(ctx, e.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted after the event was published.
		return w.remove(ctx, e.ID)
	}
	if err != nil {
		return fmt.Errorf("read transaction %s: %w", e.ID, err)
	}
	if err := w.mirror.Upsert(ctx, t); err != nil {
		return fmt.Errorf("mirror transaction %s: %w", e.ID, err)
	}
	w.logger.InfoContext(ctx, "Transaction mirrored",
		log.FieldTransactionID, t.ID,
		log.FieldOperation, string(e.Op))
	return nil
}

func (w *MirrorWorker) remove(ctx context.Context, id string) error {
	if err := w.mirror.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove transaction %s from mirror: %w", id, err)
	}
	w.logger.InfoContext(ctx, "Transaction removed from mirror", log.FieldTransactionID, id)
	return nil
}

// Resync rewrites the mirror from the full record set.
func (w *MirrorWorker) Resync(ctx context.Context) error {
	ts, err := w.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if err := w.mirror.Replace(ctx, ts); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirror resynced", log.FieldCount, len(ts))
	return nil
}

// Run consumes events from source (when not nil) and resyncs every interval
// until ctx is cancelled or the consumer fails.
func (w *MirrorWorker) Run(ctx context.Context, source EventSource) error {
	g, gctx := errgroup.WithContext(ctx)

	if source != nil {
		g.Go(func() error {
			return source.ConsumeTransactionEvents(gctx, w.HandleEvent)
		})
	}
	g.Go(func() error {
		return w.resyncLoop(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *MirrorWorker) resyncLoop(ctx context.Context) error {
	w.resyncLogged(ctx)
	if w.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.resyncLogged(ctx)
		}
	}
}

func (w *MirrorWorker) resyncLogged(ctx context.Context) {
	if err := w.Resync(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Mirror resync failed",
			log.FieldError, err,
			log.FieldOperation, log.OpSync)
	}
}
