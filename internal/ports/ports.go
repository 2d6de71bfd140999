// Package ports declares the interfaces the application core needs from its
// outbound adapters.
package ports

import (
	"context"

	"moneytrack/internal/core"
)

type (
	// TransactionStore owns the authoritative record set.
	TransactionStore interface {
		// List returns every record in natural storage order.
		List(ctx context.Context) ([]core.Transaction, error)
		// Create validates the draft, assigns a fresh id and persists it.
		Create(ctx context.Context, d core.Draft) (core.Transaction, error)
		// Get returns core.ErrNotFound when id is unknown.
		Get(ctx context.Context, id string) (core.Transaction, error)
		// Update replaces the patched fields and returns the full record.
		Update(ctx context.Context, id string, p core.Patch) (core.Transaction, error)
		// Delete removes the record permanently.
		Delete(ctx context.Context, id string) error
		// Ping reports core.ErrStoreUnavailable when the store cannot be reached.
		Ping(ctx context.Context) error
		Close() error
	}

	// ChangeNotifier receives confirmed mutations. Errors are logged by the
	// caller and never undo the mutation.
	ChangeNotifier interface {
		Notify(ctx context.Context, c Change) error
	}
)

// Op names a kind of mutation.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change describes one confirmed mutation.
type Change struct {
	Op Op
	ID string
}
