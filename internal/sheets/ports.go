package sheets

import (
	"context"

	"moneytrack/internal/core"
)

// Mirror is a write-only replica of the transaction set kept outside the
// application, such as a spreadsheet. Rows are keyed by transaction id.
type Mirror interface {
	// Upsert writes t into its existing row or appends a new one.
	Upsert(ctx context.Context, t core.Transaction) error
	// Remove deletes the row for id. A missing row is not an error.
	Remove(ctx context.Context, id string) error
	// Replace rewrites the whole replica from ts, in order.
	Replace(ctx context.Context, ts []core.Transaction) error
}
