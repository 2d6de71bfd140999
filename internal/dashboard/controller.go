// Package dashboard holds the view-side state of the tracker: a local copy of
// the records, the budget monitor and the search text. Every mutation goes
// through a Gateway and the local copy changes only after it succeeds.
package dashboard

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"moneytrack/internal/budget"
	"moneytrack/internal/core"
	"moneytrack/internal/ledger"
	"moneytrack/internal/log"
)

// Gateway is the remote record store as the view sees it. Both the
// in-process service and the HTTP client satisfy it.
type Gateway interface {
	List(ctx context.Context) ([]core.Transaction, error)
	Create(ctx context.Context, d core.Draft) (core.Transaction, error)
	Update(ctx context.Context, id string, p core.Patch) (core.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// Outcome reports the side effects of an action that the UI must show.
// ID is the record the action created, when it created one.
type Outcome struct {
	Advisories []budget.Advisory
	ID         string
}

func outcome(a *budget.Advisory) Outcome {
	if a == nil {
		return Outcome{}
	}
	return Outcome{Advisories: []budget.Advisory{*a}}
}

// Snapshot is everything the page renders. Totals and the chart always cover
// the full record set; only Records is filtered.
type Snapshot struct {
	Records []core.Transaction
	Count   int
	Search  string
	Summary ledger.Summary
	Series  ledger.Series
	Budget  budget.State
}

type Controller struct {
	gw     Gateway
	logger *log.Logger

	mu      sync.Mutex
	records []core.Transaction
	monitor *budget.Monitor
	search  string
}

func NewController(gw Gateway, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Discard()
	}
	return &Controller{
		gw:      gw,
		logger:  logger.WithComponent(log.ComponentDashboard),
		records: []core.Transaction{},
		monitor: budget.NewMonitor(),
	}
}

// Load replaces the local copy with the gateway's current record set.
func (c *Controller) Load(ctx context.Context) (Outcome, error) {
	records, err := c.gw.List(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Loading transactions failed", log.FieldError, err)
		return Outcome{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append([]core.Transaction{}, records...)
	return c.recomputeLocked(), nil
}

// Add creates a transaction from form input. Blank description or amount is
// rejected before any request is made.
func (c *Controller) Add(ctx context.Context, description, amountText string, typ core.Type) (Outcome, error) {
	if strings.TrimSpace(description) == "" {
		return Outcome{}, &core.ValidationError{Field: "description", Reason: "is required"}
	}
	if strings.TrimSpace(amountText) == "" {
		return Outcome{}, &core.ValidationError{Field: "amount", Reason: "is required"}
	}
	amount, err := core.ParseAmount(amountText)
	if err != nil {
		return Outcome{}, err
	}

	created, err := c.gw.Create(ctx, core.Draft{Description: &description, Amount: &amount, Type: &typ})
	if err != nil {
		c.logger.WarnContext(ctx, "Adding transaction failed", log.FieldError, err)
		return Outcome{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, created)
	out := c.recomputeLocked()
	out.ID = created.ID
	return out, nil
}

// Edit replaces description and amount of the record id. A confirmed record
// missing from the local copy, such as one created in another tab, is appended.
func (c *Controller) Edit(ctx context.Context, id, description string, amount decimal.Decimal) (Outcome, error) {
	updated, err := c.gw.Update(ctx, id, core.Patch{Description: &description, Amount: &amount})
	if err != nil {
		c.logger.WarnContext(ctx, "Editing transaction failed", log.FieldError, err, log.FieldTransactionID, id)
		return Outcome{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.records, func(r core.Transaction) bool { return r.ID == updated.ID })
	if i >= 0 {
		c.records[i] = updated
	} else {
		c.records = append(c.records, updated)
	}
	return c.recomputeLocked(), nil
}

// Remove deletes the record id.
func (c *Controller) Remove(ctx context.Context, id string) (Outcome, error) {
	if err := c.gw.Delete(ctx, id); err != nil {
		c.logger.WarnContext(ctx, "Removing transaction failed", log.FieldError, err, log.FieldTransactionID, id)
		return Outcome{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.records[:0:0]
	for _, r := range c.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	c.records = kept
	return c.recomputeLocked(), nil
}

func (c *Controller) SetBudget(limit decimal.Decimal) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return outcome(c.monitor.SetLimit(limit, ledger.TotalExpense(c.records)))
}

func (c *Controller) SetBudgetEnabled(enabled bool) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return outcome(c.monitor.SetEnabled(enabled, ledger.TotalExpense(c.records)))
}

// SetSearch changes which records are listed. Totals are unaffected.
func (c *Controller) SetSearch(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = text
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Records: ledger.Filter(c.records, c.search),
		Count:   len(c.records),
		Search:  c.search,
		Summary: ledger.Summarize(c.records),
		Series:  ledger.ChartSeries(c.records),
		Budget:  c.monitor.State(),
	}
}

func (c *Controller) recomputeLocked() Outcome {
	return outcome(c.monitor.Observe(ledger.TotalExpense(c.records)))
}
