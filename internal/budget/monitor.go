// Package budget raises an advisory when total expense goes over a user-set limit.
package budget

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AdvisoryDuration is how long the UI keeps an advisory on screen.
const AdvisoryDuration = 5 * time.Second

// Advisory is a non-blocking warning. It never changes any record.
type Advisory struct {
	Message  string
	Expense  decimal.Decimal
	Limit    decimal.Decimal
	Duration time.Duration
}

// State is a read-only view of the monitor for rendering.
type State struct {
	Limit    decimal.Decimal
	Enabled  bool
	Exceeded bool
}

// Monitor tracks the budget settings and fires on the transition from
// within budget to over budget. Staying over budget does not fire again;
// dropping back under (or disabling) re-arms it.
//
// Monitor is not safe for concurrent use; the dashboard controller guards it.
type Monitor struct {
	limit    decimal.Decimal
	enabled  bool
	exceeded bool
}

// NewMonitor returns a disabled monitor with a zero limit.
func NewMonitor() *Monitor {
	return &Monitor{limit: decimal.Zero}
}

// Observe re-evaluates the condition for a freshly computed total expense.
func (m *Monitor) Observe(totalExpense decimal.Decimal) *Advisory {
	now := m.enabled && totalExpense.GreaterThan(m.limit)
	fire := now && !m.exceeded
	m.exceeded = now
	if !fire {
		return nil
	}
	return &Advisory{
		Message:  "Your expenses have exceeded the budget!",
		Expense:  totalExpense,
		Limit:    m.limit,
		Duration: AdvisoryDuration,
	}
}

// SetLimit changes the limit and re-evaluates against totalExpense.
func (m *Monitor) SetLimit(limit, totalExpense decimal.Decimal) *Advisory {
	m.limit = limit
	return m.Observe(totalExpense)
}

// SetEnabled toggles the monitor and re-evaluates against totalExpense.
// Disabling suppresses future advisories; it cannot retract shown ones.
func (m *Monitor) SetEnabled(enabled bool, totalExpense decimal.Decimal) *Advisory {
	m.enabled = enabled
	return m.Observe(totalExpense)
}

// State returns the current settings.
func (m *Monitor) State() State {
	return State{Limit: m.limit, Enabled: m.enabled, Exceeded: m.exceeded}
}

func (a Advisory) String() string {
	return fmt.Sprintf("%s (expense %s, budget %s)", a.Message, a.Expense.StringFixed(2), a.Limit.StringFixed(2))
}
