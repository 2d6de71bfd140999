// Package ledger derives totals, chart series and filtered views from a set
// of transactions. Every function is pure and recomputes from the full set
// it is given; callers invoke them again after each confirmed mutation.
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
)

// Trend is the sign indicator shown next to the available balance.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// Summary holds the three headline figures of the dashboard.
type Summary struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// Trend reports up for a non-negative balance and down otherwise.
func (s Summary) Trend() Trend {
	if s.Balance.IsNegative() {
		return TrendDown
	}
	return TrendUp
}

// Series is one chart category per record, aligned across the three slices.
type Series struct {
	Labels  []string
	Income  []decimal.Decimal
	Expense []decimal.Decimal
}

// Len returns the number of categories.
func (s Series) Len() int {
	return len(s.Labels)
}

// TotalByType sums the amounts of the records of type t.
func TotalByType(records []core.Transaction, t core.Type) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.Type == t {
			total = total.Add(r.Amount)
		}
	}
	return total
}

func TotalIncome(records []core.Transaction) decimal.Decimal {
	return TotalByType(records, core.Income)
}

func TotalExpense(records []core.Transaction) decimal.Decimal {
	return TotalByType(records, core.Expense)
}

// AvailableBalance is income minus expense and may be negative.
func AvailableBalance(records []core.Transaction) decimal.Decimal {
	return TotalIncome(records).Sub(TotalExpense(records))
}

// Summarize computes all headline figures in a single pass.
func Summarize(records []core.Transaction) Summary {
	income, expense := decimal.Zero, decimal.Zero
	for _, r := range records {
		switch r.Type {
		case core.Income:
			income = income.Add(r.Amount)
		case core.Expense:
			expense = expense.Add(r.Amount)
		}
	}
	return Summary{Income: income, Expense: expense, Balance: income.Sub(expense)}
}

// ChartSeries builds per-record bars in record order. Records that share a
// description stay separate categories.
func ChartSeries(records []core.Transaction) Series {
	s := Series{
		Labels:  make([]string, 0, len(records)),
		Income:  make([]decimal.Decimal, 0, len(records)),
		Expense: make([]decimal.Decimal, 0, len(records)),
	}
	for _, r := range records {
		s.Labels = append(s.Labels, r.Description)
		in, out := decimal.Zero, decimal.Zero
		if r.Type == core.Income {
			in = r.Amount
		} else if r.Type == core.Expense {
			out = r.Amount
		}
		s.Income = append(s.Income, in)
		s.Expense = append(s.Expense, out)
	}
	return s
}

// Filter keeps the records whose description contains searchText, ignoring
// case. An empty searchText keeps everything. The input is never modified.
func Filter(records []core.Transaction, searchText string) []core.Transaction {
	out := make([]core.Transaction, 0, len(records))
	if searchText == "" {
		return append(out, records...)
	}
	needle := strings.ToLower(searchText)
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Description), needle) {
			out = append(out, r)
		}
	}
	return out
}
