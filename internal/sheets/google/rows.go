package google

import (
	"fmt"
	"strings"
	"time"

	"moneytrack/internal/core"
)

// Sheet layout: one header row, then one row per transaction.
var header = []any{"ID", "Date", "Description", "Type", "Amount"}

const lastColumn = "E"

// encodeRow renders t in column order. The amount is written as text so
// USER_ENTERED parsing turns it into a number without float rounding.
func encodeRow(t core.Transaction) []any {
	return []any{
		t.ID,
		t.Date.UTC().Format(time.RFC3339),
		t.Description,
		t.Type.String(),
		t.Amount.String(),
	}
}

func encodeSheet(ts []core.Transaction) [][]any {
	rows := make([][]any, 0, len(ts)+1)
	rows = append(rows, header)
	for _, t := range ts {
		rows = append(rows, encodeRow(t))
	}
	return rows
}

// findRow returns the 1-based sheet row whose first cell equals id, or 0.
// values is column A as returned for the range A:A.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

// a1 builds an A1 range for sheet, quoting the name so spaces and
// apostrophes survive.
func a1(sheet, rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), rng)
}

func rowRange(sheet string, row int) string {
	return a1(sheet, fmt.Sprintf("A%d:%s%d", row, lastColumn, row))
}
