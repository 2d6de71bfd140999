package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"moneytrack/internal/core"
)

const currencySymbol = "₹"

var amountPrinter = message.NewPrinter(language.English)

// formatMoney renders an amount with two decimals, grouping and the currency
// prefix, e.g. ₹1,234.50 or -₹20.00.
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	f, _ := d.Round(2).Float64()
	return sign + currencySymbol + amountPrinter.Sprint(number.Decimal(f, number.Scale(2)))
}

// sanitizeInput drops control characters other than tab and newlines and
// trims surrounding space.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// errorStatus maps a service error onto a status code and a message that is
// safe to show. Unexpected errors get a generic message.
func errorStatus(err error) (int, string) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, core.ErrInvalidID):
		return http.StatusBadRequest, "Invalid transaction id"
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, "Invalid transaction"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "Transaction not found"
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Store unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
