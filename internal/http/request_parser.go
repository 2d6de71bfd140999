package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
)

// maxBodyBytes caps JSON and form bodies.
const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// decodeJSONBody reads one JSON value into v. Unknown fields are ignored.
// Every failure is a client error.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		var ve *core.ValidationError
		switch {
		case errors.As(err, &tooLarge):
			return errBodyTooLarge
		case errors.As(err, &ve):
			return ve
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return fmt.Errorf("malformed JSON body: %w", err)
		}
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// pathID returns the normalized {id} path value.
func pathID(r *http.Request) (string, error) {
	return core.ParseID(r.PathValue("id"))
}

// parseForm parses a urlencoded body within the size limit.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return r.ParseForm()
}

// formValue returns a trimmed, sanitized form field.
func formValue(r *http.Request, key string) string {
	return sanitizeInput(r.FormValue(key))
}

// formBool reads an HTML checkbox: present and not "false"/"off" means true.
func formBool(r *http.Request, key string) bool {
	switch strings.ToLower(formValue(r, key)) {
	case "", "false", "off", "0":
		return false
	default:
		return true
	}
}

// formAmount parses an optional amount field. Blank means zero.
func formAmount(r *http.Request, key string) (decimal.Decimal, error) {
	v := formValue(r, key)
	if v == "" {
		return decimal.Zero, nil
	}
	return core.ParseAmount(v)
}
