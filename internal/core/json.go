package core

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Wire form of a transaction: amount is a JSON number, date is RFC 3339.
type wireTransaction struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Type        Type        `json:"type"`
	Date        time.Time   `json:"date"`
}

// wireInput is the body of a create or update request. Every field is
// optional at this level; Draft and Patch decide what is required.
type wireInput struct {
	Description *string         `json:"description,omitempty"`
	Amount      json.RawMessage `json:"amount,omitempty"`
	Type        *string         `json:"type,omitempty"`
	Date        *time.Time      `json:"date,omitempty"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTransaction{
		ID:          t.ID,
		Description: t.Description,
		Amount:      json.Number(t.Amount.String()),
		Type:        t.Type,
		Date:        t.Date.UTC(),
	})
}

func (t *Transaction) UnmarshalJSON(b []byte) error {
	var w struct {
		wireTransaction
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	amount, err := decodeAmount(w.Amount)
	if err != nil {
		return err
	}
	*t = Transaction{
		ID:          w.ID,
		Description: w.Description,
		Type:        w.Type,
		Date:        w.Date.UTC(),
	}
	if amount != nil {
		t.Amount = *amount
	}
	return nil
}

func (d *Draft) UnmarshalJSON(b []byte) error {
	in, err := decodeInput(b)
	if err != nil {
		return err
	}
	*d = Draft(in)
	return nil
}

func (d Draft) MarshalJSON() ([]byte, error) {
	return encodeInput(Patch(d))
}

func (p *Patch) UnmarshalJSON(b []byte) error {
	in, err := decodeInput(b)
	if err != nil {
		return err
	}
	*p = in
	return nil
}

func (p Patch) MarshalJSON() ([]byte, error) {
	return encodeInput(p)
}

func decodeInput(b []byte) (Patch, error) {
	var w wireInput
	if err := json.Unmarshal(b, &w); err != nil {
		return Patch{}, err
	}
	p := Patch{Description: w.Description, Date: w.Date}

	amount, err := decodeAmount(w.Amount)
	if err != nil {
		return Patch{}, err
	}
	p.Amount = amount

	if w.Type != nil {
		t, err := ParseType(*w.Type)
		if err != nil {
			return Patch{}, err
		}
		p.Type = &t
	}
	return p, nil
}

func encodeInput(p Patch) ([]byte, error) {
	w := wireInput{Description: p.Description, Date: p.Date}
	if p.Amount != nil {
		w.Amount = json.RawMessage(p.Amount.String())
	}
	if p.Type != nil {
		s := p.Type.String()
		w.Type = &s
	}
	return json.Marshal(w)
}

// decodeAmount accepts a JSON number or a numeric string. Absent and null
// both mean "not supplied".
func decodeAmount(raw json.RawMessage) (*decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, invalid("amount", "must be a number")
		}
		d, err := ParseAmount(s)
		if err != nil {
			return nil, err
		}
		return &d, nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return nil, invalid("amount", "must be a number")
	}
	if err := ValidateAmount(d); err != nil {
		return nil, err
	}
	return &d, nil
}
