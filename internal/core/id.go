package core

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// ParseID normalizes an identifier taken from a request path.
func ParseID(s string) (string, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidID
	}
	return u.String(), nil
}
