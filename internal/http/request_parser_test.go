package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"moneytrack/internal/core"
)

func TestPathID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetPathValue("id", "8A6E0804-2BD0-4672-B79D-D97027F9071A")
	id, err := pathID(r)
	if err != nil || id != "8a6e0804-2bd0-4672-b79d-d97027f9071a" {
		t.Fatalf("got %q, %v", id, err)
	}

	r.SetPathValue("id", "42")
	if _, err := pathID(r); !errors.Is(err, core.ErrInvalidID) {
		t.Fatalf("expected invalid id, got %v", err)
	}
}

func TestFormHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("enabled=on&limit=12,5&off=false"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := parseForm(httptest.NewRecorder(), r); err != nil {
		t.Fatal(err)
	}
	if !formBool(r, "enabled") || formBool(r, "off") || formBool(r, "missing") {
		t.Fatal("checkbox parsing is wrong")
	}
	limit, err := formAmount(r, "limit")
	if err != nil || limit.String() != "12.5" {
		t.Fatalf("limit = %s, %v", limit, err)
	}
	if zero, err := formAmount(r, "missing"); err != nil || !zero.IsZero() {
		t.Fatalf("blank amount should be zero, got %s %v", zero, err)
	}
}
