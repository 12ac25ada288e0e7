package shared_test

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/crewfund/crew/internal/app/features/shared"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/auth"
)

func TestUserID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, err := shared.UserID(req); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("anonymous err = %v", err)
	}
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1"})
	if id, err := shared.UserID(req); err != nil || id != "u1" {
		t.Errorf("UserID = %q, %v", id, err)
	}
}

func TestLimit(t *testing.T) {
	tests := []struct {
		q    string
		want int
	}{
		{"", 50},
		{"?limit=10", 10},
		{"?limit=abc", 50},
		{"?limit=-3", 50},
		{"?limit=1000", 200},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/"+tt.q, nil)
		if got := shared.Limit(req, 50, 200); got != tt.want {
			t.Errorf("Limit(%q) = %d, want %d", tt.q, got, tt.want)
		}
	}
}

func TestTime(t *testing.T) {
	req := httptest.NewRequest("GET", "/?from=2025-01-02T03:04:05Z&bad=yesterday", nil)
	got, err := shared.Time(req, "from")
	if err != nil || got.Year() != 2025 {
		t.Errorf("Time(from) = %v, %v", got, err)
	}
	if _, err := shared.Time(req, "bad"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Time(bad) err = %v", err)
	}
	if got, err := shared.Time(req, "missing"); err != nil || !got.IsZero() {
		t.Errorf("Time(missing) = %v, %v", got, err)
	}
}

func TestIdempotencyKey(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set(shared.IdempotencyHeader, "  abc ")
	if got := shared.IdempotencyKey(req); got != "abc" {
		t.Errorf("IdempotencyKey = %q", got)
	}
}

func TestStatusFilters(t *testing.T) {
	if s, err := shared.RequestStatus("Pending"); err != nil || s != "Pendiente" {
		t.Errorf("RequestStatus(Pending) = %q, %v", s, err)
	}
	if s, err := shared.RequestStatus(""); err != nil || s != "" {
		t.Errorf("RequestStatus(\"\") = %q, %v", s, err)
	}
	if _, err := shared.RequestStatus("lost"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("RequestStatus(lost) err = %v", err)
	}
	if s, err := shared.ReportStatus("resolved"); err != nil || s != "Resuelto" {
		t.Errorf("ReportStatus(resolved) = %q, %v", s, err)
	}
}
