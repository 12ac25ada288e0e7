// Package shared holds request helpers used by every JSON feature.
package shared

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/dalemusser/waffle/pantry/query"
)

// IdempotencyHeader carries the client's retry key on money routes.
const IdempotencyHeader = "Idempotency-Key"

// UserID returns the signed-in user's id.
func UserID(r *http.Request) (string, error) {
	u, ok := auth.CurrentUser(r)
	if !ok || u.ID == "" {
		return "", apperr.ErrUnauthenticated
	}
	return u.ID, nil
}

// IdempotencyKey returns the trimmed Idempotency-Key header, or "".
func IdempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(IdempotencyHeader))
}

// Limit parses ?limit, falling back to def and capping at max.
func Limit(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(query.Get(r, "limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Time parses an RFC 3339 query parameter. Empty means zero time.
func Time(r *http.Request, name string) (time.Time, error) {
	v := query.Get(r, name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.Invalid("%s must be an RFC 3339 timestamp", name)
	}
	return t.UTC(), nil
}
