package auditlog_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crewfund/crew/internal/app/features/auditlog"
	"github.com/crewfund/crew/internal/app/store/audit"
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/testutil"
	"go.uber.org/zap"
)

type listBody struct {
	Events []struct {
		ID        string            `json:"id"`
		Category  string            `json:"category"`
		EventType string            `json:"event_type"`
		ActorID   string            `json:"actor_id"`
		Details   map[string]string `json:"details"`
	} `json:"events"`
	Total int64 `json:"total"`
}

func setup(t *testing.T) (http.Handler, *audit.Store, *testutil.Fixtures) {
	t.Helper()
	logger := zap.NewNop()
	ds := testutil.NewMemStore(t)
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	events := audit.New(ds)
	return auditlog.Routes(auditlog.NewHandler(events, logger), sm), events, testutil.NewFixtures(t, ds)
}

func TestServeList(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h, events, fx := setup(t)
	admin := fx.CreateStaff(ctx, "Admin", models.RoleAdministrator)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []audit.Event{
		{ID: "e1", Timestamp: base, Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: "u1", Success: true},
		{ID: "e2", Timestamp: base.Add(time.Hour), Category: audit.CategoryAdmin, EventType: audit.EventRoleChanged, ActorID: admin.ID, UserID: "u1", Success: true,
			Details: map[string]string{"from": "Cliente", "to": "Moderador"}},
		{ID: "e3", Timestamp: base.Add(2 * time.Hour), Category: audit.CategoryAuth, EventType: audit.EventLogout, UserID: "u1", Success: true},
	}
	for _, e := range seed {
		if err := events.Log(ctx, e); err != nil {
			t.Fatalf("seed %s: %v", e.ID, err)
		}
	}

	tests := []struct {
		name    string
		target  string
		wantIDs []string
	}{
		{"all newest first", "/", []string{"e3", "e2", "e1"}},
		{"category", "/?category=auth", []string{"e3", "e1"}},
		{"actor", "/?actor_id=" + admin.ID, []string{"e2"}},
		{"range", "/?from=2026-03-01T12:30:00Z&to=2026-03-01T13:30:00Z", []string{"e2"}},
		{"limit", "/?limit=1", []string{"e3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, testutil.WithUser(httptest.NewRequest("GET", tt.target, nil), admin))
			testutil.AssertStatus(t, rec, http.StatusOK)
			var body listBody
			testutil.DecodeJSON(t, rec, &body)
			if len(body.Events) != len(tt.wantIDs) {
				t.Fatalf("got %d events, want %d", len(body.Events), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if body.Events[i].ID != id {
					t.Errorf("event[%d] = %s, want %s", i, body.Events[i].ID, id)
				}
			}
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, testutil.WithUser(httptest.NewRequest("GET", "/?limit=1", nil), admin))
	var body listBody
	testutil.DecodeJSON(t, rec, &body)
	if body.Total != 3 {
		t.Errorf("total = %d, want 3", body.Total)
	}
}

func TestServeList_Rejects(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h, _, fx := setup(t)
	admin := fx.CreateStaff(ctx, "Admin", models.RoleAdministrator)
	mod := fx.CreateStaff(ctx, "Mod", models.RoleModerator)

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"anonymous", httptest.NewRequest("GET", "/", nil), http.StatusUnauthorized},
		{"moderator", testutil.WithUser(httptest.NewRequest("GET", "/", nil), mod), http.StatusForbidden},
		{"bad category", testutil.WithUser(httptest.NewRequest("GET", "/?category=billing", nil), admin), http.StatusBadRequest},
		{"bad time", testutil.WithUser(httptest.NewRequest("GET", "/?from=yesterday", nil), admin), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req)
			testutil.AssertStatus(t, rec, tt.want)
		})
	}
}
