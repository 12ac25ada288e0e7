package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/crewfund/crew/internal/app/store/audit"
	"github.com/crewfund/crew/internal/app/system/auditlog"
	"github.com/crewfund/crew/internal/app/system/docstore/memstore"
	"github.com/crewfund/crew/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, req, "u1", "password", "a@b.c")
	logger.Logout(ctx, req, "u1")
	logger.RoleChanged(ctx, "admin", "u1", "Cliente", "Moderador")
}

func TestLogger_Destinations(t *testing.T) {
	tests := []struct {
		setting string
		wantDB  int
		wantLog int
	}{
		{"off", 0, 0},
		{"db", 1, 0},
		{"log", 0, 1},
		{"all", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.setting, func(t *testing.T) {
			ctx, cancel := testutil.TestContext()
			defer cancel()
			store := audit.New(memstore.New())
			core, logs := observer.New(zap.InfoLevel)
			logger := auditlog.New(store, zap.New(core), auditlog.Config{Auth: tt.setting, Admin: tt.setting})

			logger.Log(ctx, audit.Event{
				Category:  audit.CategoryAuth,
				EventType: audit.EventLoginSuccess,
				UserID:    "u1",
				Success:   true,
			})

			events, err := store.ByUser(ctx, "u1", 10)
			if err != nil {
				t.Fatalf("ByUser failed: %v", err)
			}
			if len(events) != tt.wantDB {
				t.Errorf("db events = %d, want %d", len(events), tt.wantDB)
			}
			if got := logs.FilterMessage("audit event").Len(); got != tt.wantLog {
				t.Errorf("zap events = %d, want %d", got, tt.wantLog)
			}
		})
	}
}

func TestLogger_LoginSuccess(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := audit.New(memstore.New())
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db"})

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("User-Agent", "TestBrowser/1.0")

	logger.LoginSuccess(ctx, req, "u1", "password", "ana@example.com")

	events, err := store.ByUser(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.EventType != audit.EventLoginSuccess || !e.Success {
		t.Errorf("unexpected event %+v", e)
	}
	if e.IP != "192.168.1.1:12345" {
		t.Errorf("IP = %q", e.IP)
	}
	if e.Details["email"] != "ana@example.com" {
		t.Errorf("details = %v", e.Details)
	}
}

func TestLogger_LoginFailed_ForwardedFor(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := audit.New(memstore.New())
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db"})

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 172.16.0.1")
	logger.LoginFailed(ctx, req, "", "nobody@example.com", "user not found")

	events, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Success {
		t.Error("expected Success to be false")
	}
	if e.FailureReason != "user not found" {
		t.Errorf("FailureReason = %q", e.FailureReason)
	}
	if e.IP != "10.0.0.7" {
		t.Errorf("IP = %q, want first forwarded hop", e.IP)
	}
}

func TestLogger_AdminEvents(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := audit.New(memstore.New())
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Admin: "db", Auth: "off"})

	logger.CardReviewed(ctx, "admin", "u1", "req1", true, "")
	logger.CardReviewed(ctx, "admin", "u2", "req2", false, "blurry")
	logger.IdentityReviewed(ctx, "mod", "u1", "kyc1", false, "expired")
	logger.ReportHandled(ctx, "mod", "r1", "project", "p1", "reject")
	logger.RoleChanged(ctx, "admin", "u3", "Cliente", "Moderador")

	tests := []struct {
		eventType string
		want      int
	}{
		{audit.EventCardApproved, 1},
		{audit.EventCardRejected, 1},
		{audit.EventIdentityRejected, 1},
		{audit.EventReportDismissed, 1},
		{audit.EventRoleChanged, 1},
		{audit.EventReportResolved, 0},
	}
	for _, tt := range tests {
		n, err := store.CountByFilter(ctx, audit.QueryFilter{EventType: tt.eventType})
		if err != nil {
			t.Fatal(err)
		}
		if int(n) != tt.want {
			t.Errorf("%s: got %d, want %d", tt.eventType, n, tt.want)
		}
	}

	rejected, _ := store.Query(ctx, audit.QueryFilter{EventType: audit.EventCardRejected})
	if len(rejected) == 1 && rejected[0].Details["reason"] != "blurry" {
		t.Errorf("reason not recorded: %v", rejected[0].Details)
	}
}
