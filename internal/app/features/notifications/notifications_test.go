package notifications_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crewfund/crew/internal/app/features/notifications"
	"github.com/crewfund/crew/internal/app/services/notify"
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/testutil"
	"go.uber.org/zap"
)

type listBody struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

func setup(t *testing.T) (http.Handler, *notify.Dispatcher, *testutil.Fixtures) {
	t.Helper()
	logger := zap.NewNop()
	ds := testutil.NewMemStore(t)
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	h := notifications.NewHandler(notify.NewInbox(ds, logger), logger)
	return notifications.Routes(h, sm), notify.NewDispatcher(ds, logger), testutil.NewFixtures(t, ds)
}

func list(t *testing.T, h http.Handler, u models.User, target string) listBody {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, testutil.WithUser(httptest.NewRequest("GET", target, nil), u))
	testutil.AssertStatus(t, rec, http.StatusOK)
	var body listBody
	testutil.DecodeJSON(t, rec, &body)
	return body
}

func TestInbox(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h, d, fx := setup(t)
	user := fx.CreateUser(ctx, "Ana", 0)
	other := fx.CreateUser(ctx, "Beto", 0)
	mod := fx.CreateStaff(ctx, "Mod", models.RoleModerator)
	admin := fx.CreateStaff(ctx, "Admin", models.RoleAdministrator)

	d.ToUser(ctx, user.ID, notify.Message{Type: models.NoticeDonationReceived, Title: "Donation", Body: "Beto donated 10.00"})
	d.ToUser(ctx, other.ID, notify.Message{Type: models.NoticeCardApproved, Title: "Card"})
	d.ToMods(ctx, notify.Message{Type: models.NoticeProjectReported, Title: "Reported"})
	d.ToAdmins(ctx, notify.Message{Type: models.NoticeCardRequest, Title: "Card request"})

	tests := []struct {
		name  string
		who   models.User
		types []string
	}{
		{"client sees own", user, []string{models.NoticeDonationReceived}},
		{"moderator sees mod broadcasts", mod, []string{models.NoticeProjectReported}},
		{"admin sees both broadcasts", admin, []string{models.NoticeCardRequest, models.NoticeProjectReported}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := list(t, h, tt.who, "/")
			got := map[string]bool{}
			for _, n := range body.Notifications {
				got[n.Type] = true
			}
			if len(body.Notifications) != len(tt.types) {
				t.Fatalf("got %d notifications, want %d: %+v", len(body.Notifications), len(tt.types), body.Notifications)
			}
			for _, typ := range tt.types {
				if !got[typ] {
					t.Errorf("missing %s", typ)
				}
			}
		})
	}

	body := list(t, h, user, "/")
	id := body.Notifications[0].ID
	if body.Unread != 1 {
		t.Errorf("unread = %d, want 1", body.Unread)
	}

	// Another client cannot touch it.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, testutil.WithUser(httptest.NewRequest("POST", "/"+id+"/read", nil), other))
	testutil.AssertStatus(t, rec, http.StatusForbidden)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, testutil.WithUser(httptest.NewRequest("POST", "/"+id+"/read", nil), user))
	testutil.AssertStatus(t, rec, http.StatusNoContent)

	if body := list(t, h, user, "/?unread=true"); len(body.Notifications) != 0 {
		t.Errorf("unread after mark = %+v", body.Notifications)
	}
	if body := list(t, h, user, "/"); body.Unread != 0 || !body.Notifications[0].Read {
		t.Errorf("after mark = %+v", body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, testutil.WithUser(httptest.NewRequest("POST", "/missing/read", nil), user))
	testutil.AssertStatus(t, rec, http.StatusNotFound)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	testutil.AssertStatus(t, rec, http.StatusUnauthorized)
}

func TestStream(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h, d, fx := setup(t)
	user := fx.CreateUser(ctx, "Ana", 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, testutil.WithUser(r, user))
	}))
	defer srv.Close()

	reqCtx, stop := context.WithTimeout(ctx, 5*time.Second)
	defer stop()
	req, _ := http.NewRequestWithContext(reqCtx, "GET", srv.URL+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	d.ToUser(ctx, "someone-else", notify.Message{Type: models.NoticeCardApproved, Title: "not mine"})
	d.ToUser(ctx, user.ID, notify.Message{Type: models.NoticeGoalReached, Title: "Goal reached"})

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		if !strings.Contains(line, models.NoticeGoalReached) {
			t.Fatalf("first event = %s", line)
		}
		return
	}
	t.Fatalf("stream ended without an event: %v", sc.Err())
}
