package systemusers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crewfund/crew/internal/app/features/systemusers"
	"github.com/crewfund/crew/internal/app/services/moderation"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/testutil"
	"go.uber.org/zap"
)

func setup(t *testing.T) (http.Handler, *testutil.Fixtures) {
	t.Helper()
	logger := zap.NewNop()
	ds := testutil.NewMemStore(t)
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	h := systemusers.NewHandler(moderation.New(ds, nil, nil, logger), userstore.New(ds), logger)
	return systemusers.Routes(h, sm), testutil.NewFixtures(t, ds)
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSetRole(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h, fx := setup(t)
	admin := fx.CreateStaff(ctx, "Admin", models.RoleAdministrator)
	user := fx.CreateUser(ctx, "Ana", 0)
	mod := fx.CreateStaff(ctx, "Mod", models.RoleModerator)

	rec := do(t, h, testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/"+user.ID+"/role",
		map[string]string{"role": "moderator"}), admin))
	testutil.AssertStatus(t, rec, http.StatusOK)
	var got models.User
	testutil.DecodeJSON(t, rec, &got)
	if got.Role != models.RoleModerator {
		t.Errorf("role = %q, want %q", got.Role, models.RoleModerator)
	}
	if u := fx.User(ctx, user.ID); u.Role != models.RoleModerator {
		t.Errorf("stored role = %q", u.Role)
	}

	tests := []struct {
		name   string
		actor  models.User
		target string
		role   string
		want   int
	}{
		{"self", admin, admin.ID, "Cliente", http.StatusUnprocessableEntity},
		{"unknown role", admin, user.ID, "root", http.StatusBadRequest},
		{"missing user", admin, "nope", "Cliente", http.StatusNotFound},
		{"moderator", mod, user.ID, "Cliente", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/"+tt.target+"/role",
				map[string]string{"role": tt.role}), tt.actor))
			testutil.AssertStatus(t, rec, tt.want)
		})
	}
}

func TestListUsers(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h, fx := setup(t)
	admin := fx.CreateStaff(ctx, "Admin", models.RoleAdministrator)
	fx.CreateUser(ctx, "Ana", 0)
	fx.CreateUser(ctx, "Beto", 0)
	fx.CreateStaff(ctx, "Mod", models.RoleModerator)

	rec := do(t, h, testutil.WithUser(httptest.NewRequest("GET", "/", nil), admin))
	testutil.AssertStatus(t, rec, http.StatusOK)
	var list struct {
		Users []models.User `json:"users"`
	}
	testutil.DecodeJSON(t, rec, &list)
	if len(list.Users) != 4 {
		t.Errorf("all users = %d, want 4", len(list.Users))
	}

	rec = do(t, h, testutil.WithUser(httptest.NewRequest("GET", "/?role=client", nil), admin))
	testutil.AssertStatus(t, rec, http.StatusOK)
	list.Users = nil
	testutil.DecodeJSON(t, rec, &list)
	if len(list.Users) != 2 {
		t.Errorf("clients = %d, want 2", len(list.Users))
	}
	for _, u := range list.Users {
		if u.Role != models.RoleClient {
			t.Errorf("filtered list has %q", u.Role)
		}
	}

	testutil.AssertStatus(t, do(t, h, testutil.WithUser(httptest.NewRequest("GET", "/?role=root", nil), admin)), http.StatusBadRequest)
	testutil.AssertStatus(t, do(t, h, testutil.WithUser(httptest.NewRequest("GET", "/"+admin.ID, nil), admin)), http.StatusOK)
	testutil.AssertStatus(t, do(t, h, testutil.WithUser(httptest.NewRequest("GET", "/nope", nil), admin)), http.StatusNotFound)
	testutil.AssertStatus(t, do(t, h, httptest.NewRequest("GET", "/", nil)), http.StatusUnauthorized)
}
