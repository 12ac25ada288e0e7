package profile_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crewfund/crew/internal/app/features/profile"
	"github.com/crewfund/crew/internal/app/services/projects"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/testutil"
	"go.uber.org/zap"
)

type meBody struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	ProjectsRemaining *int   `json:"projects_remaining"`
}

func TestServeMe(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ds := testutil.NewMemStore(t)
	fx := testutil.NewFixtures(t, ds)
	u := fx.CreateVerifiedCreator(ctx, "Ana")

	proj := projects.New(ds, nil, nil, zap.NewNop(), projects.DefaultConfig())
	h := profile.NewHandler(userstore.New(ds), proj, zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeMe(rec, testutil.WithUser(httptest.NewRequest("GET", "/api/me", nil), u))
	testutil.AssertStatus(t, rec, http.StatusOK)

	var body meBody
	testutil.DecodeJSON(t, rec, &body)
	if body.ID != u.ID {
		t.Errorf("id = %q, want %q", body.ID, u.ID)
	}
	if body.ProjectsRemaining == nil || *body.ProjectsRemaining != 3 {
		t.Errorf("projects_remaining = %v, want 3", body.ProjectsRemaining)
	}
}

func TestServeMe_Anonymous(t *testing.T) {
	h := profile.NewHandler(userstore.New(testutil.NewMemStore(t)), nil, zap.NewNop())
	rec := httptest.NewRecorder()
	h.ServeMe(rec, httptest.NewRequest("GET", "/api/me", nil))
	testutil.AssertStatus(t, rec, http.StatusUnauthorized)
}

func TestHandleUpdate(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ds := testutil.NewMemStore(t)
	u := testutil.NewFixtures(t, ds).CreateUser(ctx, "Ana", 0)
	h := profile.NewHandler(userstore.New(ds), nil, zap.NewNop())
	r := profile.Routes(h)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"ok", map[string]string{"display_name": " <i>Ana María</i> "}, http.StatusOK},
		{"empty", map[string]string{"display_name": "<b></b>"}, http.StatusBadRequest},
		{"unknown field", map[string]string{"nick": "x"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.WithUser(testutil.NewJSONRequest(t, http.MethodPatch, "/", tt.body), u)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			testutil.AssertStatus(t, rec, tt.want)
		})
	}

	got, err := userstore.New(ds).GetByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.DisplayName != "Ana María" {
		t.Errorf("display name = %q", got.DisplayName)
	}
}
