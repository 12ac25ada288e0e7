package userstore_test

import (
	"context"
	"errors"
	"testing"

	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/docstore/memstore"
	"github.com/crewfund/crew/internal/domain/models"
)

func TestEnsureProfile_CreatesClientOnce(t *testing.T) {
	ctx := context.Background()
	s := userstore.New(memstore.New())

	u, created, err := s.EnsureProfile(ctx, "uid-1", " Ana@Example.com ", "Ana")
	if err != nil || !created {
		t.Fatalf("EnsureProfile = %v, %v", created, err)
	}
	if u.Role != models.RoleClient || u.Balance != 0 || u.IDVerification != models.IDNotVerified {
		t.Errorf("unexpected defaults: %+v", u)
	}

	again, created, err := s.EnsureProfile(ctx, "uid-1", "ana@example.com", "Other")
	if err != nil || created {
		t.Fatalf("second EnsureProfile = %v, %v", created, err)
	}
	if again.DisplayName != "Ana" {
		t.Errorf("existing profile overwritten: %q", again.DisplayName)
	}
}

func TestGetByEmail_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := userstore.New(memstore.New())
	if _, _, err := s.EnsureProfile(ctx, "uid-1", "Ana@Example.com", "Ana"); err != nil {
		t.Fatal(err)
	}

	u, err := s.GetByEmail(ctx, "ANA@example.COM")
	if err != nil || u.ID != "uid-1" {
		t.Fatalf("GetByEmail = %+v, %v", u, err)
	}
	if _, err := s.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFetcher(t *testing.T) {
	ctx := context.Background()
	s := userstore.New(memstore.New())
	if _, _, err := s.EnsureProfile(ctx, "uid-1", "ana@example.com", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRole(ctx, "uid-1", models.RoleModerator); err != nil {
		t.Fatal(err)
	}

	f := userstore.NewFetcher(s)
	su, err := f.FetchSessionUser(ctx, "uid-1")
	if err != nil || su == nil {
		t.Fatalf("FetchSessionUser = %v, %v", su, err)
	}
	if su.Role != string(models.RoleModerator) || su.Name != "ana@example.com" {
		t.Errorf("unexpected session user %+v", su)
	}

	gone, err := f.FetchSessionUser(ctx, "missing")
	if err != nil || gone != nil {
		t.Errorf("missing user = %v, %v; want nil, nil", gone, err)
	}
}
