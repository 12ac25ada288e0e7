package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/domain/money"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
)

// Fixtures creates test documents directly in a store.
type Fixtures struct {
	ds docstore.Store
	t  *testing.T
}

// NewFixtures creates a Fixtures instance for ds.
func NewFixtures(t *testing.T, ds docstore.Store) *Fixtures {
	t.Helper()
	return &Fixtures{ds: ds, t: t}
}

// Store returns the underlying store.
func (f *Fixtures) Store() docstore.Store {
	return f.ds
}

// TestCard is the virtual card CreateCardholder issues.
var TestCard = models.VirtualCard{
	CardNumber: "4111111111111111",
	ExpiryDate: "12/30",
	CVV:        "123",
	Status:     "active",
}

// CreateUser creates a client with the given balance.
func (f *Fixtures) CreateUser(ctx context.Context, name string, balance money.Cents) models.User {
	f.t.Helper()
	now := time.Now().UTC()
	email := text.Fold(name) + "@test.com"
	u := models.User{
		ID:          uuid.NewString(),
		Email:       email,
		EmailCI:     email,
		DisplayName: name,
		Role:        models.RoleClient,
		Balance:     balance,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.save(ctx, u)
	return u
}

// CreateStaff creates a user with the given staff role.
func (f *Fixtures) CreateStaff(ctx context.Context, name string, role models.Role) models.User {
	f.t.Helper()
	u := f.CreateUser(ctx, name, 0)
	u.Role = role
	f.save(ctx, u)
	return u
}

// CreateVerifiedCreator creates a client who passed KYC and may publish.
func (f *Fixtures) CreateVerifiedCreator(ctx context.Context, name string) models.User {
	f.t.Helper()
	u := f.CreateUser(ctx, name, 0)
	u.IDVerification = models.IDVerified
	u.CINumber = "1234567"
	f.save(ctx, u)
	return u
}

// CreateCardholder creates a client with an approved TestCard.
func (f *Fixtures) CreateCardholder(ctx context.Context, name string, balance money.Cents) models.User {
	f.t.Helper()
	u := f.CreateUser(ctx, name, balance)
	card := TestCard
	card.NameOnCard = name
	card.IssuedAt = time.Now().UTC()
	u.CardStatus = models.CardApproved
	u.VirtualCard = &card
	f.save(ctx, u)
	return u
}

// CreateProject creates a published project with one tier of goal.
func (f *Fixtures) CreateProject(ctx context.Context, creator models.User, title string, goal money.Cents) models.Project {
	f.t.Helper()
	now := time.Now().UTC()
	p := models.Project{
		ID:          uuid.NewString(),
		CreatorID:   creator.ID,
		CreatorName: creator.Name(),
		Title:       title,
		Description: "Test project " + title,
		FundingTiers: []models.FundingTier{
			{ID: uuid.NewString(), Title: "Goal", Amount: goal},
		},
		GoalTotal:      goal,
		State:          models.ProjectPublished,
		SearchKeywords: []string{text.Fold(title)},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := f.ds.Insert(ctx, "proyectos", p.ID, p); err != nil {
		f.t.Fatalf("failed to create test project: %v", err)
	}
	return p
}

// User reloads a user.
func (f *Fixtures) User(ctx context.Context, id string) models.User {
	f.t.Helper()
	var u models.User
	if err := f.ds.Get(ctx, "usuarios", id, &u); err != nil {
		f.t.Fatalf("load user %s: %v", id, err)
	}
	return u
}

// Project reloads a project.
func (f *Fixtures) Project(ctx context.Context, id string) models.Project {
	f.t.Helper()
	var p models.Project
	if err := f.ds.Get(ctx, "proyectos", id, &p); err != nil {
		f.t.Fatalf("load project %s: %v", id, err)
	}
	return p
}

// SetProject overwrites a project document.
func (f *Fixtures) SetProject(ctx context.Context, p models.Project) {
	f.t.Helper()
	if err := f.ds.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var cur models.Project
		if err := tx.Get(ctx, "proyectos", p.ID, &cur); err != nil {
			return err
		}
		return tx.Set("proyectos", p.ID, p)
	}); err != nil {
		f.t.Fatalf("set project %s: %v", p.ID, err)
	}
}

// SetUser overwrites a user document.
func (f *Fixtures) SetUser(ctx context.Context, u models.User) {
	f.t.Helper()
	f.save(ctx, u)
}

func (f *Fixtures) save(ctx context.Context, u models.User) {
	f.t.Helper()
	err := f.ds.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var cur models.User
		err := tx.Get(ctx, "usuarios", u.ID, &cur)
		switch {
		case err == nil:
			return tx.Set("usuarios", u.ID, u)
		case docstore.IsNotFound(err):
			return tx.Create("usuarios", u.ID, u)
		default:
			return err
		}
	})
	if err != nil {
		f.t.Fatalf("save test user %s: %v", u.ID, err)
	}
}
