package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
)

// Collection holds user profiles and wallets.
const Collection = "usuarios"

// ErrNotFound is returned when no user has the requested id or email.
var ErrNotFound = errors.New("user not found")

type Store struct {
	ds docstore.Store
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

// GetByID loads a user.
func (s *Store) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.ds.Get(ctx, Collection, id, &u); err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks a user up by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var users []models.User
	q := docstore.Query{
		Filters: []docstore.Filter{docstore.Where("email_ci", docstore.Eq, text.Fold(email))},
		Limit:   1,
	}
	if err := s.ds.Query(ctx, Collection, q, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

// EnsureProfile returns the user with id, creating a Client profile with an
// empty wallet on first authentication.
func (s *Store) EnsureProfile(ctx context.Context, id, email, displayName string) (*models.User, bool, error) {
	if u, err := s.GetByID(ctx, id); err == nil {
		return u, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	u := models.User{
		ID:          id,
		Email:       strings.TrimSpace(email),
		EmailCI:     text.Fold(email),
		DisplayName: strings.TrimSpace(displayName),
		Role:        models.RoleClient,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.ds.Insert(ctx, Collection, id, u); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			// Lost a race with a concurrent first login.
			existing, gerr := s.GetByID(ctx, id)
			return existing, false, gerr
		}
		return nil, false, err
	}
	return &u, true, nil
}

// UpdateDisplayName sets the public name shown on projects and comments.
func (s *Store) UpdateDisplayName(ctx context.Context, id, name string) error {
	err := s.ds.Merge(ctx, Collection, id, map[string]any{
		"display_name": name,
		"updated_at":   time.Now().UTC(),
	})
	if docstore.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

// List returns users for the admin panel, newest first.
func (s *Store) List(ctx context.Context, role models.Role, limit int) ([]models.User, error) {
	q := docstore.Query{OrderBy: "created_at", Desc: true, Limit: limit}
	if role != "" {
		q.Filters = append(q.Filters, docstore.Where("role", docstore.Eq, role))
	}
	var users []models.User
	if err := s.ds.Query(ctx, Collection, q, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListByRole returns every user holding role.
func (s *Store) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	return s.List(ctx, role, 0)
}

// SetRole changes a user's role outside a ledger transaction. Used at
// startup to promote the configured administrator.
func (s *Store) SetRole(ctx context.Context, id string, role models.Role) error {
	err := s.ds.Merge(ctx, Collection, id, map[string]any{
		"role":       role,
		"updated_at": time.Now().UTC(),
	})
	if docstore.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

// Load reads a user inside a transaction, recording its version.
func Load(ctx context.Context, tx docstore.Tx, id string) (*models.User, error) {
	var u models.User
	if err := tx.Get(ctx, Collection, id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Save buffers a write of u, which must have been loaded in tx.
func Save(tx docstore.Tx, u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	return tx.Set(Collection, u.ID, u)
}
