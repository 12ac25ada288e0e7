// Package credentialstore keeps password hashes for email sign-in.
// Documents are keyed by the folded email, so an address registers once.
package credentialstore

import (
	"context"
	"errors"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"golang.org/x/crypto/bcrypt"
)

// Collection holds password credentials.
const Collection = "credenciales"

const bcryptCost = 12

var (
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

type Store struct {
	ds   docstore.Store
	cost int
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds, cost: bcryptCost}
}

// NewWithCost is New with a custom bcrypt cost. Tests use bcrypt.MinCost.
func NewWithCost(ds docstore.Store, cost int) *Store {
	return &Store{ds: ds, cost: cost}
}

// Create registers email for userID.
func (s *Store) Create(ctx context.Context, email, userID, password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}
	c := models.Credential{
		ID:           text.Fold(email),
		UserID:       userID,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.ds.Insert(ctx, Collection, c.ID, c); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// Verify returns the user id for a matching email and password.
func (s *Store) Verify(ctx context.Context, email, password string) (string, error) {
	var c models.Credential
	if err := s.ds.Get(ctx, Collection, text.Fold(email), &c); err != nil {
		if docstore.IsNotFound(err) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return c.UserID, nil
}
