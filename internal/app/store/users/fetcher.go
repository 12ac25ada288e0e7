package userstore

import (
	"context"
	"errors"

	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/app/system/timeouts"
)

// Fetcher implements auth.UserFetcher so role changes apply on the next request.
type Fetcher struct {
	users *Store
}

func NewFetcher(users *Store) *Fetcher {
	return &Fetcher{users: users}
}

// FetchSessionUser returns nil, nil when the user no longer exists.
func (f *Fetcher) FetchSessionUser(ctx context.Context, userID string) (*auth.SessionUser, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := f.users.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &auth.SessionUser{
		ID:    u.ID,
		Name:  u.Name(),
		Email: u.Email,
		Role:  string(u.Role),
	}, nil
}
