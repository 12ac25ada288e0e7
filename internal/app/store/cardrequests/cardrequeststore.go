package cardrequeststore

import (
	"context"
	"errors"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
)

// Collection holds virtual card requests.
const Collection = "solicitudesTarjeta"

var ErrNotFound = errors.New("card request not found")

type Store struct {
	ds docstore.Store
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.CardRequest, error) {
	var r models.CardRequest
	if err := s.ds.Get(ctx, Collection, id, &r); err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// HasPending reports whether userID has a request awaiting review.
func (s *Store) HasPending(ctx context.Context, userID string) (bool, error) {
	n, err := s.ds.Count(ctx, Collection, docstore.Query{Filters: []docstore.Filter{
		docstore.Where("user_id", docstore.Eq, userID),
		docstore.Where("status", docstore.Eq, models.RequestPending),
	}})
	return n > 0, err
}

// CountByStatus counts requests in status.
func (s *Store) CountByStatus(ctx context.Context, status models.RequestStatus) (int64, error) {
	return s.ds.Count(ctx, Collection, docstore.Query{Filters: []docstore.Filter{
		docstore.Where("status", docstore.Eq, status),
	}})
}

// List returns requests, oldest first. An empty status lists all.
func (s *Store) List(ctx context.Context, status models.RequestStatus) ([]models.CardRequest, error) {
	q := docstore.Query{OrderBy: "created_at"}
	if status != "" {
		q.Filters = []docstore.Filter{docstore.Where("status", docstore.Eq, status)}
	}
	var out []models.CardRequest
	err := s.ds.Query(ctx, Collection, q, &out)
	return out, err
}

func Load(ctx context.Context, tx docstore.Tx, id string) (*models.CardRequest, error) {
	var r models.CardRequest
	if err := tx.Get(ctx, Collection, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func Save(tx docstore.Tx, r *models.CardRequest) error {
	return tx.Set(Collection, r.ID, r)
}

func Create(tx docstore.Tx, r *models.CardRequest) error {
	return tx.Create(Collection, r.ID, r)
}
