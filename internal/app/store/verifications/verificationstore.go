package verificationstore

import (
	"context"
	"errors"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
)

// Collection holds identity verification requests.
const Collection = "verificaciones"

var ErrNotFound = errors.New("verification request not found")

type Store struct {
	ds docstore.Store
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.VerificationRequest, error) {
	var v models.VerificationRequest
	if err := s.ds.Get(ctx, Collection, id, &v); err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *Store) CountByStatus(ctx context.Context, status models.RequestStatus) (int64, error) {
	return s.ds.Count(ctx, Collection, docstore.Query{Filters: []docstore.Filter{
		docstore.Where("status", docstore.Eq, status),
	}})
}

// List returns requests in status, oldest first.
func (s *Store) List(ctx context.Context, status models.RequestStatus) ([]models.VerificationRequest, error) {
	q := docstore.Query{OrderBy: "created_at"}
	if status != "" {
		q.Filters = []docstore.Filter{docstore.Where("status", docstore.Eq, status)}
	}
	var out []models.VerificationRequest
	err := s.ds.Query(ctx, Collection, q, &out)
	return out, err
}

func Load(ctx context.Context, tx docstore.Tx, id string) (*models.VerificationRequest, error) {
	var v models.VerificationRequest
	if err := tx.Get(ctx, Collection, id, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func Save(tx docstore.Tx, v *models.VerificationRequest) error {
	return tx.Set(Collection, v.ID, v)
}

func Create(tx docstore.Tx, v *models.VerificationRequest) error {
	return tx.Create(Collection, v.ID, v)
}
