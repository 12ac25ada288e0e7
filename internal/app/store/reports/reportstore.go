package reportstore

import (
	"context"
	"errors"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
)

// Collection holds content reports.
const Collection = "reportes"

var ErrNotFound = errors.New("report not found")

type Store struct {
	ds docstore.Store
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	if err := s.ds.Get(ctx, Collection, id, &r); err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// Insert stores a new report and returns its id.
func (s *Store) Insert(ctx context.Context, r models.Report) (string, error) {
	return s.ds.Insert(ctx, Collection, r.ID, r)
}

// List returns reports newest first. An empty status lists all.
func (s *Store) List(ctx context.Context, status models.ReportStatus, limit int) ([]models.Report, error) {
	q := docstore.Query{OrderBy: "timestamp", Desc: true, Limit: limit}
	if status != "" {
		q.Filters = []docstore.Filter{docstore.Where("status", docstore.Eq, status)}
	}
	var out []models.Report
	err := s.ds.Query(ctx, Collection, q, &out)
	return out, err
}

func Load(ctx context.Context, tx docstore.Tx, id string) (*models.Report, error) {
	var r models.Report
	if err := tx.Get(ctx, Collection, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func Save(tx docstore.Tx, r *models.Report) error {
	return tx.Set(Collection, r.ID, r)
}
