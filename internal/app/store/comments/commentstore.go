package commentstore

import (
	"context"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
)

// Collection holds project comments, keyed by project_id.
const Collection = "comentarios"

type Store struct {
	ds docstore.Store
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

// ForProject returns a project's comments, newest first.
func (s *Store) ForProject(ctx context.Context, projectID string, limit int) ([]models.Comment, error) {
	var out []models.Comment
	err := s.ds.Query(ctx, Collection, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("project_id", docstore.Eq, projectID)},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	}, &out)
	return out, err
}

func Load(ctx context.Context, tx docstore.Tx, id string) (*models.Comment, error) {
	var c models.Comment
	if err := tx.Get(ctx, Collection, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Create(tx docstore.Tx, c *models.Comment) error {
	return tx.Create(Collection, c.ID, c)
}

// Delete buffers removal of a comment loaded in tx.
func Delete(tx docstore.Tx, id string) error {
	return tx.Delete(Collection, id)
}
