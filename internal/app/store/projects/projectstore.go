package projectstore

import (
	"context"
	"errors"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
)

// Collection holds crowdfunding projects.
const Collection = "proyectos"

var ErrNotFound = errors.New("project not found")

// Discoverable lists the states shown on the public listing.
var Discoverable = []models.ProjectState{models.ProjectPublished, models.ProjectGoalReached}

type Store struct {
	ds docstore.Store
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := s.ds.Get(ctx, Collection, id, &p); err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CountCreatedSince counts a creator's projects created at or after since,
// whatever their current state.
func (s *Store) CountCreatedSince(ctx context.Context, creatorID string, since time.Time) (int64, error) {
	return s.ds.Count(ctx, Collection, docstore.Query{Filters: []docstore.Filter{
		docstore.Where("creator_id", docstore.Eq, creatorID),
		docstore.Where("created_at", docstore.Gte, since),
	}})
}

// ListByCreator returns a creator's projects, newest first. Deleted
// projects are left out.
func (s *Store) ListByCreator(ctx context.Context, creatorID string) ([]models.Project, error) {
	var out []models.Project
	err := s.ds.Query(ctx, Collection, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Where("creator_id", docstore.Eq, creatorID),
			docstore.Where("state", docstore.Ne, models.ProjectDeleted),
		},
		OrderBy: "created_at",
		Desc:    true,
	}, &out)
	return out, err
}

// Discover lists public projects, newest first. A non-empty keyword must
// match one of the project's search keywords after folding.
func (s *Store) Discover(ctx context.Context, keyword string, limit int) ([]models.Project, error) {
	q := docstore.Query{
		Filters: []docstore.Filter{docstore.Where("state", docstore.In, Discoverable)},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	}
	if kw := text.Fold(keyword); kw != "" {
		q.Filters = append(q.Filters, docstore.Where("search_keywords", docstore.Eq, kw))
	}
	var out []models.Project
	err := s.ds.Query(ctx, Collection, q, &out)
	return out, err
}

// All returns every project. Used by reconciliation.
func (s *Store) All(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := s.ds.Query(ctx, Collection, docstore.Query{OrderBy: "created_at"}, &out)
	return out, err
}

// Load reads a project inside a transaction.
func Load(ctx context.Context, tx docstore.Tx, id string) (*models.Project, error) {
	var p models.Project
	if err := tx.Get(ctx, Collection, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save buffers a write of p, which must have been loaded in tx.
func Save(tx docstore.Tx, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	return tx.Set(Collection, p.ID, p)
}

// Create buffers the insert of a new project.
func Create(tx docstore.Tx, p *models.Project) error {
	return tx.Create(Collection, p.ID, p)
}
