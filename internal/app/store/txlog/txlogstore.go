// Package txlogstore is the append-only ledger log.
package txlogstore

import (
	"context"
	"sort"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/google/uuid"
)

// Collection holds ledger log entries.
const Collection = "transacciones"

type Store struct {
	ds docstore.Store
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

// Append inserts one entry, assigning an id and timestamp when missing.
func (s *Store) Append(ctx context.Context, e models.Transaction) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return s.ds.Insert(ctx, Collection, e.ID, e)
}

// History returns entries where party is the source or the destination,
// newest first.
func (s *Store) History(ctx context.Context, party string, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, field := range []string{"source_id", "destination_id"} {
		var part []models.Transaction
		q := docstore.Query{
			Filters: []docstore.Filter{docstore.Where(field, docstore.Eq, party)},
			OrderBy: "timestamp",
			Desc:    true,
			Limit:   limit,
		}
		if err := s.ds.Query(ctx, Collection, q, &part); err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DonationCredits returns the Credit Donation entries for a project. Zero
// from/to leave that side of the range open.
func (s *Store) DonationCredits(ctx context.Context, projectID string, from, to time.Time) ([]models.Transaction, error) {
	filters := []docstore.Filter{
		docstore.Where("destination_id", docstore.Eq, projectID),
		docstore.Where("kind", docstore.Eq, models.KindDonation),
		docstore.Where("direction", docstore.Eq, models.Credit),
	}
	if !from.IsZero() {
		filters = append(filters, docstore.Where("timestamp", docstore.Gte, from))
	}
	if !to.IsZero() {
		filters = append(filters, docstore.Where("timestamp", docstore.Lt, to))
	}
	var out []models.Transaction
	err := s.ds.Query(ctx, Collection, docstore.Query{Filters: filters, OrderBy: "timestamp"}, &out)
	return out, err
}
