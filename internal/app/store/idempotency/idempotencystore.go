// Package idempotencystore records the outcome of keyed money operations so
// a retried request returns the first result instead of applying twice.
package idempotencystore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"go.mongodb.org/mongo-driver/bson"
)

// Collection holds idempotency records.
const Collection = "idempotencia"

// MaxKeyLength bounds caller-supplied keys.
const MaxKeyLength = 128

// Record is the stored outcome of one keyed operation.
type Record struct {
	ID        string    `bson:"_id"`
	Op        string    `bson:"op"`
	ActorID   string    `bson:"actor_id"`
	Receipt   bson.Raw  `bson:"receipt"`
	CreatedAt time.Time `bson:"created_at"`
}

// Key scopes a caller key to an operation and actor, so two users (or two
// operations) may reuse the same key without colliding.
func Key(op, actorID, key string) string {
	return op + ":" + actorID + ":" + strings.TrimSpace(key)
}

// Lookup reads the record for id inside tx. When found, the receipt is
// decoded into out. The read joins the transaction's read set, so two
// concurrent first attempts conflict and only one commits.
func Lookup(ctx context.Context, tx docstore.Tx, id string, out any) (bool, error) {
	var rec Record
	if err := tx.Get(ctx, Collection, id, &rec); err != nil {
		if docstore.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := bson.Unmarshal(rec.Receipt, out); err != nil {
		return false, fmt.Errorf("idempotency: decode receipt %s: %w", id, err)
	}
	return true, nil
}

// Remember buffers the record for id in tx, committed with the operation.
func Remember(tx docstore.Tx, id, op, actorID string, receipt any) error {
	raw, err := bson.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("idempotency: encode receipt: %w", err)
	}
	return tx.Create(Collection, id, Record{
		ID:        id,
		Op:        op,
		ActorID:   actorID,
		Receipt:   raw,
		CreatedAt: time.Now().UTC(),
	})
}

type Store struct {
	ds docstore.Store
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

// Prune deletes records created before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	var old []Record
	err := s.ds.Query(ctx, Collection, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("created_at", docstore.Lt, cutoff)},
		Limit:   1000,
	}, &old)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range old {
		if err := s.ds.Delete(ctx, Collection, r.ID); err != nil && !docstore.IsNotFound(err) {
			return n, err
		}
		n++
	}
	return n, nil
}
