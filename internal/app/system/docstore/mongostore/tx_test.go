package mongostore

import (
	"errors"
	"testing"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/testutil"
	"go.uber.org/zap"
)

type counter struct {
	N int `bson:"n"`
}

func TestCommitChecksReadOnlyDocuments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := New(db.Client(), db, zap.NewNop())

	for _, id := range []string{"a", "b"} {
		if _, err := s.Insert(ctx, "counters", id, counter{N: 1}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	tests := []struct {
		name   string
		change func() error
	}{
		{"unchanged", func() error { return nil }},
		{"read-only document updated", func() error {
			return s.Merge(ctx, "counters", "a", map[string]any{"n": 5})
		}},
		{"missing document created", func() error {
			_, err := s.Insert(ctx, "counters", "ghost", counter{})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newTx(s)
			var a, b, ghost counter
			if err := tx.Get(ctx, "counters", "a", &a); err != nil {
				t.Fatal(err)
			}
			if err := tx.Get(ctx, "counters", "b", &b); err != nil {
				t.Fatal(err)
			}
			if err := tx.Get(ctx, "counters", "ghost", &ghost); !errors.Is(err, docstore.ErrNotFound) {
				t.Fatalf("ghost err = %v", err)
			}
			var before counter
			_ = s.Get(ctx, "counters", "b", &before)

			b.N++
			if err := tx.Set("counters", "b", b); err != nil {
				t.Fatal(err)
			}
			if err := tt.change(); err != nil {
				t.Fatalf("change: %v", err)
			}

			err := tx.commit(ctx, ctx)
			var after counter
			_ = s.Get(ctx, "counters", "b", &after)
			if tt.name == "unchanged" {
				if err != nil || after.N != before.N+1 {
					t.Errorf("commit err = %v, b = %d", err, after.N)
				}
				return
			}
			if !errors.Is(err, docstore.ErrConflict) {
				t.Errorf("commit err = %v, want conflict", err)
			}
			if after.N != before.N {
				t.Errorf("b written despite conflict: %d", after.N)
			}
		})
	}
}
