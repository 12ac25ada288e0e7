package projectstore_test

import (
	"context"
	"testing"
	"time"

	projectstore "github.com/crewfund/crew/internal/app/store/projects"
	"github.com/crewfund/crew/internal/app/system/docstore/memstore"
	"github.com/crewfund/crew/internal/domain/models"
)

func seed(t *testing.T, ds *memstore.Store, p models.Project) {
	t.Helper()
	if _, err := ds.Insert(context.Background(), projectstore.Collection, p.ID, p); err != nil {
		t.Fatalf("seed %s: %v", p.ID, err)
	}
}

func TestDiscover(t *testing.T) {
	ctx := context.Background()
	ds := memstore.New()
	now := time.Now().UTC()
	seed(t, ds, models.Project{ID: "p1", State: models.ProjectPublished, SearchKeywords: []string{"agua", "pozo"}, CreatedAt: now.Add(-2 * time.Hour)})
	seed(t, ds, models.Project{ID: "p2", State: models.ProjectGoalReached, SearchKeywords: []string{"agua"}, CreatedAt: now.Add(-time.Hour)})
	seed(t, ds, models.Project{ID: "p3", State: models.ProjectHidden, SearchKeywords: []string{"agua"}, CreatedAt: now})
	seed(t, ds, models.Project{ID: "p4", State: models.ProjectClosed, SearchKeywords: []string{"agua"}, CreatedAt: now})

	s := projectstore.New(ds)
	got, err := s.Discover(ctx, "AGUA", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "p2" || got[1].ID != "p1" {
		t.Fatalf("Discover(agua) = %v", ids(got))
	}

	got, err = s.Discover(ctx, "pozo", 10)
	if err != nil || len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("Discover(pozo) = %v, %v", ids(got), err)
	}
}

func TestCountCreatedSince(t *testing.T) {
	ctx := context.Background()
	ds := memstore.New()
	now := time.Now().UTC()
	seed(t, ds, models.Project{ID: "old", CreatorID: "c1", CreatedAt: now.Add(-8 * 24 * time.Hour)})
	seed(t, ds, models.Project{ID: "new1", CreatorID: "c1", CreatedAt: now.Add(-time.Hour)})
	seed(t, ds, models.Project{ID: "new2", CreatorID: "c1", State: models.ProjectDeleted, CreatedAt: now.Add(-time.Minute)})
	seed(t, ds, models.Project{ID: "other", CreatorID: "c2", CreatedAt: now})

	n, err := projectstore.New(ds).CountCreatedSince(ctx, "c1", now.Add(-7*24*time.Hour))
	if err != nil || n != 2 {
		t.Errorf("CountCreatedSince = %d, %v; want 2", n, err)
	}
}

func ids(ps []models.Project) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
