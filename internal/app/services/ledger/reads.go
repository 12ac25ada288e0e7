package ledger

import (
	"context"
	"errors"
	"time"

	projectstore "github.com/crewfund/crew/internal/app/store/projects"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/domain/money"
	"go.uber.org/zap"
)

// DefaultHistoryLimit caps History when the caller passes no limit.
const DefaultHistoryLimit = 100

// History returns the ledger entries that concern party, newest first.
// A donation is written twice; party sees only its own side of it.
func (s *Service) History(ctx context.Context, party string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	all, err := s.txlog.History(ctx, party, 2*limit)
	if err != nil {
		return nil, apperr.From(err)
	}
	out := make([]models.Transaction, 0, len(all))
	for _, e := range all {
		if e.Kind == models.KindDonation {
			if e.Direction == models.Credit && e.DestinationID != party {
				continue
			}
			if e.Direction == models.Debit && e.SourceID != party {
				continue
			}
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Stats summarizes donations to a project over a period.
type Stats struct {
	ProjectID    string      `json:"project_id"`
	Donations    int         `json:"donations"`
	Total        money.Cents `json:"total"`
	Average      money.Cents `json:"average"`
	UniqueDonors int         `json:"unique_donors"`
	From         *time.Time  `json:"from,omitempty"`
	To           *time.Time  `json:"to,omitempty"`
}

// ProjectStats aggregates the Credit donation entries of a project in
// [from, to). Zero times leave that side open.
func (s *Service) ProjectStats(ctx context.Context, projectID string, from, to time.Time) (*Stats, error) {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, apperr.Invalid("from must be before to")
	}
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, projectstore.ErrNotFound) {
			return nil, apperr.NotFound("project")
		}
		return nil, apperr.From(err)
	}
	entries, err := s.txlog.DonationCredits(ctx, projectID, from, to)
	if err != nil {
		return nil, apperr.From(err)
	}

	st := &Stats{ProjectID: projectID}
	if !from.IsZero() {
		st.From = &from
	}
	if !to.IsZero() {
		st.To = &to
	}
	donors := make(map[string]struct{})
	for _, e := range entries {
		st.Donations++
		st.Total += e.Amount
		donors[e.SourceID] = struct{}{}
	}
	st.UniqueDonors = len(donors)
	if st.Donations > 0 {
		st.Average = st.Total / money.Cents(st.Donations)
	}
	return st, nil
}

// Mismatch is a project whose raised total disagrees with its donation log.
type Mismatch struct {
	ProjectID string      `json:"project_id"`
	Raised    money.Cents `json:"raised"`
	Logged    money.Cents `json:"logged"`
}

// Reconcile compares every project's raised total with the sum of its
// logged donations. Log writes are best effort, so a mismatch is a lead to
// investigate, not proof of lost money.
func (s *Service) Reconcile(ctx context.Context) ([]Mismatch, error) {
	projects, err := s.projects.All(ctx)
	if err != nil {
		return nil, apperr.From(err)
	}
	var out []Mismatch
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		entries, err := s.txlog.DonationCredits(ctx, p.ID, time.Time{}, time.Time{})
		if err != nil {
			return out, apperr.From(err)
		}
		var logged money.Cents
		for _, e := range entries {
			logged += e.Amount
		}
		if logged == p.Raised {
			continue
		}
		m := Mismatch{ProjectID: p.ID, Raised: p.Raised, Logged: logged}
		out = append(out, m)
		s.log.Warn("ledger mismatch",
			zap.String("project_id", p.ID),
			zap.String("raised", p.Raised.String()),
			zap.String("logged", logged.String()))
		s.audit.ReconcileMismatch(ctx, p.ID, p.Raised.String(), logged.String())
	}
	return out, nil
}
