package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/crewfund/crew/internal/app/services/ledger"
	"github.com/crewfund/crew/internal/app/services/notify"
	idempotencystore "github.com/crewfund/crew/internal/app/store/idempotency"
	"github.com/crewfund/crew/internal/domain/models"
	"go.uber.org/zap"
)

// ReconcileJob compares every project's raised total with its donation log.
// Mismatches are logged and audited by the ledger service.
func ReconcileJob(l *ledger.Service, schedule string, logger *zap.Logger) Job {
	return Job{
		Name:     "ledger-reconcile",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			mm, err := l.Reconcile(ctx)
			if err != nil {
				return err
			}
			if len(mm) > 0 {
				logger.Warn("ledger reconciliation found mismatches", zap.Int("projects", len(mm)))
			}
			return nil
		},
	}
}

// PendingCounter counts requests awaiting staff review.
type PendingCounter interface {
	CountPending(ctx context.Context) (int64, error)
}

// ReviewDigestJob reminds administrators of pending identity and card
// requests. Nothing is sent when both queues are empty.
func ReviewDigestJob(kyc, cards PendingCounter, d *notify.Dispatcher, schedule string, logger *zap.Logger) Job {
	return Job{
		Name:     "review-digest",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			nKYC, err := kyc.CountPending(ctx)
			if err != nil {
				return err
			}
			nCards, err := cards.CountPending(ctx)
			if err != nil {
				return err
			}
			if nKYC+nCards == 0 {
				return nil
			}
			d.ToAdmins(ctx, notify.Message{
				Type:  models.NoticePendingReviewList,
				Title: "Pending reviews",
				Body:  fmt.Sprintf("%d identity verifications and %d card requests are waiting for review.", nKYC, nCards),
				Link:  "/admin",
				Meta: map[string]string{
					"kyc":   fmt.Sprint(nKYC),
					"cards": fmt.Sprint(nCards),
				},
			})
			logger.Info("review digest sent", zap.Int64("kyc", nKYC), zap.Int64("cards", nCards))
			return nil
		},
	}
}

// IdempotencyPruneJob deletes idempotency records older than retention.
// Mongo also expires them with a TTL index; this covers the in-memory store.
func IdempotencyPruneJob(s *idempotencystore.Store, retention time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "idempotency-prune",
		Schedule: "@every 1h",
		Run: func(ctx context.Context) error {
			n, err := s.Prune(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Debug("pruned idempotency records", zap.Int("count", n))
			}
			return nil
		},
	}
}
