// Package ledger moves money between wallets, projects and withdrawable
// balances.
//
// Each operation is one read-decide-write recipe run through txn, so a
// conflicting writer causes the whole recipe to run again against fresh
// documents. Log entries and notifications are written after commit and
// never fail the operation.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/crewfund/crew/internal/app/services/notify"
	idempotencystore "github.com/crewfund/crew/internal/app/store/idempotency"
	projectstore "github.com/crewfund/crew/internal/app/store/projects"
	txlogstore "github.com/crewfund/crew/internal/app/store/txlog"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/auditlog"
	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/app/system/txn"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/domain/money"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Operation names, also used to scope idempotency keys.
const (
	OpDonate   = "donate"
	OpWithdraw = "withdraw"
	OpReclaim  = "reclaim"
	OpRecharge = "recharge"
)

// Config holds ledger policy.
type Config struct {
	MinRecharge money.Cents
	MaxRecharge money.Cents
	Retry       txn.Policy
}

// DefaultConfig returns the stock recharge bounds and retry policy.
func DefaultConfig() Config {
	return Config{
		MinRecharge: money.FromUnits(100),
		MaxRecharge: money.FromUnits(5000),
		Retry:       txn.DefaultPolicy,
	}
}

// Receipt is the committed outcome of a ledger operation. A replayed
// idempotent call returns the stored receipt with Replayed set.
type Receipt struct {
	Op           string              `bson:"op" json:"op"`
	Amount       money.Cents         `bson:"amount" json:"amount"`
	Balance      money.Cents         `bson:"balance" json:"balance"`
	Withdrawable money.Cents         `bson:"withdrawable" json:"withdrawable_balance"`
	ProjectID    string              `bson:"project_id,omitempty" json:"project_id,omitempty"`
	Raised       money.Cents         `bson:"raised,omitempty" json:"raised,omitempty"`
	ProjectState models.ProjectState `bson:"project_state,omitempty" json:"project_state,omitempty"`
	GoalReached  bool                `bson:"goal_reached,omitempty" json:"goal_reached,omitempty"`
	At           time.Time           `bson:"at" json:"at"`
	Replayed     bool                `bson:"-" json:"replayed"`
}

// Service runs ledger operations against one store.
type Service struct {
	ds       docstore.Store
	txlog    *txlogstore.Store
	projects *projectstore.Store
	notify   *notify.Dispatcher
	audit    *auditlog.Logger
	log      *zap.Logger
	cfg      Config
	now      func() time.Time
}

// New builds a ledger Service. notifier and audit may be nil.
func New(ds docstore.Store, notifier *notify.Dispatcher, audit *auditlog.Logger, log *zap.Logger, cfg Config) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.MinRecharge <= 0 {
		cfg.MinRecharge = def.MinRecharge
	}
	if cfg.MaxRecharge <= 0 {
		cfg.MaxRecharge = def.MaxRecharge
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	return &Service{
		ds:       ds,
		txlog:    txlogstore.New(ds),
		projects: projectstore.New(ds),
		notify:   notifier,
		audit:    audit,
		log:      log,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the effective policy.
func (s *Service) Config() Config { return s.cfg }

type recipe func(ctx context.Context, tx docstore.Tx, now time.Time) (*Receipt, error)

// execute runs fn atomically. With a key, the receipt is stored in the same
// transaction and a repeat call returns it instead of running fn again.
func (s *Service) execute(ctx context.Context, op, actorID, key string, fn recipe) (*Receipt, error) {
	if len(key) > idempotencystore.MaxKeyLength {
		return nil, apperr.Invalid("idempotency key is longer than %d characters", idempotencystore.MaxKeyLength)
	}
	recID := ""
	if key != "" {
		recID = idempotencystore.Key(op, actorID, key)
	}

	var out *Receipt
	err := txn.RunWithPolicy(ctx, s.ds, s.cfg.Retry, s.log, op, func(ctx context.Context, tx docstore.Tx) error {
		out = nil
		if recID != "" {
			var prior Receipt
			found, err := idempotencystore.Lookup(ctx, tx, recID, &prior)
			if err != nil {
				return err
			}
			if found {
				prior.Replayed = true
				out = &prior
				return nil
			}
		}
		r, err := fn(ctx, tx, s.now())
		if err != nil {
			return err
		}
		r.Op = op
		if recID != "" {
			if err := idempotencystore.Remember(tx, recID, op, actorID, r); err != nil {
				return err
			}
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if out.Replayed {
		s.log.Info("idempotent replay", zap.String("op", op), zap.String("actor_id", actorID))
	}
	return out, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, txn.ErrRetriesExhausted) {
		return apperr.ErrConflict.Wrap(err)
	}
	return apperr.From(err)
}

func notFound(err error, what string) error {
	if docstore.IsNotFound(err) {
		return apperr.NotFound(what)
	}
	return err
}

// afterCommit runs best-effort writes concurrently on a context detached
// from the caller's cancellation.
func (s *Service) afterCommit(ctx context.Context, op string, entries []models.Transaction, notices ...func(context.Context)) {
	ctx, cancel := timeouts.WithTimeout(context.WithoutCancel(ctx), timeouts.Short(), s.log, op+".post_commit")
	defer cancel()

	var g errgroup.Group
	for _, e := range entries {
		g.Go(func() error {
			if _, err := s.txlog.Append(ctx, e); err != nil {
				s.log.Error("ledger log entry not written",
					zap.String("op", op),
					zap.String("kind", string(e.Kind)),
					zap.String("source_id", e.SourceID),
					zap.String("destination_id", e.DestinationID),
					zap.Int64("amount_cents", int64(e.Amount)),
					zap.Error(err))
				return err
			}
			return nil
		})
	}
	for _, n := range notices {
		g.Go(func() error {
			n(ctx)
			return nil
		})
	}
	_ = g.Wait()
}
