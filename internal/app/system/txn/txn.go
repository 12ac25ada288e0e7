// internal/app/system/txn/txn.go
package txn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrRetriesExhausted is returned when every attempt hit a conflict.
var ErrRetriesExhausted = errors.New("txn: too much contention, retries exhausted")

// Policy bounds how a transaction is retried after a conflict.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy is used by Run.
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseDelay:   20 * time.Millisecond,
	MaxDelay:    500 * time.Millisecond,
}

// Runner is the subset of docstore.Store needed to run transactions.
type Runner interface {
	RunTransaction(ctx context.Context, fn docstore.TxFunc) error
}

// Run executes fn in a transaction with DefaultPolicy.
func Run(ctx context.Context, store Runner, log *zap.Logger, op string, fn docstore.TxFunc) error {
	return RunWithPolicy(ctx, store, DefaultPolicy, log, op, fn)
}

// RunWithPolicy executes fn atomically, re-running the whole function on
// docstore.ErrConflict with exponential backoff. Any other error, including
// domain errors returned by fn, ends the loop immediately. When all attempts
// conflict the returned error wraps both ErrRetriesExhausted and
// docstore.ErrConflict.
func RunWithPolicy(ctx context.Context, store Runner, p Policy, log *zap.Logger, op string, fn docstore.TxFunc) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	delay := p.BaseDelay
	for attempt := 1; ; attempt++ {
		err := store.RunTransaction(ctx, fn)
		if err == nil || !errors.Is(err, docstore.ErrConflict) {
			return err
		}
		if attempt >= p.MaxAttempts {
			log.Warn("transaction retries exhausted",
				zap.String("op", op),
				zap.Int("attempts", attempt))
			return errors.Join(ErrRetriesExhausted, err)
		}

		log.Debug("transaction conflict, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay))

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

// IsNotSupported checks if the error indicates transactions are not supported.
// This happens on standalone MongoDB instances (not replica sets).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	// Check for specific MongoDB error codes
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		// 20: IllegalOperation (transactions not supported)
		// 51: (Transaction numbers are only allowed on a replica set member or mongos)
		// 263: OperationNotSupportedInTransaction
		switch cmdErr.Code {
		case 20, 51, 263:
			return true
		}
	}

	// Fall back to keyword matching; a single keyword is not enough.
	msg := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range []string{"transaction", "replica set", "session", "not supported", "illegal operation"} {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	return hits >= 2
}
