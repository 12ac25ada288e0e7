// internal/app/system/workers/relay.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/app/system/events"
	"go.uber.org/zap"
)

// ChangeRelay forwards the change feeds of a set of collections to a
// publisher. Publish failures are logged and the change is dropped.
type ChangeRelay struct {
	store       docstore.Store
	pub         events.Publisher
	log         *zap.Logger
	collections []string
	resubscribe time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChangeRelay creates a relay for the given collections.
func NewChangeRelay(store docstore.Store, pub events.Publisher, logger *zap.Logger, collections ...string) *ChangeRelay {
	return &ChangeRelay{
		store:       store,
		pub:         pub,
		log:         logger,
		collections: collections,
		resubscribe: 5 * time.Second,
	}
}

// Start subscribes to every collection and begins forwarding.
func (w *ChangeRelay) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	for _, coll := range w.collections {
		w.wg.Add(1)
		go w.run(ctx, coll)
	}
	w.log.Info("change relay started", zap.Strings("collections", w.collections))
}

// Stop cancels the subscriptions and waits for in-flight publishes.
func (w *ChangeRelay) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.log.Info("change relay stopped")
}

// run keeps a subscription open for coll, re-subscribing after the feed ends.
func (w *ChangeRelay) run(ctx context.Context, coll string) {
	defer w.wg.Done()

	for {
		feed, err := w.store.Subscribe(ctx, coll)
		if err != nil {
			w.log.Warn("change feed subscribe failed", zap.String("collection", coll), zap.Error(err))
		} else {
			for c := range feed {
				w.forward(ctx, c)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.resubscribe):
		}
	}
}

func (w *ChangeRelay) forward(ctx context.Context, c docstore.Change) {
	ev, err := events.FromChange(c)
	if err != nil {
		w.log.Error("change event encode failed", zap.Error(err))
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.pub.Publish(pubCtx, events.RoutingKey(c.Collection, c.Kind), ev); err != nil {
		w.log.Warn("change event publish failed",
			zap.String("collection", c.Collection),
			zap.String("id", c.ID),
			zap.Error(err))
	}
}
