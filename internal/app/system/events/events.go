// Package events exports store changes to a message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"go.mongodb.org/mongo-driver/bson"
)

// Event is the JSON body published for one document change.
type Event struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	At         time.Time       `json:"at"`
	Doc        json.RawMessage `json:"doc,omitempty"`
}

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, ev Event) error
	Close() error
}

// RoutingKey is "crew.<collection>.<kind>".
func RoutingKey(collection string, kind docstore.ChangeKind) string {
	return fmt.Sprintf("crew.%s.%s", collection, kind)
}

// FromChange converts a store change. The document, if any, is rendered as
// relaxed extended JSON so dates and numbers stay readable to consumers.
func FromChange(c docstore.Change) (Event, error) {
	ev := Event{
		Collection: c.Collection,
		ID:         c.ID,
		Kind:       string(c.Kind),
		At:         c.At,
	}
	if len(c.Doc) > 0 {
		doc, err := bson.MarshalExtJSON(bson.Raw(c.Doc), false, false)
		if err != nil {
			return Event{}, fmt.Errorf("events: encode %s/%s: %w", c.Collection, c.ID, err)
		}
		ev.Doc = doc
	}
	return ev, nil
}
