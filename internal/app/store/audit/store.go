package audit

import (
	"context"
	"sort"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/google/uuid"
)

// Collection holds audit events.
const Collection = "audit_events"

// Event categories
const (
	CategoryAuth   = "auth"
	CategoryAdmin  = "admin"
	CategoryLedger = "ledger"
)

// Auth event types
const (
	EventLoginSuccess         = "login_success"
	EventLoginFailed          = "login_failed"
	EventLoginFailedRateLimit = "login_failed_rate_limit"
	EventLogout               = "logout"
	EventRegister             = "register"
)

// Admin event types
const (
	EventRoleChanged      = "role_changed"
	EventCardApproved     = "card_approved"
	EventCardRejected     = "card_rejected"
	EventIdentityApproved = "identity_approved"
	EventIdentityRejected = "identity_rejected"
	EventReportResolved   = "report_resolved"
	EventReportDismissed  = "report_dismissed"
	EventProjectModerated = "project_moderated"
	EventCommentDeleted   = "comment_deleted"
)

// Ledger event types
const (
	EventReconcileMismatch = "reconcile_mismatch"
)

// Event is one audit record.
type Event struct {
	ID        string    `bson:"_id"`
	Timestamp time.Time `bson:"timestamp"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	UserID  string `bson:"user_id,omitempty"`  // affected user
	ActorID string `bson:"actor_id,omitempty"` // who performed the action

	IP        string `bson:"ip,omitempty"`
	UserAgent string `bson:"user_agent,omitempty"`

	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter narrows Query. Zero values mean "any".
type QueryFilter struct {
	UserID    string
	ActorID   string
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// Store manages audit event records.
type Store struct {
	ds docstore.Store
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.ds.Insert(ctx, Collection, event.ID, event)
	return err
}

func (f QueryFilter) query() docstore.Query {
	q := docstore.Query{OrderBy: "timestamp", Desc: true, Limit: f.Limit}
	if q.Limit <= 0 {
		q.Limit = 100
	}
	add := func(field string, op docstore.Op, v any) {
		q.Filters = append(q.Filters, docstore.Where(field, op, v))
	}
	if f.UserID != "" {
		add("user_id", docstore.Eq, f.UserID)
	}
	if f.ActorID != "" {
		add("actor_id", docstore.Eq, f.ActorID)
	}
	if f.Category != "" {
		add("category", docstore.Eq, f.Category)
	}
	if f.EventType != "" {
		add("event_type", docstore.Eq, f.EventType)
	}
	if f.StartTime != nil {
		add("timestamp", docstore.Gte, *f.StartTime)
	}
	if f.EndTime != nil {
		add("timestamp", docstore.Lte, *f.EndTime)
	}
	return q
}

// Query returns events matching filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	var events []Event
	if err := s.ds.Query(ctx, Collection, filter.query(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter ignores filter.Limit.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	q := filter.query()
	q.Limit = 0
	return s.ds.Count(ctx, Collection, q)
}

// ByUser returns recent events where the user was affected or acted.
func (s *Store) ByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	affected, err := s.Query(ctx, QueryFilter{UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	acted, err := s.Query(ctx, QueryFilter{ActorID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(affected))
	out := make([]Event, 0, len(affected)+len(acted))
	for _, e := range append(affected, acted...) {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Recent returns the most recent events.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.Query(ctx, QueryFilter{Limit: limit})
}

// FailedLogins returns failed sign-in attempts since the given time.
func (s *Store) FailedLogins(ctx context.Context, since time.Time, limit int) ([]Event, error) {
	var events []Event
	err := s.ds.Query(ctx, Collection, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Where("category", docstore.Eq, CategoryAuth),
			docstore.Where("success", docstore.Eq, false),
			docstore.Where("timestamp", docstore.Gte, since),
		},
		OrderBy: "timestamp",
		Desc:    true,
		Limit:   limit,
	}, &events)
	return events, err
}
