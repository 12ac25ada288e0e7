// Package notify writes and reads in-app notifications.
//
// Dispatch is fire-and-forget: a notification that fails to store is logged
// and dropped, and never fails the workflow that triggered it.
package notify

import (
	"context"
	"errors"
	"time"

	notificationstore "github.com/crewfund/crew/internal/app/store/notifications"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// DefaultLimit caps inbox listings.
const DefaultLimit = 50

// Message is the content of one notification.
type Message struct {
	Type  string
	Title string
	Body  string
	Link  string
	Actor string
	Meta  map[string]string
}

func (m Message) notification() models.Notification {
	return models.Notification{
		ActorUserID: m.Actor,
		Type:        m.Type,
		Title:       m.Title,
		Body:        m.Body,
		Link:        m.Link,
		Meta:        m.Meta,
		Timestamp:   time.Now().UTC(),
	}
}

// Dispatcher stores notifications for users and staff audiences.
type Dispatcher struct {
	store *notificationstore.Store
	log   *zap.Logger
}

func NewDispatcher(ds docstore.Store, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{store: notificationstore.New(ds), log: log}
}

// ToUser notifies one user.
func (d *Dispatcher) ToUser(ctx context.Context, userID string, m Message) {
	if d == nil || userID == "" {
		return
	}
	n := m.notification()
	n.TargetUserID = userID
	d.insert(ctx, n)
}

// ToAdmins broadcasts to administrators.
func (d *Dispatcher) ToAdmins(ctx context.Context, m Message) {
	d.broadcast(ctx, models.AudienceAdmins, m)
}

// ToMods broadcasts to moderators. Administrators see these too.
func (d *Dispatcher) ToMods(ctx context.Context, m Message) {
	d.broadcast(ctx, models.AudienceMods, m)
}

func (d *Dispatcher) broadcast(ctx context.Context, a models.Audience, m Message) {
	if d == nil {
		return
	}
	n := m.notification()
	n.Audience = a
	d.insert(ctx, n)
}

func (d *Dispatcher) insert(ctx context.Context, n models.Notification) {
	if _, err := d.store.Insert(ctx, n); err != nil {
		d.log.Warn("notification dropped",
			zap.String("type", n.Type),
			zap.String("target_user_id", n.TargetUserID),
			zap.String("audience", string(n.Audience)),
			zap.Error(err))
	}
}

// AudiencesFor lists the broadcast audiences a role receives.
func AudiencesFor(role models.Role) []models.Audience {
	switch role {
	case models.RoleAdministrator:
		return []models.Audience{models.AudienceAdmins, models.AudienceMods}
	case models.RoleModerator:
		return []models.Audience{models.AudienceMods}
	}
	return nil
}

// Inbox reads notifications on behalf of a user.
type Inbox struct {
	ds    docstore.Store
	store *notificationstore.Store
	log   *zap.Logger
}

func NewInbox(ds docstore.Store, log *zap.Logger) *Inbox {
	if log == nil {
		log = zap.NewNop()
	}
	return &Inbox{ds: ds, store: notificationstore.New(ds), log: log}
}

// ForUser returns the user's personal notifications, newest first.
func (in *Inbox) ForUser(ctx context.Context, userID string, onlyUnread bool) ([]models.Notification, error) {
	out, err := in.store.ForUser(ctx, userID, onlyUnread, DefaultLimit)
	if err != nil {
		return nil, apperr.From(err)
	}
	return out, nil
}

// ForAudience returns the staff broadcasts visible to role. Clients get none.
func (in *Inbox) ForAudience(ctx context.Context, role models.Role) ([]models.Notification, error) {
	out, err := in.store.ForAudiences(ctx, AudiencesFor(role), DefaultLimit)
	if err != nil {
		return nil, apperr.From(err)
	}
	return out, nil
}

// MarkRead marks a notification read. The reader must be its target or a
// member of its audience.
func (in *Inbox) MarkRead(ctx context.Context, readerID string, role models.Role, id string) error {
	n, err := in.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, notificationstore.ErrNotFound) {
			return apperr.NotFound("notification")
		}
		return apperr.From(err)
	}
	if !visibleTo(*n, readerID, role) {
		return apperr.ErrPermissionDenied
	}
	if n.Read {
		return nil
	}
	if err := in.store.MarkRead(ctx, id); err != nil {
		return apperr.From(err)
	}
	return nil
}

func visibleTo(n models.Notification, userID string, role models.Role) bool {
	if n.TargetUserID != "" {
		return n.TargetUserID == userID
	}
	for _, a := range AudiencesFor(role) {
		if a == n.Audience {
			return true
		}
	}
	return false
}

// Watch streams new notifications visible to the user until ctx ends.
func (in *Inbox) Watch(ctx context.Context, userID string, role models.Role) (<-chan models.Notification, error) {
	changes, err := in.ds.Subscribe(ctx, notificationstore.Collection)
	if err != nil {
		return nil, apperr.From(err)
	}
	out := make(chan models.Notification, 16)
	go func() {
		defer close(out)
		for c := range changes {
			if c.Kind != docstore.ChangeInsert || c.Doc == nil {
				continue
			}
			var n models.Notification
			if err := bson.Unmarshal(c.Doc, &n); err != nil {
				in.log.Warn("notification watch decode failed", zap.String("id", c.ID), zap.Error(err))
				continue
			}
			if !visibleTo(n, userID, role) {
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
