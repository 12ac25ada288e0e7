package notificationstore

import (
	"context"
	"errors"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/google/uuid"
)

// Collection holds user and broadcast notifications.
const Collection = "notificaciones"

var ErrNotFound = errors.New("notification not found")

type Store struct {
	ds docstore.Store
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

// Insert stores n, assigning id and timestamp when missing.
func (s *Store) Insert(ctx context.Context, n models.Notification) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	return s.ds.Insert(ctx, Collection, n.ID, n)
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := s.ds.Get(ctx, Collection, id, &n); err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// ForUser returns notifications addressed to userID, newest first.
func (s *Store) ForUser(ctx context.Context, userID string, onlyUnread bool, limit int) ([]models.Notification, error) {
	filters := []docstore.Filter{docstore.Where("target_user_id", docstore.Eq, userID)}
	if onlyUnread {
		filters = append(filters, docstore.Where("read", docstore.Eq, false))
	}
	var out []models.Notification
	err := s.ds.Query(ctx, Collection, docstore.Query{Filters: filters, OrderBy: "timestamp", Desc: true, Limit: limit}, &out)
	return out, err
}

// ForAudiences returns broadcasts to any of the given audiences, newest first.
func (s *Store) ForAudiences(ctx context.Context, audiences []models.Audience, limit int) ([]models.Notification, error) {
	if len(audiences) == 0 {
		return nil, nil
	}
	var out []models.Notification
	err := s.ds.Query(ctx, Collection, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("audience", docstore.In, audiences)},
		OrderBy: "timestamp",
		Desc:    true,
		Limit:   limit,
	}, &out)
	return out, err
}

// MarkRead flips read to true.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	err := s.ds.Merge(ctx, Collection, id, map[string]any{"read": true})
	if docstore.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}
