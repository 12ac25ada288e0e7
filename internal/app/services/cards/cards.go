// Package cards runs the virtual card request workflow.
//
// A user's card moves None → Pending → Approved or Rejected; a rejected user
// may ask again, an approved card is final.
package cards

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/crewfund/crew/internal/app/services/notify"
	cardrequeststore "github.com/crewfund/crew/internal/app/store/cardrequests"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/auditlog"
	"github.com/crewfund/crew/internal/app/system/authz"
	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/app/system/htmlsanitize"
	"github.com/crewfund/crew/internal/app/system/txn"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxReasonLength bounds rejection reasons.
const MaxReasonLength = 500

type Service struct {
	ds       docstore.Store
	users    *userstore.Store
	requests *cardrequeststore.Store
	notify   *notify.Dispatcher
	audit    *auditlog.Logger
	gen      *Generator
	log      *zap.Logger
	now      func() time.Time
}

// New builds the card Service. A nil src seeds the generator randomly.
func New(ds docstore.Store, notifier *notify.Dispatcher, audit *auditlog.Logger, log *zap.Logger, src rand.Source) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		ds:       ds,
		users:    userstore.New(ds),
		requests: cardrequeststore.New(ds),
		notify:   notifier,
		audit:    audit,
		gen:      NewGenerator(src),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestCard files a card request for userID.
//
// Racing calls conflict on the user document, so at most one of them
// moves the user to CardPending and files a request.
func (s *Service) RequestCard(ctx context.Context, userID string) (*models.CardRequest, error) {
	if userID == "" {
		return nil, apperr.Invalid("user is required")
	}
	pending, err := s.requests.HasPending(ctx, userID)
	if err != nil {
		return nil, apperr.From(err)
	}
	if pending {
		return nil, apperr.ErrPendingRequestExists.WithMessage("you already have a card request pending review")
	}

	var req *models.CardRequest
	err = txn.Run(ctx, s.ds, s.log, "card.request", func(ctx context.Context, tx docstore.Tx) error {
		u, err := userstore.Load(ctx, tx, userID)
		if err != nil {
			return notFound(err, "user")
		}
		switch u.CardStatus {
		case models.CardApproved:
			return apperr.ErrCardAlreadyApproved
		case models.CardPending:
			return apperr.ErrPendingRequestExists.WithMessage("you already have a card request pending review")
		}
		now := s.now()
		req = &models.CardRequest{
			ID:        uuid.NewString(),
			UserID:    u.ID,
			Email:     u.Email,
			Status:    models.RequestPending,
			CreatedAt: now,
		}
		u.CardStatus = models.CardPending
		u.UpdatedAt = now
		if err := cardrequeststore.Create(tx, req); err != nil {
			return err
		}
		return userstore.Save(tx, u)
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.log.Info("card requested", zap.String("user_id", userID), zap.String("request_id", req.ID))
	s.notify.ToAdmins(ctx, notify.Message{
		Type:  models.NoticeCardRequest,
		Title: "New card request",
		Body:  fmt.Sprintf("%s requested a virtual card.", req.Email),
		Link:  "/admin/cards",
		Actor: userID,
		Meta:  map[string]string{"request_id": req.ID},
	})
	return req, nil
}

// ApproveCard issues a card for a pending request. Approved is terminal:
// a request still pending for a user who already holds a card is closed
// as rejected and ErrCardAlreadyApproved is returned.
func (s *Service) ApproveCard(ctx context.Context, requestID, actorID string) (*models.CardRequest, error) {
	if _, err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	var req *models.CardRequest
	var stale bool
	err := txn.Run(ctx, s.ds, s.log, "card.approve", func(ctx context.Context, tx docstore.Tx) error {
		r, u, err := s.loadPending(ctx, tx, requestID)
		if err != nil {
			return err
		}
		now := s.now()
		if stale = u.CardStatus == models.CardApproved; stale {
			req = r
			return closeStale(tx, r, actorID, staleReason, now)
		}
		card := s.gen.Issue(*u, now)

		r.Status = models.RequestApproved
		r.ResolvedBy = actorID
		r.ResolvedAt = &now
		r.CardLast4 = card.Last4()
		u.CardStatus = models.CardApproved
		u.VirtualCard = &card
		u.UpdatedAt = now

		if err := cardrequeststore.Save(tx, r); err != nil {
			return err
		}
		if err := userstore.Save(tx, u); err != nil {
			return err
		}
		req = r
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}
	if stale {
		s.log.Info("stale card request closed",
			zap.String("request_id", req.ID),
			zap.String("user_id", req.UserID),
			zap.String("actor_id", actorID))
		s.audit.CardReviewed(ctx, actorID, req.UserID, req.ID, false, staleReason)
		return nil, apperr.ErrCardAlreadyApproved.WithMessage("user already holds an approved card; request closed")
	}

	s.log.Info("card approved",
		zap.String("request_id", req.ID),
		zap.String("user_id", req.UserID),
		zap.String("actor_id", actorID))
	s.audit.CardReviewed(ctx, actorID, req.UserID, req.ID, true, "")
	s.notify.ToUser(ctx, req.UserID, notify.Message{
		Type:  models.NoticeCardApproved,
		Title: "Card approved",
		Body:  fmt.Sprintf("Your virtual card ending in %s is ready. You can now recharge your balance.", req.CardLast4),
		Link:  "/wallet",
		Actor: actorID,
		Meta:  map[string]string{"request_id": req.ID},
	})
	return req, nil
}

// RejectCard declines a pending request. If the user already holds an
// approved card only the request is resolved.
func (s *Service) RejectCard(ctx context.Context, requestID, actorID, reason string) (*models.CardRequest, error) {
	reason = strings.TrimSpace(htmlsanitize.StripTags(reason))
	if len(reason) > MaxReasonLength {
		return nil, apperr.Invalid("reason must be at most %d characters", MaxReasonLength)
	}
	if _, err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	var req *models.CardRequest
	var stale bool
	err := txn.Run(ctx, s.ds, s.log, "card.reject", func(ctx context.Context, tx docstore.Tx) error {
		r, u, err := s.loadPending(ctx, tx, requestID)
		if err != nil {
			return err
		}
		now := s.now()
		if stale = u.CardStatus == models.CardApproved; stale {
			req = r
			return closeStale(tx, r, actorID, reason, now)
		}
		r.Status = models.RequestRejected
		r.ResolvedBy = actorID
		r.ResolvedAt = &now
		r.Reason = reason
		u.CardStatus = models.CardRejected
		u.UpdatedAt = now

		if err := cardrequeststore.Save(tx, r); err != nil {
			return err
		}
		if err := userstore.Save(tx, u); err != nil {
			return err
		}
		req = r
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.log.Info("card rejected",
		zap.String("request_id", req.ID),
		zap.String("user_id", req.UserID),
		zap.String("actor_id", actorID))
	s.audit.CardReviewed(ctx, actorID, req.UserID, req.ID, false, reason)
	if stale {
		return req, nil
	}

	body := "Your virtual card request was rejected."
	if reason != "" {
		body += " Reason: " + reason
	}
	s.notify.ToUser(ctx, req.UserID, notify.Message{
		Type:  models.NoticeCardRejected,
		Title: "Card request rejected",
		Body:  body,
		Link:  "/wallet",
		Actor: actorID,
		Meta:  map[string]string{"request_id": req.ID, "reason": reason},
	})
	return req, nil
}

// ListRequests returns card requests in status, oldest first. An empty
// status lists all of them.
func (s *Service) ListRequests(ctx context.Context, actorID string, status models.RequestStatus) ([]models.CardRequest, error) {
	if _, err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	out, err := s.requests.List(ctx, status)
	if err != nil {
		return nil, apperr.From(err)
	}
	return out, nil
}

// CountPending is used by the review digest.
func (s *Service) CountPending(ctx context.Context) (int64, error) {
	return s.requests.CountByStatus(ctx, models.RequestPending)
}

func (s *Service) requireActor(ctx context.Context, actorID string) (*models.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, apperr.From(err)
	}
	if err := authz.Require(actor.Role, authz.CapApproveCards); err != nil {
		return nil, err
	}
	return actor, nil
}

func (s *Service) loadPending(ctx context.Context, tx docstore.Tx, requestID string) (*models.CardRequest, *models.User, error) {
	r, err := cardrequeststore.Load(ctx, tx, requestID)
	if err != nil {
		return nil, nil, notFound(err, "card request")
	}
	if r.Status != models.RequestPending {
		return nil, nil, apperr.ErrAlreadyResolved.WithMessage("card request was already %s", r.Status)
	}
	u, err := userstore.Load(ctx, tx, r.UserID)
	if err != nil {
		return nil, nil, notFound(err, "user")
	}
	return r, u, nil
}

const staleReason = "card already approved"

// closeStale resolves a leftover request without touching its user.
func closeStale(tx docstore.Tx, r *models.CardRequest, actorID, reason string, now time.Time) error {
	r.Status = models.RequestRejected
	r.ResolvedBy = actorID
	r.ResolvedAt = &now
	r.Reason = reason
	return cardrequeststore.Save(tx, r)
}

func notFound(err error, what string) error {
	if docstore.IsNotFound(err) {
		return apperr.NotFound(what)
	}
	return err
}
