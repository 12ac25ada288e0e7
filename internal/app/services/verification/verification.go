// Package verification runs identity (KYC) review.
//
// A user's flag moves NotVerified → Pending → Verified, or back to
// NotVerified with a note explaining the rejection.
package verification

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/crewfund/crew/internal/app/services/notify"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	verificationstore "github.com/crewfund/crew/internal/app/store/verifications"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/auditlog"
	"github.com/crewfund/crew/internal/app/system/authz"
	"github.com/crewfund/crew/internal/app/system/blob"
	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/app/system/htmlsanitize"
	"github.com/crewfund/crew/internal/app/system/txn"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxImageBytes   = 5 << 20
	MaxReasonLength = 500
)

var ciPattern = regexp.MustCompile(`^[0-9A-Za-z-]{5,15}$`)

// Submission is what a user sends to get verified.
type Submission struct {
	CINumber  string
	Image     []byte
	ImageType string
}

type Service struct {
	ds       docstore.Store
	users    *userstore.Store
	requests *verificationstore.Store
	blobs    blob.Store
	notify   *notify.Dispatcher
	audit    *auditlog.Logger
	log      *zap.Logger
	now      func() time.Time
}

func New(ds docstore.Store, blobs blob.Store, notifier *notify.Dispatcher, audit *auditlog.Logger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		ds:       ds,
		users:    userstore.New(ds),
		requests: verificationstore.New(ds),
		blobs:    blobs,
		notify:   notifier,
		audit:    audit,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestVerification uploads the identity document and files a request.
func (s *Service) RequestVerification(ctx context.Context, userID string, sub Submission) (*models.VerificationRequest, error) {
	ci := strings.TrimSpace(sub.CINumber)
	switch {
	case ci == "" || len(sub.Image) == 0:
		return nil, apperr.Invalid("identity number and document image are required")
	case !ciPattern.MatchString(ci):
		return nil, apperr.Invalid("identity number must be 5 to 15 letters, digits or dashes")
	case len(sub.Image) > MaxImageBytes:
		return nil, apperr.Invalid("image must be at most %d bytes", MaxImageBytes)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.From(err)
	}
	if err := checkCanRequest(u); err != nil {
		return nil, err
	}
	if s.blobs == nil {
		return nil, apperr.ErrUnavailable.WithMessage("document uploads are not configured")
	}

	now := s.now()
	imgPath := blob.IdentityImagePath(userID, now)
	if err := s.blobs.Put(ctx, imgPath, bytes.NewReader(sub.Image), &blob.PutOptions{ContentType: sub.ImageType}); err != nil {
		s.log.Error("identity image upload failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperr.ErrUnavailable.Wrap(err)
	}

	var req *models.VerificationRequest
	err = txn.Run(ctx, s.ds, s.log, "kyc.request", func(ctx context.Context, tx docstore.Tx) error {
		u, err := userstore.Load(ctx, tx, userID)
		if err != nil {
			return notFound(err, "user")
		}
		if err := checkCanRequest(u); err != nil {
			return err
		}
		req = &models.VerificationRequest{
			ID:         uuid.NewString(),
			UserID:     userID,
			Email:      u.Email,
			CINumber:   ci,
			FrontImage: imgPath,
			Status:     models.RequestPending,
			CreatedAt:  now,
		}
		u.IDVerification = models.IDPending
		u.IDVerificationNote = ""
		u.CINumber = ci
		u.CIFrontImage = imgPath
		if err := verificationstore.Create(tx, req); err != nil {
			return err
		}
		return userstore.Save(tx, u)
	})
	if err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), imgPath); derr != nil {
			s.log.Warn("orphaned identity image", zap.String("path", imgPath), zap.Error(derr))
		}
		return nil, apperr.From(err)
	}

	s.log.Info("identity verification requested", zap.String("user_id", userID), zap.String("request_id", req.ID))
	msg := notify.Message{
		Type:  models.NoticeKYCRequest,
		Title: "New identity verification",
		Body:  req.Email + " submitted an identity document for review.",
		Link:  "/admin/verification",
		Actor: userID,
		Meta:  map[string]string{"request_id": req.ID},
	}
	s.notify.ToAdmins(ctx, msg)
	s.notify.ToMods(ctx, msg)
	return req, nil
}

func checkCanRequest(u *models.User) error {
	switch u.IDVerification {
	case models.IDVerified:
		return apperr.ErrAlreadyVerified
	case models.IDPending:
		return apperr.ErrPendingRequestExists.WithMessage("your identity verification is already pending review")
	}
	return nil
}

// ApproveIdentity marks the requesting user as verified.
func (s *Service) ApproveIdentity(ctx context.Context, requestID, actorID string) (*models.VerificationRequest, error) {
	return s.resolve(ctx, requestID, actorID, true, "")
}

// RejectIdentity returns the user to not verified with reason as a note.
func (s *Service) RejectIdentity(ctx context.Context, requestID, actorID, reason string) (*models.VerificationRequest, error) {
	reason = htmlsanitize.StripTags(reason)
	if len(reason) > MaxReasonLength {
		return nil, apperr.Invalid("reason must be at most %d characters", MaxReasonLength)
	}
	return s.resolve(ctx, requestID, actorID, false, reason)
}

func (s *Service) resolve(ctx context.Context, requestID, actorID string, approve bool, reason string) (*models.VerificationRequest, error) {
	if err := s.requireReviewer(ctx, actorID); err != nil {
		return nil, err
	}

	var req *models.VerificationRequest
	err := txn.Run(ctx, s.ds, s.log, "kyc.review", func(ctx context.Context, tx docstore.Tx) error {
		r, err := verificationstore.Load(ctx, tx, requestID)
		if err != nil {
			return notFound(err, "verification request")
		}
		if r.Status != models.RequestPending {
			return apperr.ErrAlreadyResolved.WithMessage("verification request was already %s", r.Status)
		}
		u, err := userstore.Load(ctx, tx, r.UserID)
		if err != nil {
			return notFound(err, "user")
		}
		now := s.now()
		r.ResolvedBy = actorID
		r.ResolvedAt = &now
		if approve {
			r.Status = models.RequestApproved
			u.IDVerification = models.IDVerified
			u.IDVerificationNote = ""
		} else {
			r.Status = models.RequestRejected
			r.Reason = reason
			u.IDVerification = models.IDNotVerified
			u.IDVerificationNote = reason
		}
		if err := verificationstore.Save(tx, r); err != nil {
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

	s.log.Info("identity reviewed",
		zap.String("request_id", req.ID),
		zap.String("user_id", req.UserID),
		zap.String("actor_id", actorID),
		zap.Bool("approved", approve))
	s.audit.IdentityReviewed(ctx, actorID, req.UserID, req.ID, approve, reason)

	m := notify.Message{
		Type:  models.NoticeKYCStatus,
		Link:  "/profile",
		Actor: actorID,
		Meta:  map[string]string{"request_id": req.ID, "status": string(req.Status)},
	}
	if approve {
		m.Title = "Identity verified"
		m.Body = "Your identity was verified. You can now publish projects."
	} else {
		m.Title = "Identity verification rejected"
		m.Body = "Your identity verification was rejected."
		if reason != "" {
			m.Body += " Reason: " + reason
			m.Meta["reason"] = reason
		}
	}
	s.notify.ToUser(ctx, req.UserID, m)
	return req, nil
}

// ListPending returns requests awaiting review, oldest first.
func (s *Service) ListPending(ctx context.Context, actorID string) ([]models.VerificationRequest, error) {
	if err := s.requireReviewer(ctx, actorID); err != nil {
		return nil, err
	}
	out, err := s.requests.List(ctx, models.RequestPending)
	if err != nil {
		return nil, apperr.From(err)
	}
	return out, nil
}

// DocumentURL returns a URL for the request's identity image.
func (s *Service) DocumentURL(ctx context.Context, requestID, actorID string) (string, error) {
	if err := s.requireReviewer(ctx, actorID); err != nil {
		return "", err
	}
	r, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, verificationstore.ErrNotFound) {
			return "", apperr.NotFound("verification request")
		}
		return "", apperr.From(err)
	}
	if s.blobs == nil {
		return "", apperr.ErrUnavailable.WithMessage("document uploads are not configured")
	}
	url, err := s.blobs.URL(ctx, r.FrontImage)
	if err != nil {
		return "", apperr.ErrUnavailable.Wrap(err)
	}
	return url, nil
}

// CountPending is used by the review digest.
func (s *Service) CountPending(ctx context.Context) (int64, error) {
	return s.requests.CountByStatus(ctx, models.RequestPending)
}

func (s *Service) requireReviewer(ctx context.Context, actorID string) error {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return apperr.ErrUnauthenticated
		}
		return apperr.From(err)
	}
	return authz.Require(actor.Role, authz.CapReviewIdentity)
}

func notFound(err error, what string) error {
	if docstore.IsNotFound(err) {
		return apperr.NotFound(what)
	}
	return err
}
