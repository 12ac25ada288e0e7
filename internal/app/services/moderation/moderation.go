// Package moderation handles user reports against projects and comments,
// and staff role management.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crewfund/crew/internal/app/services/notify"
	commentstore "github.com/crewfund/crew/internal/app/store/comments"
	projectstore "github.com/crewfund/crew/internal/app/store/projects"
	reportstore "github.com/crewfund/crew/internal/app/store/reports"
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

const (
	MaxReasonLength    = 1000
	DefaultReportLimit = 200
	DefaultUserLimit   = 500
)

type Service struct {
	ds      docstore.Store
	users   *userstore.Store
	reports *reportstore.Store
	notify  *notify.Dispatcher
	audit   *auditlog.Logger
	log     *zap.Logger
	now     func() time.Time
}

func New(ds docstore.Store, notifier *notify.Dispatcher, audit *auditlog.Logger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		ds:      ds,
		users:   userstore.New(ds),
		reports: reportstore.New(ds),
		notify:  notifier,
		audit:   audit,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateReport files a report. For a comment, projectID is taken from the
// comment itself.
func (s *Service) CreateReport(ctx context.Context, reporterID string, target models.ReportTarget, targetID, reason string) (*models.Report, error) {
	reason = htmlsanitize.StripTags(reason)
	switch {
	case target != models.TargetProject && target != models.TargetComment:
		return nil, apperr.Invalid("report target must be %q or %q", models.TargetProject, models.TargetComment)
	case targetID == "":
		return nil, apperr.Invalid("report target is required")
	case reason == "":
		return nil, apperr.Invalid("a reason is required")
	case len(reason) > MaxReasonLength:
		return nil, apperr.Invalid("reason must be at most %d characters", MaxReasonLength)
	}

	var projectID, title string
	switch target {
	case models.TargetProject:
		p, err := projectstore.New(s.ds).GetByID(ctx, targetID)
		if err != nil {
			if errors.Is(err, projectstore.ErrNotFound) {
				return nil, apperr.NotFound("project")
			}
			return nil, apperr.From(err)
		}
		if p.State == models.ProjectDeleted {
			return nil, apperr.NotFound("project")
		}
		projectID, title = p.ID, p.Title
	case models.TargetComment:
		var c models.Comment
		if err := s.ds.Get(ctx, commentstore.Collection, targetID, &c); err != nil {
			return nil, notFound(err, "comment")
		}
		projectID = c.ProjectID
	}

	r := models.Report{
		ID:         uuid.NewString(),
		TargetType: target,
		TargetID:   targetID,
		ProjectID:  projectID,
		Reason:     reason,
		ReporterID: reporterID,
		Status:     models.ReportPending,
		Timestamp:  s.now(),
	}
	if _, err := s.reports.Insert(ctx, r); err != nil {
		return nil, apperr.From(err)
	}

	s.log.Info("report filed",
		zap.String("report_id", r.ID),
		zap.String("target_type", string(target)),
		zap.String("target_id", targetID))

	m := notify.Message{
		Type:  models.NoticeProjectReported,
		Title: "Project reported",
		Body:  fmt.Sprintf("Project %q was reported: %s", title, reason),
		Link:  "/moderation",
		Actor: reporterID,
		Meta:  map[string]string{"report_id": r.ID, "project_id": projectID},
	}
	if target == models.TargetComment {
		m.Type = models.NoticeCommentReported
		m.Title = "Comment reported"
		m.Body = "A comment was reported: " + reason
		m.Meta["comment_id"] = targetID
	}
	s.notify.ToMods(ctx, m)
	return &r, nil
}

// ResolveReport applies action to the report's target and closes the report
// in one transaction.
func (s *Service) ResolveReport(ctx context.Context, reportID, actorID string, action models.ModerationAction) (*models.Report, error) {
	switch action {
	case models.ActionHide, models.ActionDelete, models.ActionReject:
	default:
		return nil, apperr.Invalid("action must be hide, delete or reject")
	}
	if _, err := s.requireCap(ctx, actorID, authz.CapModerate); err != nil {
		return nil, err
	}

	var rep *models.Report
	var affected *models.Project
	err := txn.Run(ctx, s.ds, s.log, "report.resolve", func(ctx context.Context, tx docstore.Tx) error {
		affected = nil
		r, err := reportstore.Load(ctx, tx, reportID)
		if err != nil {
			return notFound(err, "report")
		}
		if r.Status != models.ReportPending {
			return apperr.ErrAlreadyResolved.WithMessage("report was already %s", r.Status)
		}
		now := s.now()

		switch {
		case action == models.ActionReject:
		case r.TargetType == models.TargetProject:
			p, err := projectstore.Load(ctx, tx, r.TargetID)
			if err != nil {
				return notFound(err, "project")
			}
			if action == models.ActionHide {
				p.State = models.ProjectHidden
			} else {
				p.State = models.ProjectDeleted
				p.DeletedAt = &now
			}
			p.ModeratedBy = actorID
			if err := projectstore.Save(tx, p); err != nil {
				return err
			}
			affected = p
		case r.TargetType == models.TargetComment:
			if action == models.ActionHide {
				return apperr.Invalid("comments cannot be hidden, only deleted")
			}
			if err := s.deleteComment(ctx, tx, r.TargetID); err != nil {
				return err
			}
		}

		r.Status = models.ReportResolved
		if action == models.ActionReject {
			r.Status = models.ReportRejected
		}
		r.ActionTaken = action
		r.ActionBy = actorID
		r.ActionAt = &now
		if err := reportstore.Save(tx, r); err != nil {
			return err
		}
		rep = r
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.log.Info("report resolved",
		zap.String("report_id", rep.ID),
		zap.String("action", string(action)),
		zap.String("actor_id", actorID))
	s.audit.ReportHandled(ctx, actorID, rep.ID, string(rep.TargetType), rep.TargetID, string(action))

	if affected != nil {
		verb := "hidden"
		if affected.State == models.ProjectDeleted {
			verb = "removed"
		}
		s.notify.ToUser(ctx, affected.CreatorID, notify.Message{
			Type:  models.NoticeProjectModerated,
			Title: "Project " + verb,
			Body:  fmt.Sprintf("Your project %q was %s by moderation.", affected.Title, verb),
			Link:  "/dashboard",
			Actor: actorID,
			Meta:  map[string]string{"project_id": affected.ID, "action": string(action)},
		})
	}
	return rep, nil
}

// deleteComment removes a comment and takes its rating back out of the
// project's totals. A comment that is already gone is not an error.
func (s *Service) deleteComment(ctx context.Context, tx docstore.Tx, id string) error {
	c, err := commentstore.Load(ctx, tx, id)
	if docstore.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := commentstore.Delete(tx, id); err != nil {
		return err
	}
	p, err := projectstore.Load(ctx, tx, c.ProjectID)
	if docstore.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.RatingCount > 0 {
		p.RatingCount--
		p.RatingTotal = max(0, p.RatingTotal-int64(c.Rating))
	}
	return projectstore.Save(tx, p)
}

// ListReports returns reports newest first. An empty status lists all.
func (s *Service) ListReports(ctx context.Context, actorID string, status models.ReportStatus) ([]models.Report, error) {
	if _, err := s.requireCap(ctx, actorID, authz.CapModerate); err != nil {
		return nil, err
	}
	out, err := s.reports.List(ctx, status, DefaultReportLimit)
	if err != nil {
		return nil, apperr.From(err)
	}
	return out, nil
}

// SetRole changes another user's role.
func (s *Service) SetRole(ctx context.Context, actorID, targetID, role string) (*models.User, error) {
	newRole, err := models.ParseRole(role)
	if err != nil {
		return nil, apperr.Invalid("unknown role %q", role)
	}
	if _, err := s.requireCap(ctx, actorID, authz.CapManageRoles); err != nil {
		return nil, err
	}
	if actorID == targetID {
		return nil, apperr.ErrSelfRoleChange
	}

	var u *models.User
	var from models.Role
	err = txn.Run(ctx, s.ds, s.log, "user.set_role", func(ctx context.Context, tx docstore.Tx) error {
		var err error
		u, err = userstore.Load(ctx, tx, targetID)
		if err != nil {
			return notFound(err, "user")
		}
		from = u.Role
		if from == newRole {
			return nil
		}
		u.Role = newRole
		return userstore.Save(tx, u)
	})
	if err != nil {
		return nil, apperr.From(err)
	}
	if from != newRole {
		s.log.Info("role changed",
			zap.String("user_id", targetID),
			zap.String("actor_id", actorID),
			zap.String("from", string(from)),
			zap.String("to", string(newRole)))
		s.audit.RoleChanged(ctx, actorID, targetID, string(from), string(newRole))
	}
	return u, nil
}

// ListUsers returns users for the admin panel, optionally filtered by role.
func (s *Service) ListUsers(ctx context.Context, actorID string, role models.Role) ([]models.User, error) {
	if _, err := s.requireCap(ctx, actorID, authz.CapViewUsers); err != nil {
		return nil, err
	}
	out, err := s.users.List(ctx, role, DefaultUserLimit)
	if err != nil {
		return nil, apperr.From(err)
	}
	return out, nil
}

func (s *Service) requireCap(ctx context.Context, actorID string, c authz.Capability) (*models.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, apperr.From(err)
	}
	if err := authz.Require(actor.Role, c); err != nil {
		return nil, err
	}
	return actor, nil
}

func notFound(err error, what string) error {
	if docstore.IsNotFound(err) {
		return apperr.NotFound(what)
	}
	return err
}
