package projects

import (
	"context"
	"fmt"

	"github.com/crewfund/crew/internal/app/services/notify"
	commentstore "github.com/crewfund/crew/internal/app/store/comments"
	projectstore "github.com/crewfund/crew/internal/app/store/projects"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/app/system/htmlsanitize"
	"github.com/crewfund/crew/internal/app/system/txn"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxCommentLength     = 1000
	DefaultCommentsLimit = 100
)

// AddComment stores a rated comment and folds the rating into the
// project's running total in the same transaction.
func (s *Service) AddComment(ctx context.Context, projectID, userID string, rating int, body string) (*models.Comment, error) {
	body = htmlsanitize.StripTags(body)
	switch {
	case rating < 1 || rating > 5:
		return nil, apperr.Invalid("rating must be between 1 and 5")
	case body == "":
		return nil, apperr.Invalid("comment text is required")
	case len(body) > MaxCommentLength:
		return nil, apperr.Invalid("comment must be at most %d characters", MaxCommentLength)
	}

	var c *models.Comment
	var p *models.Project
	err := txn.Run(ctx, s.ds, s.log, "project.comment", func(ctx context.Context, tx docstore.Tx) error {
		var err error
		p, err = projectstore.Load(ctx, tx, projectID)
		if err != nil {
			return notFound(err, "project")
		}
		if p.State.Moderated() {
			return apperr.ErrProjectModerated
		}
		u, err := userstore.Load(ctx, tx, userID)
		if err != nil {
			return notFound(err, "user")
		}
		now := s.now()
		c = &models.Comment{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			UserID:    userID,
			UserName:  u.Name(),
			Rating:    rating,
			Text:      body,
			CreatedAt: now,
		}
		p.RatingTotal += int64(rating)
		p.RatingCount++
		if err := commentstore.Create(tx, c); err != nil {
			return err
		}
		return projectstore.Save(tx, p)
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	if p.CreatorID != userID {
		s.notify.ToUser(ctx, p.CreatorID, notify.Message{
			Type:  models.NoticeNewComment,
			Title: "New comment",
			Body:  fmt.Sprintf("%s rated %q %d/5.", c.UserName, p.Title, rating),
			Link:  "/projects/" + projectID,
			Actor: userID,
			Meta:  map[string]string{"project_id": projectID, "comment_id": c.ID},
		})
	}
	s.log.Debug("comment added", zap.String("project_id", projectID), zap.String("comment_id", c.ID))
	return c, nil
}

// Comments lists a project's comments, newest first.
func (s *Service) Comments(ctx context.Context, projectID string, limit int) ([]models.Comment, error) {
	if limit <= 0 {
		limit = DefaultCommentsLimit
	}
	out, err := commentstore.New(s.ds).ForProject(ctx, projectID, limit)
	if err != nil {
		return nil, apperr.From(err)
	}
	return out, nil
}

func notFound(err error, what string) error {
	if docstore.IsNotFound(err) {
		return apperr.NotFound(what)
	}
	return err
}

