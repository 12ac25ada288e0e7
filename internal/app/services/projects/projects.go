// Package projects publishes crowdfunding projects and serves the public
// listing, the creator dashboard and project comments.
package projects

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/crewfund/crew/internal/app/services/notify"
	projectstore "github.com/crewfund/crew/internal/app/store/projects"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/blob"
	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/app/system/htmlsanitize"
	"github.com/crewfund/crew/internal/app/system/txn"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/domain/money"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 5000
	MaxKeywords          = 20
	DefaultDiscoverLimit = 50
)

// Config holds publishing policy.
type Config struct {
	// Window and MaxPerWindow bound how many projects one creator may
	// publish in a rolling period.
	Window        time.Duration
	MaxPerWindow  int
	MaxImageBytes int
}

func DefaultConfig() Config {
	return Config{
		Window:        7 * 24 * time.Hour,
		MaxPerWindow:  3,
		MaxImageBytes: 5 << 20,
	}
}

// TierInput is one funding tier as submitted.
type TierInput struct {
	Title  string      `json:"title"`
	Amount money.Cents `json:"amount"`
}

// Draft is a project as submitted for publishing.
type Draft struct {
	Title       string
	Description string
	Tags        []string
	Tiers       []TierInput
	Image       []byte
	ImageType   string
}

type Service struct {
	ds       docstore.Store
	projects *projectstore.Store
	users    *userstore.Store
	blobs    blob.Store
	notify   *notify.Dispatcher
	log      *zap.Logger
	cfg      Config
	now      func() time.Time
}

// New builds the project Service. blobs may be nil, in which case drafts
// with an image are refused.
func New(ds docstore.Store, blobs blob.Store, notifier *notify.Dispatcher, log *zap.Logger, cfg Config) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = def.MaxPerWindow
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = def.MaxImageBytes
	}
	return &Service{
		ds:       ds,
		projects: projectstore.New(ds),
		users:    userstore.New(ds),
		blobs:    blobs,
		notify:   notifier,
		log:      log,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Config() Config { return s.cfg }

// Publish validates d and creates a Published project owned by creatorID.
//
// The window cap is enforced inside the transaction against the
// creator's ProjectDates; concurrent publishes by one creator conflict on
// that document and retry, so they cannot exceed it.
func (s *Service) Publish(ctx context.Context, creatorID string, d Draft) (*models.Project, error) {
	title := htmlsanitize.StripTags(d.Title)
	desc := htmlsanitize.Sanitize(d.Description)
	switch {
	case title == "" || htmlsanitize.StripTags(desc) == "":
		return nil, apperr.Invalid("title and description are required")
	case len(title) > MaxTitleLength:
		return nil, apperr.Invalid("title must be at most %d characters", MaxTitleLength)
	case len(desc) > MaxDescriptionLength:
		return nil, apperr.Invalid("description must be at most %d characters", MaxDescriptionLength)
	case len(d.Image) > s.cfg.MaxImageBytes:
		return nil, apperr.Invalid("image must be at most %d bytes", s.cfg.MaxImageBytes)
	}
	tiers, goal, err := buildTiers(d.Tiers)
	if err != nil {
		return nil, err
	}

	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.From(err)
	}
	if creator.IDVerification != models.IDVerified || strings.TrimSpace(creator.DisplayName) == "" {
		return nil, apperr.ErrNotVerified
	}

	now := s.now()
	recent, err := s.projects.CountCreatedSince(ctx, creatorID, now.Add(-s.cfg.Window))
	if err != nil {
		return nil, apperr.From(err)
	}
	if recent >= int64(s.cfg.MaxPerWindow) {
		return nil, apperr.ErrRateLimitExceeded.WithMessage(
			"publishing limit reached: at most %d projects per %s", s.cfg.MaxPerWindow, windowLabel(s.cfg.Window))
	}

	tags := normalizeTags(d.Tags)
	p := &models.Project{
		ID:             uuid.NewString(),
		CreatorID:      creatorID,
		CreatorName:    creator.DisplayName,
		Title:          title,
		Description:    desc,
		Tags:           tags,
		SearchKeywords: keywords(title, htmlsanitize.StripTags(desc), tags),
		FundingTiers:   tiers,
		GoalTotal:      goal,
		State:          models.ProjectPublished,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if len(d.Image) > 0 {
		if s.blobs == nil {
			return nil, apperr.ErrUnavailable.WithMessage("image uploads are not configured")
		}
		p.ImageRef = blob.ProjectImagePath(creatorID)
		if err := s.blobs.Put(ctx, p.ImageRef, bytes.NewReader(d.Image), &blob.PutOptions{ContentType: d.ImageType}); err != nil {
			s.log.Error("project image upload failed", zap.String("creator_id", creatorID), zap.Error(err))
			return nil, apperr.ErrUnavailable.Wrap(err)
		}
	}

	err = txn.Run(ctx, s.ds, s.log, "project.publish", func(ctx context.Context, tx docstore.Tx) error {
		u, err := userstore.Load(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		// The count above can race; the dates on the user document cannot,
		// since concurrent publishes conflict on it and retry.
		if countSince(u.ProjectDates, now.Add(-s.cfg.Window)) >= s.cfg.MaxPerWindow {
			return apperr.ErrRateLimitExceeded.WithMessage(
				"publishing limit reached: at most %d projects per %s", s.cfg.MaxPerWindow, windowLabel(s.cfg.Window))
		}
		u.ProjectDates = append(u.ProjectDates, now)
		u.LastProjectAt = &now
		u.UpdatedAt = now
		if err := projectstore.Create(tx, p); err != nil {
			return err
		}
		return userstore.Save(tx, u)
	})
	if err != nil {
		if p.ImageRef != "" {
			if derr := s.blobs.Delete(context.WithoutCancel(ctx), p.ImageRef); derr != nil {
				s.log.Warn("orphaned project image", zap.String("path", p.ImageRef), zap.Error(derr))
			}
		}
		return nil, apperr.From(err)
	}

	s.log.Info("project published",
		zap.String("project_id", p.ID),
		zap.String("creator_id", creatorID),
		zap.String("goal", p.GoalTotal.String()))
	return p, nil
}

// Get returns a project. Deleted projects are not found; hidden ones are
// only visible to their creator.
func (s *Service) Get(ctx context.Context, projectID, viewerID string) (*models.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, projectstore.ErrNotFound) {
			return nil, apperr.NotFound("project")
		}
		return nil, apperr.From(err)
	}
	switch p.State {
	case models.ProjectDeleted:
		return nil, apperr.NotFound("project")
	case models.ProjectHidden:
		if viewerID != p.CreatorID {
			return nil, apperr.NotFound("project")
		}
	}
	return p, nil
}

// Discover lists Published and GoalReached projects, newest first.
func (s *Service) Discover(ctx context.Context, keyword string, limit int) ([]models.Project, error) {
	if limit <= 0 || limit > DefaultDiscoverLimit {
		limit = DefaultDiscoverLimit
	}
	out, err := s.projects.Discover(ctx, keyword, limit)
	if err != nil {
		return nil, apperr.From(err)
	}
	return out, nil
}

// ListByCreator returns the creator's dashboard listing.
func (s *Service) ListByCreator(ctx context.Context, creatorID string) ([]models.Project, error) {
	out, err := s.projects.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, apperr.From(err)
	}
	return out, nil
}

// Remaining reports how many more projects creatorID may publish in the
// current window.
func (s *Service) Remaining(ctx context.Context, creatorID string) (int, error) {
	n, err := s.projects.CountCreatedSince(ctx, creatorID, s.now().Add(-s.cfg.Window))
	if err != nil {
		return 0, apperr.From(err)
	}
	return max(0, s.cfg.MaxPerWindow-int(n)), nil
}

// buildTiers validates tier input and returns the tiers with their total.
func buildTiers(in []TierInput) ([]models.FundingTier, money.Cents, error) {
	if len(in) == 0 {
		return nil, 0, apperr.Invalid("at least one funding tier is required")
	}
	out := make([]models.FundingTier, 0, len(in))
	for i, t := range in {
		if !t.Amount.IsPositive() {
			return nil, 0, apperr.Invalid("funding tier %d must have an amount greater than zero", i+1)
		}
		title := htmlsanitize.StripTags(t.Title)
		if title == "" {
			title = fmt.Sprintf("Tier %d", i+1)
		}
		out = append(out, models.FundingTier{ID: uuid.NewString(), Title: title, Amount: t.Amount})
	}
	goal, err := models.SumTiers(out)
	if err != nil {
		return nil, 0, apperr.Invalid("funding tiers add up to more than the largest supported goal")
	}
	return out, goal, nil
}

// normalizeTags lower-cases, splits on commas and whitespace and dedups.
func normalizeTags(raw []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range raw {
		for _, t := range strings.FieldsFunc(r, func(c rune) bool { return c == ',' || unicode.IsSpace(c) }) {
			t = strings.ToLower(htmlsanitize.StripTags(t))
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func keywords(title, desc string, tags []string) []string {
	split := func(s string) []string {
		return strings.FieldsFunc(s, func(c rune) bool {
			return unicode.IsSpace(c) || strings.ContainsRune(",.;:!¡¿?", c)
		})
	}
	seen := make(map[string]bool)
	var out []string
	add := func(w string) {
		w = text.Fold(w)
		if w == "" || seen[w] || len(out) >= MaxKeywords {
			return
		}
		seen[w] = true
		out = append(out, w)
	}
	for _, w := range split(title) {
		add(w)
	}
	for _, w := range split(desc) {
		add(w)
	}
	for _, t := range tags {
		add(t)
	}
	return out
}

// countSince counts dates at or after cutoff.
func countSince(dates []time.Time, cutoff time.Time) int {
	n := 0
	for _, d := range dates {
		if !d.Before(cutoff) {
			n++
		}
	}
	return n
}

func windowLabel(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 7 {
			return "week"
		}
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}
