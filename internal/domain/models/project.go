// internal/domain/models/project.go
package models

import (
	"time"

	"github.com/crewfund/crew/internal/domain/money"
)

// ProjectState is the lifecycle state of a project.
type ProjectState string

const (
	ProjectPublished   ProjectState = "Publicado"
	ProjectGoalReached ProjectState = "Meta Alcanzada"
	ProjectClosed      ProjectState = "Cerrado"
	ProjectHidden      ProjectState = "Oculto"
	ProjectDeleted     ProjectState = "Eliminado"
)

// AcceptsDonations reports whether a project in state s can be donated to,
// ignoring the goal check.
func (s ProjectState) AcceptsDonations() bool {
	return s == ProjectPublished || s == ProjectGoalReached
}

// Moderated reports whether staff removed the project from public view.
func (s ProjectState) Moderated() bool {
	return s == ProjectHidden || s == ProjectDeleted
}

// FundingTier is a named slice of the funding goal.
type FundingTier struct {
	ID     string      `bson:"id" json:"id"`
	Title  string      `bson:"title" json:"title"`
	Amount money.Cents `bson:"amount" json:"amount"`
}

// Project is a fundraising campaign.
//
// Raised only grows while the project is open. ProjectWalletBalance is the
// escrow the creator can withdraw once Raised >= GoalTotal.
type Project struct {
	ID          string `bson:"_id" json:"id"`
	CreatorID   string `bson:"creator_id" json:"creator_id"`
	CreatorName string `bson:"creator_name" json:"creator_name"`

	Title          string   `bson:"title" json:"title"`
	Description    string   `bson:"description" json:"description"`
	ImageRef       string   `bson:"image_ref,omitempty" json:"image_ref,omitempty"`
	Tags           []string `bson:"tags,omitempty" json:"tags,omitempty"`
	SearchKeywords []string `bson:"search_keywords,omitempty" json:"-"`

	FundingTiers         []FundingTier `bson:"funding_tiers" json:"funding_tiers"`
	GoalTotal            money.Cents   `bson:"goal_total" json:"goal_total"`
	Raised               money.Cents   `bson:"raised" json:"raised"`
	ProjectWalletBalance money.Cents   `bson:"project_wallet_balance" json:"project_wallet_balance"`

	State       ProjectState `bson:"state" json:"state"`
	ModeratedBy string       `bson:"moderated_by,omitempty" json:"moderated_by,omitempty"`
	DeletedAt   *time.Time   `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`

	RatingTotal int64 `bson:"rating_total" json:"-"`
	RatingCount int64 `bson:"rating_count" json:"rating_count"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// GoalMet reports whether the funding goal has been reached.
func (p Project) GoalMet() bool {
	return p.Raised >= p.GoalTotal
}

// RatingAvg returns the mean comment rating, or 0 with no ratings.
func (p Project) RatingAvg() float64 {
	if p.RatingCount == 0 {
		return 0
	}
	return float64(p.RatingTotal) / float64(p.RatingCount)
}

// SumTiers returns the goal implied by a set of tiers. It fails with
// money.ErrOverflow when the total does not fit.
func SumTiers(tiers []FundingTier) (money.Cents, error) {
	amounts := make([]money.Cents, len(tiers))
	for i, t := range tiers {
		amounts[i] = t.Amount
	}
	return money.Sum(amounts...)
}
