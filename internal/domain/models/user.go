// internal/domain/models/user.go
package models

import (
	"time"

	"github.com/crewfund/crew/internal/domain/money"
)

// CardStatus tracks a user's virtual card request lifecycle.
type CardStatus string

const (
	CardNone     CardStatus = ""
	CardPending  CardStatus = "pending"
	CardApproved CardStatus = "approved"
	CardRejected CardStatus = "rejected"
)

// VirtualCard is the simulated card issued on approval. It only ever funds
// recharges of the owner's own balance.
type VirtualCard struct {
	CardNumber string    `bson:"card_number" json:"card_number"`
	ExpiryDate string    `bson:"expiry_date" json:"expiry_date"` // MM/YY
	CVV        string    `bson:"cvv" json:"cvv"`
	Status     string    `bson:"status" json:"status"`
	NameOnCard string    `bson:"name_on_card" json:"name_on_card"`
	IssuedAt   time.Time `bson:"issued_at" json:"issued_at"`
}

// Last4 returns the final four digits of the card number.
func (c VirtualCard) Last4() string {
	if len(c.CardNumber) < 4 {
		return c.CardNumber
	}
	return c.CardNumber[len(c.CardNumber)-4:]
}

// User is a wallet holder. The ID is the identity provider's uid.
//
// Balance is spendable money; WithdrawableBalance holds funds a creator has
// pulled out of a finished project and not yet reclaimed. Neither may go
// negative.
type User struct {
	ID          string `bson:"_id" json:"id"`
	Email       string `bson:"email" json:"email"`
	EmailCI     string `bson:"email_ci" json:"-"`
	DisplayName string `bson:"display_name" json:"display_name"`
	Role        Role   `bson:"role" json:"role"`

	Balance             money.Cents `bson:"balance" json:"balance"`
	WithdrawableBalance money.Cents `bson:"withdrawable_balance" json:"withdrawable_balance"`

	IDVerification     IDVerification `bson:"is_id_verified" json:"is_id_verified"`
	IDVerificationNote string         `bson:"id_verification_note,omitempty" json:"id_verification_note,omitempty"`
	CINumber           string         `bson:"ci_number,omitempty" json:"ci_number,omitempty"`
	CIFrontImage       string         `bson:"ci_front_image,omitempty" json:"-"`

	CardStatus  CardStatus   `bson:"card_status,omitempty" json:"card_status,omitempty"`
	VirtualCard *VirtualCard `bson:"virtual_card,omitempty" json:"virtual_card,omitempty"`

	ProjectDates  []time.Time `bson:"project_dates,omitempty" json:"-"`
	LastProjectAt *time.Time  `bson:"last_project_at,omitempty" json:"last_project_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Name returns the display name, falling back to the email address.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
