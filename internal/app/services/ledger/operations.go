package ledger

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/crewfund/crew/internal/app/services/notify"
	projectstore "github.com/crewfund/crew/internal/app/store/projects"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/domain/money"
)

// Donate moves amount from the donor's balance into the project.
func (s *Service) Donate(ctx context.Context, donorID, projectID string, amount money.Cents, key string) (*Receipt, error) {
	if !amount.IsPositive() {
		return nil, apperr.Invalid("donation amount must be greater than zero")
	}
	if donorID == "" || projectID == "" {
		return nil, apperr.Invalid("donor and project are required")
	}

	var donorName, creatorID, title string
	r, err := s.execute(ctx, OpDonate, donorID, key, func(ctx context.Context, tx docstore.Tx, now time.Time) (*Receipt, error) {
		donor, err := userstore.Load(ctx, tx, donorID)
		if err != nil {
			return nil, notFound(err, "user")
		}
		p, err := projectstore.Load(ctx, tx, projectID)
		if err != nil {
			return nil, notFound(err, "project")
		}
		if !p.State.AcceptsDonations() {
			return nil, apperr.ErrProjectClosed.WithMessage("project %q is %s and not accepting donations", p.Title, p.State)
		}
		if p.GoalMet() {
			return nil, apperr.ErrGoalAlreadyReached
		}
		if donor.Balance < amount {
			return nil, apperr.ErrInsufficientFunds.WithMessage("insufficient funds: balance %s is below %s", donor.Balance, amount)
		}

		donor.Balance -= amount
		p.Raised += amount
		p.ProjectWalletBalance += amount
		crossed := p.GoalMet()
		if crossed {
			p.State = models.ProjectGoalReached
		} else {
			p.State = models.ProjectPublished
		}
		p.UpdatedAt = now

		if err := userstore.Save(tx, donor); err != nil {
			return nil, err
		}
		if err := projectstore.Save(tx, p); err != nil {
			return nil, err
		}

		donorName, creatorID, title = donor.Name(), p.CreatorID, p.Title
		return &Receipt{
			Amount:       amount,
			Balance:      donor.Balance,
			Withdrawable: donor.WithdrawableBalance,
			ProjectID:    p.ID,
			Raised:       p.Raised,
			ProjectState: p.State,
			GoalReached:  crossed,
			At:           now,
		}, nil
	})
	if err != nil || r.Replayed {
		return r, err
	}

	entry := models.Transaction{
		Amount:         amount,
		Kind:           models.KindDonation,
		SourceID:       donorID,
		DestinationID:  projectID,
		Description:    fmt.Sprintf("Donation to %s", title),
		IdempotencyKey: key,
		Timestamp:      r.At,
	}
	debit, credit := entry, entry
	debit.Direction = models.Debit
	credit.Direction = models.Credit

	notices := []func(context.Context){
		func(ctx context.Context) {
			s.notify.ToUser(ctx, creatorID, notify.Message{
				Type:  models.NoticeDonationReceived,
				Title: "New donation",
				Body:  fmt.Sprintf("%s donated %s to %q.", donorName, amount, title),
				Link:  "/projects/" + projectID,
				Actor: donorID,
				Meta:  map[string]string{"project_id": projectID, "amount": amount.String()},
			})
		},
	}
	if r.GoalReached {
		notices = append(notices, func(ctx context.Context) {
			s.notify.ToUser(ctx, creatorID, notify.Message{
				Type:  models.NoticeGoalReached,
				Title: "Funding goal reached",
				Body:  fmt.Sprintf("%q reached its goal with %s raised. You can now withdraw the funds.", title, r.Raised),
				Link:  "/projects/" + projectID,
				Meta:  map[string]string{"project_id": projectID},
			})
		})
	}
	s.afterCommit(ctx, OpDonate, []models.Transaction{debit, credit}, notices...)
	return r, nil
}

// WithdrawProjectFunds drains a funded project's wallet into the creator's
// withdrawable balance and closes the project.
func (s *Service) WithdrawProjectFunds(ctx context.Context, callerID, projectID, key string) (*Receipt, error) {
	if callerID == "" || projectID == "" {
		return nil, apperr.Invalid("caller and project are required")
	}

	var title string
	r, err := s.execute(ctx, OpWithdraw, callerID, key, func(ctx context.Context, tx docstore.Tx, now time.Time) (*Receipt, error) {
		p, err := projectstore.Load(ctx, tx, projectID)
		if err != nil {
			return nil, notFound(err, "project")
		}
		if p.CreatorID != callerID {
			return nil, apperr.ErrPermissionDenied.WithMessage("only the project creator can withdraw its funds")
		}
		if p.State.Moderated() {
			return nil, apperr.ErrProjectModerated
		}
		if p.State == models.ProjectClosed {
			return nil, apperr.ErrAlreadyWithdrawn
		}
		if !p.GoalMet() {
			return nil, apperr.ErrGoalNotReached.WithMessage("the project has raised %s of its %s goal", p.Raised, p.GoalTotal)
		}
		if p.ProjectWalletBalance <= 0 {
			return nil, apperr.ErrAlreadyWithdrawn
		}
		creator, err := userstore.Load(ctx, tx, callerID)
		if err != nil {
			return nil, notFound(err, "user")
		}

		amount := p.ProjectWalletBalance
		p.ProjectWalletBalance = 0
		p.State = models.ProjectClosed
		p.UpdatedAt = now
		creator.WithdrawableBalance += amount

		if err := projectstore.Save(tx, p); err != nil {
			return nil, err
		}
		if err := userstore.Save(tx, creator); err != nil {
			return nil, err
		}

		title = p.Title
		return &Receipt{
			Amount:       amount,
			Balance:      creator.Balance,
			Withdrawable: creator.WithdrawableBalance,
			ProjectID:    p.ID,
			Raised:       p.Raised,
			ProjectState: p.State,
			At:           now,
		}, nil
	})
	if err != nil || r.Replayed {
		return r, err
	}

	s.afterCommit(ctx, OpWithdraw, []models.Transaction{{
		Amount:         r.Amount,
		Kind:           models.KindWithdrawal,
		Direction:      models.Credit,
		SourceID:       projectID,
		DestinationID:  callerID,
		Description:    fmt.Sprintf("Withdrawal from %s", title),
		IdempotencyKey: key,
		Timestamp:      r.At,
	}}, func(ctx context.Context) {
		s.notify.ToUser(ctx, callerID, notify.Message{
			Type:  models.NoticeFundsWithdrawn,
			Title: "Funds withdrawn",
			Body:  fmt.Sprintf("%s from %q moved to your withdrawable balance.", r.Amount, title),
			Link:  "/wallet",
			Meta:  map[string]string{"project_id": projectID, "amount": r.Amount.String()},
		})
	})
	return r, nil
}

// ReclaimWithdrawable moves the user's whole withdrawable balance into
// their spendable balance.
func (s *Service) ReclaimWithdrawable(ctx context.Context, userID, key string) (*Receipt, error) {
	if userID == "" {
		return nil, apperr.Invalid("user is required")
	}
	r, err := s.execute(ctx, OpReclaim, userID, key, func(ctx context.Context, tx docstore.Tx, now time.Time) (*Receipt, error) {
		u, err := userstore.Load(ctx, tx, userID)
		if err != nil {
			return nil, notFound(err, "user")
		}
		if u.WithdrawableBalance <= 0 {
			return nil, apperr.ErrNothingToReclaim
		}
		amount := u.WithdrawableBalance
		u.WithdrawableBalance = 0
		u.Balance += amount
		if err := userstore.Save(tx, u); err != nil {
			return nil, err
		}
		return &Receipt{Amount: amount, Balance: u.Balance, At: now}, nil
	})
	if err != nil || r.Replayed {
		return r, err
	}

	s.afterCommit(ctx, OpReclaim, []models.Transaction{{
		Amount:         r.Amount,
		Kind:           models.KindReclaim,
		Direction:      models.Credit,
		SourceID:       models.SourceWithdrawableFund,
		DestinationID:  userID,
		Description:    "Withdrawable funds moved to balance",
		IdempotencyKey: key,
		Timestamp:      r.At,
	}})
	return r, nil
}

// CardDetails are the card fields presented for a recharge.
type CardDetails struct {
	Number string `json:"card_number"`
	Expiry string `json:"expiry_date"`
	CVV    string `json:"cvv"`
}

func (c CardDetails) normalized() CardDetails {
	strip := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == ' ' || r == '-' {
				return -1
			}
			return r
		}, s)
	}
	return CardDetails{
		Number: strip(c.Number),
		Expiry: strings.TrimSpace(c.Expiry),
		CVV:    strings.TrimSpace(c.CVV),
	}
}

func (c CardDetails) matches(v models.VirtualCard) bool {
	eq := func(a, b string) int { return subtle.ConstantTimeCompare([]byte(a), []byte(b)) }
	return eq(c.Number, v.CardNumber)&eq(c.Expiry, v.ExpiryDate)&eq(c.CVV, v.CVV) == 1
}

// RechargeBalance credits amount to the user's balance, funded by their own
// approved virtual card.
func (s *Service) RechargeBalance(ctx context.Context, userID string, amount money.Cents, card CardDetails, key string) (*Receipt, error) {
	if amount < s.cfg.MinRecharge || amount > s.cfg.MaxRecharge {
		return nil, apperr.ErrOutOfRange.WithMessage("recharge must be between %s and %s", s.cfg.MinRecharge, s.cfg.MaxRecharge)
	}
	if userID == "" {
		return nil, apperr.Invalid("user is required")
	}
	card = card.normalized()

	r, err := s.execute(ctx, OpRecharge, userID, key, func(ctx context.Context, tx docstore.Tx, now time.Time) (*Receipt, error) {
		u, err := userstore.Load(ctx, tx, userID)
		if err != nil {
			return nil, notFound(err, "user")
		}
		if u.CardStatus != models.CardApproved || u.VirtualCard == nil {
			return nil, apperr.ErrCardNotApproved
		}
		if !card.matches(*u.VirtualCard) {
			return nil, apperr.ErrCardMismatch
		}
		u.Balance += amount
		if err := userstore.Save(tx, u); err != nil {
			return nil, err
		}
		return &Receipt{Amount: amount, Balance: u.Balance, Withdrawable: u.WithdrawableBalance, At: now}, nil
	})
	if err != nil || r.Replayed {
		return r, err
	}

	s.afterCommit(ctx, OpRecharge, []models.Transaction{{
		Amount:         amount,
		Kind:           models.KindRecharge,
		Direction:      models.Credit,
		SourceID:       models.SourceVirtualCard,
		DestinationID:  userID,
		Description:    "Recharge from virtual card",
		IdempotencyKey: key,
		Timestamp:      r.At,
	}})
	return r, nil
}
