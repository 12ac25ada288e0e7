package cards_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/crewfund/crew/internal/app/services/cards"
	"github.com/crewfund/crew/internal/app/services/notify"
	cardrequeststore "github.com/crewfund/crew/internal/app/store/cardrequests"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/testutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestGenerator(t *testing.T) {
	g := cards.NewGenerator(rand.NewPCG(1, 2))
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	holder := models.User{Email: "ana@test.com"}

	for i := 0; i < 200; i++ {
		c := g.Issue(holder, now)
		if len(c.CardNumber) != 16 {
			t.Fatalf("card number %q is not 16 digits", c.CardNumber)
		}
		if c.CardNumber[0] != '4' && c.CardNumber[0] != '5' {
			t.Fatalf("card number %q must start with 4 or 5", c.CardNumber)
		}
		if _, err := strconv.ParseUint(c.CardNumber, 10, 64); err != nil {
			t.Fatalf("card number %q is not numeric", c.CardNumber)
		}
		month, err := strconv.Atoi(c.ExpiryDate[:2])
		if err != nil || month < 1 || month > 12 || c.ExpiryDate[2:] != "/30" {
			t.Fatalf("expiry = %q", c.ExpiryDate)
		}
		cvv, err := strconv.Atoi(c.CVV)
		if err != nil || cvv < 100 || cvv > 999 {
			t.Fatalf("cvv = %q", c.CVV)
		}
		if c.NameOnCard != "ana@test.com" {
			t.Fatalf("name on card = %q, want email fallback", c.NameOnCard)
		}
	}

	holder.DisplayName = "Ana"
	if c := g.Issue(holder, now); c.NameOnCard != "Ana" {
		t.Errorf("name on card = %q", c.NameOnCard)
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	now := time.Now()
	a := cards.NewGenerator(rand.NewPCG(7, 7)).Issue(models.User{}, now)
	b := cards.NewGenerator(rand.NewPCG(7, 7)).Issue(models.User{}, now)
	if a.CardNumber != b.CardNumber || a.CVV != b.CVV {
		t.Errorf("same seed gave %+v and %+v", a, b)
	}
}

type env struct {
	fx  *testutil.Fixtures
	svc *cards.Service
	in  *notify.Inbox
}

func newEnv(t *testing.T) *env {
	ds := testutil.NewMemStore(t)
	log := zap.NewNop()
	return &env{
		fx:  testutil.NewFixtures(t, ds),
		svc: cards.New(ds, notify.NewDispatcher(ds, log), nil, log, rand.NewPCG(1, 1)),
		in:  notify.NewInbox(ds, log),
	}
}

func TestRequestApproveFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	admin := e.fx.CreateStaff(ctx, "Admin", models.RoleAdministrator)
	u := e.fx.CreateUser(ctx, "Ana", 0)

	req, err := e.svc.RequestCard(ctx, u.ID)
	if err != nil {
		t.Fatalf("RequestCard: %v", err)
	}
	if req.Status != models.RequestPending || req.Email != u.Email {
		t.Errorf("request = %+v", req)
	}
	if got := e.fx.User(ctx, u.ID).CardStatus; got != models.CardPending {
		t.Errorf("card status = %q", got)
	}

	_, err = e.svc.RequestCard(ctx, u.ID)
	if !errors.Is(err, apperr.ErrPendingRequestExists) {
		t.Errorf("second request err = %v", err)
	}

	staffInbox, _ := e.in.ForAudience(ctx, models.RoleAdministrator)
	if len(staffInbox) != 1 || staffInbox[0].Type != models.NoticeCardRequest {
		t.Errorf("admin inbox = %+v", staffInbox)
	}

	approved, err := e.svc.ApproveCard(ctx, req.ID, admin.ID)
	if err != nil {
		t.Fatalf("ApproveCard: %v", err)
	}
	got := e.fx.User(ctx, u.ID)
	if got.CardStatus != models.CardApproved || got.VirtualCard == nil {
		t.Fatalf("user after approval = %+v", got)
	}
	if approved.CardLast4 != got.VirtualCard.Last4() || approved.ResolvedBy != admin.ID || approved.ResolvedAt == nil {
		t.Errorf("approved request = %+v", approved)
	}
	if got.VirtualCard.NameOnCard != "Ana" {
		t.Errorf("name on card = %q", got.VirtualCard.NameOnCard)
	}

	_, err = e.svc.ApproveCard(ctx, req.ID, admin.ID)
	if !errors.Is(err, apperr.ErrAlreadyResolved) {
		t.Errorf("second approve err = %v", err)
	}
	_, err = e.svc.RejectCard(ctx, req.ID, admin.ID, "late")
	if !errors.Is(err, apperr.ErrAlreadyResolved) {
		t.Errorf("reject after approve err = %v", err)
	}
	if e.fx.User(ctx, u.ID).VirtualCard.CardNumber != got.VirtualCard.CardNumber {
		t.Error("card was reissued")
	}

	_, err = e.svc.RequestCard(ctx, u.ID)
	if !errors.Is(err, apperr.ErrCardAlreadyApproved) {
		t.Errorf("request after approval err = %v", err)
	}

	inbox, _ := e.in.ForUser(ctx, u.ID, false)
	if len(inbox) != 1 || inbox[0].Type != models.NoticeCardApproved {
		t.Errorf("user inbox = %+v", inbox)
	}
}

func TestRejectThenRequestAgain(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	admin := e.fx.CreateStaff(ctx, "Admin", models.RoleAdministrator)
	u := e.fx.CreateUser(ctx, "Ana", 0)

	req, err := e.svc.RequestCard(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	rejected, err := e.svc.RejectCard(ctx, req.ID, admin.ID, "<b>blurry</b> photo")
	if err != nil {
		t.Fatalf("RejectCard: %v", err)
	}
	if rejected.Reason != "blurry photo" || rejected.Status != models.RequestRejected {
		t.Errorf("rejected = %+v", rejected)
	}
	got := e.fx.User(ctx, u.ID)
	if got.CardStatus != models.CardRejected || got.VirtualCard != nil {
		t.Errorf("user = %+v", got)
	}

	inbox, _ := e.in.ForUser(ctx, u.ID, false)
	if len(inbox) != 1 || inbox[0].Type != models.NoticeCardRejected || inbox[0].Meta["reason"] != "blurry photo" {
		t.Errorf("inbox = %+v", inbox)
	}

	if _, err := e.svc.RequestCard(ctx, u.ID); err != nil {
		t.Errorf("request after rejection: %v", err)
	}
	pending, err := e.svc.ListRequests(ctx, admin.ID, models.RequestPending)
	if err != nil || len(pending) != 1 {
		t.Errorf("pending = %+v, %v", pending, err)
	}
	all, _ := e.svc.ListRequests(ctx, admin.ID, "")
	if len(all) != 2 {
		t.Errorf("all requests = %d, want 2", len(all))
	}
}

func TestReviewRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	mod := e.fx.CreateStaff(ctx, "Mod", models.RoleModerator)
	u := e.fx.CreateUser(ctx, "Ana", 0)
	req, err := e.svc.RequestCard(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}

	for _, actor := range []string{mod.ID, u.ID} {
		if _, err := e.svc.ApproveCard(ctx, req.ID, actor); !errors.Is(err, apperr.ErrPermissionDenied) {
			t.Errorf("approve by %s err = %v", actor, err)
		}
		if _, err := e.svc.RejectCard(ctx, req.ID, actor, ""); !errors.Is(err, apperr.ErrPermissionDenied) {
			t.Errorf("reject by %s err = %v", actor, err)
		}
		if _, err := e.svc.ListRequests(ctx, actor, ""); !errors.Is(err, apperr.ErrPermissionDenied) {
			t.Errorf("list by %s err = %v", actor, err)
		}
	}
	if _, err := e.svc.ApproveCard(ctx, req.ID, "ghost"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("unknown actor err = %v", err)
	}
	if got := e.fx.User(ctx, u.ID).CardStatus; got != models.CardPending {
		t.Errorf("card status = %q", got)
	}
}

func TestConcurrentApproveRejectResolvesOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	admin := e.fx.CreateStaff(ctx, "Admin", models.RoleAdministrator)
	u := e.fx.CreateUser(ctx, "Ana", 0)
	req, err := e.svc.RequestCard(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = e.svc.ApproveCard(ctx, req.ID, admin.ID)
			} else {
				_, errs[i] = e.svc.RejectCard(ctx, req.ID, admin.ID, "no")
			}
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrAlreadyResolved), errors.Is(err, apperr.ErrConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d reviews succeeded, want exactly 1", ok)
	}
	got := e.fx.User(ctx, u.ID)
	if (got.CardStatus == models.CardApproved) != (got.VirtualCard != nil) {
		t.Errorf("inconsistent user %+v", got)
	}
}

func TestRequestUnknownUser(t *testing.T) {
	e := newEnv(t)
	if _, err := e.svc.RequestCard(context.Background(), "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

// insertPending writes a pending request directly, the way a request filed
// before the user-level check would look.
func insertPending(t *testing.T, ctx context.Context, e *env, u models.User) string {
	t.Helper()
	r := &models.CardRequest{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Email:     u.Email,
		Status:    models.RequestPending,
		CreatedAt: time.Now().UTC(),
	}
	err := e.fx.Store().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return cardrequeststore.Create(tx, r)
	})
	if err != nil {
		t.Fatalf("insert request: %v", err)
	}
	return r.ID
}

func TestApprovedIsTerminal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	admin := e.fx.CreateStaff(ctx, "Admin", models.RoleAdministrator)
	u := e.fx.CreateUser(ctx, "Ana", 0)

	r1, err := e.svc.RequestCard(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	dupReject := insertPending(t, ctx, e, u)
	dupApprove := insertPending(t, ctx, e, u)

	if _, err := e.svc.ApproveCard(ctx, r1.ID, admin.ID); err != nil {
		t.Fatalf("ApproveCard: %v", err)
	}
	card := e.fx.User(ctx, u.ID).VirtualCard.CardNumber

	rejected, err := e.svc.RejectCard(ctx, dupReject, admin.ID, "duplicate")
	if err != nil {
		t.Fatalf("reject duplicate: %v", err)
	}
	if rejected.Status != models.RequestRejected {
		t.Errorf("duplicate status = %q", rejected.Status)
	}
	got := e.fx.User(ctx, u.ID)
	if got.CardStatus != models.CardApproved || got.VirtualCard == nil || got.VirtualCard.CardNumber != card {
		t.Fatalf("user after rejecting duplicate = %+v", got)
	}

	if _, err := e.svc.ApproveCard(ctx, dupApprove, admin.ID); !errors.Is(err, apperr.ErrCardAlreadyApproved) {
		t.Errorf("approve duplicate err = %v", err)
	}
	if got := e.fx.User(ctx, u.ID); got.VirtualCard == nil || got.VirtualCard.CardNumber != card {
		t.Errorf("card was reissued: %+v", got.VirtualCard)
	}

	pending, err := e.svc.ListRequests(ctx, admin.ID, models.RequestPending)
	if err != nil || len(pending) != 0 {
		t.Errorf("pending after review = %+v, %v", pending, err)
	}

	inbox, _ := e.in.ForUser(ctx, u.ID, false)
	if len(inbox) != 1 || inbox[0].Type != models.NoticeCardApproved {
		t.Errorf("user inbox = %+v", inbox)
	}
}

func TestRequestCard_UserAlreadyPending(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.fx.CreateUser(ctx, "Ana", 0)
	u.CardStatus = models.CardPending
	e.fx.SetUser(ctx, u)

	if _, err := e.svc.RequestCard(ctx, u.ID); !errors.Is(err, apperr.ErrPendingRequestExists) {
		t.Errorf("err = %v, want pending request exists", err)
	}
}
