package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/crewfund/crew/internal/app/services/ledger"
	"github.com/crewfund/crew/internal/app/services/notify"
	"github.com/crewfund/crew/internal/app/system/apperr"
	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/app/system/docstore/memstore"
	"github.com/crewfund/crew/internal/app/system/txn"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/domain/money"
	"github.com/crewfund/crew/internal/testutil"
	"go.uber.org/zap"
)

var fastRetry = txn.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}

func units(n int64) money.Cents { return money.FromUnits(n) }

type env struct {
	ds  docstore.Store
	fx  *testutil.Fixtures
	svc *ledger.Service
	in  *notify.Inbox
}

func newEnv(t *testing.T, ds docstore.Store) *env {
	t.Helper()
	log := zap.NewNop()
	return &env{
		ds:  ds,
		fx:  testutil.NewFixtures(t, ds),
		svc: ledger.New(ds, notify.NewDispatcher(ds, log), nil, log, ledger.Config{Retry: fastRetry}),
		in:  notify.NewInbox(ds, log),
	}
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want %v", err, target)
	}
}

// A donation below the goal keeps the project published.
func TestDonate_BelowGoal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	donor := e.fx.CreateUser(ctx, "Donor", units(500))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(1000))

	r, err := e.svc.Donate(ctx, donor.ID, p.ID, units(200), "")
	if err != nil {
		t.Fatalf("Donate: %v", err)
	}
	if r.Balance != units(300) || r.Raised != units(200) || r.GoalReached {
		t.Errorf("receipt = %+v", r)
	}

	if got := e.fx.User(ctx, donor.ID).Balance; got != units(300) {
		t.Errorf("donor balance = %s, want 300.00", got)
	}
	pp := e.fx.Project(ctx, p.ID)
	if pp.Raised != units(200) || pp.ProjectWalletBalance != units(200) {
		t.Errorf("project raised=%s wallet=%s", pp.Raised, pp.ProjectWalletBalance)
	}
	if pp.State != models.ProjectPublished {
		t.Errorf("state = %s, want Publicado", pp.State)
	}

	hist, err := e.svc.History(ctx, donor.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Direction != models.Debit || hist[0].Kind != models.KindDonation {
		t.Errorf("donor history = %+v", hist)
	}
	phist, _ := e.svc.History(ctx, p.ID, 10)
	if len(phist) != 1 || phist[0].Direction != models.Credit {
		t.Errorf("project history = %+v", phist)
	}

	inbox, _ := e.in.ForUser(ctx, creator.ID, false)
	if len(inbox) != 1 || inbox[0].Type != models.NoticeDonationReceived {
		t.Errorf("creator inbox = %+v", inbox)
	}
}

// Crossing the goal flips the state exactly once.
func TestDonate_CrossesGoal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	donor := e.fx.CreateUser(ctx, "Donor", units(500))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(150))

	r, err := e.svc.Donate(ctx, donor.ID, p.ID, units(200), "")
	if err != nil {
		t.Fatalf("Donate: %v", err)
	}
	if !r.GoalReached || r.ProjectState != models.ProjectGoalReached {
		t.Errorf("receipt = %+v", r)
	}
	if got := e.fx.Project(ctx, p.ID).State; got != models.ProjectGoalReached {
		t.Errorf("state = %s", got)
	}

	_, err = e.svc.Donate(ctx, donor.ID, p.ID, units(10), "")
	wantErr(t, err, apperr.ErrGoalAlreadyReached)
	if got := e.fx.User(ctx, donor.ID).Balance; got != units(300) {
		t.Errorf("rejected donation changed balance to %s", got)
	}

	inbox, _ := e.in.ForUser(ctx, creator.ID, false)
	goal := 0
	for _, n := range inbox {
		if n.Type == models.NoticeGoalReached {
			goal++
		}
	}
	if goal != 1 {
		t.Errorf("goal notifications = %d, want 1", goal)
	}
}

func TestDonate_Preconditions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	donor := e.fx.CreateUser(ctx, "Donor", units(50))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(1000))

	_, err := e.svc.Donate(ctx, donor.ID, p.ID, 0, "")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("zero amount: kind = %v", apperr.KindOf(err))
	}
	_, err = e.svc.Donate(ctx, donor.ID, p.ID, units(-5), "")
	wantErr(t, err, apperr.ErrInvalidInput)

	_, err = e.svc.Donate(ctx, donor.ID, p.ID, units(51), "")
	wantErr(t, err, apperr.ErrInsufficientFunds)

	_, err = e.svc.Donate(ctx, donor.ID, "missing", units(1), "")
	wantErr(t, err, apperr.ErrNotFound)
	_, err = e.svc.Donate(ctx, "ghost", p.ID, units(1), "")
	wantErr(t, err, apperr.ErrNotFound)

	for _, st := range []models.ProjectState{models.ProjectClosed, models.ProjectHidden, models.ProjectDeleted} {
		pp := e.fx.Project(ctx, p.ID)
		pp.State = st
		e.fx.SetProject(ctx, pp)
		_, err = e.svc.Donate(ctx, donor.ID, p.ID, units(1), "")
		wantErr(t, err, apperr.ErrProjectClosed)
	}
	if got := e.fx.User(ctx, donor.ID).Balance; got != units(50) {
		t.Errorf("balance after failures = %s, want 50.00", got)
	}
}

// Withdrawal is terminal.
func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	donor := e.fx.CreateUser(ctx, "Donor", units(500))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(150))
	if _, err := e.svc.Donate(ctx, donor.ID, p.ID, units(200), ""); err != nil {
		t.Fatal(err)
	}

	_, err := e.svc.WithdrawProjectFunds(ctx, donor.ID, p.ID, "")
	wantErr(t, err, apperr.ErrPermissionDenied)

	r, err := e.svc.WithdrawProjectFunds(ctx, creator.ID, p.ID, "")
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if r.Amount != units(200) || r.Withdrawable != units(200) {
		t.Errorf("receipt = %+v", r)
	}
	pp := e.fx.Project(ctx, p.ID)
	if pp.ProjectWalletBalance != 0 || pp.State != models.ProjectClosed || pp.Raised != units(200) {
		t.Errorf("project after withdraw = %+v", pp)
	}

	for i := 0; i < 3; i++ {
		_, err = e.svc.WithdrawProjectFunds(ctx, creator.ID, p.ID, "")
		wantErr(t, err, apperr.ErrAlreadyWithdrawn)
	}
	if got := e.fx.User(ctx, creator.ID).WithdrawableBalance; got != units(200) {
		t.Errorf("withdrawable = %s, want 200.00", got)
	}

	_, err = e.svc.Donate(ctx, donor.ID, p.ID, units(1), "")
	wantErr(t, err, apperr.ErrProjectClosed)
}

func TestWithdraw_Preconditions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	donor := e.fx.CreateUser(ctx, "Donor", units(500))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(1000))

	_, err := e.svc.WithdrawProjectFunds(ctx, creator.ID, p.ID, "")
	wantErr(t, err, apperr.ErrGoalNotReached)

	if _, err := e.svc.Donate(ctx, donor.ID, p.ID, units(100), ""); err != nil {
		t.Fatal(err)
	}
	_, err = e.svc.WithdrawProjectFunds(ctx, creator.ID, p.ID, "")
	wantErr(t, err, apperr.ErrGoalNotReached)

	pp := e.fx.Project(ctx, p.ID)
	pp.Raised = pp.GoalTotal
	pp.State = models.ProjectHidden
	e.fx.SetProject(ctx, pp)
	_, err = e.svc.WithdrawProjectFunds(ctx, creator.ID, p.ID, "")
	wantErr(t, err, apperr.ErrProjectModerated)
}

func TestReclaim(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	u := e.fx.CreateUser(ctx, "Creator", units(10))

	_, err := e.svc.ReclaimWithdrawable(ctx, u.ID, "")
	wantErr(t, err, apperr.ErrNothingToReclaim)

	if err := e.ds.Merge(ctx, "usuarios", u.ID, map[string]any{"withdrawable_balance": units(200)}); err != nil {
		t.Fatal(err)
	}

	r, err := e.svc.ReclaimWithdrawable(ctx, u.ID, "")
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if r.Amount != units(200) || r.Balance != units(210) {
		t.Errorf("receipt = %+v", r)
	}
	got := e.fx.User(ctx, u.ID)
	if got.WithdrawableBalance != 0 || got.Balance != units(210) {
		t.Errorf("user = balance %s withdrawable %s", got.Balance, got.WithdrawableBalance)
	}

	hist, _ := e.svc.History(ctx, u.ID, 10)
	if len(hist) != 1 || hist[0].Kind != models.KindReclaim || hist[0].SourceID != models.SourceWithdrawableFund {
		t.Errorf("history = %+v", hist)
	}
}

func TestRecharge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	holder := e.fx.CreateCardholder(ctx, "Holder", 0)
	plain := e.fx.CreateUser(ctx, "Plain", 0)
	card := ledger.CardDetails{
		Number: "4111 1111 1111 1111",
		Expiry: testutil.TestCard.ExpiryDate,
		CVV:    testutil.TestCard.CVV,
	}

	_, err := e.svc.RechargeBalance(ctx, holder.ID, units(50), card, "")
	wantErr(t, err, apperr.ErrOutOfRange)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("out of range kind = %v", apperr.KindOf(err))
	}
	_, err = e.svc.RechargeBalance(ctx, holder.ID, units(5001), card, "")
	wantErr(t, err, apperr.ErrOutOfRange)

	r, err := e.svc.RechargeBalance(ctx, holder.ID, units(100), card, "")
	if err != nil {
		t.Fatalf("Recharge: %v", err)
	}
	if r.Balance != units(100) {
		t.Errorf("balance = %s", r.Balance)
	}

	bad := card
	bad.CVV = "999"
	_, err = e.svc.RechargeBalance(ctx, holder.ID, units(100), bad, "")
	wantErr(t, err, apperr.ErrCardMismatch)

	_, err = e.svc.RechargeBalance(ctx, plain.ID, units(100), card, "")
	wantErr(t, err, apperr.ErrCardNotApproved)

	if got := e.fx.User(ctx, holder.ID).Balance; got != units(100) {
		t.Errorf("final balance = %s, want 100.00", got)
	}
	hist, _ := e.svc.History(ctx, holder.ID, 10)
	if len(hist) != 1 || hist[0].SourceID != models.SourceVirtualCard || hist[0].Direction != models.Credit {
		t.Errorf("history = %+v", hist)
	}
}

func TestIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	donor := e.fx.CreateUser(ctx, "Donor", units(500))
	other := e.fx.CreateUser(ctx, "Other", units(500))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(1000))

	first, err := e.svc.Donate(ctx, donor.ID, p.ID, units(100), "key-1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.svc.Donate(ctx, donor.ID, p.ID, units(100), "key-1")
	if err != nil {
		t.Fatal(err)
	}
	if first.Replayed || !second.Replayed {
		t.Errorf("replayed flags = %v, %v", first.Replayed, second.Replayed)
	}
	if second.Balance != first.Balance || second.Raised != first.Raised {
		t.Errorf("replay receipt %+v differs from %+v", second, first)
	}
	if got := e.fx.User(ctx, donor.ID).Balance; got != units(400) {
		t.Errorf("balance = %s, want 400.00", got)
	}

	// Keys are scoped per actor.
	if _, err := e.svc.Donate(ctx, other.ID, p.ID, units(100), "key-1"); err != nil {
		t.Fatal(err)
	}
	if got := e.fx.Project(ctx, p.ID).Raised; got != units(200) {
		t.Errorf("raised = %s, want 200.00", got)
	}

	hist, _ := e.svc.History(ctx, donor.ID, 10)
	if len(hist) != 1 || hist[0].IdempotencyKey != "key-1" {
		t.Errorf("history = %+v", hist)
	}

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'k'
	}
	_, err = e.svc.Donate(ctx, donor.ID, p.ID, units(1), string(long))
	wantErr(t, err, apperr.ErrInvalidInput)
}

func TestIdempotentReplay_FailureNotRemembered(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	u := e.fx.CreateUser(ctx, "User", 0)

	_, err := e.svc.ReclaimWithdrawable(ctx, u.ID, "k")
	wantErr(t, err, apperr.ErrNothingToReclaim)

	if err := e.ds.Merge(ctx, "usuarios", u.ID, map[string]any{"withdrawable_balance": units(5)}); err != nil {
		t.Fatal(err)
	}
	r, err := e.svc.ReclaimWithdrawable(ctx, u.ID, "k")
	if err != nil || r.Replayed || r.Amount != units(5) {
		t.Fatalf("retry after failure = %+v, %v", r, err)
	}
}

// interferingStore bumps a document between a transaction's reads and its
// commit, forcing a conflict on the next n attempts.
type interferingStore struct {
	*memstore.Store
	mu        sync.Mutex
	remaining int
	interfere func(ctx context.Context, ds *memstore.Store)
	attempts  int
}

func (s *interferingStore) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	return s.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		s.mu.Lock()
		s.attempts++
		s.mu.Unlock()
		if err := fn(ctx, tx); err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.remaining > 0 {
			s.remaining--
			s.interfere(ctx, s.Store)
		}
		return nil
	})
}

func TestDonate_RetriesOnConflictWithFreshReads(t *testing.T) {
	ctx := context.Background()
	ds := &interferingStore{Store: memstore.New()}
	e := newEnv(t, ds)
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	donor := e.fx.CreateUser(ctx, "Donor", units(500))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(1000))

	// A concurrent spend drops the balance before the first commit.
	ds.attempts = 0
	ds.remaining = 1
	ds.interfere = func(ctx context.Context, m *memstore.Store) {
		if err := m.Merge(ctx, "usuarios", donor.ID, map[string]any{"balance": units(150)}); err != nil {
			t.Errorf("interfere: %v", err)
		}
	}

	r, err := e.svc.Donate(ctx, donor.ID, p.ID, units(100), "")
	if err != nil {
		t.Fatalf("Donate: %v", err)
	}
	if ds.attempts != 2 {
		t.Errorf("attempts = %d, want 2", ds.attempts)
	}
	if r.Balance != units(50) {
		t.Errorf("balance = %s, want 50.00 (computed from fresh read)", r.Balance)
	}

	// Same again, but the concurrent spend leaves too little.
	ds.attempts = 0
	ds.remaining = 1
	ds.interfere = func(ctx context.Context, m *memstore.Store) {
		_ = m.Merge(ctx, "usuarios", donor.ID, map[string]any{"balance": units(20)})
	}
	_, err = e.svc.Donate(ctx, donor.ID, p.ID, units(40), "")
	wantErr(t, err, apperr.ErrInsufficientFunds)
	if got := e.fx.Project(ctx, p.ID).Raised; got != units(100) {
		t.Errorf("raised = %s, want 100.00", got)
	}
}

func TestDonate_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	ds := &interferingStore{Store: memstore.New()}
	e := newEnv(t, ds)
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	donor := e.fx.CreateUser(ctx, "Donor", units(500))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(1000))

	ds.attempts = 0
	ds.remaining = 100
	ds.interfere = func(ctx context.Context, m *memstore.Store) {
		_ = m.Merge(ctx, "proyectos", p.ID, map[string]any{"updated_at": time.Now().UTC()})
	}
	_, err := e.svc.Donate(ctx, donor.ID, p.ID, units(10), "")
	wantErr(t, err, apperr.ErrConflict)
	if !apperr.KindOf(err).Retryable() {
		t.Error("exhausted retries should be reported as retryable")
	}
	if ds.attempts != fastRetry.MaxAttempts {
		t.Errorf("attempts = %d, want %d", ds.attempts, fastRetry.MaxAttempts)
	}
	if got := e.fx.User(ctx, donor.ID).Balance; got != units(500) {
		t.Errorf("balance = %s, want untouched", got)
	}
}

func TestConcurrentDonationsConserveFunds(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	donor := e.fx.CreateUser(ctx, "Donor", units(100))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(100000))

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Donate(ctx, donor.ID, p.ID, units(10), "")
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case errors.Is(err, apperr.ErrInsufficientFunds), errors.Is(err, apperr.ErrConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	balance := e.fx.User(ctx, donor.ID).Balance
	raised := e.fx.Project(ctx, p.ID).Raised
	if balance < 0 {
		t.Fatalf("negative balance %s", balance)
	}
	if balance+raised != units(100) {
		t.Errorf("balance %s + raised %s != 100.00", balance, raised)
	}
	if raised != units(10)*money.Cents(succeeded) {
		t.Errorf("raised %s for %d successes", raised, succeeded)
	}
}

func TestMixedSequenceConservation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	a := e.fx.CreateUser(ctx, "A", units(300))
	b := e.fx.CreateUser(ctx, "B", units(300))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(400))

	total := func() money.Cents {
		var sum money.Cents
		for _, id := range []string{creator.ID, a.ID, b.ID} {
			u := e.fx.User(ctx, id)
			if u.Balance < 0 || u.WithdrawableBalance < 0 {
				t.Fatalf("negative balance on %s", id)
			}
			sum += u.Balance + u.WithdrawableBalance
		}
		pp := e.fx.Project(ctx, p.ID)
		if pp.ProjectWalletBalance < 0 {
			t.Fatal("negative project wallet")
		}
		return sum + pp.ProjectWalletBalance
	}
	start := total()

	steps := []func() error{
		func() error { _, err := e.svc.Donate(ctx, a.ID, p.ID, units(150), ""); return err },
		func() error { _, err := e.svc.Donate(ctx, b.ID, p.ID, units(500), ""); return err },
		func() error { _, err := e.svc.WithdrawProjectFunds(ctx, creator.ID, p.ID, ""); return err },
		func() error { _, err := e.svc.Donate(ctx, b.ID, p.ID, units(250), ""); return err },
		func() error { _, err := e.svc.Donate(ctx, a.ID, p.ID, units(10), ""); return err },
		func() error { _, err := e.svc.WithdrawProjectFunds(ctx, creator.ID, p.ID, ""); return err },
		func() error { _, err := e.svc.WithdrawProjectFunds(ctx, creator.ID, p.ID, ""); return err },
		func() error { _, err := e.svc.ReclaimWithdrawable(ctx, creator.ID, ""); return err },
		func() error { _, err := e.svc.ReclaimWithdrawable(ctx, creator.ID, ""); return err },
	}
	for i, step := range steps {
		_ = step()
		if got := total(); got != start {
			t.Fatalf("after step %d total = %s, want %s", i, got, start)
		}
	}
	if got := e.fx.User(ctx, creator.ID).Balance; got != units(400) {
		t.Errorf("creator balance = %s, want 400.00", got)
	}
}

func TestProjectStatsAndReconcile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, testutil.NewMemStore(t))
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	a := e.fx.CreateUser(ctx, "A", units(500))
	b := e.fx.CreateUser(ctx, "B", units(500))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(1000))

	for _, d := range []struct {
		id  string
		amt int64
	}{{a.ID, 100}, {a.ID, 50}, {b.ID, 30}} {
		if _, err := e.svc.Donate(ctx, d.id, p.ID, units(d.amt), ""); err != nil {
			t.Fatal(err)
		}
	}

	st, err := e.svc.ProjectStats(ctx, p.ID, time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if st.Donations != 3 || st.Total != units(180) || st.Average != units(60) || st.UniqueDonors != 2 {
		t.Errorf("stats = %+v", st)
	}

	future := time.Now().Add(time.Hour)
	st, _ = e.svc.ProjectStats(ctx, p.ID, future, future.Add(time.Hour))
	if st.Donations != 0 || st.Average != 0 {
		t.Errorf("future stats = %+v", st)
	}
	_, err = e.svc.ProjectStats(ctx, p.ID, future, future)
	wantErr(t, err, apperr.ErrInvalidInput)
	_, err = e.svc.ProjectStats(ctx, "missing", time.Time{}, time.Time{})
	wantErr(t, err, apperr.ErrNotFound)

	mm, err := e.svc.Reconcile(ctx)
	if err != nil || len(mm) != 0 {
		t.Fatalf("Reconcile = %+v, %v", mm, err)
	}

	if err := e.ds.Merge(ctx, "proyectos", p.ID, map[string]any{"raised": units(999)}); err != nil {
		t.Fatal(err)
	}
	mm, err = e.svc.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(mm) != 1 || mm[0].ProjectID != p.ID || mm[0].Logged != units(180) {
		t.Errorf("mismatches = %+v", mm)
	}
}

func TestPostCommitFailureDoesNotFailDonation(t *testing.T) {
	ctx := context.Background()
	ds := memstore.New()
	e := newEnv(t, ds)
	creator := e.fx.CreateVerifiedCreator(ctx, "Creator")
	donor := e.fx.CreateUser(ctx, "Donor", units(100))
	p := e.fx.CreateProject(ctx, creator, "Pozo", units(1000))

	ds.FailWrites("transacciones", errors.New("log down"))
	ds.FailWrites("notificaciones", errors.New("inbox down"))

	if _, err := e.svc.Donate(ctx, donor.ID, p.ID, units(40), ""); err != nil {
		t.Fatalf("Donate: %v", err)
	}
	if got := e.fx.User(ctx, donor.ID).Balance; got != units(60) {
		t.Errorf("balance = %s", got)
	}
}
