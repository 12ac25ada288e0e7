package wallet_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crewfund/crew/internal/app/features/shared"
	"github.com/crewfund/crew/internal/app/features/wallet"
	"github.com/crewfund/crew/internal/app/services/ledger"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/crewfund/crew/internal/domain/money"
	"github.com/crewfund/crew/internal/testutil"
	"go.uber.org/zap"
)

type receipt struct {
	Op       string      `json:"op"`
	Balance  money.Cents `json:"balance"`
	Replayed bool        `json:"replayed"`
}

func setup(t *testing.T) (http.Handler, *testutil.Fixtures) {
	t.Helper()
	ds := testutil.NewMemStore(t)
	svc := ledger.New(ds, nil, nil, zap.NewNop(), ledger.DefaultConfig())
	return wallet.Routes(wallet.NewHandler(svc, zap.NewNop())), testutil.NewFixtures(t, ds)
}

func rechargeBody(amount string) map[string]string {
	return map[string]string{
		"amount":      amount,
		"card_number": testutil.TestCard.CardNumber,
		"expiry_date": testutil.TestCard.ExpiryDate,
		"cvv":         testutil.TestCard.CVV,
	}
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRecharge(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h, fx := setup(t)
	u := fx.CreateCardholder(ctx, "Ana", 0)

	req := testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/recharge", rechargeBody("150.00")), u)
	req.Header.Set(shared.IdempotencyHeader, "r-1")
	rec := do(t, h, req)
	testutil.AssertStatus(t, rec, http.StatusOK)
	var got receipt
	testutil.DecodeJSON(t, rec, &got)
	if got.Balance != money.FromUnits(150) || got.Replayed {
		t.Errorf("receipt = %+v", got)
	}

	// Same key again: replayed, balance unchanged.
	req = testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/recharge", rechargeBody("150.00")), u)
	req.Header.Set(shared.IdempotencyHeader, "r-1")
	rec = do(t, h, req)
	testutil.AssertStatus(t, rec, http.StatusOK)
	testutil.DecodeJSON(t, rec, &got)
	if !got.Replayed {
		t.Error("expected replayed receipt")
	}
	if b := fx.User(ctx, u.ID).Balance; b != money.FromUnits(150) {
		t.Errorf("balance = %s, want 150.00", b)
	}
}

func TestRecharge_Errors(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h, fx := setup(t)
	holder := fx.CreateCardholder(ctx, "Ana", 0)
	plain := fx.CreateUser(ctx, "Bea", 0)

	wrongCVV := rechargeBody("150")
	wrongCVV["cvv"] = "999"

	tests := []struct {
		name string
		user models.User
		body map[string]string
		want int
	}{
		{"below minimum", holder, rechargeBody("99.99"), http.StatusBadRequest},
		{"above maximum", holder, rechargeBody("5000.01"), http.StatusBadRequest},
		{"card mismatch", holder, wrongCVV, http.StatusUnprocessableEntity},
		{"no card", plain, rechargeBody("150"), http.StatusUnprocessableEntity},
		{"bad amount", holder, rechargeBody("abc"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/recharge", tt.body), tt.user)
			testutil.AssertStatus(t, do(t, h, req), tt.want)
		})
	}
}

func TestReclaimAndHistory(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h, fx := setup(t)
	u := fx.CreateUser(ctx, "Ana", 0)

	rec := do(t, h, testutil.WithUser(httptest.NewRequest("POST", "/reclaim", nil), u))
	testutil.AssertStatus(t, rec, http.StatusUnprocessableEntity)

	holder := fx.CreateCardholder(ctx, "Bea", 0)
	do(t, h, testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/recharge", rechargeBody("200")), holder))

	rec = do(t, h, testutil.WithUser(httptest.NewRequest("GET", "/transactions?limit=10", nil), holder))
	testutil.AssertStatus(t, rec, http.StatusOK)
	var hist struct {
		Transactions []models.Transaction `json:"transactions"`
	}
	testutil.DecodeJSON(t, rec, &hist)
	if len(hist.Transactions) != 1 || hist.Transactions[0].Kind != models.KindRecharge {
		t.Errorf("history = %+v", hist.Transactions)
	}
}

func TestAnonymous(t *testing.T) {
	h, _ := setup(t)
	rec := do(t, h, httptest.NewRequest("GET", "/transactions", nil))
	testutil.AssertStatus(t, rec, http.StatusUnauthorized)
}
