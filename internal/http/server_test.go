package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"contas/internal/core"
	"contas/internal/ledger/memory"
	"contas/internal/services"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()

	store := memory.New(
		core.Account{
			ID:               "acc-1",
			Name:             "Checking",
			Type:             core.Checking,
			TotalBalance:     core.DecPtr("1000"),
			AvailableBalance: core.DecPtr("600"),
			AllocatedBalance: core.DecPtr("400"),
		},
		core.Account{
			ID:               "card-1",
			Name:             "Blue Card",
			Type:             core.Credit,
			CreditLimit:      core.DecPtr("2000"),
			AllocatedBalance: core.DecPtr("400"),
			TotalBalance:     core.DecPtr("300"),
			ClosingDay:       7,
			DueDay:           15,
			LinkedAccountID:  "acc-1",
		},
		core.Account{
			ID:          "card-nocycle",
			Name:        "Debit-only Card",
			Type:        core.Credit,
			CreditLimit: core.DecPtr("500"),
		},
	)
	store.AddTransaction(core.Transaction{
		ID:              "t-alloc-1",
		Type:            core.Allocation,
		Amount:          core.Dec("400"),
		AccountID:       "acc-1",
		RelatedEntityID: "card-1",
		Date:            time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Paid:            true,
	})
	store.AddTransaction(core.Transaction{
		ID:        "t-exp-1",
		Type:      core.Expense,
		Amount:    core.Dec("100"),
		AccountID: "card-1",
		Date:      time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC),
	})
	store.AddTransaction(core.Transaction{
		ID:        "t-exp-2",
		Type:      core.Expense,
		Amount:    core.Dec("50"),
		AccountID: "card-1",
		Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	})

	svc := services.NewAllocationService(store, store, store, nil)
	rec := services.NewReconciler(store, services.DefaultReconcilerConfig())
	return NewServer(":0", svc, rec), store
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body=%q)", err, rr.Body.String())
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doRequest(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestAccountBalance(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/accounts/acc-1/balance", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decodeBody[balanceResponse](t, rr)
	if got.Total != "1000" || got.Available != "600" || got.Allocated != "400" {
		t.Fatalf("balance = %+v", got)
	}
}

func TestAccountBalanceNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv, http.MethodGet, "/accounts/nope/balance", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rr.Code)
	}
}

func TestCardAllocated(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv, http.MethodGet, "/accounts/acc-1/cards/card-1/allocated", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decodeBody[balanceResponse](t, rr)
	if got.Allocated != "400" {
		t.Fatalf("allocated = %s, want 400", got.Allocated)
	}
}

func TestCardLimits(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv, http.MethodGet, "/cards/card-1/limits", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decodeBody[limitsResponse](t, rr)
	if got.Total != "2400" {
		t.Fatalf("total limit = %s, want 2400", got.Total)
	}
	if got.Available != "2100" {
		t.Fatalf("available limit = %s, want 2100", got.Available)
	}
}

func TestCardInvoice(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/cards/card-1/invoice?ref=2025-03-15", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decodeBody[invoiceResponse](t, rr)
	if got.PeriodStart != "2025-02-07" || got.PeriodEnd != "2025-03-06" {
		t.Fatalf("period = %s..%s", got.PeriodStart, got.PeriodEnd)
	}
	// The March 10 expense belongs to the next cycle.
	if got.Expenses != "100" {
		t.Fatalf("expenses = %s, want 100", got.Expenses)
	}
	if got.Paid {
		t.Fatalf("invoice unexpectedly marked paid")
	}
}

func TestCardInvoiceBadRef(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv, http.MethodGet, "/cards/card-1/invoice?ref=15-03-2025", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}

func TestCardInvoiceNoClosingDay(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv, http.MethodGet, "/cards/card-nocycle/invoice?ref=2025-03-15", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422", rr.Code)
	}
}

func TestCreateAllocation(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodPost, "/allocations",
		`{"kind":"allocate","bank_account_id":"acc-1","credit_card_id":"card-1","amount":"100","description":"trip buffer"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeBody[allocationResponse](t, rr)
	if created.TransactionID == "" {
		t.Fatalf("missing transaction id")
	}
	if created.Amount != "100" {
		t.Fatalf("amount = %s, want 100", created.Amount)
	}

	rr = doRequest(t, srv, http.MethodGet, "/accounts/acc-1/cards/card-1/allocated", "")
	got := decodeBody[balanceResponse](t, rr)
	if got.Allocated != "500" {
		t.Fatalf("allocated after commit = %s, want 500", got.Allocated)
	}
}

func TestCreateAllocationInvalidatesBalanceCache(t *testing.T) {
	srv, _ := newTestServer(t)

	// Warm the cache.
	rr := doRequest(t, srv, http.MethodGet, "/accounts/acc-1/balance", "")
	before := decodeBody[balanceResponse](t, rr)
	if before.Available != "600" {
		t.Fatalf("available before = %s", before.Available)
	}

	rr = doRequest(t, srv, http.MethodPost, "/allocations",
		`{"kind":"allocate","bank_account_id":"acc-1","credit_card_id":"card-1","amount":"100"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, srv, http.MethodGet, "/accounts/acc-1/balance", "")
	after := decodeBody[balanceResponse](t, rr)
	if after.Available != "500" || after.Allocated != "500" {
		t.Fatalf("balance after commit = %+v", after)
	}
}

func TestCreateAllocationOverBound(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodPost, "/allocations",
		`{"kind":"allocate","bank_account_id":"acc-1","credit_card_id":"card-1","amount":"900"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422", rr.Code)
	}
}

func TestDeallocateOverNet(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodPost, "/allocations",
		`{"kind":"deallocate","bank_account_id":"acc-1","credit_card_id":"card-1","amount":"600"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422", rr.Code)
	}
}

func TestCreateAllocationBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"unknown kind", `{"kind":"transfer","bank_account_id":"acc-1","credit_card_id":"card-1","amount":"10"}`, http.StatusBadRequest},
		{"unparseable amount", `{"kind":"allocate","bank_account_id":"acc-1","credit_card_id":"card-1","amount":"ten"}`, http.StatusUnprocessableEntity},
		{"zero amount", `{"kind":"allocate","bank_account_id":"acc-1","credit_card_id":"card-1","amount":"0"}`, http.StatusUnprocessableEntity},
		{"deallocate without card", `{"kind":"deallocate","bank_account_id":"acc-1","amount":"10"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, srv, http.MethodPost, "/allocations", tc.body)
			if rr.Code != tc.want {
				t.Fatalf("status=%d, want %d (body=%s)", rr.Code, tc.want, rr.Body.String())
			}
		})
	}
}

func TestCreateAllocationExecutorRejection(t *testing.T) {
	srv, store := newTestServer(t)

	store.FailNextWrite(errors.New("household member raced the balance"))

	rr := doRequest(t, srv, http.MethodPost, "/allocations",
		`{"kind":"allocate","bank_account_id":"acc-1","credit_card_id":"card-1","amount":"100"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d, want 502 (body=%s)", rr.Code, rr.Body.String())
	}
}
