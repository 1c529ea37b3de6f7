package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"expensebook/internal/core"
	"expensebook/internal/kv"
	"expensebook/internal/kv/memory"
	"expensebook/internal/ledger"
)

var fixedNow = time.Date(2024, time.March, 13, 15, 30, 0, 0, time.UTC)

// brokenStore fails every write once broken is set.
type brokenStore struct {
	*memory.Store
	broken bool
}

func (s *brokenStore) SetMany(ctx context.Context, entries map[string][]byte) error {
	if s.broken {
		return errors.New("disk full")
	}
	return s.Store.SetMany(ctx, entries)
}

func newTestServer(t *testing.T, store kv.Store, opts ...Option) *Server {
	t.Helper()
	n := 0
	clock := func() time.Time { return fixedNow }
	l := ledger.New(context.Background(), store,
		ledger.WithClock(clock),
		ledger.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("tx-%d", n)
		}))
	srv := NewServer(":0", l, append([]Option{WithClock(clock)}, opts...)...)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		if strings.HasPrefix(body, "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func createExpense(t *testing.T, srv *Server, body string) core.Transaction {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/expenses", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create %s: status %d body %s", body, rr.Code, rr.Body.String())
	}
	return decode[addResponse](t, rr).Transaction
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, memory.New())

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s missing request id", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s missing security headers", path)
		}
	}

	failing := newTestServer(t, memory.New(), WithReadinessCheck("store", func(context.Context) error {
		return errors.New("unreachable")
	}))
	rr := do(t, failing, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "failed: unreachable") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv := newTestServer(t, memory.New())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	srv := newTestServer(t, memory.New())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid amount", "amount=abc&description=x&date=2024-03-01&category=food&payment_method=cash", 422},
		{"zero amount", "amount=0&description=x&date=2024-03-01&category=food&payment_method=cash", 422},
		{"missing description", "amount=1.50&description=&date=2024-03-01&category=food&payment_method=cash", 422},
		{"missing date", "amount=1.50&description=x&category=food&payment_method=cash", 422},
		{"future date", "amount=1.50&description=x&date=2024-03-14&category=food&payment_method=cash", 422},
		{"missing category", "amount=1.50&description=x&date=2024-03-01&payment_method=cash", 422},
		{"missing payment method", `{"amount":"1.50","description":"x","date":"2024-03-01","category":"food"}`, 422},
		{"malformed json", `{"amount":`, 400},
		{"form success", "amount=1.50&description=Coffee&date=2024-03-13&category=Food&payment_method=cash", 201},
		{"json success", `{"amount":12.5,"description":"Taxi","date":"2024-03-12","category":"commute","paymentMethod":"upi"}`, 201},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/expenses", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr := do(t, srv, http.MethodGet, "/transactions", "")
	txs := decode[[]core.Transaction](t, rr)
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Expense.Description != "coffee" || txs[0].Expense.Category != "food" {
		t.Fatalf("text fields not normalized: %+v", txs[0].Expense)
	}
	if txs[1].Expense.Amount != core.Cents(12_50) {
		t.Fatalf("json amount = %v", txs[1].Expense.Amount)
	}
}

func TestCreateExpenseBudgetConfirmation(t *testing.T) {
	srv := newTestServer(t, memory.New())

	res := decode[addResponse](t, do(t, srv, http.MethodPost, "/expenses",
		"amount=90&description=groceries&date=2024-03-10&category=food&payment_method=cash"))
	if res.Warning != nil {
		t.Fatalf("unexpected warning %+v", res.Warning)
	}

	body := "amount=20&description=dinner&date=2024-03-11&category=food&payment_method=cash"
	rr := do(t, srv, http.MethodPost, "/expenses", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var conflict struct {
		Error   string               `json:"error"`
		Warning ledger.BudgetWarning `json:"warning"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &conflict); err != nil {
		t.Fatal(err)
	}
	if conflict.Warning.Status != ledger.StatusExceeded || conflict.Warning.Projected != core.Cents(110_00) {
		t.Fatalf("unexpected warning %+v", conflict.Warning)
	}
	if txs := decode[[]core.Transaction](t, do(t, srv, http.MethodGet, "/transactions", "")); len(txs) != 1 {
		t.Fatalf("declined expense was recorded: %d transactions", len(txs))
	}

	res = decode[addResponse](t, do(t, srv, http.MethodPost, "/expenses", body+"&confirm=true"))
	if res.Warning == nil || res.Transaction.ID == "" {
		t.Fatalf("confirmed add = %+v", res)
	}

	alerts := decode[[]ledger.BudgetAlert](t, do(t, srv, http.MethodGet, "/budget/alerts", ""))
	if len(alerts) != 1 || alerts[0].Category != "food" || alerts[0].Percentage != 110 {
		t.Fatalf("alerts = %+v", alerts)
	}
}

func TestBudgetCheck(t *testing.T) {
	srv := newTestServer(t, memory.New())

	rr := do(t, srv, http.MethodGet, "/budget/check?category=food&amount=10", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"warning":null`) {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/budget/check?category=FOOD&amount=100", "")
	if !strings.Contains(rr.Body.String(), `"status":"reached"`) {
		t.Fatalf("expected reached warning, got %s", rr.Body.String())
	}

	if rr := do(t, srv, http.MethodGet, "/budget/check?amount=1", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing category: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/budget/check?category=food&amount=-1", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative amount: %d", rr.Code)
	}
}

func TestEditAndDeleteTransaction(t *testing.T) {
	srv := newTestServer(t, memory.New())
	tx := createExpense(t, srv, "amount=20&description=lunch&date=2024-03-05&category=food&payment_method=cash")

	rr := do(t, srv, http.MethodPut, "/transactions/"+tx.ID,
		`{"amount":"35","description":"Lunch","date":"2024-03-05","category":"entertainment","payment_method":"upi"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("edit status %d: %s", rr.Code, rr.Body.String())
	}
	edited := decode[core.Transaction](t, rr)
	if edited.Expense.Amount != core.Cents(35_00) || edited.Expense.Category != "entertainment" {
		t.Fatalf("edit not applied: %+v", edited)
	}

	summary := decode[summaryResponse](t, do(t, srv, http.MethodGet, "/summary", ""))
	if summary.Total != core.Cents(35_00) || summary.Categories["food"] != (core.Money{}) || summary.Categories["entertainment"] != core.Cents(35_00) {
		t.Fatalf("summary = %+v", summary)
	}

	if rr := do(t, srv, http.MethodPut, "/transactions/missing",
		"amount=1&description=x&date=2024-03-05&category=food&payment_method=cash"); rr.Code != http.StatusNotFound {
		t.Fatalf("edit missing: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, "/transactions/"+tx.ID, "amount=1"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("edit invalid: %d", rr.Code)
	}

	if rr := do(t, srv, http.MethodGet, "/transactions/"+tx.ID, ""); rr.Code != http.StatusOK {
		t.Fatalf("get: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/transactions/"+tx.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/transactions/"+tx.ID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/transactions/"+tx.ID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get deleted: %d", rr.Code)
	}
}

func TestInactiveTransactionConflicts(t *testing.T) {
	store := memory.New()
	err := store.SetMany(context.Background(), map[string][]byte{
		kv.KeyTransactions: []byte(`[{"id":"old","transaction":{"id":"old","amount":5,"description":"x","date":"2024-03-01","category":"food"},"status":false}]`),
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, store)

	if rr := do(t, srv, http.MethodDelete, "/transactions/old", ""); rr.Code != http.StatusConflict {
		t.Fatalf("delete inactive: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, "/transactions/old",
		"amount=1&description=x&date=2024-03-05&category=food&payment_method=cash"); rr.Code != http.StatusConflict {
		t.Fatalf("edit inactive: %d", rr.Code)
	}

	active := decode[[]core.Transaction](t, do(t, srv, http.MethodGet, "/transactions?status=active", ""))
	inactive := decode[[]core.Transaction](t, do(t, srv, http.MethodGet, "/transactions?status=inactive", ""))
	if len(active) != 0 || len(inactive) != 1 {
		t.Fatalf("filters: active=%d inactive=%d", len(active), len(inactive))
	}
	if rr := do(t, srv, http.MethodGet, "/transactions?status=bogus", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad filter: %d", rr.Code)
	}
}

func TestPersistenceFailureReturns500(t *testing.T) {
	store := &brokenStore{Store: memory.New()}
	srv := newTestServer(t, store)
	tx := createExpense(t, srv, "amount=5&description=tea&date=2024-03-05&category=food&payment_method=cash")

	store.broken = true
	rr := do(t, srv, http.MethodPost, "/expenses", "amount=5&description=cake&date=2024-03-05&category=food&payment_method=cash")
	if rr.Code != http.StatusInternalServerError || !strings.Contains(rr.Body.String(), "disk full") {
		t.Fatalf("expected 500 with cause, got %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodDelete, "/transactions/"+tx.ID, ""); rr.Code != http.StatusInternalServerError {
		t.Fatalf("delete with broken store: %d", rr.Code)
	}

	entries := decode[struct {
		Errors []ledger.ErrorEntry `json:"errors"`
	}](t, do(t, srv, http.MethodGet, "/errors", ""))
	if len(entries.Errors) != 2 || entries.Errors[0].Operation != "add" {
		t.Fatalf("error log = %+v", entries.Errors)
	}

	if rr := do(t, srv, http.MethodDelete, "/errors", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("clear errors: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/errors", ""); !strings.Contains(rr.Body.String(), `"errors":[]`) {
		t.Fatalf("errors not cleared: %s", rr.Body.String())
	}
	if txs := decode[[]core.Transaction](t, do(t, srv, http.MethodGet, "/transactions", "")); len(txs) != 1 {
		t.Fatalf("failed mutations leaked into state: %+v", txs)
	}
}

func TestDeleteAll(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, store)
	createExpense(t, srv, "amount=5&description=tea&date=2024-03-05&category=food&payment_method=cash")

	if rr := do(t, srv, http.MethodDelete, "/ledger", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete all: %d", rr.Code)
	}
	if store.Len() != 0 {
		t.Fatalf("store still holds %d keys", store.Len())
	}
	if rr := do(t, srv, http.MethodGet, "/categories", ""); strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("categories after delete all: %s", rr.Body.String())
	}
}

func TestCategoriesAndPaymentMethods(t *testing.T) {
	srv := newTestServer(t, memory.New())

	rr := do(t, srv, http.MethodPost, "/categories", `{"name":"Travel","budget_limit":"250.00"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category: %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodPost, "/categories", "name=travel&budget_limit=10"); rr.Code != http.StatusConflict {
		t.Fatalf("duplicate category: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/categories", "name=gifts&budget_limit=0"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero limit: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/categories", "budget_limit=5"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty name: %d", rr.Code)
	}

	if rr := do(t, srv, http.MethodPut, "/categories/food/budget", "limit=300"); rr.Code != http.StatusOK {
		t.Fatalf("set budget: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, "/categories/nope/budget", "limit=300"); rr.Code != http.StatusNotFound {
		t.Fatalf("set budget missing: %d", rr.Code)
	}

	cats := decode[[]core.Category](t, do(t, srv, http.MethodGet, "/categories", ""))
	limits := map[string]core.Money{}
	for _, c := range cats {
		limits[c.Name] = c.BudgetLimit
	}
	if limits["travel"] != core.Cents(250_00) || limits["food"] != core.Cents(300_00) {
		t.Fatalf("limits = %v", limits)
	}

	if rr := do(t, srv, http.MethodPut, "/payment-methods/UPI", `{"details":"bank app"}`); rr.Code != http.StatusOK {
		t.Fatalf("set details: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, "/payment-methods/card", `{"details":"visa"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("set details missing: %d", rr.Code)
	}
	methods := decode[[]core.PaymentMethod](t, do(t, srv, http.MethodGet, "/payment-methods", ""))
	for _, m := range methods {
		if m.Type == "upi" && m.Details != "bank app" {
			t.Fatalf("details not updated: %+v", m)
		}
	}
}

func TestReports(t *testing.T) {
	srv := newTestServer(t, memory.New())
	createExpense(t, srv, "amount=20&description=lunch&date=2024-03-05&category=food&payment_method=cash")
	createExpense(t, srv, "amount=4.50&description=bus&date=2024-03-13&category=commute&payment_method=upi")
	createExpense(t, srv, "amount=9&description=train&date=2024-02-29&category=commute&payment_method=upi")

	monthly := decode[ledger.MonthlyReport](t, do(t, srv, http.MethodGet, "/reports/monthly?year=2024&month=3", ""))
	if monthly.TotalSpent != core.Cents(24_50) || monthly.TransactionCount != 2 || monthly.MonthName != "March" {
		t.Fatalf("monthly = %+v", monthly)
	}
	current := decode[ledger.MonthlyReport](t, do(t, srv, http.MethodGet, "/reports/monthly", ""))
	if current.Month != time.March || current.Year != 2024 {
		t.Fatalf("default month = %d-%d", current.Year, current.Month)
	}

	weekly := decode[ledger.WeeklyReport](t, do(t, srv, http.MethodGet, "/reports/weekly?date=2024-03-13", ""))
	if weekly.StartDate != "2024-03-10" || weekly.EndDate != "2024-03-16" || weekly.TotalSpent != core.Cents(4_50) {
		t.Fatalf("weekly = %+v", weekly)
	}
	if rr := do(t, srv, http.MethodGet, "/reports/weekly?date=13/03/2024", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad weekly date: %d", rr.Code)
	}

	trends := decode[[]ledger.TrendPoint](t, do(t, srv, http.MethodGet, "/reports/trends?months=2", ""))
	if len(trends) != 2 || trends[0].Period != "February 2024" || trends[1].TotalSpent != core.Cents(24_50) {
		t.Fatalf("trends = %+v", trends)
	}
	if rr := do(t, srv, http.MethodGet, "/reports/trends?months=x", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad months: %d", rr.Code)
	}
}

func TestExports(t *testing.T) {
	srv := newTestServer(t, memory.New())
	createExpense(t, srv, `{"amount":"20","description":"say \"hi\"","date":"2024-03-05","category":"food","payment_method":"cash"}`)

	rr := do(t, srv, http.MethodGet, "/export/transactions.json", "")
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("json content type %q", rr.Header().Get("Content-Type"))
	}
	if txs := decode[[]core.Transaction](t, rr); len(txs) != 1 {
		t.Fatalf("json export = %+v", txs)
	}

	rr = do(t, srv, http.MethodGet, "/export/transactions.csv", "")
	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(records) != 2 || records[1][1] != "20.00" || records[1][2] != `say "hi"` {
		t.Fatalf("csv records = %q", records)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "transactions.csv") {
		t.Fatalf("missing disposition: %q", rr.Header().Get("Content-Disposition"))
	}

	rr = do(t, srv, http.MethodGet, "/export/transactions.xlsx", "")
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Transactions")
	if err != nil || len(rows) != 2 {
		t.Fatalf("xlsx rows = %v, %v", rows, err)
	}
}

func TestReconcile(t *testing.T) {
	store := memory.New()
	err := store.SetMany(context.Background(), map[string][]byte{
		kv.KeyCategories:   []byte(`[{"name":"food","budgetLimit":100,"amount":999}]`),
		kv.KeyTransactions: []byte(`[{"id":"a","transaction":{"id":"a","amount":12,"description":"x","date":"2024-03-01","category":"food","paymentMethod":"cash"},"status":true}]`),
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, store)

	rr := do(t, srv, http.MethodPost, "/reconcile", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reconcile: %d", rr.Code)
	}
	summary := decode[summaryResponse](t, do(t, srv, http.MethodGet, "/summary", ""))
	if summary.Categories["food"] != core.Cents(12_00) {
		t.Fatalf("food after reconcile = %v", summary.Categories["food"])
	}
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	srv := newTestServer(t, memory.New(), WithRateLimit(2))

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodDelete, "/errors", ""); rr.Code != http.StatusNoContent {
			t.Fatalf("request %d: %d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodDelete, "/errors", "")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/errors", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads are not limited: %d", rr.Code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv := newTestServer(t, memory.New())
	if rr := do(t, srv, http.MethodGet, "/nope", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown route: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPatch, "/transactions", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: %d", rr.Code)
	}
}
