package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/finbook/finbook/internal/finance"
	"github.com/finbook/finbook/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type txnResp struct {
	ID                   string            `json:"id"`
	UserID               string            `json:"user_id"`
	CategoryID           string            `json:"category_id"`
	AccountID            string            `json:"account_id"`
	DestinationAccountID *string           `json:"destination_account_id"`
	AmountMinor          int64             `json:"amount_minor"`
	Currency             string            `json:"currency"`
	Memo                 string            `json:"memo"`
	DeletedAt            *string           `json:"deleted_at"`
	Metadata             map[string]string `json:"metadata"`
}

type acctResp struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Currency     string `json:"currency"`
	BalanceMinor int64  `json:"balance_minor"`
	Active       bool   `json:"active"`
}

type mutationResp struct {
	Transaction txnResp    `json:"transaction"`
	Accounts    []acctResp `json:"accounts"`
}

type errResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func seedAmount(t *testing.T, minor int64) money.Amount {
	t.Helper()
	a, err := money.NewAmountFromMinorUnits("GBP", minor)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	return a
}

// setup seeds a user with a checking account at 50.00 GBP, an empty savings
// account, and one category per transaction type.
func setup(t *testing.T) (*memory.Store, http.Handler, uuid.UUID, finance.Account, finance.Account, finance.Category, finance.Category, finance.Category) {
	t.Helper()
	store := memory.New()
	user := finance.User{ID: uuid.New()}
	store.SeedUser(user)
	checking := finance.Account{ID: uuid.New(), UserID: user.ID, Name: "Checking", Currency: "GBP", Balance: seedAmount(t, 5000), Active: true}
	savings := finance.Account{ID: uuid.New(), UserID: user.ID, Name: "Savings", Currency: "GBP", Balance: seedAmount(t, 0), Active: true}
	store.SeedAccount(checking)
	store.SeedAccount(savings)
	salary := finance.Category{ID: uuid.New(), UserID: user.ID, Name: "Salary", Type: finance.TypeIncome, Active: true}
	groceries := finance.Category{ID: uuid.New(), UserID: user.ID, Name: "Groceries", Type: finance.TypeExpense, Active: true}
	transfer := finance.Category{ID: uuid.New(), UserID: user.ID, Name: "Savings", Type: finance.TypeTransfer, Active: true}
	store.SeedCategory(salary)
	store.SeedCategory(groceries)
	store.SeedCategory(transfer)
	h := New(store, testLogger()).Handler()
	return store, h, user.ID, checking, savings, salary, groceries, transfer
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostTransaction_ExpenseAndBalances(t *testing.T) {
	_, h, userID, checking, _, _, groceries, _ := setup(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id":      userID.String(),
		"category_id":  groceries.ID.String(),
		"account_id":   checking.ID.String(),
		"amount_minor": 1250,
		"memo":         "Weekly shop",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var mr mutationResp
	if err := json.Unmarshal(rec.Body.Bytes(), &mr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mr.Transaction.AmountMinor != 1250 || mr.Transaction.Currency != "GBP" {
		t.Fatalf("unexpected transaction: %+v", mr.Transaction)
	}
	if len(mr.Accounts) != 1 || mr.Accounts[0].BalanceMinor != 3750 {
		t.Fatalf("unexpected accounts: %+v", mr.Accounts)
	}
}

func TestPostTransaction_TransferAndValidation(t *testing.T) {
	_, h, userID, checking, savings, _, _, transfer := setup(t)

	// missing destination
	rec := doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id":      userID.String(),
		"category_id":  transfer.ID.String(),
		"account_id":   checking.ID.String(),
		"amount_minor": 1000,
	}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var er errResp
	_ = json.Unmarshal(rec.Body.Bytes(), &er)
	if er.Code != "transfer_requires_destination" {
		t.Fatalf("unexpected code: %q", er.Code)
	}

	// valid transfer moves both balances
	rec = doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id":                userID.String(),
		"category_id":            transfer.ID.String(),
		"account_id":             checking.ID.String(),
		"destination_account_id": savings.ID.String(),
		"amount_minor":           2000,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var mr mutationResp
	_ = json.Unmarshal(rec.Body.Bytes(), &mr)
	if len(mr.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %+v", mr.Accounts)
	}
	if mr.Transaction.DestinationAccountID == nil {
		t.Fatalf("transfer response missing destination")
	}
}

func TestPostTransaction_InsufficientBalance(t *testing.T) {
	_, h, userID, checking, _, _, groceries, _ := setup(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id":      userID.String(),
		"category_id":  groceries.ID.String(),
		"account_id":   checking.ID.String(),
		"amount_minor": 99999,
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	var er errResp
	_ = json.Unmarshal(rec.Body.Bytes(), &er)
	if er.Code != "insufficient_balance" {
		t.Fatalf("unexpected code: %q", er.Code)
	}
}

func TestPostTransaction_Idempotency(t *testing.T) {
	_, h, userID, checking, _, salary, _, _ := setup(t)

	body := map[string]any{
		"user_id":      userID.String(),
		"category_id":  salary.ID.String(),
		"account_id":   checking.ID.String(),
		"amount_minor": 700,
	}
	headers := map[string]string{"Idempotency-Key": "pay-2026-03"}

	rec := doJSON(t, h, http.MethodPost, "/v1/transactions", body, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var first mutationResp
	_ = json.Unmarshal(rec.Body.Bytes(), &first)

	// replay: same transaction, no second posting
	rec = doJSON(t, h, http.MethodPost, "/v1/transactions", body, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d: %s", rec.Code, rec.Body.String())
	}
	var second mutationResp
	_ = json.Unmarshal(rec.Body.Bytes(), &second)
	if second.Transaction.ID != first.Transaction.ID {
		t.Fatalf("replay created a new transaction")
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/accounts/"+checking.ID.String()+"?user_id="+userID.String(), nil, nil)
	var acct acctResp
	_ = json.Unmarshal(rec.Body.Bytes(), &acct)
	if acct.BalanceMinor != 5700 {
		t.Fatalf("income applied twice: %d", acct.BalanceMinor)
	}
}

func TestPatchTransaction_Rebalances(t *testing.T) {
	_, h, userID, checking, _, _, groceries, _ := setup(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id":      userID.String(),
		"category_id":  groceries.ID.String(),
		"account_id":   checking.ID.String(),
		"amount_minor": 1000,
	}, nil)
	var created mutationResp
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(t, h, http.MethodPatch, "/v1/transactions/"+created.Transaction.ID, map[string]any{
		"user_id":      userID.String(),
		"amount_minor": 2500,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var patched mutationResp
	_ = json.Unmarshal(rec.Body.Bytes(), &patched)
	if patched.Transaction.AmountMinor != 2500 {
		t.Fatalf("unexpected amount: %d", patched.Transaction.AmountMinor)
	}
	if len(patched.Accounts) != 1 || patched.Accounts[0].BalanceMinor != 2500 {
		t.Fatalf("unexpected accounts: %+v", patched.Accounts)
	}
}

func TestDeleteTransaction_SoftDeletesAndRestores(t *testing.T) {
	_, h, userID, checking, _, _, groceries, _ := setup(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id":      userID.String(),
		"category_id":  groceries.ID.String(),
		"account_id":   checking.ID.String(),
		"amount_minor": 1500,
	}, nil)
	var created mutationResp
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(t, h, http.MethodDelete, "/v1/transactions/"+created.Transaction.ID+"?user_id="+userID.String(), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var deleted mutationResp
	_ = json.Unmarshal(rec.Body.Bytes(), &deleted)
	if deleted.Transaction.DeletedAt == nil {
		t.Fatalf("expected deleted_at in response")
	}
	if deleted.Accounts[0].BalanceMinor != 5000 {
		t.Fatalf("balance not restored: %d", deleted.Accounts[0].BalanceMinor)
	}

	// hidden from default listing
	rec = doJSON(t, h, http.MethodGet, "/v1/transactions?user_id="+userID.String(), nil, nil)
	var list struct {
		Items []txnResp `json:"items"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Items) != 0 {
		t.Fatalf("deleted transaction still listed: %+v", list.Items)
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/transactions?user_id="+userID.String()+"&include_deleted=true", nil, nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Items) != 1 {
		t.Fatalf("deleted transaction missing from full listing")
	}
}

func TestPendingExpense_Lifecycle(t *testing.T) {
	_, h, userID, checking, _, _, groceries, _ := setup(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/pending-expenses", map[string]any{
		"user_id":      userID.String(),
		"category_id":  groceries.ID.String(),
		"amount_minor": 3000,
		"currency":     "GBP",
		"memo":         "Big shop",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &p)
	if p.Status != "pending" {
		t.Fatalf("unexpected status: %q", p.Status)
	}

	// convert against checking
	rec = doJSON(t, h, http.MethodPost, "/v1/pending-expenses/"+p.ID+"/convert", map[string]any{
		"user_id":    userID.String(),
		"account_id": checking.ID.String(),
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var conv struct {
		Transaction txnResp    `json:"transaction"`
		Accounts    []acctResp `json:"accounts"`
		Pending     struct {
			Status        string  `json:"status"`
			TransactionID *string `json:"transaction_id"`
		} `json:"pending_expense"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &conv)
	if conv.Pending.Status != "paid" || conv.Pending.TransactionID == nil {
		t.Fatalf("unexpected pending state: %+v", conv.Pending)
	}
	if conv.Accounts[0].BalanceMinor != 2000 {
		t.Fatalf("unexpected balance: %d", conv.Accounts[0].BalanceMinor)
	}

	// second conversion is rejected
	rec = doJSON(t, h, http.MethodPost, "/v1/pending-expenses/"+p.ID+"/convert", map[string]any{
		"user_id":    userID.String(),
		"account_id": checking.ID.String(),
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	var er errResp
	_ = json.Unmarshal(rec.Body.Bytes(), &er)
	if er.Code != "already_paid" {
		t.Fatalf("unexpected code: %q", er.Code)
	}
}

func TestAccountsAndCategoriesCRUD(t *testing.T) {
	_, h, userID, _, _, _, _, _ := setup(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/accounts", map[string]any{
		"user_id":               userID.String(),
		"name":                  "Holiday Fund",
		"currency":              "GBP",
		"opening_balance_minor": 10000,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var acct acctResp
	_ = json.Unmarshal(rec.Body.Bytes(), &acct)
	if acct.BalanceMinor != 10000 {
		t.Fatalf("unexpected balance: %d", acct.BalanceMinor)
	}

	// duplicate name conflicts
	rec = doJSON(t, h, http.MethodPost, "/v1/accounts", map[string]any{
		"user_id":  userID.String(),
		"name":     "holiday fund",
		"currency": "GBP",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPatch, "/v1/accounts/"+acct.ID, map[string]any{
		"user_id": userID.String(),
		"name":    "Travel Fund",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodDelete, "/v1/accounts/"+acct.ID+"?user_id="+userID.String(), nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/categories", map[string]any{
		"user_id": userID.String(),
		"name":    "Subscriptions",
		"type":    "expense",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/categories?user_id="+userID.String(), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDictionary(t *testing.T) {
	_, h, _, _, _, _, _, _ := setup(t)

	rec := doJSON(t, h, http.MethodGet, "/v1/dictionary/categories?type=expense", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Items []struct {
			Type       string `json:"type"`
			Categories []struct {
				Code  string `json:"code"`
				Label string `json:"label"`
			} `json:"categories"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Type != "expense" || len(out.Items[0].Categories) == 0 {
		t.Fatalf("unexpected dictionary: %+v", out)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/dictionary/categories?type=loan", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rec.Code)
	}
}

func TestContentTypeRequired(t *testing.T) {
	_, h, userID, checking, _, salary, _, _ := setup(t)

	b, _ := json.Marshal(map[string]any{
		"user_id":      userID.String(),
		"category_id":  salary.ID.String(),
		"account_id":   checking.ID.String(),
		"amount_minor": 100,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/transactions", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	_, h, _, _, _, _, _, _ := setup(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/readyz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rec.Code)
	}
}

func TestCallerValidationErrorsReturn400(t *testing.T) {
	_, h, userID, _, _, _, groceries, _ := setup(t)

	cases := []struct {
		name string
		path string
		body map[string]any
	}{
		{"account currency too short", "/v1/accounts", map[string]any{
			"user_id": userID.String(), "name": "Wallet", "currency": "XX",
		}},
		{"account currency unknown", "/v1/accounts", map[string]any{
			"user_id": userID.String(), "name": "Wallet", "currency": "ZZZ",
		}},
		{"account name missing", "/v1/accounts", map[string]any{
			"user_id": userID.String(), "name": "   ", "currency": "GBP",
		}},
		{"category type unknown", "/v1/categories", map[string]any{
			"user_id": userID.String(), "name": "Refunds", "type": "refund",
		}},
		{"pending currency too short", "/v1/pending-expenses", map[string]any{
			"user_id": userID.String(), "category_id": groceries.ID.String(),
			"amount_minor": 100, "currency": "G",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, tc.path, tc.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var er errResp
			if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if er.Error == "internal_error" {
				t.Fatalf("validation error leaked as internal_error")
			}
		})
	}
}

func TestLedgerOperationsCounter(t *testing.T) {
	_, h, userID, checking, _, _, groceries, _ := setup(t)

	okBefore := testutil.ToFloat64(ledgerOperationsTotal.WithLabelValues("create", "ok"))
	errBefore := testutil.ToFloat64(ledgerOperationsTotal.WithLabelValues("create", "error"))

	rec := doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id":      userID.String(),
		"category_id":  groceries.ID.String(),
		"account_id":   checking.ID.String(),
		"amount_minor": 100,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id":      userID.String(),
		"category_id":  groceries.ID.String(),
		"account_id":   checking.ID.String(),
		"amount_minor": 999999,
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := testutil.ToFloat64(ledgerOperationsTotal.WithLabelValues("create", "ok")); got != okBefore+1 {
		t.Fatalf("create ok count = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(ledgerOperationsTotal.WithLabelValues("create", "error")); got != errBefore+1 {
		t.Fatalf("create error count = %v, want %v", got, errBefore+1)
	}
}
