package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/eaglebank/ledger-service/shared/apperr"
	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/shopspring/decimal"
)

// ---- mock implementations ----

type mockTransactionCommander struct {
	depositFn  func(cqrs.DepositCommand) (*models.Account, error)
	withdrawFn func(cqrs.WithdrawCommand) (*models.Account, error)
	transferFn func(cqrs.TransferCommand) (*models.TransferResult, error)
}

func (m *mockTransactionCommander) Deposit(_ context.Context, cmd cqrs.DepositCommand) (*models.Account, error) {
	if m.depositFn != nil {
		return m.depositFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockTransactionCommander) Withdraw(_ context.Context, cmd cqrs.WithdrawCommand) (*models.Account, error) {
	if m.withdrawFn != nil {
		return m.withdrawFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockTransactionCommander) Transfer(_ context.Context, cmd cqrs.TransferCommand) (*models.TransferResult, error) {
	if m.transferFn != nil {
		return m.transferFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

var errInsufficientFunds = apperr.New(apperr.InsufficientFunds, apperr.CodeInsufficientFunds, "Insufficient funds")

// ---- tests ----

func TestDeposit(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		body           interface{}
		depositFn      func(cqrs.DepositCommand) (*models.Account, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "success - deposit",
			path: "/accounts/1/deposit",
			body: map[string]interface{}{"amount": 500},
			depositFn: func(cmd cqrs.DepositCommand) (*models.Account, error) {
				if cmd.AccountID != 1 || !cmd.Amount.Equal(decimal.NewFromInt(500)) {
					return nil, fmt.Errorf("unexpected command %+v", cmd)
				}
				return &models.Account{ID: 1, OwnerName: "Raj", Balance: decimal.NewFromInt(1500)}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "bad request - ledger rejects negative amount",
			path: "/accounts/1/deposit",
			body: map[string]interface{}{"amount": -100},
			depositFn: func(cmd cqrs.DepositCommand) (*models.Account, error) {
				return nil, apperr.New(apperr.InvalidInput, apperr.CodeInvalidAmount, "Deposit amount must be positive")
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apperr.CodeInvalidAmount,
		},
		{
			name:           "bad request - missing amount",
			path:           "/accounts/1/deposit",
			body:           map[string]interface{}{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apperr.CodeInvalidRequest,
		},
		{
			name:           "bad request - amount is not a number",
			path:           "/accounts/1/deposit",
			body:           map[string]interface{}{"amount": "lots"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apperr.CodeInvalidRequest,
		},
		{
			name:           "not found - account does not exist",
			path:           "/accounts/99999/deposit",
			body:           map[string]interface{}{"amount": 5},
			depositFn:      func(cmd cqrs.DepositCommand) (*models.Account, error) { return nil, errNotFound },
			expectedStatus: http.StatusNotFound,
			expectedCode:   apperr.CodeAccountNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{}, &mockTransactionCommander{depositFn: tt.depositFn})
			w := doRequest(router, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedCode != "" {
				if got := decodeError(t, w).Code; got != tt.expectedCode {
					t.Errorf("[%s] expected code %q got %q", tt.name, tt.expectedCode, got)
				}
			}
		})
	}
}

func TestWithdraw(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		withdrawFn     func(cqrs.WithdrawCommand) (*models.Account, error)
		expectedStatus int
	}{
		{
			name: "success - withdraw",
			body: map[string]interface{}{"amount": 300},
			withdrawFn: func(cmd cqrs.WithdrawCommand) (*models.Account, error) {
				return &models.Account{ID: 1, Balance: decimal.NewFromInt(700)}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad request - insufficient funds",
			body:           map[string]interface{}{"amount": 500},
			withdrawFn:     func(cmd cqrs.WithdrawCommand) (*models.Account, error) { return nil, errInsufficientFunds },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "internal error - unclassified failure",
			body: map[string]interface{}{"amount": 1},
			withdrawFn: func(cmd cqrs.WithdrawCommand) (*models.Account, error) {
				return nil, errors.New("driver: bad connection")
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{}, &mockTransactionCommander{withdrawFn: tt.withdrawFn})
			w := doRequest(router, http.MethodPost, "/accounts/1/withdraw", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	withdrawFn := func(cqrs.WithdrawCommand) (*models.Account, error) {
		return nil, apperr.Storage(errors.New("pq: password authentication failed"))
	}
	router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{}, &mockTransactionCommander{withdrawFn: withdrawFn})
	w := doRequest(router, http.MethodPost, "/accounts/1/withdraw", map[string]interface{}{"amount": 1})

	resp := decodeError(t, w)
	if resp.Kind != string(apperr.StorageFailure) || resp.Message != "Internal server error" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestTransfer(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		transferFn     func(cqrs.TransferCommand) (*models.TransferResult, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "success - transfer",
			body: map[string]interface{}{"from_account_id": 1, "to_account_id": 2, "amount": 300},
			transferFn: func(cmd cqrs.TransferCommand) (*models.TransferResult, error) {
				if cmd.FromAccountID != 1 || cmd.ToAccountID != 2 {
					return nil, fmt.Errorf("unexpected command %+v", cmd)
				}
				return &models.TransferResult{
					From: models.Account{ID: 1, Balance: decimal.NewFromInt(700)},
					To:   models.Account{ID: 2, Balance: decimal.NewFromInt(800)},
				}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "not found - sender missing",
			body: map[string]interface{}{"from_account_id": 99999, "to_account_id": 2, "amount": 10},
			transferFn: func(cmd cqrs.TransferCommand) (*models.TransferResult, error) {
				return nil, apperr.New(apperr.NotFound, apperr.CodeSenderNotFound, "Sender account not found")
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   apperr.CodeSenderNotFound,
		},
		{
			name: "not found - receiver missing",
			body: map[string]interface{}{"from_account_id": 1, "to_account_id": 99999, "amount": 10},
			transferFn: func(cmd cqrs.TransferCommand) (*models.TransferResult, error) {
				return nil, apperr.New(apperr.NotFound, apperr.CodeReceiverNotFound, "Receiver account not found")
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   apperr.CodeReceiverNotFound,
		},
		{
			name:           "bad request - missing receiver",
			body:           map[string]interface{}{"from_account_id": 1, "amount": 10},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apperr.CodeInvalidRequest,
		},
		{
			name:           "bad request - zero sender id",
			body:           map[string]interface{}{"from_account_id": 0, "to_account_id": 2, "amount": 10},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apperr.CodeInvalidRequest,
		},
		{
			name:           "bad request - negative sender id",
			body:           map[string]interface{}{"from_account_id": -1, "to_account_id": 2, "amount": 10},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apperr.CodeInvalidRequest,
		},
		{
			name:           "bad request - negative receiver id",
			body:           map[string]interface{}{"from_account_id": 1, "to_account_id": -5, "amount": 10},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apperr.CodeInvalidRequest,
		},
		{
			name:           "bad request - insufficient funds",
			body:           map[string]interface{}{"from_account_id": 1, "to_account_id": 2, "amount": 10000},
			transferFn:     func(cmd cqrs.TransferCommand) (*models.TransferResult, error) { return nil, errInsufficientFunds },
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apperr.CodeInsufficientFunds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{}, &mockTransactionCommander{transferFn: tt.transferFn})
			w := doRequest(router, http.MethodPost, "/transfer", tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedCode != "" {
				if got := decodeError(t, w).Code; got != tt.expectedCode {
					t.Errorf("[%s] expected code %q got %q", tt.name, tt.expectedCode, got)
				}
			}
			if w.Code == http.StatusOK {
				var resp TransferResponse
				_ = json.Unmarshal(w.Body.Bytes(), &resp)
				if resp.Message != "Transfer successful" || resp.ToAccount.ID != 2 {
					t.Errorf("unexpected response %+v", resp)
				}
			}
		})
	}
}
