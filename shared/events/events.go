package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	AccountOpened    = "account.opened"
	BalanceUpdated   = "balance.updated"
	FundsTransferred = "funds.transferred"
	AccountClosed    = "account.closed"
)

// AccountEventsStream is the Redis stream and Kafka topic for ledger events.
const AccountEventsStream = "account.events"

// Base event structure
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type AccountOpenedEvent struct {
	AccountID int64           `json:"accountId"`
	OwnerName string          `json:"ownerName"`
	Balance   decimal.Decimal `json:"balance"`
}

// BalanceUpdatedEvent is emitted for deposits (positive Change) and
// withdrawals (negative Change).
type BalanceUpdatedEvent struct {
	AccountID  int64           `json:"accountId"`
	NewBalance decimal.Decimal `json:"newBalance"`
	Change     decimal.Decimal `json:"change"`
}

type FundsTransferredEvent struct {
	FromAccountID int64           `json:"fromAccountId"`
	ToAccountID   int64           `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
	FromBalance   decimal.Decimal `json:"fromBalance"`
	ToBalance     decimal.Decimal `json:"toBalance"`
}

type AccountClosedEvent struct {
	AccountID    int64           `json:"accountId"`
	OwnerName    string          `json:"ownerName"`
	FinalBalance decimal.Decimal `json:"finalBalance"`
}
