package cqrs

import "github.com/shopspring/decimal"

type OpenAccountCommand struct {
	OwnerName      string
	InitialBalance decimal.Decimal
}

type DepositCommand struct {
	AccountID int64
	Amount    decimal.Decimal
}

type WithdrawCommand struct {
	AccountID int64
	Amount    decimal.Decimal
}

type TransferCommand struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
}

type CloseAccountCommand struct {
	AccountID int64
}
