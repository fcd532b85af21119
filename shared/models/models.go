package models

import "github.com/shopspring/decimal"

func init() {
	// Balances go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type Account struct {
	ID        int64           `json:"id"`
	OwnerName string          `json:"owner_name"`
	Balance   decimal.Decimal `json:"balance"`
	// Version increases with every committed change to the account.
	Version   int64           `json:"-"`
}

// TransferResult holds both participants as committed by a transfer.
type TransferResult struct {
	From Account `json:"from_account"`
	To   Account `json:"to_account"`
}

// CloseReceipt describes an account that has been permanently removed.
type CloseReceipt struct {
	ID        int64           `json:"id"`
	OwnerName string          `json:"owner_name"`
	Balance   decimal.Decimal `json:"balance"`
}
