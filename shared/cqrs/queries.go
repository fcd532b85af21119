package cqrs

// GetAccountQuery fetches a single account by id.
type GetAccountQuery struct {
	AccountID int64
}

// ListAccountsQuery fetches every open account.
type ListAccountsQuery struct{}
