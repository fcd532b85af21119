package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	// ErrNegativeBalance is returned when a commit would leave a balance below zero.
	ErrNegativeBalance = errors.New("balance would become negative")
)

// Mutation edits locked copies of the requested accounts in place. Ids with
// no record are absent from the map. Returning an error discards every
// change made by the mutation.
type Mutation func(locked map[int64]*models.Account) error

// AccountStore is the durable home of account records.
//
// UpdateAtomic locks the requested records in ascending id order, runs the
// mutation, and commits all resulting balances as one unit. Only the balance
// of a record is ever rewritten; id and owner name are fixed at Insert.
// Inserted records start at Version 1 and each committed update bumps it by
// one, so a higher Version is always the newer snapshot.
type AccountStore interface {
	Get(ctx context.Context, id int64) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	Insert(ctx context.Context, ownerName string, balance decimal.Decimal) (*models.Account, error)
	UpdateAtomic(ctx context.Context, ids []int64, mutate Mutation) (map[int64]models.Account, error)
	Delete(ctx context.Context, id int64) (*models.Account, error)
}

// lockOrder returns ids de-duplicated and ascending. Every store acquires
// row locks in this order so opposite-direction transfers cannot deadlock.
func lockOrder(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	ordered := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
	return ordered
}
