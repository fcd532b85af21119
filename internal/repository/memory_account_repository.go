package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/shopspring/decimal"
)

// MemoryAccountRepository keeps accounts in process memory.
//
// Each account has its own mutex serialising read-check-write cycles, so
// unrelated accounts mutate in parallel. mu guards the record map itself and
// is only ever taken after the account locks, never while waiting for one.
// A lock entry lives only while some caller holds or waits for it, so locks
// never outgrows the number of in-flight operations.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[int64]models.Account
	nextID   int64

	locksMu sync.Mutex
	locks   map[int64]*accountMutex
}

type accountMutex struct {
	sync.Mutex
	refs int
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[int64]models.Account),
		locks:    make(map[int64]*accountMutex),
	}
}

// lockAccount blocks until the caller owns id's mutex.
func (r *MemoryAccountRepository) lockAccount(id int64) {
	r.locksMu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &accountMutex{}
		r.locks[id] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.Lock()
}

func (r *MemoryAccountRepository) unlockAccount(id int64) {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	l := r.locks[id]
	l.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, id)
	}
}

func (r *MemoryAccountRepository) Insert(_ context.Context, ownerName string, balance decimal.Decimal) (*models.Account, error) {
	if balance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	account := models.Account{ID: r.nextID, OwnerName: ownerName, Balance: balance, Version: 1}
	r.accounts[account.ID] = account
	return &account, nil
}

func (r *MemoryAccountRepository) Get(_ context.Context, id int64) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (r *MemoryAccountRepository) List(_ context.Context) ([]models.Account, error) {
	r.mu.RLock()
	accounts := make([]models.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}
	r.mu.RUnlock()

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (r *MemoryAccountRepository) UpdateAtomic(_ context.Context, ids []int64, mutate Mutation) (map[int64]models.Account, error) {
	ordered := lockOrder(ids)
	for _, id := range ordered {
		r.lockAccount(id)
		defer r.unlockAccount(id)
	}

	r.mu.RLock()
	locked := make(map[int64]*models.Account, len(ordered))
	for _, id := range ordered {
		if account, ok := r.accounts[id]; ok {
			working := account
			locked[id] = &working
		}
	}
	r.mu.RUnlock()

	if err := mutate(locked); err != nil {
		return nil, err
	}

	committed := make(map[int64]models.Account, len(locked))
	for id, account := range locked {
		if account.Balance.IsNegative() {
			return nil, ErrNegativeBalance
		}
		committed[id] = models.Account{ID: id, Balance: account.Balance}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, next := range committed {
		current := r.accounts[id]
		current.Balance = next.Balance
		current.Version++
		r.accounts[id] = current
		committed[id] = current
	}
	return committed, nil
}

func (r *MemoryAccountRepository) Delete(_ context.Context, id int64) (*models.Account, error) {
	r.lockAccount(id)
	defer r.unlockAccount(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	delete(r.accounts, id)
	return &account, nil
}
