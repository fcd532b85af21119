package repository

import (
	"context"
	"strconv"

	"github.com/eaglebank/ledger-service/shared/models"
	sharedredis "github.com/eaglebank/ledger-service/shared/redis"
	"go.uber.org/zap"
)

const AccountViewKeyPrefix = "account:view:"

// AccountReadRepository serves account reads. When a Redis view cache is
// configured it is consulted first and warmed on every cold read; without
// one every read goes straight to the store. Cache writes are versioned, so
// a cold read that fetched a snapshot before a later commit or close cannot
// replace the newer entry.
type AccountReadRepository struct {
	store  AccountStore
	cache  *sharedredis.ViewCache[models.Account]
	logger *zap.Logger
}

// NewAccountReadRepository accepts a nil cache.
func NewAccountReadRepository(store AccountStore, cache *sharedredis.ViewCache[models.Account], logger *zap.Logger) *AccountReadRepository {
	return &AccountReadRepository{store: store, cache: cache, logger: logger}
}

func cacheKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (r *AccountReadRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	if r.cache != nil {
		if account, ok := r.cache.Get(ctx, cacheKey(id)); ok {
			if account == nil {
				return nil, ErrAccountNotFound
			}
			return account, nil
		}
	}

	account, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.CacheAccount(ctx, account)
	return account, nil
}

// List always reads the store; the cache only holds single accounts.
func (r *AccountReadRepository) List(ctx context.Context) ([]models.Account, error) {
	return r.store.List(ctx)
}

// CacheAccount stores a committed snapshot unless the cache already holds
// the same or a newer version of the account.
func (r *AccountReadRepository) CacheAccount(ctx context.Context, account *models.Account) {
	if r.cache == nil || account == nil {
		return
	}
	r.cache.Set(ctx, cacheKey(account.ID), account.Version, account)
}

// ForgetAccount tombstones a closed account above its final version, so no
// snapshot read before the close can be cached again.
func (r *AccountReadRepository) ForgetAccount(ctx context.Context, closed *models.Account) {
	if r.cache == nil || closed == nil {
		return
	}
	r.logger.Debug("tombstoning account view", zap.Int64("account_id", closed.ID))
	r.cache.Tombstone(ctx, cacheKey(closed.ID), closed.Version+1)
}
