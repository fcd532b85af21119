package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormAccount maps the accounts table for the MySQL store. The balance
// column type must match models.BalancePrecision and models.BalanceScale.
type gormAccount struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	OwnerName string          `gorm:"type:varchar(255);not null"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,4);not null;check:balance >= 0"`
	Version   int64           `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*gormAccount) TableName() string {
	return "accounts"
}

func (a *gormAccount) toModel() *models.Account {
	return &models.Account{ID: a.ID, OwnerName: a.OwnerName, Balance: a.Balance, Version: a.Version}
}

// GormAccountRepository stores accounts through gorm (MySQL in production).
// Mutations lock rows with SELECT ... FOR UPDATE inside db.Transaction.
type GormAccountRepository struct {
	db *gorm.DB
}

func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// AutoMigrate creates or updates the accounts table.
func (r *GormAccountRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&gormAccount{}); err != nil {
		return fmt.Errorf("failed to migrate accounts table: %w", err)
	}
	return nil
}

func (r *GormAccountRepository) Insert(ctx context.Context, ownerName string, balance decimal.Decimal) (*models.Account, error) {
	if balance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	row := gormAccount{OwnerName: ownerName, Balance: balance, Version: 1}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return row.toModel(), nil
}

func (r *GormAccountRepository) Get(ctx context.Context, id int64) (*models.Account, error) {
	var row gormAccount
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return row.toModel(), nil
}

func (r *GormAccountRepository) List(ctx context.Context) ([]models.Account, error) {
	var rows []gormAccount
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	accounts := make([]models.Account, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, *rows[i].toModel())
	}
	return accounts, nil
}

func (r *GormAccountRepository) UpdateAtomic(ctx context.Context, ids []int64, mutate Mutation) (map[int64]models.Account, error) {
	ordered := lockOrder(ids)
	committed := make(map[int64]models.Account, len(ordered))

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := make(map[int64]*models.Account, len(ordered))
		versions := make(map[int64]int64, len(ordered))
		for _, id := range ordered {
			var row gormAccount
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&row).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to lock account %d: %w", id, err)
			}
			locked[id] = row.toModel()
			versions[id] = row.Version
		}

		if err := mutate(locked); err != nil {
			return err
		}

		for _, id := range ordered {
			account, ok := locked[id]
			if !ok {
				continue
			}
			if account.Balance.IsNegative() {
				return ErrNegativeBalance
			}
			account.Version = versions[id] + 1
			res := tx.Model(&gormAccount{}).Where("id = ?", id).Updates(map[string]any{
				"balance": account.Balance,
				"version": account.Version,
			})
			if res.Error != nil {
				return fmt.Errorf("failed to update balance for account %d: %w", id, res.Error)
			}
			committed[id] = *account
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (r *GormAccountRepository) Delete(ctx context.Context, id int64) (*models.Account, error) {
	var deleted *models.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row gormAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock account %d: %w", id, err)
		}
		if err := tx.Delete(&gormAccount{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete account %d: %w", id, err)
		}
		deleted = row.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
