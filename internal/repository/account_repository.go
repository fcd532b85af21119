package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const pqCheckViolation = "23514"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresAccountRepository stores accounts in PostgreSQL. Mutations run in
// a transaction holding row locks taken with SELECT ... FOR UPDATE.
type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) Insert(ctx context.Context, ownerName string, balance decimal.Decimal) (*models.Account, error) {
	query := `
		INSERT INTO accounts (owner_name, balance)
		VALUES ($1, $2)
		RETURNING id, owner_name, balance, version
	`
	var account models.Account
	err := r.db.QueryRowContext(ctx, query, ownerName, balance).Scan(
		&account.ID, &account.OwnerName, &account.Balance, &account.Version,
	)
	if err != nil {
		return nil, mapPQError(fmt.Errorf("failed to create account: %w", err))
	}
	return &account, nil
}

func (r *PostgresAccountRepository) Get(ctx context.Context, id int64) (*models.Account, error) {
	return getAccount(ctx, r.db, id, false)
}

func (r *PostgresAccountRepository) List(ctx context.Context) ([]models.Account, error) {
	query := `SELECT id, owner_name, balance, version FROM accounts ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.OwnerName, &account.Balance, &account.Version); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

func (r *PostgresAccountRepository) UpdateAtomic(ctx context.Context, ids []int64, mutate Mutation) (committed map[int64]models.Account, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ordered := lockOrder(ids)
	locked := make(map[int64]*models.Account, len(ordered))
	versions := make(map[int64]int64, len(ordered))
	for _, id := range ordered {
		account, getErr := getAccount(ctx, tx, id, true)
		if errors.Is(getErr, ErrAccountNotFound) {
			continue
		}
		if getErr != nil {
			return nil, getErr
		}
		locked[id] = account
		versions[id] = account.Version
	}

	if err = mutate(locked); err != nil {
		return nil, err
	}

	committed = make(map[int64]models.Account, len(locked))
	for _, id := range ordered {
		account, ok := locked[id]
		if !ok {
			continue
		}
		if account.Balance.IsNegative() {
			return nil, ErrNegativeBalance
		}
		account.Version = versions[id] + 1
		if err = updateBalance(ctx, tx, id, account.Balance, account.Version); err != nil {
			return nil, err
		}
		committed[id] = *account
	}

	if err = tx.Commit(); err != nil {
		return nil, mapPQError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return committed, nil
}

func (r *PostgresAccountRepository) Delete(ctx context.Context, id int64) (*models.Account, error) {
	query := `DELETE FROM accounts WHERE id = $1 RETURNING id, owner_name, balance, version`
	var account models.Account
	err := r.db.QueryRowContext(ctx, query, id).Scan(&account.ID, &account.OwnerName, &account.Balance, &account.Version)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete account: %w", err)
	}
	return &account, nil
}

func getAccount(ctx context.Context, q querier, id int64, forUpdate bool) (*models.Account, error) {
	query := `SELECT id, owner_name, balance, version FROM accounts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var account models.Account
	err := q.QueryRowContext(ctx, query, id).Scan(&account.ID, &account.OwnerName, &account.Balance, &account.Version)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return &account, nil
}

func updateBalance(ctx context.Context, q querier, id int64, balance decimal.Decimal, version int64) error {
	query := `UPDATE accounts SET balance = $2, version = $3, updated_at = NOW() WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id, balance, version)
	if err != nil {
		return mapPQError(fmt.Errorf("failed to update balance for account %d: %w", id, err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// mapPQError turns the balance CHECK constraint violation into
// ErrNegativeBalance and leaves everything else untouched.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqCheckViolation {
		return fmt.Errorf("%w: %s", ErrNegativeBalance, pqErr.Message)
	}
	return err
}
