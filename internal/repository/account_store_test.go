package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/shopspring/decimal"
)

// testAccountStore runs the behaviour every AccountStore must share against
// store. Accounts it creates are deleted when the test ends.
func testAccountStore(t *testing.T, store AccountStore) {
	t.Helper()
	ctx := context.Background()

	open := func(t *testing.T, name string, balance decimal.Decimal) *models.Account {
		t.Helper()
		account, err := store.Insert(ctx, name, balance)
		if err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
		t.Cleanup(func() { _, _ = store.Delete(ctx, account.ID) })
		return account
	}

	t.Run("insert starts at version 1", func(t *testing.T) {
		account := open(t, "Fresh", decimal.RequireFromString("0.5"))
		if account.Version != 1 {
			t.Errorf("expected version 1, got %d", account.Version)
		}
		got, err := store.Get(ctx, account.ID)
		if err != nil || got.OwnerName != "Fresh" || !got.Balance.Equal(decimal.RequireFromString("0.5")) || got.Version != 1 {
			t.Errorf("unexpected get %+v, %v", got, err)
		}
	})

	t.Run("update commits balances and bumps versions", func(t *testing.T) {
		a := open(t, "A", decimal.NewFromInt(100))
		b := open(t, "B", decimal.RequireFromString("0.5"))
		committed, err := store.UpdateAtomic(ctx, []int64{b.ID, a.ID}, func(locked map[int64]*models.Account) error {
			locked[a.ID].Balance = locked[a.ID].Balance.Sub(decimal.NewFromInt(40))
			locked[b.ID].Balance = locked[b.ID].Balance.Add(decimal.NewFromInt(40))
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if !committed[a.ID].Balance.Equal(decimal.NewFromInt(60)) || !committed[b.ID].Balance.Equal(decimal.RequireFromString("40.5")) {
			t.Errorf("unexpected committed %+v", committed)
		}
		if committed[a.ID].Version != 2 || committed[b.ID].Version != 2 || committed[b.ID].OwnerName != "B" {
			t.Errorf("unexpected committed snapshots %+v", committed)
		}
		got, _ := store.Get(ctx, a.ID)
		if got.Version != 2 || !got.Balance.Equal(decimal.NewFromInt(60)) {
			t.Errorf("store disagrees with committed snapshot: %+v", got)
		}
	})

	t.Run("mutation error rolls back", func(t *testing.T) {
		a := open(t, "Rollback", decimal.NewFromInt(60))
		boom := errors.New("boom")
		if _, err := store.UpdateAtomic(ctx, []int64{a.ID}, func(locked map[int64]*models.Account) error {
			locked[a.ID].Balance = decimal.Zero
			return boom
		}); !errors.Is(err, boom) {
			t.Fatalf("expected mutation error, got %v", err)
		}
		got, _ := store.Get(ctx, a.ID)
		if !got.Balance.Equal(decimal.NewFromInt(60)) || got.Version != 1 {
			t.Errorf("expected untouched record, got %+v", got)
		}
	})

	t.Run("negative balance is refused", func(t *testing.T) {
		a := open(t, "Neg", decimal.NewFromInt(1))
		b := open(t, "Other", decimal.NewFromInt(1))
		if _, err := store.UpdateAtomic(ctx, []int64{a.ID, b.ID}, func(locked map[int64]*models.Account) error {
			locked[a.ID].Balance = decimal.NewFromInt(-1)
			locked[b.ID].Balance = decimal.NewFromInt(3)
			return nil
		}); !errors.Is(err, ErrNegativeBalance) {
			t.Fatalf("expected ErrNegativeBalance, got %v", err)
		}
		got, _ := store.Get(ctx, b.ID)
		if !got.Balance.Equal(decimal.NewFromInt(1)) {
			t.Errorf("expected b untouched, got %s", got.Balance)
		}
		if _, err := store.Insert(ctx, "Neg", decimal.NewFromInt(-1)); !errors.Is(err, ErrNegativeBalance) {
			t.Errorf("expected ErrNegativeBalance on insert, got %v", err)
		}
	})

	t.Run("missing ids are absent from the locked set", func(t *testing.T) {
		a := open(t, "Present", decimal.Zero)
		missing := a.ID + 1_000_000
		if _, err := store.UpdateAtomic(ctx, []int64{missing, a.ID}, func(locked map[int64]*models.Account) error {
			if _, ok := locked[missing]; ok || len(locked) != 1 {
				t.Errorf("unexpected locked set %v", locked)
			}
			return nil
		}); err != nil {
			t.Fatalf("update: %v", err)
		}
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		a := open(t, "Hot", decimal.Zero)
		const n = 25
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.UpdateAtomic(ctx, []int64{a.ID}, func(locked map[int64]*models.Account) error {
					locked[a.ID].Balance = locked[a.ID].Balance.Add(decimal.NewFromInt(1))
					return nil
				}); err != nil {
					t.Errorf("increment: %v", err)
				}
			}()
		}
		wg.Wait()
		got, _ := store.Get(ctx, a.ID)
		if !got.Balance.Equal(decimal.NewFromInt(n)) || got.Version != n+1 {
			t.Errorf("expected balance %d at version %d, got %+v", n, n+1, got)
		}
	})

	t.Run("opposite transfers conserve the total", func(t *testing.T) {
		a := open(t, "Left", decimal.NewFromInt(50))
		b := open(t, "Right", decimal.RequireFromString("50.5"))
		move := func(from, to int64) {
			_, err := store.UpdateAtomic(ctx, []int64{from, to}, func(locked map[int64]*models.Account) error {
				locked[from].Balance = locked[from].Balance.Sub(decimal.NewFromInt(1))
				locked[to].Balance = locked[to].Balance.Add(decimal.NewFromInt(1))
				return nil
			})
			if err != nil {
				t.Errorf("transfer %d->%d: %v", from, to, err)
			}
		}
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); move(a.ID, b.ID) }()
			go func() { defer wg.Done(); move(b.ID, a.ID) }()
		}
		wg.Wait()
		ga, _ := store.Get(ctx, a.ID)
		gb, _ := store.Get(ctx, b.ID)
		if total := ga.Balance.Add(gb.Balance); !total.Equal(decimal.RequireFromString("100.5")) {
			t.Errorf("conservation violated: %s", total)
		}
	})

	t.Run("delete removes the record", func(t *testing.T) {
		account, err := store.Insert(ctx, "Gone", decimal.NewFromInt(5))
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		deleted, err := store.Delete(ctx, account.ID)
		if err != nil || deleted.OwnerName != "Gone" || !deleted.Balance.Equal(decimal.NewFromInt(5)) {
			t.Fatalf("unexpected delete %+v, %v", deleted, err)
		}
		if _, err := store.Get(ctx, account.ID); !errors.Is(err, ErrAccountNotFound) {
			t.Errorf("expected ErrAccountNotFound, got %v", err)
		}
		if _, err := store.Delete(ctx, account.ID); !errors.Is(err, ErrAccountNotFound) {
			t.Errorf("expected ErrAccountNotFound on second delete, got %v", err)
		}
		if _, err := store.UpdateAtomic(ctx, []int64{account.ID}, func(locked map[int64]*models.Account) error {
			if len(locked) != 0 {
				t.Errorf("closed account still lockable")
			}
			return nil
		}); err != nil {
			t.Fatalf("update: %v", err)
		}
	})
}
