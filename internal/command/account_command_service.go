package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/shared/apperr"
	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/events"
	"github.com/eaglebank/ledger-service/shared/models"
	"go.uber.org/zap"
)

// AccountCommandService is the write side of the ledger. Every balance
// change is validated and applied inside a single store.UpdateAtomic call,
// so checks and writes see the same locked state.
type AccountCommandService struct {
	store     repository.AccountStore
	readRepo  *repository.AccountReadRepository
	publisher events.EventPublisher
	logger    *zap.Logger
}

func NewAccountCommandService(
	store repository.AccountStore,
	readRepo *repository.AccountReadRepository,
	publisher events.EventPublisher,
	logger *zap.Logger,
) *AccountCommandService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AccountCommandService{
		store:     store,
		readRepo:  readRepo,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "ledger")),
	}
}

var (
	errAccountNotFound  = apperr.New(apperr.NotFound, apperr.CodeAccountNotFound, "Account not found")
	errSenderNotFound   = apperr.New(apperr.NotFound, apperr.CodeSenderNotFound, "Sender account not found")
	errReceiverNotFound = apperr.New(apperr.NotFound, apperr.CodeReceiverNotFound, "Receiver account not found")
	errInsufficient     = apperr.New(apperr.InsufficientFunds, apperr.CodeInsufficientFunds, "Insufficient funds")
	errOwnerName        = apperr.New(apperr.InvalidInput, apperr.CodeInvalidOwnerName, "Owner name must not be empty")
	errInitialBalance   = apperr.New(apperr.InvalidInput, apperr.CodeInvalidInitialBalance, "Initial balance must not be negative")
	errDepositAmount    = apperr.New(apperr.InvalidInput, apperr.CodeInvalidAmount, "Deposit amount must be positive")
	errWithdrawAmount   = apperr.New(apperr.InvalidInput, apperr.CodeInvalidAmount, "Withdrawal amount must be positive")
	errTransferAmount   = apperr.New(apperr.InvalidInput, apperr.CodeInvalidAmount, "Transfer amount must be positive")

	errInitialBalanceScale = apperr.New(apperr.InvalidInput, apperr.CodeInvalidInitialBalance,
		fmt.Sprintf("Initial balance must have at most %d decimal places and be below %s", models.BalanceScale, models.MaxBalance))
	errAmountScale = apperr.New(apperr.InvalidInput, apperr.CodeInvalidAmount,
		fmt.Sprintf("Amount must have at most %d decimal places and be below %s", models.BalanceScale, models.MaxBalance))
	errBalanceLimit = apperr.New(apperr.InvalidInput, apperr.CodeInvalidAmount,
		fmt.Sprintf("Resulting balance must be below %s", models.MaxBalance))
)

func (s *AccountCommandService) OpenAccount(ctx context.Context, cmd cqrs.OpenAccountCommand) (*models.Account, error) {
	if strings.TrimSpace(cmd.OwnerName) == "" {
		return nil, s.rejected("open", errOwnerName)
	}
	if cmd.InitialBalance.IsNegative() {
		return nil, s.rejected("open", errInitialBalance)
	}
	if !models.Representable(cmd.InitialBalance) {
		return nil, s.rejected("open", errInitialBalanceScale)
	}

	account, err := s.store.Insert(ctx, cmd.OwnerName, cmd.InitialBalance)
	if err != nil {
		return nil, s.storeError("open", err)
	}

	s.logger.Info("account opened",
		zap.Int64("account_id", account.ID),
		zap.String("balance", account.Balance.String()),
	)
	s.readRepo.CacheAccount(ctx, account)
	s.publish(ctx, events.AccountOpened, events.AccountOpenedEvent{
		AccountID: account.ID,
		OwnerName: account.OwnerName,
		Balance:   account.Balance,
	})
	return account, nil
}

func (s *AccountCommandService) Deposit(ctx context.Context, cmd cqrs.DepositCommand) (*models.Account, error) {
	committed, err := s.store.UpdateAtomic(ctx, []int64{cmd.AccountID}, func(locked map[int64]*models.Account) error {
		account, ok := locked[cmd.AccountID]
		if !ok {
			return errAccountNotFound
		}
		if !cmd.Amount.IsPositive() {
			return errDepositAmount
		}
		if !models.Representable(cmd.Amount) {
			return errAmountScale
		}
		next := account.Balance.Add(cmd.Amount)
		if !models.Representable(next) {
			return errBalanceLimit
		}
		account.Balance = next
		return nil
	})
	if err != nil {
		return nil, s.storeError("deposit", err)
	}

	account := committed[cmd.AccountID]
	s.logger.Info("deposit applied",
		zap.Int64("account_id", account.ID),
		zap.String("amount", cmd.Amount.String()),
		zap.String("balance", account.Balance.String()),
	)
	s.readRepo.CacheAccount(ctx, &account)
	s.publish(ctx, events.BalanceUpdated, events.BalanceUpdatedEvent{
		AccountID:  account.ID,
		NewBalance: account.Balance,
		Change:     cmd.Amount,
	})
	return &account, nil
}

func (s *AccountCommandService) Withdraw(ctx context.Context, cmd cqrs.WithdrawCommand) (*models.Account, error) {
	committed, err := s.store.UpdateAtomic(ctx, []int64{cmd.AccountID}, func(locked map[int64]*models.Account) error {
		account, ok := locked[cmd.AccountID]
		if !ok {
			return errAccountNotFound
		}
		if !cmd.Amount.IsPositive() {
			return errWithdrawAmount
		}
		if !models.Representable(cmd.Amount) {
			return errAmountScale
		}
		if account.Balance.LessThan(cmd.Amount) {
			return errInsufficient
		}
		account.Balance = account.Balance.Sub(cmd.Amount)
		return nil
	})
	if err != nil {
		return nil, s.storeError("withdraw", err)
	}

	account := committed[cmd.AccountID]
	s.logger.Info("withdrawal applied",
		zap.Int64("account_id", account.ID),
		zap.String("amount", cmd.Amount.String()),
		zap.String("balance", account.Balance.String()),
	)
	s.readRepo.CacheAccount(ctx, &account)
	s.publish(ctx, events.BalanceUpdated, events.BalanceUpdatedEvent{
		AccountID:  account.ID,
		NewBalance: account.Balance,
		Change:     cmd.Amount.Neg(),
	})
	return &account, nil
}

// Transfer moves Amount from one account to another as one commit. A
// transfer to the same account passes every check and leaves the balance
// unchanged.
func (s *AccountCommandService) Transfer(ctx context.Context, cmd cqrs.TransferCommand) (*models.TransferResult, error) {
	ids := []int64{cmd.FromAccountID, cmd.ToAccountID}
	committed, err := s.store.UpdateAtomic(ctx, ids, func(locked map[int64]*models.Account) error {
		sender, ok := locked[cmd.FromAccountID]
		if !ok {
			return errSenderNotFound
		}
		receiver, ok := locked[cmd.ToAccountID]
		if !ok {
			return errReceiverNotFound
		}
		if !cmd.Amount.IsPositive() {
			return errTransferAmount
		}
		if !models.Representable(cmd.Amount) {
			return errAmountScale
		}
		if sender.Balance.LessThan(cmd.Amount) {
			return errInsufficient
		}
		sender.Balance = sender.Balance.Sub(cmd.Amount)
		next := receiver.Balance.Add(cmd.Amount)
		if !models.Representable(next) {
			return errBalanceLimit
		}
		receiver.Balance = next
		return nil
	})
	if err != nil {
		return nil, s.storeError("transfer", err)
	}

	result := &models.TransferResult{
		From: committed[cmd.FromAccountID],
		To:   committed[cmd.ToAccountID],
	}
	s.logger.Info("transfer applied",
		zap.Int64("from_account_id", result.From.ID),
		zap.Int64("to_account_id", result.To.ID),
		zap.String("amount", cmd.Amount.String()),
	)
	s.readRepo.CacheAccount(ctx, &result.From)
	s.readRepo.CacheAccount(ctx, &result.To)
	s.publish(ctx, events.FundsTransferred, events.FundsTransferredEvent{
		FromAccountID: result.From.ID,
		ToAccountID:   result.To.ID,
		Amount:        cmd.Amount,
		FromBalance:   result.From.Balance,
		ToBalance:     result.To.Balance,
	})
	return result, nil
}

// CloseAccount removes the account permanently. Any remaining balance is
// discarded with it.
func (s *AccountCommandService) CloseAccount(ctx context.Context, cmd cqrs.CloseAccountCommand) (*models.CloseReceipt, error) {
	account, err := s.store.Delete(ctx, cmd.AccountID)
	if err != nil {
		return nil, s.storeError("close", err)
	}

	if !account.Balance.IsZero() {
		s.logger.Warn("account closed with non-zero balance",
			zap.Int64("account_id", account.ID),
			zap.String("balance", account.Balance.String()),
		)
	} else {
		s.logger.Info("account closed", zap.Int64("account_id", account.ID))
	}
	s.readRepo.ForgetAccount(ctx, account)
	s.publish(ctx, events.AccountClosed, events.AccountClosedEvent{
		AccountID:    account.ID,
		OwnerName:    account.OwnerName,
		FinalBalance: account.Balance,
	})
	return &models.CloseReceipt{ID: account.ID, OwnerName: account.OwnerName, Balance: account.Balance}, nil
}

// storeError passes ledger failures through and classifies everything else.
func (s *AccountCommandService) storeError(op string, err error) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return s.rejected(op, appErr)
	case errors.Is(err, repository.ErrAccountNotFound):
		return s.rejected(op, errAccountNotFound)
	case errors.Is(err, repository.ErrNegativeBalance):
		return s.rejected(op, errInsufficient)
	}
	s.logger.Error("storage failure", zap.String("operation", op), zap.Error(err))
	return apperr.Storage(err)
}

func (s *AccountCommandService) rejected(op string, err *apperr.Error) error {
	s.logger.Debug("operation rejected",
		zap.String("operation", op),
		zap.String("code", err.Code),
	)
	return err
}

func (s *AccountCommandService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(ctx, events.AccountEventsStream, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}
