package query

import (
	"context"
	"errors"

	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/shared/apperr"
	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/models"
	"go.uber.org/zap"
)

type AccountQueryService struct {
	readRepo *repository.AccountReadRepository
	logger   *zap.Logger
}

func NewAccountQueryService(readRepo *repository.AccountReadRepository, logger *zap.Logger) *AccountQueryService {
	return &AccountQueryService{readRepo: readRepo, logger: logger.With(zap.String("component", "ledger-query"))}
}

func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.Account, error) {
	account, err := s.readRepo.GetByID(ctx, q.AccountID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, apperr.New(apperr.NotFound, apperr.CodeAccountNotFound, "Account not found")
	}
	if err != nil {
		s.logger.Error("failed to read account", zap.Int64("account_id", q.AccountID), zap.Error(err))
		return nil, apperr.Storage(err)
	}
	return account, nil
}

// ListAccounts returns every open account in ascending id order.
func (s *AccountQueryService) ListAccounts(ctx context.Context, _ cqrs.ListAccountsQuery) ([]models.Account, error) {
	accounts, err := s.readRepo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list accounts", zap.Error(err))
		return nil, apperr.Storage(err)
	}
	return accounts, nil
}
